package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLinearForcedAtAddTime(t *testing.T) {
	// 2*x1 + x2 + x3 >= 3 cannot hold without x1.
	s := NewDefaultSolver()
	require.True(t, s.AddLinearConstraint([]int64{2, 1, 1}, lits(1, 2, 3), 3))
	require.Equal(t, Feasible, s.Solve())
	model := s.Model()
	require.True(t, model[0])
	require.True(t, model[1] || model[2])
}

func TestLinearPropagationDuringSearch(t *testing.T) {
	cnf := [][]int{{-1, -2}}
	s := NewDefaultSolver()
	addAll(t, s, cnf)
	require.True(t, s.AddLinearConstraint([]int64{1, 1, 1}, lits(1, 2, 3), 2))

	require.Equal(t, Feasible, s.Solve())
	model := s.Model()
	require.True(t, model[2], "3 must be true: at least two of three, but not both 1 and 2")
	require.False(t, model[0] && model[1])
	checkModel(t, s, cnf)
}

func TestLinearFixedLiteralSimplification(t *testing.T) {
	// Fixing 1 false leaves x2 + x3 >= 2, which forces both.
	s := NewDefaultSolver()
	require.True(t, s.AddClause(lits(-1)))
	require.True(t, s.AddLinearConstraint([]int64{1, 1, 1}, lits(1, 2, 3), 2))
	require.Equal(t, Feasible, s.Solve())
	model := s.Model()
	require.False(t, model[0])
	require.True(t, model[1])
	require.True(t, model[2])
}

func TestLinearUnsatAtLevelZero(t *testing.T) {
	s := NewDefaultSolver()
	require.True(t, s.AddLinearConstraint([]int64{1, 1}, lits(1, 2), 2))
	// Both were forced true; excluding that is a contradiction.
	require.False(t, s.AddClause(lits(-1, -2)))
	require.Equal(t, Infeasible, s.Solve())
}

func TestLinearOverweightIsClamped(t *testing.T) {
	// A weight above the bound is as good as the bound itself.
	s := NewDefaultSolver()
	require.True(t, s.AddLinearConstraint([]int64{100, 1, 1}, lits(1, 2, 3), 2))
	require.True(t, s.AddClause(lits(-1)))
	require.Equal(t, Feasible, s.Solve())
	model := s.Model()
	require.True(t, model[1])
	require.True(t, model[2])
}

func TestLinearNegativeWeights(t *testing.T) {
	// -x1 + x2 >= 1 is x2 >= 1 + x1, so x2 true and x1 false... after
	// normalization: not(1) + x2 >= 2, forcing both at add time.
	s := NewDefaultSolver()
	require.True(t, s.AddLinearConstraint([]int64{-1, 1}, lits(1, 2), 1))
	require.Equal(t, Feasible, s.Solve())
	model := s.Model()
	require.False(t, model[0])
	require.True(t, model[1])
}

func TestLinearMergeOppositeLiterals(t *testing.T) {
	// x1 + not(x1) contributes exactly 1: the constraint reduces to x2 >= 1.
	s := NewDefaultSolver()
	require.True(t, s.AddLinearConstraint([]int64{1, 1, 1}, []Lit{IntToLit(1), IntToLit(-1), IntToLit(2)}, 2))
	require.Equal(t, Feasible, s.Solve())
	require.True(t, s.Model()[1])
}

func TestLinearBacktrackRestoresSlack(t *testing.T) {
	// Under assumption not(2), the constraint forces 1 and 3; without it, a
	// model with 2 exists. The slack bookkeeping must survive the backtrack.
	s := NewDefaultSolver()
	require.True(t, s.AddLinearConstraint([]int64{1, 1, 1}, lits(1, 2, 3), 2))

	require.Equal(t, Feasible, s.SolveWithAssumptions(lits(-2)))
	model := s.Model()
	require.True(t, model[0])
	require.False(t, model[1])
	require.True(t, model[2])

	require.Equal(t, Feasible, s.SolveWithAssumptions(lits(2, -1)))
	model = s.Model()
	require.False(t, model[0])
	require.True(t, model[1])
	require.True(t, model[2])
}
