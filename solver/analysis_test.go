package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// setUpConflict drives a small implication sequence into a conflict:
// deciding 1 then 2 forces 3 (from clause 1), then 4 (clause 2), and
// falsifies clause 3. The first UIP is 2.
func setUpConflict(t *testing.T, params *Parameters) (*Trail, *ConflictAnalyzer) {
	tr := NewTrail(4)
	m := NewClauseManager(tr, params)
	require.True(t, m.AddClause(lits(-1, -2, 3)))
	require.True(t, m.AddClause(lits(-1, -3, 4)))
	require.True(t, m.AddClause(lits(-2, -3, -4)))

	tr.EnqueueDecision(IntToLit(1))
	require.True(t, m.Propagate(tr))
	tr.EnqueueDecision(IntToLit(2))
	require.False(t, m.Propagate(tr))
	require.NotNil(t, tr.Conflict())
	return tr, NewConflictAnalyzer(tr, params)
}

func noopVar(Var) {}

func TestAnalyzeFirstUIP(t *testing.T) {
	params := DefaultParameters()
	params.Minimization = MinimizationNone
	tr, a := setUpConflict(t, &params)

	learned := a.Analyze(tr.Conflict(), noopVar, noopVar)
	require.Equal(t, IntToLit(-2), learned[0])
	require.ElementsMatch(t, lits(-2, -1), learned)
}

func TestAnalyzeBumpsResolvedVars(t *testing.T) {
	params := DefaultParameters()
	tr, a := setUpConflict(t, &params)

	bumped := map[Var]bool{}
	resolved := map[Var]bool{}
	a.Analyze(tr.Conflict(),
		func(v Var) { bumped[v] = true },
		func(v Var) { resolved[v] = true })

	// Every variable of the conflict took part in the resolution.
	for i := 0; i < 4; i++ {
		require.True(t, bumped[Var(i)], "var %d", i)
	}
	// 4 and 3 had their reasons expanded; the UIP 2 did not.
	require.True(t, resolved[IntToLit(4).Var()])
	require.True(t, resolved[IntToLit(3).Var()])
	require.False(t, resolved[IntToLit(2).Var()])
}

func TestAnalyzeMinimizationDropsDominated(t *testing.T) {
	// Level 1: deciding 1 forces 2 through the implication graph. Level 2:
	// deciding 3 forces 4, which falsifies the last clause. The raw first-UIP
	// clause is (-3 -2 -1); -2's whole reason is -1, already in the clause,
	// so minimization drops it.
	params := DefaultParameters()
	tr := NewTrail(4)
	g := NewBinaryImplicationGraph(tr, &params)
	m := NewClauseManager(tr, &params)
	require.True(t, g.AddBinaryClause(IntToLit(-1), IntToLit(2)))
	require.True(t, m.AddClause(lits(-3, -1, 4)))
	require.True(t, m.AddClause(lits(-4, -2, -3)))

	tr.EnqueueDecision(IntToLit(1))
	require.True(t, g.Propagate(tr))
	require.True(t, tr.LitTrue(IntToLit(2)))
	require.True(t, m.Propagate(tr))
	tr.EnqueueDecision(IntToLit(3))
	require.True(t, g.Propagate(tr))
	require.False(t, m.Propagate(tr))

	params.Minimization = MinimizationNone
	raw := NewConflictAnalyzer(tr, &params).Analyze(tr.Conflict(), noopVar, noopVar)
	require.Equal(t, IntToLit(-3), raw[0])
	require.ElementsMatch(t, lits(-3, -2, -1), raw)

	params.Minimization = MinimizationSimple
	simple := NewConflictAnalyzer(tr, &params).Analyze(tr.Conflict(), noopVar, noopVar)
	require.ElementsMatch(t, lits(-3, -1), simple)

	params.Minimization = MinimizationRecursive
	recursive := NewConflictAnalyzer(tr, &params).Analyze(tr.Conflict(), noopVar, noopVar)
	require.ElementsMatch(t, lits(-3, -1), recursive)
}

func TestComputeLBD(t *testing.T) {
	params := DefaultParameters()
	tr := NewTrail(4)
	tr.Enqueue(IntToLit(1), UnitReason)    // Level 0.
	tr.EnqueueDecision(IntToLit(2))        // Level 1.
	tr.EnqueueDecision(IntToLit(3))        // Level 2.
	tr.Enqueue(IntToLit(4), DecisionReason) // Also level 2.

	a := NewConflictAnalyzer(tr, &params)
	require.Equal(t, int32(3), a.ComputeLBD(lits(1, 2, 3, 4)))
	require.Equal(t, int32(1), a.ComputeLBD(lits(3, 4)))
}
