package solver

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const satCNF = `c a satisfiable example
p cnf 3 4
1 2 3 0
-1 2 0
-2 3 0
c a trailing comment
-3 1 0
`

const unsatCNF = `p cnf 2 4
1 2 0
-1 2 0
1 -2 0
-1 -2 0
`

func TestLoadCNFSat(t *testing.T) {
	s := NewDefaultSolver()
	require.NoError(t, LoadCNF(strings.NewReader(satCNF), s))
	require.Equal(t, 3, s.NbVars())
	require.Equal(t, Feasible, s.Solve())
	// 1 => 2 => 3 => 1, plus (1 2 3): all three are true.
	require.Equal(t, []bool{true, true, true}, s.Model()[:3])
}

func TestLoadCNFUnsat(t *testing.T) {
	s := NewDefaultSolver()
	require.NoError(t, LoadCNF(strings.NewReader(unsatCNF), s))
	require.Equal(t, Infeasible, s.Solve())
}

func TestLoadCNFErrors(t *testing.T) {
	tests := []struct {
		name string
		cnf  string
	}{
		{"unfinished clause", "p cnf 2 1\n1 2"},
		{"literal out of range", "p cnf 2 1\n1 3 0\n"},
		{"not a digit", "p cnf 2 1\n1 x 0\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			s := NewDefaultSolver()
			require.Error(t, LoadCNF(strings.NewReader(test.cnf), s))
		})
	}
}

func TestLoadSlice(t *testing.T) {
	s := NewDefaultSolver()
	require.NoError(t, LoadSlice([][]int{{1, 2}, {-1}, {-2, 3}}, s))
	require.Equal(t, Feasible, s.Solve())
	model := s.Model()
	require.False(t, model[0])
	require.True(t, model[1])
	require.True(t, model[2])
}

func TestLoadSliceRejectsNullLiteral(t *testing.T) {
	s := NewDefaultSolver()
	require.Error(t, LoadSlice([][]int{{1, 0, 2}}, s))
}
