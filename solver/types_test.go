package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLitEncoding(t *testing.T) {
	tests := []struct {
		cnf int
		lit Lit
	}{
		{1, 0},
		{-1, 1},
		{2, 2},
		{-2, 3},
		{3, 4},
		{-3, 5},
	}
	for _, test := range tests {
		l := IntToLit(test.cnf)
		require.Equal(t, test.lit, l, "IntToLit(%d)", test.cnf)
		require.Equal(t, int32(test.cnf), l.Int())
		require.Equal(t, test.cnf > 0, l.IsPositive())
	}
}

func TestLitNegation(t *testing.T) {
	for _, cnf := range []int{1, -1, 7, -42} {
		l := IntToLit(cnf)
		require.Equal(t, IntToLit(-cnf), l.Negation())
		require.Equal(t, l, l.Negation().Negation())
		require.Equal(t, l.Var(), l.Negation().Var())
	}
}

func TestVarLit(t *testing.T) {
	v := Var(4)
	require.Equal(t, IntToLit(5), v.Lit())
	require.Equal(t, IntToLit(5), v.SignedLit(false))
	require.Equal(t, IntToLit(-5), v.SignedLit(true))
}
