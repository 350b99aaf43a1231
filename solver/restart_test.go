package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLubySequence(t *testing.T) {
	want := []int64{1, 1, 2, 1, 1, 2, 4, 1, 1, 2, 1, 1, 2, 4, 8}
	for i, expected := range want {
		require.Equal(t, expected, luby(int64(i+1)), "luby(%d)", i+1)
	}
}

func TestLubyRestartPolicy(t *testing.T) {
	params := DefaultParameters()
	params.RestartStrategies = []RestartStrategy{LubyRestart}
	params.LubyUnit = 1
	params.BlockingRestart = false
	r := NewRestartPolicy(&params)

	// First two Luby terms are 1: one conflict each.
	r.OnConflict(10, 3, 2)
	require.True(t, r.ShouldRestart())
	r.Reset()
	r.OnConflict(10, 3, 2)
	require.True(t, r.ShouldRestart())
	r.Reset()

	// Third term is 2: two conflicts needed.
	r.OnConflict(10, 3, 2)
	require.False(t, r.ShouldRestart())
	r.OnConflict(10, 3, 2)
	require.True(t, r.ShouldRestart())
}

func TestLBDMovingAverageRestart(t *testing.T) {
	params := DefaultParameters()
	params.RestartStrategies = []RestartStrategy{LBDMovingAverageRestart}
	params.RestartWindowSize = 2
	params.RestartMarginRatio = 1.1
	params.BlockingRestart = false
	r := NewRestartPolicy(&params)

	// A flat LBD series never exceeds its own lifetime average.
	for i := 0; i < 10; i++ {
		r.OnConflict(10, 3, 2)
		require.False(t, r.ShouldRestart())
	}

	// A burst of much worse conflicts fires the restart.
	r.OnConflict(10, 3, 30)
	r.OnConflict(10, 3, 30)
	require.True(t, r.ShouldRestart())

	r.Reset()
	require.False(t, r.ShouldRestart())
}

func TestMovingAverageRestartDefaultMargin(t *testing.T) {
	params := DefaultParameters()
	r := NewRestartPolicy(&params)

	// A flat conflict series keeps the windowed average equal to the lifetime
	// average and must never trigger the default strategy.
	for i := 0; i <= params.RestartWindowSize; i++ {
		r.OnConflict(10, 3, 2)
	}
	require.False(t, r.ShouldRestart())

	// A sustained degradation must.
	for i := 0; i < params.RestartWindowSize; i++ {
		r.OnConflict(10, 3, 30)
	}
	require.True(t, r.ShouldRestart())
}

func TestBlockingRestart(t *testing.T) {
	params := DefaultParameters()
	params.RestartStrategies = []RestartStrategy{LBDMovingAverageRestart}
	params.RestartWindowSize = 2
	params.RestartMarginRatio = 1.1
	params.BlockingRestart = true
	params.BlockingRestartK = 1.5
	r := NewRestartPolicy(&params)

	for i := 0; i < 10; i++ {
		r.OnConflict(10, 3, 2)
	}
	// Same worsening burst as above, but on an exploding trail: the blocking
	// rule keeps clearing the window, so no restart fires.
	r.OnConflict(1000, 3, 30)
	r.OnConflict(10000, 3, 30)
	require.False(t, r.ShouldRestart())
	require.Equal(t, int64(2), r.NumBlocked)
}

func TestRestartStrategyCycling(t *testing.T) {
	params := DefaultParameters()
	params.RestartStrategies = []RestartStrategy{LubyRestart, LBDMovingAverageRestart}
	params.LubyUnit = 1
	params.BlockingRestart = false
	r := NewRestartPolicy(&params)

	require.Equal(t, LubyRestart, r.activeStrategy())
	r.OnConflict(10, 3, 2)
	require.True(t, r.ShouldRestart())
	r.Reset()
	require.Equal(t, LBDMovingAverageRestart, r.activeStrategy())
	r.Reset()
	require.Equal(t, LubyRestart, r.activeStrategy())
}
