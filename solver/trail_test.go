package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrailEnqueueAndLevels(t *testing.T) {
	tr := NewTrail(3)
	require.Equal(t, int32(0), tr.CurrentLevel())

	tr.Enqueue(IntToLit(1), UnitReason)
	require.True(t, tr.LitTrue(IntToLit(1)))
	require.True(t, tr.LitFalse(IntToLit(-1)))
	require.True(t, tr.LitFixedTrue(IntToLit(1)))
	require.False(t, tr.LitAssigned(IntToLit(2)))

	tr.EnqueueDecision(IntToLit(2))
	require.Equal(t, int32(1), tr.CurrentLevel())
	require.True(t, tr.Info(IntToLit(2).Var()).IsDecision())
	require.False(t, tr.LitFixed(IntToLit(2)))

	tr.EnqueueDecision(IntToLit(-3))
	require.Equal(t, int32(2), tr.CurrentLevel())
	require.Equal(t, 3, tr.Len())
}

func TestTrailBacktrack(t *testing.T) {
	tr := NewTrail(4)
	tr.Enqueue(IntToLit(1), UnitReason)
	tr.EnqueueDecision(IntToLit(2))
	tr.Enqueue(IntToLit(3), UnitReason) // Entered at level 1.
	tr.EnqueueDecision(IntToLit(4))

	boundary := tr.Backtrack(1)
	require.Equal(t, 3, boundary)
	require.Equal(t, int32(1), tr.CurrentLevel())
	require.True(t, tr.LitTrue(IntToLit(3)))
	require.False(t, tr.LitAssigned(IntToLit(4)))

	tr.Backtrack(0)
	require.Equal(t, int32(0), tr.CurrentLevel())
	require.True(t, tr.LitTrue(IntToLit(1)))
	require.False(t, tr.LitAssigned(IntToLit(2)))
}

func TestTrailOpenLevel(t *testing.T) {
	tr := NewTrail(2)
	tr.OpenLevel()
	require.Equal(t, int32(1), tr.CurrentLevel())
	tr.EnqueueDecision(IntToLit(1))
	require.Equal(t, int32(2), tr.CurrentLevel())
	tr.Backtrack(0)
	require.Equal(t, int32(0), tr.CurrentLevel())
	require.Equal(t, 0, tr.Len())
}

func TestTrailConflict(t *testing.T) {
	tr := NewTrail(2)
	require.Nil(t, tr.Conflict())
	tr.SetConflict([]Lit{IntToLit(1), IntToLit(2)})
	require.Equal(t, []Lit{IntToLit(1), IntToLit(2)}, tr.Conflict())
	tr.ClearConflict()
	require.Nil(t, tr.Conflict())
}

func TestTrailEnqueueAssignedPanics(t *testing.T) {
	tr := NewTrail(1)
	tr.Enqueue(IntToLit(1), UnitReason)
	require.Panics(t, func() { tr.Enqueue(IntToLit(1), UnitReason) })
	require.Panics(t, func() { tr.Enqueue(IntToLit(-1), UnitReason) })
}

type recordingPropagator struct {
	untrailedAt []int
}

func (p *recordingPropagator) Propagate(t *Trail) bool              { return true }
func (p *recordingPropagator) Untrail(t *Trail, trailIndex int)     { p.untrailedAt = append(p.untrailedAt, trailIndex) }
func (p *recordingPropagator) Reason(t *Trail, trailIndex int) []Lit { return nil }
func (p *recordingPropagator) IsEmpty() bool                        { return false }

func TestTrailUntrailNotification(t *testing.T) {
	tr := NewTrail(3)
	p := &recordingPropagator{}
	tr.RegisterPropagator(p)
	tr.EnqueueDecision(IntToLit(1))
	tr.EnqueueDecision(IntToLit(2))
	tr.Backtrack(1)
	require.Equal(t, []int{1}, p.untrailedAt)
	tr.Backtrack(1) // No-op: already at level 1.
	require.Equal(t, []int{1}, p.untrailedAt)
}
