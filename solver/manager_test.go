package solver

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func lits(cnf ...int) []Lit {
	res := make([]Lit, len(cnf))
	for i, v := range cnf {
		res[i] = IntToLit(v)
	}
	return res
}

func newTestManager(nbVars int) (*Trail, *ClauseManager) {
	params := DefaultParameters()
	tr := NewTrail(nbVars)
	return tr, NewClauseManager(tr, &params)
}

func TestManagerUnitPropagation(t *testing.T) {
	tr, m := newTestManager(3)
	require.True(t, m.AddClause(lits(1, 2, 3)))

	tr.EnqueueDecision(IntToLit(-1))
	require.True(t, m.Propagate(tr))
	require.False(t, tr.LitAssigned(IntToLit(3)))

	tr.EnqueueDecision(IntToLit(-2))
	require.True(t, m.Propagate(tr))
	require.True(t, tr.LitTrue(IntToLit(3)))

	v := IntToLit(3).Var()
	require.NotNil(t, m.ReasonClause(v))
	reason := tr.Reason(v)
	require.Len(t, reason, 2)
	for _, l := range reason {
		require.True(t, tr.LitFalse(l))
	}
}

func TestManagerConflict(t *testing.T) {
	tr, m := newTestManager(3)
	require.True(t, m.AddClause(lits(1, 2, 3)))
	require.True(t, m.AddClause(lits(1, 2, -3)))

	tr.EnqueueDecision(IntToLit(-1))
	require.True(t, m.Propagate(tr))
	tr.EnqueueDecision(IntToLit(-2))
	require.False(t, m.Propagate(tr))

	conflict := tr.Conflict()
	require.Len(t, conflict, 3)
	for _, l := range conflict {
		require.True(t, tr.LitFalse(l))
	}
}

func TestManagerAddUnitUnderAssignment(t *testing.T) {
	tr, m := newTestManager(3)
	tr.EnqueueDecision(IntToLit(-1))
	tr.EnqueueDecision(IntToLit(-2))
	// The new clause is unit right away and must propagate on add.
	require.True(t, m.AddClause(lits(1, 2, 3)))
	require.True(t, tr.LitTrue(IntToLit(3)))
}

func TestManagerLevelZeroConflict(t *testing.T) {
	tr, m := newTestManager(3)
	tr.Enqueue(IntToLit(-1), UnitReason)
	tr.Enqueue(IntToLit(-2), UnitReason)
	tr.Enqueue(IntToLit(-3), UnitReason)
	require.False(t, m.AddClause(lits(1, 2, 3)))
}

func TestManagerBacktrackUnlocksReasons(t *testing.T) {
	tr, m := newTestManager(3)
	require.True(t, m.AddClause(lits(1, 2, 3)))
	tr.EnqueueDecision(IntToLit(-1))
	tr.EnqueueDecision(IntToLit(-2))
	require.True(t, m.Propagate(tr))
	v := IntToLit(3).Var()
	require.True(t, m.ReasonClause(v).isLocked())

	tr.Backtrack(1)
	require.Nil(t, m.ReasonClause(v))
	require.False(t, tr.LitAssigned(IntToLit(3)))
}

func TestManagerLazyDetach(t *testing.T) {
	tr, m := newTestManager(3)
	c, ok := m.AddRemovableClause(lits(1, 2, 3), 5)
	require.True(t, ok)
	require.Equal(t, 1, m.NumRemovable())

	m.LazyDetach(c)
	require.True(t, c.Removed())

	// Propagation after a lazy detach goes through the watcher cleanup and
	// must not force anything from the dead clause.
	tr.EnqueueDecision(IntToLit(-1))
	tr.EnqueueDecision(IntToLit(-2))
	require.True(t, m.Propagate(tr))
	require.False(t, tr.LitAssigned(IntToLit(3)))
}

func TestManagerCleanupDatabase(t *testing.T) {
	tr, m := newTestManager(12)
	_ = tr
	worst, ok := m.AddRemovableClause(lits(1, 2, 3), 10)
	require.True(t, ok)
	bad, ok := m.AddRemovableClause(lits(4, 5, 6), 9)
	require.True(t, ok)
	good, ok := m.AddRemovableClause(lits(7, 8, 9), 3)
	require.True(t, ok)
	better, ok := m.AddRemovableClause(lits(10, 11, 12), 4)
	require.True(t, ok)

	deleted := m.CleanupDatabase()
	require.Equal(t, 2, deleted)
	require.True(t, worst.Removed())
	require.True(t, bad.Removed())
	require.False(t, good.Removed())
	require.False(t, better.Removed())
	require.Equal(t, 2, m.NumRemovable())
}

func TestManagerProtectedCooldown(t *testing.T) {
	_, m := newTestManager(12)
	protected, ok := m.AddRemovableClause(lits(1, 2, 3), 10)
	require.True(t, ok)
	protected.Info().Protected = true
	other, ok := m.AddRemovableClause(lits(4, 5, 6), 9)
	require.True(t, ok)

	// First round: the protected clause is exempt, the only candidate list
	// has one element and half of it rounds down to zero deletions.
	require.Equal(t, 0, m.CleanupDatabase())
	require.False(t, protected.Info().Protected)
	require.False(t, other.Removed())

	// Second round: the cooldown is consumed, the worst of the two goes.
	require.Equal(t, 1, m.CleanupDatabase())
	require.True(t, protected.Removed())
	require.False(t, other.Removed())
}

func TestManagerCleanupAfterPermanentDetach(t *testing.T) {
	// A lazily detached permanent clause is reclaimed by the next cleanup
	// without touching the removable-clause count.
	_, m := newTestManager(9)
	perm := NewClause(lits(1, 2, 3))
	m.Attach(perm)
	removable, ok := m.AddRemovableClause(lits(4, 5, 6), 5)
	require.True(t, ok)

	m.LazyDetach(perm)
	require.Equal(t, 0, m.CleanupDatabase())
	require.Equal(t, 1, m.NumRemovable())
	require.Equal(t, 1, m.NumClauses())
	require.False(t, removable.Removed())
}

func TestManagerKeptLBDNeverDeleted(t *testing.T) {
	_, m := newTestManager(12)
	kept, ok := m.AddRemovableClause(lits(1, 2, 3), 2)
	require.True(t, ok)
	a, ok := m.AddRemovableClause(lits(4, 5, 6), 8)
	require.True(t, ok)
	b, ok := m.AddRemovableClause(lits(7, 8, 9), 7)
	require.True(t, ok)

	m.CleanupDatabase()
	require.False(t, kept.Removed())
	require.True(t, a.Removed())
	require.False(t, b.Removed())
}
