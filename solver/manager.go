package solver

import (
	"fmt"
	"sort"
)

// A watcher ties a clause to one of its two watched literals. The clause only
// needs to be inspected when that literal becomes false. blocker is another
// literal of the clause: when it is true the clause is satisfied and the
// clause memory is not touched at all. start caches where the last
// replacement scan stopped, so repeated scans over long clauses resume
// instead of rescanning from the front.
type watcher struct {
	clause  *Clause
	blocker Lit
	start   int32
}

// litArena hands out literal storage for clauses in large chunks, to relax
// the GC's work. Storage is never returned; clauses only shrink in place.
type litArena struct {
	lits []Lit
	free int
}

const arenaChunkSize = 1 << 20

func (a *litArena) newLits(lits []Lit) []Lit {
	if a.free+len(lits) > len(a.lits) {
		size := arenaChunkSize
		if len(lits) > size {
			size = len(lits)
		}
		a.lits = make([]Lit, size)
		a.free = 0
	}
	dst := a.lits[a.free : a.free+len(lits) : a.free+len(lits)]
	copy(dst, lits)
	a.free += len(lits)
	return dst
}

// The ClauseManager owns and propagates all clauses of length >= 3.
// Binary clauses belong to the BinaryImplicationGraph; unit facts go straight
// to the trail.
type ClauseManager struct {
	params *Parameters
	trail  *Trail
	id     int32

	// watchers[l] lists the clauses in which l.Negation() is watched; it is
	// scanned when l becomes true.
	watchers [][]watcher
	reasons  []*Clause // For each var, the clause that propagated it, if any.
	clauses  []*Clause
	arena    litArena

	clauseInc    float64
	propIndex    int // First trail entry not yet propagated by this manager.
	needsCleanup bool
	liveLits     int64
	numRemovable int

	learnedSinceCleanup int
	proof               ProofObserver

	Stats struct {
		Propagations int64
		Deleted      int64
		Cleanups     int64
	}
}

// NewClauseManager returns a manager registered as a propagator on t.
func NewClauseManager(t *Trail, params *Parameters) *ClauseManager {
	m := &ClauseManager{
		params:    params,
		trail:     t,
		clauseInc: 1.0,
	}
	m.Resize(t.NbVars())
	m.id = t.RegisterPropagator(m)
	return m
}

// Resize grows the manager's per-literal and per-variable tables.
func (m *ClauseManager) Resize(nbVars int) {
	for len(m.reasons) < nbVars {
		m.reasons = append(m.reasons, nil)
		m.watchers = append(m.watchers, nil, nil)
	}
}

// SetProofObserver attaches an observer notified of clause deletions and
// rewrites. Purely observational.
func (m *ClauseManager) SetProofObserver(p ProofObserver) {
	m.proof = p
}

// IsEmpty is true iff no clause is attached.
func (m *ClauseManager) IsEmpty() bool {
	return len(m.clauses) == 0
}

// LiteralCount returns the number of live literal slots, used as the memory
// ceiling proxy.
func (m *ClauseManager) LiteralCount() int64 {
	return m.liveLits
}

// NumClauses returns the number of attached clauses.
func (m *ClauseManager) NumClauses() int {
	return len(m.clauses)
}

// NumRemovable returns the number of attached removable clauses.
func (m *ClauseManager) NumRemovable() int {
	return m.numRemovable
}

// AddClause adds a permanent clause. AddClause and AddRemovableClause expect
// at least 3 literals, none fixed at level 0; the SatSolver filters fixed
// literals and routes shorter clauses elsewhere. The clause is attached and
// propagated immediately; false is returned iff this yields a conflict with
// every literal assigned at level 0.
func (m *ClauseManager) AddClause(lits []Lit) bool {
	return m.add(NewClause(m.arena.newLits(lits))) != nil || !m.conflictAtLevelZero()
}

// AddRemovableClause adds a clause that future database cleanups may delete.
func (m *ClauseManager) AddRemovableClause(lits []Lit, lbd int32) (*Clause, bool) {
	c := m.add(NewRemovableClause(m.arena.newLits(lits), lbd))
	if c == nil {
		return nil, !m.conflictAtLevelZero()
	}
	m.learnedSinceCleanup++
	return c, true
}

func (m *ClauseManager) conflictAtLevelZero() bool {
	conflict := m.trail.Conflict()
	if conflict == nil {
		return false
	}
	for _, l := range conflict {
		if !m.trail.LitFixed(l) {
			return false
		}
	}
	return true
}

// add attaches c and performs the propagation or conflict detection its
// current assignment state requires. It returns nil if a conflict was set on
// the trail.
func (m *ClauseManager) add(c *Clause) *Clause {
	if c.Len() < 3 {
		panic(fmt.Sprintf("clause of length %d given to the clause manager", c.Len()))
	}
	// The two watched positions get the literals that stay assigned the
	// longest: unassigned ones, then the most recently assigned.
	m.moveWatchable(c, 0)
	m.moveWatchable(c, 1)
	m.clauses = append(m.clauses, c)
	m.liveLits += int64(c.Len())
	if c.Removable() {
		m.numRemovable++
	}
	m.watch(c)
	if m.trail.LitFalse(c.Second()) {
		first := c.First()
		if m.trail.LitFalse(first) {
			m.trail.SetConflict(c.Literals())
			return nil
		}
		if !m.trail.LitTrue(first) {
			m.assignFrom(c, first)
		}
	}
	return c
}

// moveWatchable swaps into position pos the literal that will stay watchable
// the longest among positions >= pos.
func (m *ClauseManager) moveWatchable(c *Clause, pos int) {
	best := pos
	bestKey := m.watchKey(c.Get(pos))
	for i := pos + 1; i < c.Len(); i++ {
		if key := m.watchKey(c.Get(i)); key > bestKey {
			best, bestKey = i, key
		}
	}
	c.swap(pos, best)
}

func (m *ClauseManager) watchKey(l Lit) int32 {
	if !m.trail.LitAssigned(l) {
		return 1 << 30
	}
	return m.trail.Info(l.Var()).Level
}

// Attach registers the two watchers of c. The first two literals must be
// unassigned, which is the caller's responsibility (inprocessing runs at
// level 0 on clean clauses).
func (m *ClauseManager) Attach(c *Clause) {
	if m.trail.LitAssigned(c.First()) || m.trail.LitAssigned(c.Second()) {
		panic("attach of a clause whose watched literals are assigned")
	}
	m.clauses = append(m.clauses, c)
	m.liveLits += int64(c.Len())
	if c.Removable() {
		m.numRemovable++
	}
	m.watch(c)
}

func (m *ClauseManager) watch(c *Clause) {
	neg0 := c.First().Negation()
	neg1 := c.Second().Negation()
	m.watchers[neg0] = append(m.watchers[neg0], watcher{clause: c, blocker: c.Second(), start: 2})
	m.watchers[neg1] = append(m.watchers[neg1], watcher{clause: c, blocker: c.First(), start: 2})
}

// assignFrom enqueues the only non-false literal of c as a propagation.
func (m *ClauseManager) assignFrom(c *Clause, l Lit) {
	m.reasons[l.Var()] = c
	c.lock()
	m.trail.Enqueue(l, m.id)
}

// Propagate implements the two-watched-literal scheme over the pending trail
// suffix.
func (m *ClauseManager) Propagate(t *Trail) bool {
	if m.needsCleanup {
		m.CleanUpWatchers()
	}
	for m.propIndex < t.Len() {
		l := t.Entry(m.propIndex)
		m.propIndex++
		if !m.propagateLit(l) {
			return false
		}
	}
	return true
}

func (m *ClauseManager) propagateLit(l Lit) bool {
	ws := m.watchers[l]
	kept := 0
	for i := 0; i < len(ws); i++ {
		w := ws[i]
		if m.trail.LitTrue(w.blocker) { // Fast path: clause satisfied, memory untouched.
			ws[kept] = w
			kept++
			continue
		}
		m.Stats.Propagations++
		c := w.clause
		lits := c.Literals()
		falseLit := l.Negation()
		if lits[0] == falseLit {
			lits[0], lits[1] = lits[1], lits[0]
		}
		first := lits[0]
		if first != w.blocker && m.trail.LitTrue(first) {
			ws[kept] = watcher{clause: c, blocker: first, start: w.start}
			kept++
			continue
		}
		// Look for a replacement watch, resuming where the last scan of this
		// clause stopped.
		length := len(lits)
		idx := int(w.start)
		if idx < 2 || idx >= length {
			idx = 2
		}
		moved := false
		for k := 0; k < length-2; k++ {
			if other := lits[idx]; !m.trail.LitFalse(other) {
				lits[1], lits[idx] = other, falseLit
				neg := other.Negation()
				m.watchers[neg] = append(m.watchers[neg], watcher{clause: c, blocker: first, start: int32(idx)})
				moved = true
				break
			}
			idx++
			if idx == length {
				idx = 2
			}
		}
		if moved {
			continue
		}
		// Every literal but the first is false: unit or conflicting.
		ws[kept] = watcher{clause: c, blocker: first, start: w.start}
		kept++
		if m.trail.LitFalse(first) {
			for i++; i < len(ws); i++ {
				ws[kept] = ws[i]
				kept++
			}
			m.watchers[l] = ws[:kept]
			m.trail.SetConflict(lits)
			return false
		}
		m.assignFrom(c, first)
	}
	m.watchers[l] = ws[:kept]
	return true
}

// Untrail unlocks the clauses cited as reasons in the removed suffix and
// rewinds the propagation pointer.
func (m *ClauseManager) Untrail(t *Trail, trailIndex int) {
	for i := t.Len() - 1; i >= trailIndex; i-- {
		v := t.Entry(i).Var()
		if t.Info(v).Propagator == m.id {
			m.reasons[v].unlock()
			m.reasons[v] = nil
		}
	}
	if m.propIndex > trailIndex {
		m.propIndex = trailIndex
	}
}

// Reason returns the false literals of the clause that propagated the entry
// at trailIndex.
func (m *ClauseManager) Reason(t *Trail, trailIndex int) []Lit {
	c := m.reasons[t.Entry(trailIndex).Var()]
	return c.Literals()[1:]
}

// ReasonClause returns the clause that propagated v, or nil.
func (m *ClauseManager) ReasonClause(v Var) *Clause {
	return m.reasons[v]
}

// LazyDetach marks c as removed. Its watchers stay in place until
// CleanUpWatchers runs, which is enforced to happen before any further
// propagation or physical reclaim.
func (m *ClauseManager) LazyDetach(c *Clause) {
	if m.proof != nil {
		m.proof.OnDeleteClause(c.Literals())
	}
	m.liveLits -= int64(c.Len())
	c.shrink(0)
	m.needsCleanup = true
}

// Detach eagerly removes both watchers of c, leaving its literals intact so
// the clause can be rewritten and re-attached.
func (m *ClauseManager) Detach(c *Clause) {
	m.removeWatcher(c.First().Negation(), c)
	m.removeWatcher(c.Second().Negation(), c)
	m.liveLits -= int64(c.Len())
	for i, other := range m.clauses {
		if other == c {
			m.clauses[i] = m.clauses[len(m.clauses)-1]
			m.clauses = m.clauses[:len(m.clauses)-1]
			break
		}
	}
	if c.Removable() {
		m.numRemovable--
	}
}

func (m *ClauseManager) removeWatcher(l Lit, c *Clause) {
	ws := m.watchers[l]
	for i := range ws {
		if ws[i].clause == c {
			ws[i] = ws[len(ws)-1]
			m.watchers[l] = ws[:len(ws)-1]
			return
		}
	}
	panic("watcher to remove not found")
}

// InprocessingRewriteClause replaces the contents of a detached clause with a
// shorter, equivalent literal set, then re-attaches it. None of the new
// literals may be fixed.
func (m *ClauseManager) InprocessingRewriteClause(c *Clause, newLits []Lit) {
	if len(newLits) > c.Len() {
		panic("clause rewrite may not grow the clause")
	}
	for _, l := range newLits {
		if m.trail.LitFixed(l) {
			panic("clause rewrite with a fixed literal")
		}
	}
	if m.proof != nil {
		m.proof.OnAddClause(newLits)
		m.proof.OnDeleteClause(c.Literals())
	}
	copy(c.Literals(), newLits)
	c.shrink(len(newLits))
	m.Attach(c)
}

// CleanUpWatchers drops the watchers of all lazily removed clauses. It must
// run before clause memory is reused; afterwards no watcher list references
// a removed clause.
func (m *ClauseManager) CleanUpWatchers() {
	for lidx := range m.watchers {
		ws := m.watchers[lidx]
		kept := 0
		for _, w := range ws {
			if !w.clause.Removed() {
				ws[kept] = w
				kept++
			}
		}
		m.watchers[lidx] = ws[:kept]
	}
	m.needsCleanup = false
}

// BumpActivity raises c's activity, rescaling all tracked activities together
// when the cap is hit so their relative order is preserved.
func (m *ClauseManager) BumpActivity(c *Clause) {
	info := c.Info()
	if info == nil {
		return
	}
	info.Activity += m.clauseInc
	if info.Activity > m.params.MaxClauseActivity {
		factor := 1.0 / m.params.MaxClauseActivity
		for _, other := range m.clauses {
			if other.Removable() {
				other.Info().Activity *= factor
			}
		}
		m.clauseInc *= factor
	}
}

// DecayActivities decays all clause activities (implicitly, by growing the
// next bump).
func (m *ClauseManager) DecayActivities() {
	m.clauseInc *= 1 / m.params.ClauseActivityDecay
}

// NeedsCleanupRound is true once enough removable clauses were learned since
// the last database cleanup.
func (m *ClauseManager) NeedsCleanupRound() bool {
	return m.learnedSinceCleanup >= m.params.ClauseCleanupPeriod
}

// CleanupDatabase deletes the worst fraction of the removable clauses,
// ranked by the configured two-key order. Clauses currently cited as a
// reason, clauses at or below the kept LBD tier, and clauses protected since
// the last round are exempt. Returns the number of deleted clauses.
func (m *ClauseManager) CleanupDatabase() int {
	m.learnedSinceCleanup = 0
	m.Stats.Cleanups++
	candidates := make([]*Clause, 0, m.numRemovable)
	for _, c := range m.clauses {
		if !c.Removable() || c.Removed() || c.isLocked() {
			continue
		}
		info := c.Info()
		if int(info.LBD) <= m.params.ClauseKeptLBD {
			continue
		}
		if info.Protected {
			info.Protected = false // Cooldown consumed; eligible next round.
			continue
		}
		candidates = append(candidates, c)
	}
	byLBD := m.params.ClauseCleanupOrdering == OrderByLBD
	sort.Slice(candidates, func(i, j int) bool { // Worst first.
		ci, cj := candidates[i].Info(), candidates[j].Info()
		if byLBD {
			if ci.LBD != cj.LBD {
				return ci.LBD > cj.LBD
			}
			return ci.Activity < cj.Activity
		}
		if ci.Activity != cj.Activity {
			return ci.Activity < cj.Activity
		}
		return ci.LBD > cj.LBD
	})
	target := int(m.params.ClauseCleanupRatio * float64(len(candidates)))
	for _, c := range candidates[:target] {
		m.LazyDetach(c)
	}
	m.CleanUpWatchers()
	kept := m.clauses[:0]
	for _, c := range m.clauses {
		if c.Removed() {
			if c.Removable() {
				m.numRemovable--
			}
			continue
		}
		kept = append(kept, c)
	}
	m.clauses = kept
	m.Stats.Deleted += int64(target)
	return target
}
