package solver

import "fmt"

// Reserved propagator ids for trail entries that were not propagated.
const (
	// DecisionReason marks a branching choice.
	DecisionReason int32 = -1
	// UnitReason marks a level-0 fact (problem unit or learned unit).
	UnitReason int32 = -2
)

// A Propagator deduces new trail entries from the ones already there.
// The clause manager and the binary implication graph are propagators; so is
// any externally registered component (pseudo-Boolean constraints, ...).
// The dispatch loop treats all of them uniformly.
type Propagator interface {
	// Propagate processes the pending part of the trail. It returns false iff
	// a conflict was found, in which case the conflicting literal set must
	// have been stored on the trail with SetConflict.
	Propagate(t *Trail) bool
	// Untrail is called on backtrack, before the entries at and after
	// trailIndex are dropped. Propagators are notified in the reverse of
	// their registration order.
	Untrail(t *Trail, trailIndex int)
	// Reason returns the literals that were all false when the entry at
	// trailIndex was propagated and that together imply it. The returned
	// slice must stay valid for as long as the entry is on the trail.
	Reason(t *Trail, trailIndex int) []Lit
	// IsEmpty is true iff the propagator currently holds no constraint.
	// Empty propagators are skipped by the dispatch loop.
	IsEmpty() bool
}

// AssignmentInfo describes one assigned variable.
type AssignmentInfo struct {
	Level      int32 // Decision level of the assignment.
	Propagator int32 // Id of the propagating component, or a reserved id.
	TrailIndex int32 // Position of the entry on the trail.
}

// IsDecision is true iff the entry is a branching choice.
func (ai AssignmentInfo) IsDecision() bool {
	return ai.Propagator == DecisionReason
}

type value byte

const (
	unassigned = value(iota)
	assignedTrue
	assignedFalse
)

// A Trail is the append-only log of all currently assigned literals.
// Entries are appended at the current decision level only, and removed only
// by Backtrack, which drops a contiguous suffix.
type Trail struct {
	assignment  []value // Per literal index. Exactly one of a lit/negation pair is set whenever the other is.
	entries     []Lit
	info        []AssignmentInfo // Per var. Only meaningful while the var is assigned.
	levelStarts []int32          // levelStarts[l] is the trail index opening level l+1.
	propagators []Propagator     // In registration order.
	conflict    []Lit            // Pending conflict, nil if none.
}

// NewTrail returns a trail for nbVars variables, at decision level 0.
func NewTrail(nbVars int) *Trail {
	t := &Trail{}
	t.Resize(nbVars)
	return t
}

// Resize grows the trail to hold nbVars variables.
func (t *Trail) Resize(nbVars int) {
	for len(t.info) < nbVars {
		t.info = append(t.info, AssignmentInfo{})
		t.assignment = append(t.assignment, unassigned, unassigned)
	}
}

// NbVars returns the number of variables the trail knows about.
func (t *Trail) NbVars() int {
	return len(t.info)
}

// RegisterPropagator records p and returns its id. Reasons and untrail
// notifications are routed through this id.
func (t *Trail) RegisterPropagator(p Propagator) int32 {
	t.propagators = append(t.propagators, p)
	return int32(len(t.propagators) - 1)
}

// Len returns the number of entries on the trail.
func (t *Trail) Len() int {
	return len(t.entries)
}

// Entry returns the ith trail entry.
func (t *Trail) Entry(i int) Lit {
	return t.entries[i]
}

// CurrentLevel returns the current decision level.
func (t *Trail) CurrentLevel() int32 {
	return int32(len(t.levelStarts))
}

// LitTrue is true iff l is assigned true.
func (t *Trail) LitTrue(l Lit) bool {
	return t.assignment[l] == assignedTrue
}

// LitFalse is true iff l is assigned false.
func (t *Trail) LitFalse(l Lit) bool {
	return t.assignment[l] == assignedFalse
}

// LitAssigned is true iff l's variable is assigned.
func (t *Trail) LitAssigned(l Lit) bool {
	return t.assignment[l] != unassigned
}

// LitFixedTrue is true iff l is assigned true at level 0.
func (t *Trail) LitFixedTrue(l Lit) bool {
	return t.assignment[l] == assignedTrue && t.info[l.Var()].Level == 0
}

// LitFixed is true iff l's variable is assigned at level 0.
func (t *Trail) LitFixed(l Lit) bool {
	return t.assignment[l] != unassigned && t.info[l.Var()].Level == 0
}

// Info returns the assignment information of v. The result is meaningful
// only while v is assigned.
func (t *Trail) Info(v Var) AssignmentInfo {
	return t.info[v]
}

// Reason returns the literals implying the assignment of v, or nil for
// decisions and level-0 facts. The cost is O(1) plus the owning propagator's
// own lookup.
func (t *Trail) Reason(v Var) []Lit {
	info := t.info[v]
	if info.Propagator < 0 {
		return nil
	}
	return t.propagators[info.Propagator].Reason(t, int(info.TrailIndex))
}

// Enqueue appends one entry, assigned at the current decision level.
// Enqueueing an already falsified literal is a caller error.
func (t *Trail) Enqueue(l Lit, propagator int32) {
	if t.assignment[l] != unassigned {
		panic(fmt.Sprintf("enqueue of already assigned literal %d", l.Int()))
	}
	t.assignment[l] = assignedTrue
	t.assignment[l.Negation()] = assignedFalse
	t.info[l.Var()] = AssignmentInfo{
		Level:      t.CurrentLevel(),
		Propagator: propagator,
		TrailIndex: int32(len(t.entries)),
	}
	t.entries = append(t.entries, l)
}

// OpenLevel opens a new decision level. Levels may stay empty; an already
// satisfied assumption still consumes one so that the level index keeps
// matching the assumption index.
func (t *Trail) OpenLevel() {
	t.levelStarts = append(t.levelStarts, int32(len(t.entries)))
}

// EnqueueDecision opens a new decision level and appends l as its decision.
func (t *Trail) EnqueueDecision(l Lit) {
	t.OpenLevel()
	t.Enqueue(l, DecisionReason)
}

// Backtrack truncates the trail to the first entry of targetLevel+1 and
// returns that boundary index. All propagators are notified of the removed
// suffix, in the reverse of their registration order, before the entries are
// dropped and their variables unassigned.
func (t *Trail) Backtrack(targetLevel int32) int {
	if targetLevel >= t.CurrentLevel() {
		return len(t.entries)
	}
	boundary := int(t.levelStarts[targetLevel])
	for i := len(t.propagators) - 1; i >= 0; i-- {
		t.propagators[i].Untrail(t, boundary)
	}
	for i := len(t.entries) - 1; i >= boundary; i-- {
		l := t.entries[i]
		t.assignment[l] = unassigned
		t.assignment[l.Negation()] = unassigned
	}
	t.entries = t.entries[:boundary]
	t.levelStarts = t.levelStarts[:targetLevel]
	return boundary
}

// SetConflict records a conflicting literal set. All of its literals are
// false. It is consumed by conflict analysis before any further propagation,
// so aliasing the caller's storage is fine.
func (t *Trail) SetConflict(lits []Lit) {
	t.conflict = lits
}

// Conflict returns the pending conflict, or nil.
func (t *Trail) Conflict() []Lit {
	return t.conflict
}

// ClearConflict drops the pending conflict.
func (t *Trail) ClearConflict() {
	t.conflict = nil
}
