package solver

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

const progressLogPeriod = 10000 // In conflicts.

// A SatSolver searches for a model of a set of clauses, at-most-one groups
// and plug-in constraints, using conflict driven clause learning. It can be
// queried repeatedly, incrementally and under assumptions; after a
// LimitReached outcome the search can simply be resumed.
type SatSolver struct {
	params   *Parameters
	trail    *Trail
	binary   *BinaryImplicationGraph
	clauses  *ClauseManager
	analyzer *ConflictAnalyzer
	restarts *RestartPolicy
	linear   *LinearPropagator // Created by the first linear constraint.

	// In propagation priority order: cheapest first.
	propagators []Propagator

	nbVars     int
	activities []float64
	varInc     float64
	order      queue
	phases     []bool // Saved polarity per var.

	modelUnsat  bool // Sticky: the model itself was proven unsatisfiable.
	assumptions []Lit
	core        []Lit
	model       []bool

	proof ProofObserver
	log   *logrus.Logger

	startTime         time.Time
	deterministicTime int64

	Stats struct {
		Conflicts      int64
		Decisions      int64
		Restarts       int64
		LearnedClauses int64
		LearnedLits    int64
		Fixed          int64
	}
}

// NewSatSolver returns a solver tuned by params.
func NewSatSolver(params Parameters) *SatSolver {
	log := logrus.New()
	log.SetOutput(io.Discard)
	s := &SatSolver{
		params: &params,
		trail:  NewTrail(0),
		varInc: 1.0,
		log:    log,
	}
	s.binary = NewBinaryImplicationGraph(s.trail, s.params)
	s.clauses = NewClauseManager(s.trail, s.params)
	s.analyzer = NewConflictAnalyzer(s.trail, s.params)
	s.restarts = NewRestartPolicy(s.params)
	s.propagators = []Propagator{s.binary, s.clauses}
	s.order = newQueue(s.activities)
	return s
}

// NewDefaultSolver returns a solver with the default tuning.
func NewDefaultSolver() *SatSolver {
	return NewSatSolver(DefaultParameters())
}

// SetLogger redirects the solver's progress logging.
func (s *SatSolver) SetLogger(log *logrus.Logger) {
	s.log = log
}

// SetProofObserver attaches an observer notified of every learned clause and
// every deletion. Must be set before any clause is added.
func (s *SatSolver) SetProofObserver(p ProofObserver) {
	s.proof = p
	s.clauses.SetProofObserver(p)
}

// RegisterPropagator plugs in an extra constraint propagator, consulted after
// the built-in ones.
func (s *SatSolver) RegisterPropagator(p Propagator) int32 {
	s.propagators = append(s.propagators, p)
	return s.trail.RegisterPropagator(p)
}

// Trail exposes the assignment trail, mainly to plug-in propagators.
func (s *SatSolver) Trail() *Trail {
	return s.trail
}

// ImplicationGraph exposes the binary implication graph, for inprocessing.
func (s *SatSolver) ImplicationGraph() *BinaryImplicationGraph {
	return s.binary
}

// ClauseManager exposes the clause database, for inprocessing.
func (s *SatSolver) ClauseManager() *ClauseManager {
	return s.clauses
}

// NbVars returns the number of variables the solver knows about.
func (s *SatSolver) NbVars() int {
	return s.nbVars
}

// SetNumVariables grows the solver to at least n variables.
func (s *SatSolver) SetNumVariables(n int) {
	if n <= s.nbVars {
		return
	}
	s.trail.Resize(n)
	s.binary.Resize(n)
	s.clauses.Resize(n)
	s.analyzer.Resize(n)
	if s.linear != nil {
		s.linear.Resize(n)
	}
	for len(s.activities) < n {
		s.activities = append(s.activities, 0)
		s.phases = append(s.phases, false)
		s.model = append(s.model, false)
	}
	s.order.setActivities(s.activities)
	for v := s.nbVars; v < n; v++ {
		s.order.insert(Var(v))
	}
	s.nbVars = n
}

func (s *SatSolver) growFor(lits []Lit) {
	maxVar := -1
	for _, l := range lits {
		if v := int(l.Var()); v > maxVar {
			maxVar = v
		}
	}
	s.SetNumVariables(maxVar + 1)
}

// setUnsat marks the model itself (independent of any assumption) as proven
// unsatisfiable. The flag is sticky.
func (s *SatSolver) setUnsat() {
	if !s.modelUnsat && s.proof != nil {
		s.proof.OnAddClause(nil)
	}
	s.modelUnsat = true
}

// ModelUnsat is true iff the model was proven unsatisfiable regardless of
// assumptions.
func (s *SatSolver) ModelUnsat() bool {
	return s.modelUnsat
}

// AddClause adds a clause to the model. It can be called at any point between
// two Solve calls; the search state is rewound to level 0 first. Returns
// false iff the model is now proven unsatisfiable.
func (s *SatSolver) AddClause(lits []Lit) bool {
	if s.modelUnsat {
		return false
	}
	s.backtrackTo(0)
	s.growFor(lits)
	simplified, satisfied := s.simplifyNewClause(lits)
	if satisfied {
		return true
	}
	ok := true
	switch len(simplified) {
	case 0:
		ok = false
	case 1:
		s.trail.Enqueue(simplified[0], UnitReason)
	case 2:
		ok = s.binary.AddBinaryClause(simplified[0], simplified[1])
	default:
		ok = s.clauses.AddClause(simplified)
	}
	if ok {
		ok = s.propagate()
	}
	s.trail.ClearConflict()
	if !ok {
		s.setUnsat()
	}
	return ok
}

// simplifyNewClause drops fixed-false and duplicated literals. satisfied is
// true when the clause holds trivially (a fixed-true literal, or both
// polarities of a variable).
func (s *SatSolver) simplifyNewClause(lits []Lit) (simplified []Lit, satisfied bool) {
	simplified = make([]Lit, 0, len(lits))
	for _, l := range lits {
		if s.trail.LitFixedTrue(l) {
			return nil, true
		}
		if s.trail.LitFixed(l) {
			continue
		}
		dup := false
		for _, kept := range simplified {
			if kept == l {
				dup = true
				break
			}
			if kept == l.Negation() {
				return nil, true
			}
		}
		if !dup {
			simplified = append(simplified, l)
		}
	}
	return simplified, false
}

// AddAtMostOne constrains at most one of lits to be true. Returns false iff
// the model is now proven unsatisfiable.
func (s *SatSolver) AddAtMostOne(lits []Lit) bool {
	if s.modelUnsat {
		return false
	}
	s.backtrackTo(0)
	s.growFor(lits)
	ok := s.binary.AddAtMostOne(lits)
	if ok {
		ok = s.propagate()
	}
	s.trail.ClearConflict()
	if !ok {
		s.setUnsat()
	}
	return ok
}

// AddLinearConstraint constrains sum(weights[i] * lits[i]) >= bound, where a
// true literal contributes its weight. Requires LinearPropagation. Returns
// false iff the model is now proven unsatisfiable.
func (s *SatSolver) AddLinearConstraint(weights []int64, lits []Lit, bound int64) bool {
	if s.modelUnsat {
		return false
	}
	if !s.params.LinearPropagation {
		panic("linear constraint given but LinearPropagation is disabled")
	}
	s.backtrackTo(0)
	s.growFor(lits)
	if s.linear == nil {
		s.linear = NewLinearPropagator(s.trail)
		s.linear.Resize(s.nbVars)
		s.propagators = append(s.propagators, s.linear)
	}
	ok := s.linear.AddAtLeast(weights, lits, bound)
	if ok {
		ok = s.propagate()
	}
	s.trail.ClearConflict()
	if !ok {
		s.setUnsat()
	}
	return ok
}

// Simplify runs the level-0 inprocessing passes over the binary implication
// graph: equivalence collapsing, then transitive reduction. Returns false iff
// the model is now proven unsatisfiable.
func (s *SatSolver) Simplify() bool {
	if s.modelUnsat {
		return false
	}
	s.backtrackTo(0)
	ok := true
	if !s.binary.IsEmpty() {
		ok = s.binary.DetectEquivalences() && s.binary.ComputeTransitiveReduction()
	}
	if ok {
		ok = s.propagate()
	}
	s.trail.ClearConflict()
	if !ok {
		s.setUnsat()
	}
	return ok
}

// Solve searches for a model.
func (s *SatSolver) Solve() Status {
	return s.SolveWithAssumptions(nil)
}

// SolveWithAssumptions searches for a model under the given assumptions,
// tried in order as pre-heuristic decisions. On AssumptionsUnsat, UnsatCore
// returns a subset of the assumptions that cannot hold together.
func (s *SatSolver) SolveWithAssumptions(assumptions []Lit) Status {
	if s.modelUnsat {
		return Infeasible
	}
	s.backtrackTo(0)
	s.assumptions = assumptions
	s.core = nil
	s.startTime = time.Now()

	for {
		if status, done := s.checkLimits(); done {
			return status
		}
		if !s.propagate() {
			if !s.resolveConflict() {
				return Infeasible
			}
			continue
		}

		// Assumptions come first, one decision level each.
		if lvl := int(s.trail.CurrentLevel()); lvl < len(s.assumptions) {
			p := s.assumptions[lvl]
			s.growFor(s.assumptions[lvl : lvl+1])
			switch {
			case s.trail.LitTrue(p):
				s.trail.OpenLevel()
			case s.trail.LitFalse(p):
				s.core = s.extractCore(p)
				return AssumptionsUnsat
			default:
				s.trail.EnqueueDecision(p)
			}
			continue
		}

		if s.restarts.ShouldRestart() {
			s.restartSearch()
			continue
		}
		if s.clauses.NeedsCleanupRound() {
			deleted := s.clauses.CleanupDatabase()
			s.log.WithFields(logrus.Fields{
				"deleted":   deleted,
				"remaining": s.clauses.NumRemovable(),
			}).Debug("clause database cleanup")
			continue
		}

		if !s.decide() {
			s.saveModel()
			return Feasible
		}
	}
}

// UnsatCore returns, after an AssumptionsUnsat outcome, a subset of the
// assumptions that is unsatisfiable together with the model.
func (s *SatSolver) UnsatCore() []Lit {
	return s.core
}

// Model returns the last model found, indexed by variable.
func (s *SatSolver) Model() []bool {
	return s.model
}

// propagate runs all propagators to fixpoint, cheapest first. Whenever one of
// them appends to the trail, control goes back to the cheaper ones.
func (s *SatSolver) propagate() bool {
	for {
		progressed := false
		for _, p := range s.propagators {
			if p.IsEmpty() {
				continue
			}
			before := s.trail.Len()
			if !p.Propagate(s.trail) {
				return false
			}
			if s.trail.Len() > before {
				s.deterministicTime += int64(s.trail.Len() - before)
				progressed = true
				break
			}
		}
		if !progressed {
			return true
		}
	}
}

// resolveConflict learns a clause from the pending conflict and backtracks.
// Returns false iff the model was proven unsatisfiable.
func (s *SatSolver) resolveConflict() bool {
	conflict := s.trail.Conflict()
	s.trail.ClearConflict()
	s.Stats.Conflicts++
	if s.trail.CurrentLevel() == 0 {
		s.setUnsat()
		return false
	}
	learned := s.analyzer.Analyze(conflict, s.bumpVar, s.onResolved)
	s.varInc /= s.params.VariableActivityDecay
	s.clauses.DecayActivities()

	if len(learned) > 1 && !s.binary.IsEmpty() {
		switch s.params.BinaryMinimization {
		case BinaryMinimizationFromUIP:
			learned = s.binary.MinimizeConflictFirst(learned)
		case BinaryMinimizationFromUIPAndDecisions:
			learned = s.binary.MinimizeConflictFirstAndDecisions(learned)
		}
	}
	lbd := s.analyzer.ComputeLBD(learned)
	s.restarts.OnConflict(s.trail.Len(), s.trail.CurrentLevel(), lbd)

	backjump := int32(0)
	for _, l := range learned[1:] {
		if lvl := s.trail.Info(l.Var()).Level; lvl > backjump {
			backjump = lvl
		}
	}
	target := backjump
	if len(learned) > 1 && s.params.ChronoBacktrackMinConflicts > 0 &&
		s.Stats.Conflicts >= s.params.ChronoBacktrackMinConflicts &&
		int(s.trail.CurrentLevel()-backjump) > s.params.MaxBackjumpLevels {
		// Far backjumps throw away a lot of valid work; past the threshold,
		// step back chronologically instead. The clause is still asserting.
		target = s.trail.CurrentLevel() - 1
	}
	s.backtrackTo(target)

	if s.proof != nil {
		s.proof.OnAddClause(learned)
	}
	s.Stats.LearnedClauses++
	s.Stats.LearnedLits += int64(len(learned))
	switch len(learned) {
	case 1:
		s.Stats.Fixed++
		s.trail.Enqueue(learned[0], UnitReason)
	case 2:
		if !s.binary.AddBinaryClause(learned[0], learned[1]) {
			s.setUnsat()
			return false
		}
	default:
		if _, ok := s.clauses.AddRemovableClause(learned, lbd); !ok {
			s.setUnsat()
			return false
		}
	}
	if s.Stats.Conflicts%progressLogPeriod == 0 {
		s.log.WithFields(logrus.Fields{
			"conflicts": s.Stats.Conflicts,
			"decisions": s.Stats.Decisions,
			"restarts":  s.Stats.Restarts,
			"clauses":   s.clauses.NumClauses(),
			"fixed":     s.Stats.Fixed,
		}).Debug("search progress")
	}
	return true
}

// restartSearch rewinds to the last assumption level and resets the policy.
func (s *SatSolver) restartSearch() {
	level := int32(len(s.assumptions))
	if cur := s.trail.CurrentLevel(); cur < level {
		level = cur
	}
	s.backtrackTo(level)
	s.restarts.Reset()
	s.Stats.Restarts++
}

// backtrackTo saves the polarity of every unassigned variable and puts it
// back in the branching order before rewinding the trail.
func (s *SatSolver) backtrackTo(level int32) {
	t := s.trail
	for i := t.Len() - 1; i >= 0; i-- {
		l := t.Entry(i)
		if t.Info(l.Var()).Level <= level {
			break
		}
		s.phases[l.Var()] = l.IsPositive()
		if !s.order.contains(l.Var()) {
			s.order.insert(l.Var())
		}
	}
	t.Backtrack(level)
}

// decide picks the unassigned variable with the highest activity and assigns
// it its saved polarity. Returns false when every variable is assigned.
func (s *SatSolver) decide() bool {
	for !s.order.empty() {
		v := s.order.removeMax()
		if !s.trail.LitAssigned(v.Lit()) {
			s.Stats.Decisions++
			s.trail.EnqueueDecision(v.SignedLit(!s.phases[v]))
			return true
		}
	}
	return false
}

func (s *SatSolver) saveModel() {
	for v := 0; v < s.nbVars; v++ {
		s.model[v] = s.trail.LitTrue(Var(v).Lit())
	}
}

func (s *SatSolver) bumpVar(v Var) {
	s.activities[v] += s.varInc
	if s.activities[v] > s.params.MaxVariableActivity {
		factor := 1 / s.params.MaxVariableActivity
		for i := range s.activities {
			s.activities[i] *= factor
		}
		s.varInc *= factor
		// Uniform rescaling preserves the heap order.
	}
	if s.order.contains(v) {
		s.order.update(v)
	}
}

// onResolved rewards the clause whose propagation took part in the conflict.
// A clause whose LBD improves below the protection threshold survives the
// next database cleanup.
func (s *SatSolver) onResolved(v Var) {
	c := s.clauses.ReasonClause(v)
	if c == nil {
		return
	}
	s.clauses.BumpActivity(c)
	if c.Removable() && c.updateLBD(s.analyzer.ComputeLBD(c.Literals())) &&
		int(c.Info().LBD) <= s.params.ClauseProtectedLBD {
		c.Info().Protected = true
	}
}

// extractCore walks the implication trail backwards from the falsified
// assumption p; the decisions met on the way are all assumptions, and
// together with p they form an unsatisfiable subset.
func (s *SatSolver) extractCore(p Lit) []Lit {
	core := []Lit{p}
	t := s.trail
	seen := make([]bool, s.nbVars)
	seen[p.Var()] = true
	for i := t.Len() - 1; i >= 0; i-- {
		v := t.Entry(i).Var()
		if !seen[v] {
			continue
		}
		if reason := t.Reason(v); reason == nil {
			if t.Info(v).IsDecision() {
				core = append(core, t.Entry(i))
			}
		} else {
			for _, l := range reason {
				if t.Info(l.Var()).Level > 0 {
					seen[l.Var()] = true
				}
			}
		}
	}
	return core
}

// checkLimits enforces the configured resource limits. It is polled at the
// top of every search iteration, so conflict-free stretches observe the time
// budgets too.
func (s *SatSolver) checkLimits() (Status, bool) {
	p := s.params
	if p.MaxConflicts > 0 && s.Stats.Conflicts >= p.MaxConflicts {
		return LimitReached, true
	}
	if p.MaxDeterministicTime > 0 && s.deterministicTime >= p.MaxDeterministicTime {
		return LimitReached, true
	}
	if p.MaxTime > 0 && time.Since(s.startTime) >= p.MaxTime {
		return LimitReached, true
	}
	if p.MaxMemoryLits > 0 && s.clauses.LiteralCount() > p.MaxMemoryLits {
		s.clauses.CleanupDatabase()
		if s.clauses.LiteralCount() > p.MaxMemoryLits {
			return LimitReached, true
		}
	}
	return Feasible, false
}
