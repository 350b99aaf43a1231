package solver

import "time"

// RestartStrategy selects how the RestartPolicy decides to restart.
type RestartStrategy byte

const (
	// LubyRestart restarts after lubyUnit * SUniv(k) conflicts, where SUniv is
	// the Luby sequence.
	LubyRestart = RestartStrategy(iota)
	// LBDMovingAverageRestart restarts when the windowed average LBD of recent
	// conflicts is significantly worse than the lifetime average.
	LBDMovingAverageRestart
	// DecisionLevelMovingAverageRestart does the same on decision levels.
	DecisionLevelMovingAverageRestart
)

// BinaryMinimization selects the implication-graph based pass applied to
// learned clauses before the generic minimizer.
type BinaryMinimization byte

const (
	// BinaryMinimizationNone disables the pass.
	BinaryMinimizationNone = BinaryMinimization(iota)
	// BinaryMinimizationFromUIP removes literals implied by the first UIP.
	BinaryMinimizationFromUIP
	// BinaryMinimizationFromUIPAndDecisions also removes literals implied by
	// the decision literals kept in the clause.
	BinaryMinimizationFromUIPAndDecisions
)

// Minimization selects the generic reason-based minimizer.
type Minimization byte

const (
	// MinimizationNone keeps the first-UIP clause as is.
	MinimizationNone = Minimization(iota)
	// MinimizationSimple drops a literal only when every literal of its reason
	// is already in the clause or fixed at level 0.
	MinimizationSimple
	// MinimizationRecursive explores reasons of reasons depth-first.
	MinimizationRecursive
)

// ClauseOrdering is the two-key order used to rank removable clauses during
// database cleanups. The worst clauses under this order are deleted first.
type ClauseOrdering byte

const (
	// OrderByLBD ranks by LBD, breaking ties by activity.
	OrderByLBD = ClauseOrdering(iota)
	// OrderByActivity ranks by activity, breaking ties by LBD.
	OrderByActivity
)

// Parameters holds every tuning knob recognized by the solver. A Parameters
// value is built once and handed to each component at construction; nothing
// reads it through shared mutable state.
type Parameters struct {
	// Restart policy.
	RestartStrategies  []RestartStrategy // Polled in a cycle, one strategy active at a time.
	RestartWindowSize  int               // Size of the sliding windows over conflict statistics.
	RestartMarginRatio float64           // Windowed average must exceed lifetime average by this ratio (> 1).
	BlockingRestart    bool              // Do not restart while the trail is unusually large.
	BlockingRestartK   float64           // "Unusually large" multiplier on the windowed trail average.
	LubyUnit           int               // Conflicts per Luby sequence unit.

	// Conflict analysis.
	BinaryMinimization BinaryMinimization
	Minimization       Minimization

	// Clause database cleanup.
	ClauseCleanupPeriod   int            // # of learned removable clauses between cleanups.
	ClauseCleanupRatio    float64        // Fraction of ranked clauses deleted per cleanup.
	ClauseCleanupOrdering ClauseOrdering
	ClauseProtectedLBD    int // Clauses at or below this LBD get a one-cleanup cooldown.
	ClauseKeptLBD         int // Clauses at or below this LBD are never deleted.

	// Chronological backtracking.
	ChronoBacktrackMinConflicts int64 // 0 disables chronological backtracking.
	MaxBackjumpLevels           int   // Past the threshold, cap backjumps at this many levels.

	// Binary implication graph.
	MaxAtMostOneExpansionSize int   // At-most-ones up to this size become pairwise implications.
	GraphExplorationBudget    int64 // Node/edge budget for reduction, cliques and minimization.

	// Activities.
	VariableActivityDecay float64
	MaxVariableActivity   float64 // Rescale threshold.
	ClauseActivityDecay   float64
	MaxClauseActivity     float64 // Rescale threshold.

	// Plug-in propagators.
	LinearPropagation bool // Enables the pseudo-Boolean propagator.

	// Limits. Zero values mean "no limit".
	MaxConflicts         int64
	MaxDeterministicTime int64 // Counted in propagation steps.
	MaxMemoryLits        int64 // Ceiling on live literal slots in the clause arena.
	MaxTime              time.Duration
}

// DefaultParameters returns the tuning used when the embedder has no opinion.
func DefaultParameters() Parameters {
	return Parameters{
		RestartStrategies:  []RestartStrategy{LBDMovingAverageRestart},
		RestartWindowSize:  50,
		RestartMarginRatio: 1.25,
		BlockingRestart:    true,
		BlockingRestartK:   1.4,
		LubyUnit:           512,

		BinaryMinimization: BinaryMinimizationFromUIP,
		Minimization:       MinimizationRecursive,

		ClauseCleanupPeriod:   10000,
		ClauseCleanupRatio:    0.5,
		ClauseCleanupOrdering: OrderByLBD,
		ClauseProtectedLBD:    6,
		ClauseKeptLBD:         2,

		ChronoBacktrackMinConflicts: 4096,
		MaxBackjumpLevels:           128,

		MaxAtMostOneExpansionSize: 10,
		GraphExplorationBudget:    1 << 22,

		VariableActivityDecay: 0.95,
		MaxVariableActivity:   1e100,
		ClauseActivityDecay:   0.999,
		MaxClauseActivity:     1e30,

		LinearPropagation: true,
	}
}
