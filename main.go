package main

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/crillab/satcore/solver"
)

type options struct {
	verbose  bool
	proof    string
	simplify bool
	assume   []int

	restarts      []string
	lubyUnit      int
	noBlocking    bool
	cleanupPeriod int
	cleanupRatio  float64

	maxConflicts int64
	maxTime      time.Duration
	maxMemLits   int64
}

func main() {
	debug.SetGCPercent(300)
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "satcore file.cnf",
		Short: "satcore is a CDCL satisfiability solver",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return run(args[0], opts)
		},
		SilenceUsage: true,
	}
	flags := cmd.Flags()
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log search progress")
	flags.StringVar(&opts.proof, "proof", "", "write a DRAT proof to this file")
	flags.BoolVar(&opts.simplify, "simplify", false, "collapse equivalent literals and reduce the implication graph before solving")
	flags.IntSliceVar(&opts.assume, "assume", nil, "literals assumed true, in DIMACS notation")
	flags.StringSliceVar(&opts.restarts, "restarts", nil, "restart strategies to cycle through (luby, lbd, level)")
	flags.IntVar(&opts.lubyUnit, "luby-unit", 0, "conflicts per Luby unit")
	flags.BoolVar(&opts.noBlocking, "no-blocking-restart", false, "disable blocking restarts")
	flags.IntVar(&opts.cleanupPeriod, "cleanup-period", 0, "learned clauses between database cleanups")
	flags.Float64Var(&opts.cleanupRatio, "cleanup-ratio", 0, "fraction of ranked clauses deleted per cleanup")
	flags.Int64Var(&opts.maxConflicts, "max-conflicts", 0, "stop after this many conflicts")
	flags.DurationVar(&opts.maxTime, "max-time", 0, "stop after this much wall time")
	flags.Int64Var(&opts.maxMemLits, "max-memory-lits", 0, "ceiling on live clause literals")
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func buildParameters(opts *options) (solver.Parameters, error) {
	params := solver.DefaultParameters()
	if len(opts.restarts) > 0 {
		params.RestartStrategies = params.RestartStrategies[:0]
		for _, name := range opts.restarts {
			switch strings.ToLower(name) {
			case "luby":
				params.RestartStrategies = append(params.RestartStrategies, solver.LubyRestart)
			case "lbd":
				params.RestartStrategies = append(params.RestartStrategies, solver.LBDMovingAverageRestart)
			case "level":
				params.RestartStrategies = append(params.RestartStrategies, solver.DecisionLevelMovingAverageRestart)
			default:
				return params, fmt.Errorf("unknown restart strategy %q", name)
			}
		}
	}
	if opts.lubyUnit > 0 {
		params.LubyUnit = opts.lubyUnit
	}
	if opts.noBlocking {
		params.BlockingRestart = false
	}
	if opts.cleanupPeriod > 0 {
		params.ClauseCleanupPeriod = opts.cleanupPeriod
	}
	if opts.cleanupRatio > 0 {
		params.ClauseCleanupRatio = opts.cleanupRatio
	}
	params.MaxConflicts = opts.maxConflicts
	params.MaxTime = opts.maxTime
	params.MaxMemoryLits = opts.maxMemLits
	return params, nil
}

func run(path string, opts *options) error {
	params, err := buildParameters(opts)
	if err != nil {
		return err
	}
	s := solver.NewSatSolver(params)

	if opts.verbose {
		log := logrus.New()
		log.SetOutput(os.Stderr)
		log.SetLevel(logrus.DebugLevel)
		s.SetLogger(log)
	}

	var proof *solver.DRATWriter
	if opts.proof != "" {
		f, err := os.Create(opts.proof)
		if err != nil {
			return fmt.Errorf("could not create proof file: %v", err)
		}
		defer f.Close()
		proof = solver.NewDRATWriter(f)
		s.SetProofObserver(proof)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("could not open %q: %v", path, err)
	}
	defer f.Close()
	if err := solver.LoadCNF(f, s); err != nil {
		return fmt.Errorf("could not parse DIMACS file %q: %v", path, err)
	}

	if opts.simplify {
		s.Simplify()
	}

	assumptions := make([]solver.Lit, 0, len(opts.assume))
	for _, val := range opts.assume {
		if val == 0 {
			return fmt.Errorf("0 is not a valid assumption")
		}
		assumptions = append(assumptions, solver.IntToLit(val))
	}

	status := s.SolveWithAssumptions(assumptions)
	output(s, status)

	if proof != nil {
		if err := proof.Flush(); err != nil {
			return err
		}
	}
	if opts.verbose {
		fmt.Printf("c conflicts: %d, decisions: %d, restarts: %d\n",
			s.Stats.Conflicts, s.Stats.Decisions, s.Stats.Restarts)
	}
	return nil
}

func output(s *solver.SatSolver, status solver.Status) {
	switch status {
	case solver.Feasible:
		fmt.Println("s SATISFIABLE")
		fmt.Print("v ")
		for v, val := range s.Model() {
			if val {
				fmt.Printf("%d ", v+1)
			} else {
				fmt.Printf("%d ", -(v + 1))
			}
		}
		fmt.Println("0")
	case solver.Infeasible, solver.AssumptionsUnsat:
		fmt.Println("s UNSATISFIABLE")
		if status == solver.AssumptionsUnsat {
			fmt.Print("c core:")
			for _, l := range s.UnsatCore() {
				fmt.Printf(" %d", l.Int())
			}
			fmt.Println()
		}
	default:
		fmt.Println("s UNKNOWN")
	}
}
