package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kilianp07/rcpsched/app"
	"github.com/kilianp07/rcpsched/config"
	"github.com/kilianp07/rcpsched/core/instance"
	"github.com/kilianp07/rcpsched/core/model"
	"github.com/kilianp07/rcpsched/core/search"
	"github.com/kilianp07/rcpsched/infra/logger"
)

type solveOptions struct {
	seed          int64
	timeLimit     float64
	iterations    int
	neighborhood  int
	report        int
	backtracks    int
	violations    int
	tenure        int
	weightControl int
	initial       string
	format        string
}

var solveOpts solveOptions

var solveCmd = &cobra.Command{
	Use:   "solve [instance]",
	Short: "Search a schedule for an instance",
	Long: `Search a schedule for an instance file. The format follows the extension
(.yaml, .yml, .json) and defaults to the text format; "-" or no argument
reads text from stdin. Flags override the solver section of the configuration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSolve,
}

func init() {
	f := solveCmd.Flags()
	f.Int64Var(&solveOpts.seed, "seed", 1, "random seed")
	f.Float64Var(&solveOpts.timeLimit, "time", 600, "time limit in seconds")
	f.IntVar(&solveOpts.iterations, "iteration", model.Inf, "iteration limit")
	f.IntVar(&solveOpts.neighborhood, "neighborhood", 20, "neighbours evaluated per iteration")
	f.IntVar(&solveOpts.report, "report", model.Inf, "iterations between progress reports")
	f.IntVar(&solveOpts.backtracks, "backtrack", 1000, "backtracks allowed per component")
	f.IntVar(&solveOpts.violations, "violation", 1000, "backtracks allowed per temporal constraint")
	f.IntVar(&solveOpts.tenure, "tenure", 1, "initial tabu tenure")
	f.IntVar(&solveOpts.weightControl, "weightcontrol", 20, "iterations between adaptive weight raises, 0 disables")
	f.StringVar(&solveOpts.initial, "initial", "", "initial activity list file")
	f.StringVar(&solveOpts.format, "format", "", "instance format: text, yaml or json")
	rootCmd.AddCommand(solveCmd)
}

// applyFlags copies the flags set on the command line over the solver
// section.
func applyFlags(flags *pflag.FlagSet, o solveOptions, s *config.SolverConfig) {
	set := map[string]func(){
		"seed":          func() { s.Seed = o.seed },
		"time":          func() { s.TimeLimitSeconds = o.timeLimit },
		"iteration":     func() { s.IterationLimit = o.iterations },
		"neighborhood":  func() { s.Neighborhood = o.neighborhood },
		"report":        func() { s.ReportInterval = o.report },
		"backtrack":     func() { s.MaxBacktracks = o.backtracks },
		"violation":     func() { s.MaxViolationCount = o.violations },
		"tenure":        func() { s.Tenure = o.tenure },
		"weightcontrol": func() { s.WeightControl = o.weightControl },
	}
	flags.Visit(func(f *pflag.Flag) {
		if apply, ok := set[f.Name]; ok {
			apply()
		}
	})
}

func loadInstance(path, format string) (*model.Problem, error) {
	if format == "" {
		return instance.LoadFile(path)
	}
	fm, err := instance.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	if path == "-" {
		return instance.Load(os.Stdin, fm)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return instance.Load(f, fm)
}

func runSolve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	applyFlags(cmd.Flags(), solveOpts, &cfg.Solver)
	if err := cfg.Validate(); err != nil {
		return err
	}

	path := "-"
	if len(args) == 1 {
		path = args[0]
	}
	p, err := loadInstance(path, solveOpts.format)
	if err != nil {
		return err
	}
	req := app.Request{Problem: p, Instance: filepath.Base(path)}
	if solveOpts.initial != "" {
		f, err := os.Open(solveOpts.initial)
		if err != nil {
			return err
		}
		req.Initial, err = search.ParseInitial(f, p)
		_ = f.Close()
		if err != nil {
			return fmt.Errorf("%s: %w", solveOpts.initial, err)
		}
	}

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()

	started := time.Now()
	res, err := svc.Solve(ctx, req)
	if err != nil {
		return err
	}
	logger.New("main").Infof("run %s finished in %s", res.RunID, time.Since(started).Round(time.Millisecond))
	return instance.WriteResult(cmd.OutOrStdout(), p, res)
}
