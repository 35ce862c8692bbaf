package config

import (
	"time"

	"github.com/kilianp07/rcpsched/core/construct"
	"github.com/kilianp07/rcpsched/core/search"
)

// SolverConfig holds the search and construction limits of a run.
type SolverConfig struct {
	Seed              int64   `json:"seed"`
	TimeLimitSeconds  float64 `json:"time_limit_seconds"`
	IterationLimit    int     `json:"iteration_limit"`
	Neighborhood      int     `json:"neighborhood"`
	ReportInterval    int     `json:"report_interval"`
	MaxBacktracks     int     `json:"max_backtracks"`
	MaxViolationCount int     `json:"max_violation_count"`
	Tenure            int     `json:"tenure"`
	WeightControl     int     `json:"weight_control"`
	InitialSolutions  int     `json:"initial_solutions"`
	Depth             int     `json:"depth"`
}

// DefaultSolver mirrors search.DefaultConfig.
func DefaultSolver() SolverConfig {
	d := search.DefaultConfig()
	return SolverConfig{
		Seed:              d.Seed,
		TimeLimitSeconds:  d.TimeLimit.Seconds(),
		IterationLimit:    d.IterationLimit,
		Neighborhood:      d.Neighborhood,
		ReportInterval:    d.ReportInterval,
		MaxBacktracks:     d.Construct.MaxBacktracks,
		MaxViolationCount: d.Construct.MaxViolationCount,
		Tenure:            d.Tenure,
		WeightControl:     d.WeightControl,
		InitialSolutions:  d.InitialSolutions,
		Depth:             d.Depth,
	}
}

// Search converts the section into the engine configuration.
func (c SolverConfig) Search() search.Config {
	return search.Config{
		Seed:             c.Seed,
		TimeLimit:        time.Duration(c.TimeLimitSeconds * float64(time.Second)),
		IterationLimit:   c.IterationLimit,
		Neighborhood:     c.Neighborhood,
		ReportInterval:   c.ReportInterval,
		Tenure:           c.Tenure,
		WeightControl:    c.WeightControl,
		InitialSolutions: c.InitialSolutions,
		Depth:            c.Depth,
		Construct: construct.Config{
			MaxBacktracks:     c.MaxBacktracks,
			MaxViolationCount: c.MaxViolationCount,
		},
	}
}

// Validate delegates to the engine checks.
func (c SolverConfig) Validate() error {
	return c.Search().Validate()
}
