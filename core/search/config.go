package search

import (
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/rcpsched/core/construct"
	"github.com/kilianp07/rcpsched/core/model"
)

// ErrInvalidConfig is returned by Config.Validate.
var ErrInvalidConfig = errors.New("invalid search configuration")

// Config holds the knobs of a run.
type Config struct {
	Seed           int64         `json:"seed"`
	TimeLimit      time.Duration `json:"time_limit"`
	IterationLimit int           `json:"iteration_limit"`
	// Neighborhood is the number of admissible neighbours evaluated per
	// iteration.
	Neighborhood int `json:"neighborhood"`
	// ReportInterval is the number of iterations between progress reports;
	// 0 reports every iteration.
	ReportInterval int `json:"report_interval"`
	Tenure         int `json:"tenure"`
	// WeightControl is the number of iterations without improvement between
	// two raises of the adaptive weights; 0 disables it.
	WeightControl    int `json:"weight_control"`
	InitialSolutions int `json:"initial_solutions"`
	// Depth bounds the walk of the conflict graph when collecting moves for a
	// feasible solution.
	Depth int `json:"depth"`

	Construct construct.Config `json:"construct"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Seed:             1,
		TimeLimit:        600 * time.Second,
		IterationLimit:   model.Inf,
		Neighborhood:     20,
		ReportInterval:   model.Inf,
		Tenure:           1,
		WeightControl:    20,
		InitialSolutions: 5,
		Depth:            3,
		Construct:        construct.DefaultConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch {
	case c.TimeLimit <= 0:
		return fmt.Errorf("%w: time limit must be positive", ErrInvalidConfig)
	case c.IterationLimit < 0:
		return fmt.Errorf("%w: iteration limit must not be negative", ErrInvalidConfig)
	case c.Neighborhood <= 0:
		return fmt.Errorf("%w: neighborhood must be positive", ErrInvalidConfig)
	case c.ReportInterval < 0:
		return fmt.Errorf("%w: report interval must not be negative", ErrInvalidConfig)
	case c.Tenure <= 0:
		return fmt.Errorf("%w: tenure must be positive", ErrInvalidConfig)
	case c.WeightControl < 0:
		return fmt.Errorf("%w: weight control must not be negative", ErrInvalidConfig)
	case c.InitialSolutions <= 0:
		return fmt.Errorf("%w: initial solutions must be positive", ErrInvalidConfig)
	case c.Depth < 0:
		return fmt.Errorf("%w: depth must not be negative", ErrInvalidConfig)
	case c.Construct.MaxBacktracks < 0 || c.Construct.MaxViolationCount < 0:
		return fmt.Errorf("%w: construction limits must not be negative", ErrInvalidConfig)
	}
	return nil
}
