// Package model defines the scheduling problem: resources, states, modes,
// activities, temporal constraints and non-renewable resource constraints.
//
// A Problem is built once, prepared, and then read by the constructor and the
// search engine. Activity ids 0 and 1 are reserved for the source and the sink.
package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kilianp07/rcpsched/core/timeline"
)

// Inf is the saturating time horizon.
const Inf = timeline.Inf

const (
	SourceID = 0
	SinkID   = 1

	// DummyModeID is the zero-duration mode shared by the source and the sink.
	DummyModeID = 0
	DummyMode   = "dummy"

	// AnyMode marks a temporal constraint side that applies to every mode.
	AnyMode = -1

	// MaxStateValue bounds the values a state transition table accepts.
	MaxStateValue = 9999
)

var (
	ErrNoModes         = errors.New("no mode defined")
	ErrBackwardState   = errors.New("backward scheduling of an activity with state variables is not supported")
	ErrHardAutoSelect  = errors.New("auto-selected activity cannot appear in a hard non-renewable constraint")
	ErrDuplicate       = errors.New("already defined")
	ErrUndefined       = errors.New("not defined")
	ErrInvalidArgument = errors.New("invalid argument")
)

// TempType relates an endpoint of the predecessor to an endpoint of the successor.
type TempType int

const (
	SS TempType = iota // start to start
	SC                 // start to completion
	CC                 // completion to completion
	CS                 // completion to start
)

func (t TempType) String() string {
	switch t {
	case SS:
		return "SS"
	case SC:
		return "SC"
	case CC:
		return "CC"
	case CS:
		return "CS"
	}
	return fmt.Sprintf("TempType(%d)", int(t))
}

// ParseTempType parses SS, SC, CC or CS (case-insensitive).
func ParseTempType(s string) (TempType, error) {
	switch strings.ToUpper(s) {
	case "SS":
		return SS, nil
	case "SC":
		return SC, nil
	case "CC":
		return CC, nil
	case "CS":
		return CS, nil
	}
	return 0, fmt.Errorf("%w: temporal type %q", ErrInvalidArgument, s)
}

// Resource is a renewable resource with a time-varying capacity on [1,Inf].
type Resource struct {
	ID       int
	Name     string
	Capacity *timeline.Timeline
}

// StateFact is a value scheduled in advance for a state.
type StateFact struct {
	Time  int `json:"time" yaml:"time"`
	Value int `json:"value" yaml:"value"`
}

// State is a discrete state variable. Facts are applied in insertion order on
// top of the implicit value 0 at time 0.
type State struct {
	ID    int
	Name  string
	Facts []StateFact

	// Activities lists every activity with a mode depending on the state,
	// filled by Prepare.
	Activities []int
}

// TempConstraint is a generalised precedence relation between two activities.
type TempConstraint struct {
	ID    int
	Name  string
	Pred  int
	Succ  int
	Type  TempType
	Delay int

	// PredMode and SuccMode are local mode indices or AnyMode.
	PredMode int
	SuccMode int
}

// Applies reports whether the constraint binds for the given local modes.
func (c *TempConstraint) Applies(predMode, succMode int) bool {
	return (c.PredMode == AnyMode || c.PredMode == predMode) &&
		(c.SuccMode == AnyMode || c.SuccMode == succMode)
}

// Term is one coefficient of a non-renewable resource constraint.
type Term struct {
	Coefficient int
	Activity    int
	Mode        int // local mode index
}

// NrrConstraint is a linear budget over mode choices: the sum of the
// coefficients of the selected (activity,mode) pairs must not exceed Rhs.
// A constraint with Weight Inf is hard; otherwise its excess is penalised.
type NrrConstraint struct {
	ID     int
	Name   string
	Weight int
	Rhs    int
	Terms  []Term
}

// Soft reports whether the constraint is penalised rather than enforced.
func (c *NrrConstraint) Soft() bool { return c.Weight != Inf }

// Excess returns max(0, lhs-rhs) for the given mode vector.
func (c *NrrConstraint) Excess(modes []int) int {
	lhs := 0
	for _, t := range c.Terms {
		if modes[t.Activity] == t.Mode {
			lhs += t.Coefficient
		}
	}
	return max(0, lhs-c.Rhs)
}
