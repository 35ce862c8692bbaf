package model

import "fmt"

// DueDate is a soft deadline on the start or the completion of an activity.
type DueDate struct {
	Time      int
	Weight    int
	Quadratic bool
}

// NoDueDate is the zero-penalty deadline every activity starts with.
var NoDueDate = DueDate{Time: Inf, Weight: 1}

// Set reports whether a deadline was declared.
func (d DueDate) Set() bool { return d.Time < Inf }

// Tardiness returns how far t misses the deadline. Backward activities are
// early when they finish before it, forward ones late when they finish after it.
func (d DueDate) Tardiness(t int, backward bool) int {
	if !d.Set() {
		return 0
	}
	if backward {
		return max(0, d.Time-t)
	}
	return max(0, t-d.Time)
}

// Penalty returns the weighted tardiness of t, saturated at Inf.
func (d DueDate) Penalty(t int, backward bool) int {
	tard := d.Tardiness(t, backward)
	if d.Quadratic {
		return capMul(d.Weight, capMul(tard, tard))
	}
	return capMul(d.Weight, tard)
}

// capMul multiplies non-negative a and b without going past Inf.
func capMul(a, b int) int {
	if a <= 0 || b <= 0 {
		return a * b
	}
	if a > Inf/b {
		return Inf
	}
	return min(a*b, Inf)
}

// AutoSelect is the policy used by the constructor to pick a mode on the fly.
type AutoSelect int

const (
	// AutoNone keeps the mode chosen by the search.
	AutoNone AutoSelect = iota
	// AutoAll tries every mode and keeps the earliest completion.
	AutoAll
	// AutoSlow behaves as AutoAll; it is kept distinct for instance round trips.
	AutoSlow
	// AutoFirst takes the first mode that can be placed.
	AutoFirst
)

func (a AutoSelect) String() string {
	switch a {
	case AutoNone:
		return "none"
	case AutoAll:
		return "autoselect"
	case AutoSlow:
		return "autoselect slow"
	case AutoFirst:
		return "autoselect fast"
	}
	return fmt.Sprintf("AutoSelect(%d)", int(a))
}

// Activity is a job to schedule in exactly one of its modes.
type Activity struct {
	ID   int
	Name string

	Modes      []*Mode
	Start      DueDate
	Completion DueDate
	Backward   bool
	AutoSelect AutoSelect

	// Dependences lists activities whose modes follow this one in the
	// change-mode neighbourhood.
	Dependences []int

	// In and Out hold every temporal constraint where the activity is the
	// successor or the predecessor, mode-specific ones included.
	In  []*TempConstraint
	Out []*TempConstraint

	MinDuration int
	MaxDuration int
}

func newActivity(id int, name string) *Activity {
	return &Activity{
		ID:          id,
		Name:        name,
		Start:       NoDueDate,
		Completion:  NoDueDate,
		MinDuration: Inf,
	}
}

// ModeIndex returns the local index of mode, or -1.
func (a *Activity) ModeIndex(modeID int) int {
	for i, m := range a.Modes {
		if m.ID == modeID {
			return i
		}
	}
	return -1
}

// Mode returns the mode at local index i.
func (a *Activity) Mode(i int) *Mode { return a.Modes[i] }

// Dummy reports whether the activity is the source or the sink.
func (a *Activity) Dummy() bool { return a.ID == SourceID || a.ID == SinkID }

func (a *Activity) calcDurations() {
	a.MinDuration, a.MaxDuration = Inf, 0
	for _, m := range a.Modes {
		a.MinDuration = min(a.MinDuration, m.MinDuration)
		a.MaxDuration = max(a.MaxDuration, m.MaxDuration)
	}
}

// DueDateKey orders activities by their earliest deadline on the start time.
func (a *Activity) DueDateKey() int {
	k := a.Start.Time
	if a.Completion.Set() {
		k = min(k, a.Completion.Time-a.MinDuration)
	}
	return k
}
