package model

import (
	"fmt"

	"github.com/kilianp07/rcpsched/core/timeline"
)

// Requirement holds the usage curves of one resource for a mode. Work is indexed
// by progress 1..D (the unit of work being processed), Break by progress 0..D
// (the amount of work done before the idle period). When Max is set the value is
// a ceiling regardless of parallel width instead of a per-unit quantity.
type Requirement struct {
	Resource int
	Max      bool
	Work     *timeline.Timeline
	Break    *timeline.Timeline
}

// Curve returns the work or break curve.
func (r *Requirement) Curve(forBreak bool) *timeline.Timeline {
	if forBreak {
		return r.Break
	}
	return r.Work
}

// StateTable maps the current value of a state to the value the mode sets.
// Entries of -1 are illegal transitions.
type StateTable struct {
	State int
	Next  []int
}

// Transition returns the value reached from v, or -1 when illegal.
func (s *StateTable) Transition(v int) int {
	if v < 0 {
		panic(fmt.Sprintf("model: negative state value %d", v))
	}
	if v >= len(s.Next) {
		return -1
	}
	return s.Next[v]
}

// ParallelFix records a correction applied to a max-parallel curve whose width
// dropped by more than one between consecutive progress points.
type ParallelFix struct {
	Progress int
	Width    int
}

// Mode is one way of processing an activity.
type Mode struct {
	ID       int
	Name     string
	Duration int

	// MaxBreak is indexed by progress 0..D, MaxParallel by progress 1..D.
	MaxBreak     *timeline.Timeline
	MaxParallel  *timeline.Timeline
	Requirements []*Requirement
	States       []*StateTable

	MinDuration int
	MaxDuration int

	reverse *Mode
}

func newMode(id int, name string, duration int) *Mode {
	return &Mode{
		ID:          id,
		Name:        name,
		Duration:    duration,
		MaxBreak:    timeline.New(0, duration, 0),
		MaxParallel: timeline.New(1, duration, 1),
		MaxDuration: Inf,
	}
}

// SetMaxBreak sets the longest idle period allowed after progress in [from,to].
func (m *Mode) SetMaxBreak(value, from, to int) error {
	to = min(to, m.Duration)
	if from < 0 || from > to || value < 0 {
		return fmt.Errorf("%w: mode %s break [%d,%d] max %d", ErrInvalidArgument, m.Name, from, to, value)
	}
	m.MaxBreak.SetKey(value, from, to)
	return nil
}

// SetMaxParallel sets the widest concurrency allowed for work units in [from,to].
func (m *Mode) SetMaxParallel(value, from, to int) error {
	to = min(to, m.Duration)
	if from < 1 || from > to || value < 1 {
		return fmt.Errorf("%w: mode %s parallel [%d,%d] max %d", ErrInvalidArgument, m.Name, from, to, value)
	}
	m.MaxParallel.SetKey(value, from, to)
	return nil
}

// Requirement returns the curves for resource, or nil when the mode does not use it.
func (m *Mode) Requirement(resource int) *Requirement {
	for _, r := range m.Requirements {
		if r.Resource == resource {
			return r
		}
	}
	return nil
}

// SetRequirement sets the usage of resource on progress [from,to]. Work curves
// are clamped to start at 1, break curves at 0.
func (m *Mode) SetRequirement(resource, value, from, to int, forBreak, maximum bool) error {
	if forBreak {
		from = max(from, 0)
	} else {
		from = max(from, 1)
	}
	to = min(to, m.Duration)
	if from > to || value < 0 {
		return fmt.Errorf("%w: mode %s requirement [%d,%d] value %d", ErrInvalidArgument, m.Name, from, to, value)
	}
	req := m.Requirement(resource)
	if req == nil {
		req = &Requirement{
			Resource: resource,
			Max:      maximum,
			Work:     timeline.New(1, m.Duration, 0),
			Break:    timeline.New(0, m.Duration, 0),
		}
		m.Requirements = append(m.Requirements, req)
	} else if req.Max != maximum {
		return fmt.Errorf("%w: mode %s mixes max and per-unit requirements for resource %d", ErrInvalidArgument, m.Name, resource)
	}
	req.Curve(forBreak).SetKey(value, from, to)
	return nil
}

// StateTable returns the transition table for state, or nil.
func (m *Mode) StateTable(state int) *StateTable {
	for _, s := range m.States {
		if s.State == state {
			return s
		}
	}
	return nil
}

// SetStateTransition declares that the mode moves state from value from to value to.
func (m *Mode) SetStateTransition(state, from, to int) error {
	if from > MaxStateValue {
		return fmt.Errorf("%w: state value %d exceeds the limit %d", ErrInvalidArgument, from, MaxStateValue)
	}
	if from < 0 {
		return fmt.Errorf("%w: state value %d must be non-negative", ErrInvalidArgument, from)
	}
	tbl := m.StateTable(state)
	if tbl == nil {
		tbl = &StateTable{State: state}
		m.States = append(m.States, tbl)
	}
	for len(tbl.Next) <= from {
		tbl.Next = append(tbl.Next, -1)
	}
	tbl.Next[from] = to
	return nil
}

// calcDurations repairs the parallel curve so that the width never drops by more
// than one per work unit, then derives the shortest and longest spans.
func (m *Mode) calcDurations() []ParallelFix {
	var fixes []ParallelFix
	par := m.MaxParallel
	ptr := par.Rewind()
	key := par.Key(ptr)
	for next := par.Next(ptr); par.To(next) <= m.Duration; next = par.Next(next) {
		key2 := par.Key(next)
		for t := par.From(next); t <= par.To(next); t++ {
			if key2 >= key-1 {
				key = key2
				break
			}
			key--
			fixes = append(fixes, ParallelFix{Progress: t, Width: key})
		}
	}
	for _, f := range fixes {
		par.SetKey(f.Width, f.Progress, f.Progress)
	}

	m.MinDuration = 0
	ptr = par.Rewind()
	for t := 0; t < m.Duration; t += par.Key(ptr) {
		for par.To(ptr) < t+1 {
			ptr = par.Next(ptr)
		}
		m.MinDuration++
	}

	m.MaxDuration = m.Duration
	for r := m.MaxBreak.Rewind(); m.MaxBreak.To(r) <= m.Duration; r = m.MaxBreak.Next(r) {
		key, span := m.MaxBreak.Key(r), m.MaxBreak.To(r)-m.MaxBreak.From(r)+1
		room := Inf - m.MaxDuration
		if key > room/span {
			m.MaxDuration = Inf
			break
		}
		m.MaxDuration += key * span
	}
	return fixes
}

// Reverse returns the mode mirrored about its duration, used when an activity is
// scheduled backward from its deadline. It is built on first use.
func (m *Mode) Reverse() *Mode {
	if m.reverse != nil {
		return m.reverse
	}
	d := m.Duration
	rev := newMode(m.ID, m.Name, d)
	must := func(err error) {
		if err != nil {
			panic(fmt.Sprintf("model: reversing mode %s: %v", m.Name, err))
		}
	}

	br := m.MaxBreak
	for r := br.Rewind(); br.From(r) <= d; r = br.Next(r) {
		if br.Key(r) > 0 {
			must(rev.SetMaxBreak(br.Key(r), d-br.To(r), d-br.From(r)))
		}
	}

	par := m.MaxParallel
	key0 := 1
	for r := par.Rewind(); par.From(r) <= d; r = par.Next(r) {
		key := par.Key(r)
		from := min(par.From(r)+key-1, d)
		to := min(par.To(r)+key-1, d)
		if key < key0 {
			if par.From(r) < par.To(r) && from < d {
				must(rev.SetMaxParallel(key, d-to+1, d-from))
			}
		} else {
			if par.From(r) == 1 {
				must(rev.SetMaxParallel(from, d-from+1, Inf))
			} else {
				for progress := par.From(r) + key0 - 1; progress <= from; progress++ {
					must(rev.SetMaxParallel(progress-par.From(r)+1, d-progress+1, d-progress+1))
				}
			}
			if from < d {
				must(rev.SetMaxParallel(key, d-to+1, d-from+1))
			}
		}
		key0 = key
	}

	for _, req := range m.Requirements {
		rr := &Requirement{
			Resource: req.Resource,
			Max:      req.Max,
			Work:     timeline.New(1, d, 0),
			Break:    timeline.New(0, d, 0),
		}
		rev.Requirements = append(rev.Requirements, rr)
		for r := req.Work.Begin(); r != timeline.Nil; r = req.Work.Next(r) {
			if k := req.Work.Key(r); k > 0 {
				must(rev.SetRequirement(req.Resource, k, d-req.Work.To(r)+1, d-req.Work.From(r)+1, false, req.Max))
			}
		}
		for r := req.Break.Begin(); r != timeline.Nil; r = req.Break.Next(r) {
			if k := req.Break.Key(r); k > 0 {
				must(rev.SetRequirement(req.Resource, k, d-req.Break.To(r), d-req.Break.From(r), true, req.Max))
			}
		}
	}
	rev.MinDuration, rev.MaxDuration = m.MinDuration, m.MaxDuration
	m.reverse = rev
	return rev
}
