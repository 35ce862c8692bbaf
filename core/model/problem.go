package model

import (
	"fmt"

	"github.com/kilianp07/rcpsched/core/logger"
	"github.com/kilianp07/rcpsched/core/timeline"
)

// Problem is a complete scheduling instance. New seeds it with the dummy mode
// and the source and sink activities.
type Problem struct {
	Resources  []*Resource
	States     []*State
	Modes      []*Mode
	Activities []*Activity
	Temporals  []*TempConstraint
	Nrrs       []*NrrConstraint

	resources  map[string]int
	states     map[string]int
	modes      map[string]int
	activities map[string]int

	prepared bool
}

// New returns an empty problem holding only the source and the sink.
func New() *Problem {
	p := &Problem{
		resources:  map[string]int{},
		states:     map[string]int{},
		modes:      map[string]int{},
		activities: map[string]int{},
	}
	dummy, _ := p.AddMode(DummyMode, 0)
	for _, name := range []string{"source", "sink"} {
		a, _ := p.AddActivity(name)
		a.Modes = append(a.Modes, dummy)
	}
	return p
}

// AddResource declares a renewable resource with zero capacity.
func (p *Problem) AddResource(name string) (*Resource, error) {
	if _, ok := p.resources[name]; ok {
		return nil, fmt.Errorf("resource %s: %w", name, ErrDuplicate)
	}
	r := &Resource{ID: len(p.Resources), Name: name, Capacity: timeline.New(1, Inf, 0)}
	p.Resources = append(p.Resources, r)
	p.resources[name] = r.ID
	return r, nil
}

// Resource looks a resource up by name.
func (p *Problem) Resource(name string) (*Resource, bool) {
	id, ok := p.resources[name]
	if !ok {
		return nil, false
	}
	return p.Resources[id], true
}

// SetCapacity sets the capacity of r on [from,to], clamped to [1,Inf].
func (r *Resource) SetCapacity(value, from, to int) error {
	from, to = max(from, 1), min(to, Inf)
	if from > to {
		return fmt.Errorf("%w: resource %s capacity [%d,%d]", ErrInvalidArgument, r.Name, from, to)
	}
	r.Capacity.SetKey(value, from, to)
	return nil
}

// AddCapacity adds value to the capacity of r on [from,to].
func (r *Resource) AddCapacity(value, from, to int) error {
	from, to = max(from, 1), min(to, Inf)
	if from > to {
		return fmt.Errorf("%w: resource %s capacity [%d,%d]", ErrInvalidArgument, r.Name, from, to)
	}
	r.Capacity.AddKey(value, from, to)
	return nil
}

// AddState declares a state variable.
func (p *Problem) AddState(name string) (*State, error) {
	if _, ok := p.states[name]; ok {
		return nil, fmt.Errorf("state %s: %w", name, ErrDuplicate)
	}
	s := &State{ID: len(p.States), Name: name}
	p.States = append(p.States, s)
	p.states[name] = s.ID
	return s, nil
}

// State looks a state up by name.
func (p *Problem) State(name string) (*State, bool) {
	id, ok := p.states[name]
	if !ok {
		return nil, false
	}
	return p.States[id], true
}

// SetValue schedules value at time.
func (s *State) SetValue(value, time int) error {
	if value < 0 {
		return fmt.Errorf("%w: state %s value %d", ErrInvalidArgument, s.Name, value)
	}
	s.Facts = append(s.Facts, StateFact{Time: max(time, 0), Value: value})
	return nil
}

// AddMode declares a mode processing duration units of work.
func (p *Problem) AddMode(name string, duration int) (*Mode, error) {
	if _, ok := p.modes[name]; ok {
		return nil, fmt.Errorf("mode %s: %w", name, ErrDuplicate)
	}
	if duration < 0 {
		return nil, fmt.Errorf("%w: mode %s duration %d", ErrInvalidArgument, name, duration)
	}
	m := newMode(len(p.Modes), name, duration)
	p.Modes = append(p.Modes, m)
	p.modes[name] = m.ID
	return m, nil
}

// Mode looks a mode up by name.
func (p *Problem) Mode(name string) (*Mode, bool) {
	id, ok := p.modes[name]
	if !ok {
		return nil, false
	}
	return p.Modes[id], true
}

// AddActivity declares an activity without modes.
func (p *Problem) AddActivity(name string) (*Activity, error) {
	if _, ok := p.activities[name]; ok {
		return nil, fmt.Errorf("activity %s: %w", name, ErrDuplicate)
	}
	a := newActivity(len(p.Activities), name)
	p.Activities = append(p.Activities, a)
	p.activities[name] = a.ID
	return a, nil
}

// Activity looks an activity up by name.
func (p *Problem) Activity(name string) (*Activity, bool) {
	id, ok := p.activities[name]
	if !ok {
		return nil, false
	}
	return p.Activities[id], true
}

// Source returns the dummy first activity.
func (p *Problem) Source() *Activity { return p.Activities[SourceID] }

// Sink returns the dummy last activity.
func (p *Problem) Sink() *Activity { return p.Activities[SinkID] }

// AttachMode makes m available to a and returns its local index.
func (p *Problem) AttachMode(a *Activity, m *Mode) (int, error) {
	if a.Dummy() && m.Name != DummyMode {
		return 0, fmt.Errorf("%w: %s accepts no user-specified mode", ErrInvalidArgument, a.Name)
	}
	if a.ModeIndex(m.ID) >= 0 {
		return 0, fmt.Errorf("mode %s of %s: %w", m.Name, a.Name, ErrDuplicate)
	}
	a.Modes = append(a.Modes, m)
	return len(a.Modes) - 1, nil
}

// SetBackward flags a to be scheduled from its deadline backward.
func (p *Problem) SetBackward(a *Activity, backward bool) error {
	if backward && a.Dummy() {
		return fmt.Errorf("%w: source and sink are scheduled forward", ErrInvalidArgument)
	}
	a.Backward = backward
	return nil
}

// AddTemporal links pred to succ. predMode and succMode are modes of the
// respective activities or nil for every mode.
func (p *Problem) AddTemporal(name string, pred, succ *Activity, typ TempType, delay int, predMode, succMode *Mode) (*TempConstraint, error) {
	if pred.ID == succ.ID {
		return nil, fmt.Errorf("%w: temporal constraint on %s links the activity to itself", ErrInvalidArgument, pred.Name)
	}
	local := func(a *Activity, m *Mode) (int, error) {
		if m == nil {
			return AnyMode, nil
		}
		lid := a.ModeIndex(m.ID)
		if lid < 0 {
			return 0, fmt.Errorf("mode %s of %s: %w", m.Name, a.Name, ErrUndefined)
		}
		return lid, nil
	}
	pm, err := local(pred, predMode)
	if err != nil {
		return nil, err
	}
	sm, err := local(succ, succMode)
	if err != nil {
		return nil, err
	}
	c := &TempConstraint{
		ID:       len(p.Temporals),
		Name:     name,
		Pred:     pred.ID,
		Succ:     succ.ID,
		Type:     typ,
		Delay:    delay,
		PredMode: pm,
		SuccMode: sm,
	}
	p.Temporals = append(p.Temporals, c)
	pred.Out = append(pred.Out, c)
	succ.In = append(succ.In, c)
	return c, nil
}

// AddNrr declares a non-renewable constraint. A weight of Inf makes it hard.
func (p *Problem) AddNrr(name string, weight int) *NrrConstraint {
	c := &NrrConstraint{ID: len(p.Nrrs), Name: name, Weight: min(max(weight, 0), Inf)}
	p.Nrrs = append(p.Nrrs, c)
	return c
}

// AddTerm adds coef*[mode of a is m] to the left-hand side of c.
func (p *Problem) AddTerm(c *NrrConstraint, coef int, a *Activity, m *Mode) error {
	if a.AutoSelect != AutoNone && !c.Soft() {
		return fmt.Errorf("%s: %w", a.Name, ErrHardAutoSelect)
	}
	lid := a.ModeIndex(m.ID)
	if lid < 0 {
		return fmt.Errorf("mode %s of %s: %w", m.Name, a.Name, ErrUndefined)
	}
	c.Terms = append(c.Terms, Term{Coefficient: coef, Activity: a.ID, Mode: lid})
	return nil
}

// SoftNrrs returns the penalised constraints in declaration order.
func (p *Problem) SoftNrrs() []*NrrConstraint {
	var out []*NrrConstraint
	for _, c := range p.Nrrs {
		if c.Soft() {
			out = append(out, c)
		}
	}
	return out
}

// HardNrrs returns the enforced constraints in declaration order.
func (p *Problem) HardNrrs() []*NrrConstraint {
	var out []*NrrConstraint
	for _, c := range p.Nrrs {
		if !c.Soft() {
			out = append(out, c)
		}
	}
	return out
}

// TotalModes returns the number of (activity, mode) pairs.
func (p *Problem) TotalModes() int {
	n := 0
	for _, a := range p.Activities {
		n += len(a.Modes)
	}
	return n
}

// Prepared reports whether Prepare already ran.
func (p *Problem) Prepared() bool { return p.prepared }

// Prepare closes the instance: it links every activity between the source and
// the sink, registers the activities depending on each state, and derives the
// duration bounds of modes and activities. It runs once; later calls are no-ops.
func (p *Problem) Prepare(log logger.Logger) error {
	if p.prepared {
		return nil
	}
	for _, a := range p.Activities[2:] {
		if len(a.Modes) == 0 {
			return fmt.Errorf("%s: %w", a.Name, ErrNoModes)
		}
	}
	src, sink := p.Source(), p.Sink()
	for _, a := range p.Activities[2:] {
		if _, err := p.AddTemporal("", src, a, CS, 0, nil, nil); err != nil {
			return err
		}
		if _, err := p.AddTemporal("", a, sink, CS, 0, nil, nil); err != nil {
			return err
		}
	}
	if len(p.Activities) == 2 {
		if _, err := p.AddTemporal("", src, sink, CS, 0, nil, nil); err != nil {
			return err
		}
	}

	seen := make([]int, len(p.States))
	for _, a := range p.Activities[2:] {
		for _, m := range a.Modes {
			for _, tbl := range m.States {
				if seen[tbl.State] < a.ID {
					seen[tbl.State] = a.ID
					p.States[tbl.State].Activities = append(p.States[tbl.State].Activities, a.ID)
				}
			}
		}
	}

	for _, m := range p.Modes {
		fixes := m.calcDurations()
		if len(fixes) > 0 {
			log.Warnf("mode %s: max parallel width modified", m.Name)
			for _, f := range fixes {
				log.Warnf("mode %s: interval %d %d max %d", m.Name, f.Progress, f.Progress, f.Width)
			}
		}
	}
	for _, a := range p.Activities {
		a.calcDurations()
	}
	p.prepared = true
	return nil
}

// CheckBackward rejects backward activities whose modes depend on states.
func (p *Problem) CheckBackward() error {
	for _, a := range p.Activities {
		if !a.Backward {
			continue
		}
		for _, m := range a.Modes {
			if len(m.States) > 0 {
				return fmt.Errorf("%s (mode %s): %w", a.Name, m.Name, ErrBackwardState)
			}
		}
	}
	return nil
}
