// Package construct turns a mode vector and an activity list into a schedule.
//
// Activities are placed one by one in list order. A forward activity is put
// at the earliest time its temporal, resource, break and state restrictions
// allow; a backward one at the latest. A placement that breaks a temporal
// constraint towards an activity placed earlier unwinds the list back to that
// activity, raising its bounds so that the next attempt moves past the
// conflict.
package construct

import (
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/rcpsched/core/logger"
	"github.com/kilianp07/rcpsched/core/model"
	"github.com/kilianp07/rcpsched/core/network"
	"github.com/kilianp07/rcpsched/core/random"
	"github.com/kilianp07/rcpsched/core/resource"
	"github.com/kilianp07/rcpsched/core/solution"
	"github.com/kilianp07/rcpsched/core/state"
)

// Inf is the saturating time horizon.
const Inf = model.Inf

const (
	// BigM bounds the objective of a feasible schedule and anchors the
	// objective of infeasible ones.
	BigM = 1_000_000_000
	// MaxWeightMultiplier caps adaptive weights relative to the declared ones
	// and scales the evaluation of infeasible schedules.
	MaxWeightMultiplier = 1000
)

// ErrObjectiveCeiling reports a feasible schedule whose objective exceeds BigM.
var ErrObjectiveCeiling = errors.New("objective exceeds the limit")

// Config holds the construction limits.
type Config struct {
	// MaxBacktracks bounds the backtracks spent inside one strongly
	// connected component before the pass gives up.
	MaxBacktracks int `json:"max_backtracks"`
	// MaxViolationCount bounds how often a single temporal constraint may
	// cause a backtrack.
	MaxViolationCount int `json:"max_violation_count"`
}

// DefaultConfig returns the limits used when none are configured.
func DefaultConfig() Config {
	return Config{MaxBacktracks: 1000, MaxViolationCount: 1000}
}

// bounds are the registers the constructor keeps per activity during a pass.
type bounds struct {
	lbStart, lbFinish int
	ubStart, ubFinish int
}

func (b *bounds) clearLower() { b.lbStart, b.lbFinish = 0, 0 }
func (b *bounds) clearUpper() { b.ubStart, b.ubFinish = Inf, Inf }

// window is a piece of the lower (or upper) bound on the time at which a
// progress point can be reached: at progress p in [from,to] the bound is
// value+(p-from)*grad.
type window struct {
	from, to int
	value    int
	grad     int
}

// Scheduler builds schedules for one problem. It is not safe for concurrent
// use; each goroutine needs its own.
type Scheduler struct {
	p   *model.Problem
	nw  *network.Network
	cfg Config
	log logger.Logger

	resources []*resource.Ledger
	states    []*state.Ledger
	soft      []*model.NrrConstraint
	weights   *Weights
	rng       *random.Source

	bounds      []bounds
	windows     []window
	stateValues []int
	critStart   []int
	critFinish  []int

	numBacktracks  int
	violationCount []int

	// Iteration and Started stamp every evaluated solution.
	Iteration int
	Started   time.Time
}

// New returns a scheduler for a prepared problem. rng draws the violation
// keys of soft non-renewable constraints.
func New(p *model.Problem, nw *network.Network, cfg Config, rng *random.Source, log logger.Logger) (*Scheduler, error) {
	if !p.Prepared() {
		return nil, fmt.Errorf("construct: %w: problem is not prepared", model.ErrInvalidArgument)
	}
	if err := p.CheckBackward(); err != nil {
		return nil, err
	}
	s := &Scheduler{
		p:              p,
		nw:             nw,
		cfg:            cfg,
		log:            log,
		soft:           p.SoftNrrs(),
		rng:            rng,
		bounds:         make([]bounds, len(p.Activities)),
		violationCount: make([]int, len(p.Temporals)),
		Started:        time.Now(),
	}
	for _, r := range p.Resources {
		s.resources = append(s.resources, resource.NewLedger(r.Capacity))
	}
	for _, st := range p.States {
		s.states = append(s.states, state.NewLedger(st.Facts))
	}
	s.weights = NewWeights(p)
	return s, nil
}

// Weights returns the adaptive penalty weights used by Evaluate.
func (s *Scheduler) Weights() *Weights { return s.weights }

// Ledger returns the ledger of resource r as left by the last pass.
func (s *Scheduler) Ledger(r int) *resource.Ledger { return s.resources[r] }

// State returns the timeline of state k as left by the last pass.
func (s *Scheduler) State(k int) *state.Ledger { return s.states[k] }

func (s *Scheduler) mode(sol *solution.Solution, a int) *model.Mode {
	return s.p.Activities[a].Modes[sol.Modes[a]]
}

func (s *Scheduler) reset(sol *solution.Solution) {
	for _, l := range s.resources {
		l.Clear()
	}
	sol.ClearResiduals()
	for _, st := range s.states {
		st.Clear()
	}
	for i, a := range s.p.Activities {
		sol.Executions[i] = sol.Executions[i][:0]
		sol.ClearCritical(i)
		if a.Backward {
			s.bounds[i].clearUpper()
		} else {
			s.bounds[i].clearLower()
		}
	}
	sol.ResetAssigned()
	sol.ClearViolations()
	sol.CalculatePositions(model.SourceID)
	s.numBacktracks = 0
	clear(s.violationCount)
}

// Schedule runs a full pass over the activity list of sol, then scores it.
// Activities left unplaced make the solution infeasible; the only error is
// ErrObjectiveCeiling.
func (s *Scheduler) Schedule(sol *solution.Solution) error {
	s.reset(sol)

	aid := model.SourceID
	scc := s.nw.Scc(aid)
	for {
		a := s.p.Activities[aid]
		if a.AutoSelect != model.AutoNone && len(a.Modes) > 1 {
			s.autoSelect(sol, aid)
		}
		var code int
		if a.Backward {
			code, aid = s.reverse(sol, aid, false)
		} else {
			code, aid = s.forward(sol, aid, false)
		}
		if code != 0 || aid == solution.None {
			break
		}
		if c := s.nw.Scc(aid); c != scc {
			s.numBacktracks = 0
			scc = c
		}
	}

	if !sol.Feasible() {
		s.log.Debugf("pass stopped after %d of %d activities", sol.Assigned(), len(s.p.Activities))
	}
	if err := s.Evaluate(sol); err != nil {
		return err
	}
	sol.Iteration = s.Iteration
	sol.Elapsed = time.Since(s.Started)
	if sol.Feasible() {
		makespan := sol.Start(model.SinkID)
		for r, l := range s.resources {
			sol.SetResiduals(r, l, makespan)
		}
	}
	return nil
}

// autoSelect tries the modes of aid from the current one onwards and keeps
// the one completing first.
func (s *Scheduler) autoSelect(sol *solution.Solution, aid int) {
	a := s.p.Activities[aid]
	n := len(a.Modes)
	init := sol.Modes[aid]
	best, earliest := init, Inf
	for k := 0; k < n; k++ {
		m := (init + k) % n
		sol.Modes[aid] = m
		saved := s.bounds[aid]
		var c int
		if a.Backward {
			c, _ = s.reverse(sol, aid, true)
		} else {
			c, _ = s.forward(sol, aid, true)
		}
		s.bounds[aid] = saved
		if c < earliest {
			best, earliest = m, c
		}
		if a.AutoSelect == model.AutoFirst && c < Inf {
			break
		}
	}
	sol.Modes[aid] = best
}

// backtrack unwinds the list from aid back to the activity whose placement
// conflicts with it. It returns the activity to place next; a non-zero code
// ends the pass.
func (s *Scheduler) backtrack(sol *solution.Solution, aid, target, constraint int, forward bool) (int, int) {
	sol.Executions[aid] = sol.Executions[aid][:0]
	if target == model.SourceID {
		sol.AddViolation(solution.Temporal, constraint, Inf)
		return 1, aid
	}
	if s.numBacktracks == s.cfg.MaxBacktracks {
		s.numBacktracks++
		sol.AddViolation(solution.Temporal, constraint, Inf)
		return 1, aid
	}
	s.numBacktracks++
	s.violationCount[constraint]++
	if s.violationCount[constraint] > s.cfg.MaxViolationCount {
		sol.AddViolation(solution.Temporal, constraint, Inf)
		return Inf, aid
	}

	shift := solution.None
	if forward && s.violationCount[constraint] == 1 && !s.nw.Precede(target, aid) {
		shift = aid
		if s.nw.Scc(target) != s.nw.Scc(shift) {
			for s.nw.Scc(sol.Prev(target)) == s.nw.Scc(target) {
				target = sol.Prev(target)
			}
		}
	}

	if forward {
		s.bounds[aid].clearLower()
	} else {
		s.bounds[aid].clearUpper()
	}
	id := sol.Prev(aid)
	for {
		ex := sol.Executions[id]
		if id != target && len(ex) > 0 {
			b := &s.bounds[id]
			switch {
			case shift != solution.None:
				b.clearLower()
			case s.p.Activities[id].Backward:
				if ex[0].From <= b.ubStart {
					b.ubStart = Inf
				}
				if ex[len(ex)-1].To <= b.ubFinish {
					b.ubFinish = Inf
				}
			default:
				if ex[0].From >= b.lbStart {
					b.lbStart = 0
				}
				if ex[len(ex)-1].To >= b.lbFinish {
					b.lbFinish = 0
				}
			}
		}
		if len(ex) > 0 {
			s.assign(id, s.mode(sol, id), ex, -1)
			sol.Executions[id] = ex[:0]
		}
		if id == target {
			break
		}
		id = sol.Prev(id)
	}

	if shift != solution.None {
		id = sol.Prev(id)
		s.nw.ShiftForward(sol, shift, target)
		sol.CalculatePositions(model.SourceID)
		id = sol.Next(id)
	}
	return 0, id
}

// stateCriticals records who caused an illegal state transition for aid:
// the activity that set the value, or, for a scheduled fact, the activities
// sharing the state that could have made room.
func (s *Scheduler) stateCriticals(sol *solution.Solution, aid, st int, setter int) {
	if setter >= 0 {
		sol.SetCritical(aid, setter)
		return
	}
	for _, p := range s.p.States[st].Activities {
		if p == aid {
			continue
		}
		id := p
		switch {
		case sol.Position(aid) < sol.Position(p):
		case s.nw.Scc(aid) == s.nw.Scc(p):
			id = sol.Next(p)
		default:
			id = sol.Next(p)
			for id != solution.None && s.nw.Scc(id) == s.nw.Scc(p) {
				id = sol.Next(id)
			}
		}
		if id != solution.None {
			sol.SetCritical(aid, id)
		}
	}
}

// checkStates moves t forward until every state used by mode can make its
// transition at t+1, and records the values reached in stateValues.
func (s *Scheduler) checkStates(sol *solution.Solution, aid int, mode *model.Mode, t int, test bool) int {
	if cap(s.stateValues) < len(mode.States) {
		s.stateValues = make([]int, len(mode.States))
	}
	s.stateValues = s.stateValues[:len(mode.States)]

	for t < Inf {
		moved := false
		for k, tbl := range mode.States {
			st := s.states[tbl.State]
			init := t
			to := 0
			for r := st.Find(t); t < Inf; {
				e := st.Entry(r)
				to = tbl.Transition(e.Value)
				next := st.Next(r)
				if to < 0 {
					if !test {
						s.stateCriticals(sol, aid, tbl.State, e.Activity)
					}
					r, t = next, st.From(next)
					continue
				}
				if ne := st.Entry(next); ne.Origin == state.RuntimeSet {
					if st.From(next) == t+1 || e.Value != to {
						if !test {
							sol.SetCritical(aid, ne.Activity)
						}
						r, t = next, st.From(next)
						continue
					}
				}
				break
			}
			if t != init {
				moved = true
				break
			}
			s.stateValues[k] = to
		}
		if !moved {
			break
		}
	}
	return t
}
