package search

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kilianp07/rcpsched/core/csp"
	"github.com/kilianp07/rcpsched/core/model"
	"github.com/kilianp07/rcpsched/core/solution"
)

// ErrInitialFormat reports a malformed initial solution.
var ErrInitialFormat = errors.New("invalid initial solution")

// InitialEntry places Activity in Mode (a local index) at its position in
// the list of entries.
type InitialEntry struct {
	Activity int
	Mode     int
}

// ParseInitial reads "activity mode" pairs in list order. A mode of "---"
// selects the first mode. Activities left out follow the listed ones.
func ParseInitial(r io.Reader, p *model.Problem) ([]InitialEntry, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	seen := make(map[int]bool)
	var out []InitialEntry
	for sc.Scan() {
		name := sc.Text()
		if !sc.Scan() {
			return nil, fmt.Errorf("%w: no mode after %s", ErrInitialFormat, name)
		}
		mname := sc.Text()
		a, ok := p.Activity(name)
		if !ok || seen[a.ID] {
			return nil, fmt.Errorf("%w: (%s %s)", ErrInitialFormat, name, mname)
		}
		lid := 0
		if mname != "---" {
			m, ok := p.Mode(mname)
			if !ok {
				return nil, fmt.Errorf("%w: (%s %s)", ErrInitialFormat, name, mname)
			}
			if lid = a.ModeIndex(m.ID); lid < 0 {
				return nil, fmt.Errorf("%w: (%s %s)", ErrInitialFormat, name, mname)
			}
		}
		seen[a.ID] = true
		out = append(out, InitialEntry{Activity: a.ID, Mode: lid})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// initialize starts a round: it resets the adaptive weights, builds the
// initial solutions and makes the best of them current.
func (e *Engine) initialize(scores []int) error {
	e.sched.Weights().Reset(e.p)
	e.pool.Get(solution.BestNeighbor).Objective = model.Inf

	for k := 1; k <= e.cfg.InitialSolutions; k++ {
		nb := e.pool.Get(solution.Neighbor)
		fixed := e.round == 0 && len(e.initial) > 0
		if fixed {
			n := len(e.p.Activities)
			clear(scores)
			for i, en := range e.initial {
				scores[en.Activity] = n - i
				nb.Modes[en.Activity] = en.Mode
			}
		} else {
			e.randomize(nb, scores)
		}
		if err := e.feasibleModes(nb, fixed); err != nil {
			return err
		}
		order, err := e.nw.Order(scores)
		if err != nil {
			return fmt.Errorf("search: %w", err)
		}
		nb.SetOrder(order)
		if err := e.schedule(nb); err != nil {
			return err
		}
		e.log.Debugf("initial solution %d: %d", k, nb.Objective)
		if nb.Objective < e.pool.Get(solution.BestNeighbor).Objective {
			e.pool.Swap(solution.Neighbor, solution.BestNeighbor)
		}
		if fixed {
			break
		}
	}
	e.pool.Advance()
	return nil
}

// randomize draws random modes and list scores. Ties are random; within a
// component the earliest deadline of an activity and its successors comes
// first.
func (e *Engine) randomize(sol *solution.Solution, scores []int) {
	n := len(e.p.Activities)
	for i, a := range e.p.Activities {
		sol.Modes[i] = e.rng.Intn(0, len(a.Modes)-1)
	}
	for i := range scores {
		scores[i] = -i
	}
	for i := 0; i < n-1; i++ {
		j := e.rng.Intn(i, n-1)
		scores[i], scores[j] = scores[j], scores[i]
	}
	for c := 0; c < e.nw.NumSccs(); c++ {
		comp := e.nw.Component(c)
		for _, i := range comp {
			due := e.p.Activities[i].DueDateKey()
			for _, j := range comp {
				if e.nw.Precede(i, j) {
					due = min(due, e.p.Activities[j].DueDateKey())
				}
			}
			scores[i] -= min(due, model.Inf/n) * n
		}
	}
}

// feasibleModes repairs the hard non-renewable constraints of sol, doubling
// the oracle budget until it succeeds. A fixed vector gets one attempt.
func (e *Engine) feasibleModes(sol *solution.Solution, fixed bool) error {
	for !e.csp.MakeFeasible(sol.Modes, -1) {
		limit := e.csp.Limit()
		if fixed || time.Since(e.started) >= e.cfg.TimeLimit || limit >= csp.MaxLimit {
			return fmt.Errorf("search: %w (limit %d)", csp.ErrInfeasible, limit)
		}
		limit = max(2*limit, 1)
		e.csp.SetLimit(limit)
		e.log.Warnf("failed to find a feasible mode vector, doubling the limit to %d", limit)
	}
	return nil
}
