// Package search runs the tabu search over activity lists and mode vectors.
//
// A run is a sequence of rounds. Each round resets the adaptive weights,
// builds a few random initial solutions and keeps the best, then iterates:
// the current solution is rescheduled with conflict recording on, moves are
// collected lazily from its violations, and the best admissible neighbour
// becomes current. A round ends when no admissible neighbour is left; the run
// ends when the objective reaches zero or the budget is spent.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/rcpsched/core/construct"
	"github.com/kilianp07/rcpsched/core/csp"
	"github.com/kilianp07/rcpsched/core/events"
	"github.com/kilianp07/rcpsched/core/logger"
	"github.com/kilianp07/rcpsched/core/model"
	"github.com/kilianp07/rcpsched/core/network"
	"github.com/kilianp07/rcpsched/core/random"
	"github.com/kilianp07/rcpsched/core/solution"
	"github.com/kilianp07/rcpsched/core/tabu"
	"github.com/kilianp07/rcpsched/internal/eventbus"
)

// ErrObjectiveCeiling reports an instance whose feasible objective exceeds
// the limit of the evaluation.
var ErrObjectiveCeiling = construct.ErrObjectiveCeiling

// Reasons a round or a run ends.
const (
	ReasonRestart  = "restart"
	ReasonLimit    = "limit"
	ReasonOptimal  = "optimal"
	ReasonCanceled = "canceled"
)

// Publisher receives the events of a run. *eventbus.Bus satisfies it.
type Publisher interface {
	Publish(eventbus.Event)
}

// Result is the outcome of a run.
type Result struct {
	RunID    string
	Solution *solution.Solution
	// Order is the activity list of Solution.
	Order      []int
	Iterations int
	Rounds     int
	Reason     string
	Elapsed    time.Duration
	MaxTenure  int
}

// Engine is the tabu search over one problem. It is single threaded; Run
// must not be called concurrently.
type Engine struct {
	p   *model.Problem
	cfg Config
	log logger.Logger
	bus Publisher

	runID string
	nw    *network.Network
	csp   *csp.Solver
	sched *construct.Scheduler
	pool  *solution.Pool
	tabu  *tabu.List
	rng   *random.Source
	soft  []*model.NrrConstraint

	initial []InitialEntry

	iteration int
	round     int
	started   time.Time

	moves  []move
	frames []frame

	changeModeActivity []int
	changeMode         [][]int
	shiftForward       [][]int
	shiftForwardScc    [][]int
}

// New prepares p if needed and builds an engine for it. Configuration errors
// of the problem, such as a positive cycle or a backward activity with
// states, are reported here.
func New(p *model.Problem, cfg Config, log logger.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !p.Prepared() {
		if err := p.Prepare(log); err != nil {
			return nil, err
		}
	}
	nw, err := network.Build(p)
	if err != nil {
		return nil, err
	}
	rng := random.New(cfg.Seed)
	sched, err := construct.New(p, nw, cfg.Construct, rng, log)
	if err != nil {
		return nil, err
	}

	n := len(p.Activities)
	e := &Engine{
		p:                  p,
		cfg:                cfg,
		log:                log,
		runID:              uuid.NewString(),
		nw:                 nw,
		csp:                csp.New(p),
		sched:              sched,
		pool:               solution.NewPool(n, len(p.Resources)),
		tabu:               tabu.New(2*n+nw.NumSccs(), cfg.Tenure),
		rng:                rng,
		soft:               p.SoftNrrs(),
		changeModeActivity: make([]int, n),
		changeMode:         make([][]int, n),
		shiftForward:       make([][]int, n),
		shiftForwardScc:    make([][]int, nw.NumSccs()),
	}
	for i, a := range p.Activities {
		e.changeMode[i] = make([]int, len(a.Modes))
		e.shiftForward[i] = make([]int, n)
	}
	for c := range e.shiftForwardScc {
		e.shiftForwardScc[c] = make([]int, nw.NumSccs())
	}
	log.Debugf("%d activities in %d components", n, nw.NumSccs())
	return e, nil
}

// SetPublisher configures where progress events go.
func (e *Engine) SetPublisher(p Publisher) { e.bus = p }

// SetInitial fixes the activity list and the modes of the first round.
func (e *Engine) SetInitial(entries []InitialEntry) { e.initial = entries }

// RunID identifies the run in logs and events.
func (e *Engine) RunID() string { return e.runID }

// Network returns the precedence oracle built for the problem.
func (e *Engine) Network() *network.Network { return e.nw }

// Run searches until the objective reaches zero, the budget is spent or ctx
// is done. Cancellation is observed between iterations. The only errors are
// configuration errors found while searching.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	e.started = time.Now()
	e.sched.Started = e.started
	scores := make([]int, len(e.p.Activities))

	var reason string
	for e.round = 0; ; e.round++ {
		if err := e.initialize(scores); err != nil {
			return nil, err
		}
		var err error
		if reason, err = e.search(ctx); err != nil {
			return nil, err
		}
		e.publish(events.Round{
			RunID:     e.runID,
			Round:     e.round,
			Reason:    reason,
			Iteration: e.iteration,
			Best:      e.pool.Get(solution.Incumbent).Objective,
			Elapsed:   time.Since(e.started),
		})
		if reason != ReasonRestart {
			break
		}
		e.log.Debugf("restart after %s at iteration %d", time.Since(e.started), e.iteration)
	}

	best := e.pool.Get(solution.Incumbent)
	res := &Result{
		RunID:      e.runID,
		Solution:   best,
		Order:      best.Order(model.SourceID),
		Iterations: e.iteration,
		Rounds:     e.round + 1,
		Reason:     reason,
		Elapsed:    time.Since(e.started),
		MaxTenure:  e.tabu.MaxTenure(),
	}
	e.log.Infof("search finished (%s): objective %d after %d iterations in %d rounds, %s",
		reason, best.Objective, res.Iterations, res.Rounds, res.Elapsed)
	e.publish(events.Done{
		RunID:      e.runID,
		Objective:  best.Objective,
		Feasible:   best.Feasible(),
		Iterations: res.Iterations,
		Rounds:     res.Rounds,
		Elapsed:    res.Elapsed,
	})
	return res, nil
}

func (e *Engine) publish(ev eventbus.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}

func (e *Engine) progress(sol *solution.Solution, incumbent bool, neighbors int) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(events.Progress{
		RunID:      e.runID,
		Round:      e.round,
		Iteration:  e.iteration,
		Objective:  sol.Objective,
		Best:       e.pool.Get(solution.Incumbent).Objective,
		Evaluation: sol.Evaluation,
		Feasible:   sol.Feasible(),
		Incumbent:  incumbent,
		Neighbors:  neighbors,
		Tenure:     e.tabu.Tenure(),
		Elapsed:    time.Since(e.started),
		Time:       time.Now(),
	})
}

// stop returns why the run must end now, or "".
func (e *Engine) stop(ctx context.Context) string {
	if ctx.Err() != nil {
		return ReasonCanceled
	}
	if time.Since(e.started) >= e.cfg.TimeLimit || e.iteration >= e.cfg.IterationLimit {
		return ReasonLimit
	}
	return ""
}

func (e *Engine) schedule(sol *solution.Solution) error {
	if err := e.sched.Schedule(sol); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	return nil
}

// search iterates from the current solution until the round ends and
// returns the reason it ended.
func (e *Engine) search(ctx context.Context) (string, error) {
	neighbors := 0
	for {
		cur := e.pool.Get(solution.Current)
		if cur.Objective < e.pool.Get(solution.Incumbent).Objective {
			e.pool.Alias(solution.Incumbent, solution.Current)
			e.log.Infof("objective value = %d (elapsed %s, iteration %d)", cur.Objective, cur.Elapsed, cur.Iteration)
			e.progress(cur, true, neighbors)
			if cur.Objective == 0 {
				return ReasonOptimal, nil
			}
		}
		if e.cfg.ReportInterval == 0 || e.iteration%e.cfg.ReportInterval == 0 {
			e.log.Infof("%d: %s: %d/%d", e.iteration, time.Since(e.started), cur.Objective, e.pool.Get(solution.Incumbent).Objective)
			e.progress(cur, false, neighbors)
		}
		if reason := e.stop(ctx); reason != "" {
			return reason, nil
		}

		e.iteration++
		e.sched.Iteration = e.iteration

		inc := e.pool.Get(solution.Incumbent)
		if wc := e.cfg.WeightControl; wc > 0 && (e.iteration-inc.Iteration)%wc == 0 {
			w := e.sched.Weights()
			w.Raise(e.p, inc)
			w.Raise(e.p, cur)
			if err := e.sched.Evaluate(cur); err != nil {
				return "", fmt.Errorf("search: %w", err)
			}
		}

		var (
			best int
			err  error
		)
		for repeat := 0; ; repeat++ {
			neighbors, best, err = e.explore(cur, inc)
			if err != nil {
				return "", err
			}
			if best >= 0 {
				break
			}
			e.log.Debugf("%d: no neighbor", e.iteration)
			if repeat >= 1 {
				return ReasonRestart, nil
			}
			if err := e.schedule(cur); err != nil {
				return "", err
			}
			e.tabu.Clear(1)
		}

		mv := e.moves[best]
		bn := e.pool.Get(solution.BestNeighbor)
		e.log.Debugw("move", map[string]any{
			"iteration": e.iteration,
			"move":      e.describe(mv),
			"neighbors": neighbors,
			"ltm":       e.tabu.LongTermMemory(mv.attr),
			"objective": bn.Objective,
		})
		e.tabu.Update(mv.attr, mv.reverse, bn.Objective, bn.Objective-cur.Objective, e.rng.Intn(0, 3))
		e.pool.Advance()
	}
}

// explore reschedules cur with conflict recording on, then evaluates
// neighbours until the neighbourhood is full or no move is left. It returns
// the number of admissible neighbours and the index of the best move, or -1.
func (e *Engine) explore(cur, inc *solution.Solution) (int, int, error) {
	cur.CriticalGraph = true
	err := e.schedule(cur)
	cur.CriticalGraph = false
	if err != nil {
		return 0, -1, err
	}
	cur.SortViolations()

	e.moves = e.moves[:0]
	e.pool.Get(solution.BestNeighbor).Evaluation = solution.DInf
	neighbors, best := 0, -1
	v := len(cur.Violations) - 1
	for k := 0; neighbors < e.cfg.Neighborhood; k++ {
		for k == len(e.moves) && v >= 0 {
			e.collect(cur, cur.Violations[v])
			v--
		}
		if k == len(e.moves) {
			break
		}

		j := e.rng.Intn(k, len(e.moves)-1)
		e.moves[k], e.moves[j] = e.moves[j], e.moves[k]
		mv := e.moves[k]
		if e.tabu.Tabu(mv.reverse, 0, -model.Inf) {
			continue
		}
		nb := e.pool.Get(solution.Neighbor)
		nb.CopyFrom(cur)
		switch mv.kind {
		case changeMode:
			nb.Modes[mv.id1] = mv.id2
			if !e.csp.MakeFeasible(nb.Modes, mv.id1) {
				continue
			}
		case shiftForward:
			if mv.id1 == mv.id2 {
				continue
			}
			e.nw.ShiftForward(nb, mv.id1, mv.id2)
		}
		if err := e.schedule(nb); err != nil {
			return 0, -1, err
		}

		if e.tabu.Tabu(mv.reverse, nb.Objective, nb.Objective-cur.Objective) && nb.Objective >= inc.Objective {
			continue
		}
		neighbors++
		bn := e.pool.Get(solution.BestNeighbor)
		update := nb.Evaluation < bn.Evaluation
		// best stays -1 until a neighbour is kept; a first neighbour scoring
		// DInf ties the reset BestNeighbor with no move to compare against.
		if !update && nb.Evaluation == bn.Evaluation && best >= 0 {
			update = e.tabu.LongTermMemory(mv.attr) < e.tabu.LongTermMemory(e.moves[best].attr)
		}
		if update {
			best = k
			e.pool.Swap(solution.Neighbor, solution.BestNeighbor)
		}
	}
	return neighbors, best, nil
}
