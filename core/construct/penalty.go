package construct

import (
	"fmt"
	"math"

	"github.com/kilianp07/rcpsched/core/model"
	"github.com/kilianp07/rcpsched/core/solution"
)

// Weights are the adaptive penalty weights of the evaluation. They start at
// the declared weights and grow while the same items stay violated.
type Weights struct {
	Start      []float64
	Completion []float64
	Soft       []float64
}

// NewWeights returns weights set to the declared ones.
func NewWeights(p *model.Problem) *Weights {
	w := &Weights{
		Start:      make([]float64, len(p.Activities)),
		Completion: make([]float64, len(p.Activities)),
	}
	w.Reset(p)
	return w
}

// Reset restores the declared weights.
func (w *Weights) Reset(p *model.Problem) {
	for i, a := range p.Activities {
		w.Start[i] = float64(a.Start.Weight)
		w.Completion[i] = float64(a.Completion.Weight)
	}
	w.Soft = w.Soft[:0]
	for _, c := range p.SoftNrrs() {
		w.Soft = append(w.Soft, float64(c.Weight))
	}
}

// Raise multiplies by 1.2 the weight of every item violated in sol, capped
// at MaxWeightMultiplier times the declared weight.
func (w *Weights) Raise(p *model.Problem, sol *solution.Solution) {
	if len(sol.Executions[model.SinkID]) == 0 {
		return
	}
	soft := p.SoftNrrs()
	for _, v := range sol.Violations {
		switch v.Kind {
		case solution.DueDate:
			a := p.Activities[v.ID]
			if len(sol.Executions[v.ID]) == 0 {
				continue
			}
			if a.Start.Set() && sol.Start(v.ID) > a.Start.Time {
				w.Start[v.ID] = math.Min(w.Start[v.ID]*1.2, MaxWeightMultiplier*float64(a.Start.Weight))
			}
			if a.Completion.Set() && sol.Completion(v.ID) > a.Completion.Time {
				w.Completion[v.ID] = math.Min(w.Completion[v.ID]*1.2, MaxWeightMultiplier*float64(a.Completion.Weight))
			}
		case solution.SoftNrr:
			w.Soft[v.ID] = math.Min(w.Soft[v.ID]*1.2, MaxWeightMultiplier*float64(soft[v.ID].Weight))
		}
	}
}

func weighted(d model.DueDate, weight float64, t int, backward bool) float64 {
	tard := float64(d.Tardiness(t, backward))
	if d.Quadratic {
		return weight * tard * tard
	}
	return weight * tard
}

// Evaluate computes the objective and the evaluation of sol and records its
// due-date and soft constraint violations. A partial schedule scores BigM plus
// the number of unplaced activities.
func (s *Scheduler) Evaluate(sol *solution.Solution) error {
	objective, evaluation := 0, 0.0
	if !sol.Feasible() {
		objective = BigM + len(s.p.Activities) - sol.Assigned()
		sol.Objective, sol.Evaluation = objective, float64(objective)*MaxWeightMultiplier
		return nil
	}

	sol.ClearViolations()
	for i, a := range s.p.Activities {
		penalty, eval := 0, 0.0
		if a.Start.Set() {
			t := sol.Start(i)
			penalty += a.Start.Penalty(t, a.Backward)
			eval += weighted(a.Start, s.weights.Start[i], t, a.Backward)
		}
		if a.Completion.Set() {
			t := sol.Completion(i)
			penalty = min(penalty+a.Completion.Penalty(t, a.Backward), Inf)
			eval += weighted(a.Completion, s.weights.Completion[i], t, a.Backward)
		}
		if penalty > 0 {
			objective = min(objective+penalty, Inf)
			evaluation += eval
			sol.AddViolation(solution.DueDate, i, penalty)
		}
	}
	for k, c := range s.soft {
		excess := c.Excess(sol.Modes)
		if excess == 0 {
			continue
		}
		wp := float64(excess) * s.weights.Soft[k]
		evaluation += wp
		objective += excess * c.Weight
		sol.AddViolation(solution.SoftNrr, k, s.rng.Intn(1, int(math.Min(wp*100, float64(Inf)))))
	}
	if objective > BigM {
		return fmt.Errorf("%w: %d > %d", ErrObjectiveCeiling, objective, BigM)
	}
	sol.Objective, sol.Evaluation = objective, evaluation
	return nil
}
