// Package csp searches for mode assignments satisfying the hard
// non-renewable resource constraints of a problem.
//
// Every activity is a variable whose values are its local mode indices. The
// solver is a tabu local search over single-variable changes minimising the
// total excess of the linear budgets. It keeps its assignment, its random
// stream and its tabu list between calls, so consecutive calls continue from
// where the previous one stopped.
package csp

import (
	"errors"
	"math"

	"github.com/kilianp07/rcpsched/core/model"
	"github.com/kilianp07/rcpsched/core/random"
	"github.com/kilianp07/rcpsched/core/tabu"
)

// ErrInfeasible reports that no mode vector satisfying the hard constraints
// was found within the largest iteration limit.
var ErrInfeasible = errors.New("failed to find a feasible mode vector")

// MaxLimit bounds the iteration limit doubling of initial solutions.
const MaxLimit = 1_000_000

type term struct {
	coef, variable, value int
}

type row struct {
	rhs   int
	terms []term
	lhs   int
}

// Solver is the mode-feasibility oracle.
type Solver struct {
	numValues []int
	rows      []row
	touching  [][]int
	current   []int
	fixed     int
	limit     int
	rng       *random.Source
	tabu      *tabu.List
}

// New builds a solver over the hard constraints of p. The iteration limit
// starts at the total number of modes.
func New(p *model.Problem) *Solver {
	n := len(p.Activities)
	s := &Solver{
		numValues: make([]int, n),
		touching:  make([][]int, n),
		fixed:     -1,
		limit:     p.TotalModes(),
		rng:       random.New(1),
		tabu:      tabu.New(n, 1),
	}
	for i, a := range p.Activities {
		s.numValues[i] = len(a.Modes)
	}
	for _, c := range p.HardNrrs() {
		r := row{rhs: c.Rhs}
		seen := map[int]bool{}
		for _, t := range c.Terms {
			r.terms = append(r.terms, term{coef: t.Coefficient, variable: t.Activity, value: t.Mode})
			if !seen[t.Activity] {
				seen[t.Activity] = true
				s.touching[t.Activity] = append(s.touching[t.Activity], len(s.rows))
			}
		}
		s.rows = append(s.rows, r)
	}
	return s
}

// Limit returns the iteration limit of a call.
func (s *Solver) Limit() int { return s.limit }

// SetLimit changes the iteration limit of a call.
func (s *Solver) SetLimit(limit int) { s.limit = limit }

// Empty reports whether there is no hard constraint at all.
func (s *Solver) Empty() bool { return len(s.rows) == 0 }

// MakeFeasible rewrites modes into a vector satisfying every hard constraint
// and reports success. Activity fixed, unless negative, keeps its mode. On
// failure modes is left untouched.
func (s *Solver) MakeFeasible(modes []int, fixed int) bool {
	if s.Empty() {
		return true
	}
	s.fixed = fixed
	s.current = append(s.current[:0], modes...)
	penalty := s.evaluate()

	s.tabu.Clear(1)
	for it := 1; penalty > 0 && it <= s.limit; it++ {
		best, bestDiff := s.candidates(penalty)
		if len(best) == 0 {
			s.tabu.Clear(1)
			continue
		}
		mv := best[s.rng.Intn(0, len(best)-1)]
		s.current[mv.variable] = mv.value
		penalty = s.evaluate()
		s.tabu.Update(mv.variable, mv.variable, penalty, bestDiff, s.rng.Intn(-1, 1))
	}
	if penalty > 0 {
		return false
	}
	copy(modes, s.current)
	return true
}

func (s *Solver) evaluate() int {
	penalty := 0
	for k := range s.rows {
		r := &s.rows[k]
		r.lhs = 0
		for _, t := range r.terms {
			if s.current[t.variable] == t.value {
				r.lhs += t.coef
			}
		}
		penalty += max(0, r.lhs-r.rhs)
	}
	return penalty
}

// candidates returns the admissible changes with the smallest penalty
// difference. A change is considered only when it lowers the excess of at
// least one constraint.
func (s *Solver) candidates(penalty int) ([]term, int) {
	var best []term
	bestDiff := math.MaxInt
	for i, rows := range s.touching {
		if i == s.fixed || len(rows) == 0 {
			continue
		}
		for v := 0; v < s.numValues[i]; v++ {
			if v == s.current[i] {
				continue
			}
			diff, improves := 0, false
			for _, k := range rows {
				r := &s.rows[k]
				lhs := r.lhs
				for _, t := range r.terms {
					if t.variable != i {
						continue
					}
					if t.value == s.current[i] {
						lhs -= t.coef
					}
					if t.value == v {
						lhs += t.coef
					}
				}
				d := max(0, lhs-r.rhs) - max(0, r.lhs-r.rhs)
				improves = improves || d < 0
				diff += d
			}
			if !improves || s.tabu.Tabu(i, penalty+diff, diff) {
				continue
			}
			if diff < bestDiff {
				bestDiff = diff
				best = best[:0]
			}
			if diff == bestDiff {
				best = append(best, term{variable: i, value: v})
			}
		}
	}
	return best, bestDiff
}
