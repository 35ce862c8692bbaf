// Package solution holds a schedule under construction or evaluation: the
// activity list, the selected modes, the execution segments, the conflict
// graph and the violations found by the last pass.
package solution

import (
	"fmt"
	"sort"
	"time"

	"github.com/kilianp07/rcpsched/core/resource"
	"github.com/kilianp07/rcpsched/core/timeline"
)

// Inf is the integer horizon; DInf the evaluation of an unevaluated solution.
const (
	Inf  = timeline.Inf
	DInf = 1e15
)

// None terminates the activity list on both ends.
const None = -1

// Kind classifies a violation.
type Kind int

const (
	SoftNrr Kind = iota
	Temporal
	DueDate
)

func (k Kind) String() string {
	switch k {
	case SoftNrr:
		return "NRR"
	case Temporal:
		return "TMP"
	case DueDate:
		return "DUE"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Violation is one unsatisfied item. ID is a temporal constraint id, an
// activity id or a soft constraint index depending on Kind. A penalty of Inf
// marks an item the pass gave up on.
type Violation struct {
	Kind    Kind `json:"kind"`
	ID      int  `json:"id"`
	Penalty int  `json:"penalty"`
}

// Execution is a slice of work processed at a constant parallel width on
// [From,To). A width of 0 marks the start or the end of the activity.
type Execution struct {
	From     int `json:"from"`
	To       int `json:"to"`
	Parallel int `json:"parallel"`
}

// Solution is one slot of the search.
type Solution struct {
	Objective  int
	Evaluation float64

	Modes      []int
	Executions [][]Execution
	// Residuals holds, per resource, the free capacity up to the makespan of
	// the last feasible pass.
	Residuals [][]timeline.Segment
	Violations []Violation

	// CriticalGraph enables conflict recording in SetCritical.
	CriticalGraph bool

	Elapsed   time.Duration
	Iteration int

	prev, next  []int
	positions   []int
	critical    [][]int
	criticalSet []map[int]struct{}
	assigned    int
}

// New allocates a solution for n activities and r resources.
func New(n, r int) *Solution {
	s := &Solution{
		Objective:   Inf,
		Evaluation:  DInf,
		Modes:       make([]int, n),
		Executions:  make([][]Execution, n),
		Residuals:   make([][]timeline.Segment, r),
		prev:        make([]int, n),
		next:        make([]int, n),
		positions:   make([]int, n),
		critical:    make([][]int, n),
		criticalSet: make([]map[int]struct{}, n),
	}
	for i := range s.criticalSet {
		s.criticalSet[i] = map[int]struct{}{}
	}
	return s
}

// Len returns the number of activities.
func (s *Solution) Len() int { return len(s.Modes) }

// Feasible reports whether the last pass placed every activity.
func (s *Solution) Feasible() bool { return s.assigned == len(s.Modes) }

// CopyFrom takes over the modes and the activity list of src.
func (s *Solution) CopyFrom(src *Solution) {
	copy(s.Modes, src.Modes)
	copy(s.prev, src.prev)
	copy(s.next, src.next)
}

func (s *Solution) ResetAssigned()         { s.assigned = 0 }
func (s *Solution) UpdateAssigned(num int) { s.assigned = max(s.assigned, num) }
func (s *Solution) Assigned() int          { return s.assigned }

func (s *Solution) Prev(a int) int { return s.prev[a] }
func (s *Solution) Next(a int) int { return s.next[a] }

// SetOrder links the activities in the given list order. The list must start
// with the source.
func (s *Solution) SetOrder(order []int) {
	for i, a := range order {
		s.prev[a], s.next[a] = None, None
		if i > 0 {
			s.prev[a] = order[i-1]
		}
		if i+1 < len(order) {
			s.next[a] = order[i+1]
		}
	}
}

// Order returns the activity list starting at first.
func (s *Solution) Order(first int) []int {
	out := make([]int, 0, len(s.next))
	for a := first; a != None && len(out) < len(s.next); a = s.next[a] {
		out = append(out, a)
	}
	return out
}

// CalculatePositions numbers the activity list starting at first.
func (s *Solution) CalculatePositions(first int) {
	a := first
	for pos := 0; pos < len(s.positions) && a != None; pos++ {
		s.positions[a] = pos
		a = s.next[a]
	}
}

func (s *Solution) Position(a int) int { return s.positions[a] }

// ShiftAfter moves a1 right after a2 in the activity list.
func (s *Solution) ShiftAfter(a1, a2 int) {
	p, n := s.prev[a1], s.next[a1]
	if p != None {
		s.next[p] = n
	}
	if n != None {
		s.prev[n] = p
	}
	n2 := s.next[a2]
	if n2 != None {
		s.prev[n2] = a1
	}
	s.next[a1] = n2
	s.next[a2] = a1
	s.prev[a1] = a2
}

// ClearCritical forgets the conflicts recorded for a.
func (s *Solution) ClearCritical(a int) {
	s.critical[a] = s.critical[a][:0]
	clear(s.criticalSet[a])
}

// SetCritical records that b delayed a. It is a no-op unless CriticalGraph is set.
func (s *Solution) SetCritical(a, b int) {
	if !s.CriticalGraph {
		return
	}
	if _, ok := s.criticalSet[a][b]; ok {
		return
	}
	s.criticalSet[a][b] = struct{}{}
	s.critical[a] = append(s.critical[a], b)
}

// SetCriticalRange records every activity occupying l on [from,to] as a
// conflict of a.
func (s *Solution) SetCriticalRange(a int, l *resource.Ledger, from, to int) {
	if !s.CriticalGraph {
		return
	}
	l.Occupants(from, to, func(b int) { s.SetCritical(a, b) })
}

// Critical returns the conflicts of a in discovery order.
func (s *Solution) Critical(a int) []int { return s.critical[a] }

// DropCritical removes the k-th conflict of a by moving the last one into its
// place, and returns the removed activity.
func (s *Solution) DropCritical(a, k int) int {
	c := s.critical[a]
	b := c[k]
	last := len(c) - 1
	c[k] = c[last]
	s.critical[a] = c[:last]
	delete(s.criticalSet[a], b)
	return b
}

func (s *Solution) ClearViolations() { s.Violations = s.Violations[:0] }

func (s *Solution) AddViolation(k Kind, id, penalty int) {
	s.Violations = append(s.Violations, Violation{Kind: k, ID: id, Penalty: penalty})
}

// SortViolations orders violations by increasing penalty.
func (s *Solution) SortViolations() {
	sort.SliceStable(s.Violations, func(i, j int) bool { return s.Violations[i].Penalty < s.Violations[j].Penalty })
}

// SetResiduals records the free capacity of resource r up to horizon.
func (s *Solution) SetResiduals(r int, l *resource.Ledger, horizon int) {
	s.Residuals[r] = l.Residuals(horizon)
}

// ClearResiduals drops the recorded capacity profiles.
func (s *Solution) ClearResiduals() {
	for r := range s.Residuals {
		s.Residuals[r] = nil
	}
}

// Start returns the start of a, or Inf when it is not scheduled.
func (s *Solution) Start(a int) int {
	if len(s.Executions[a]) == 0 {
		return Inf
	}
	return s.Executions[a][0].From
}

// Completion returns the completion of a, or Inf when it is not scheduled.
func (s *Solution) Completion(a int) int {
	ex := s.Executions[a]
	if len(ex) == 0 {
		return Inf
	}
	return ex[len(ex)-1].To
}
