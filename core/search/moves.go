package search

import (
	"fmt"

	"github.com/kilianp07/rcpsched/core/model"
	"github.com/kilianp07/rcpsched/core/solution"
)

type moveKind int

const (
	// changeMode sets activity id1 to local mode id2.
	changeMode moveKind = iota
	// shiftForward moves activity id1 right before id2 in the list.
	shiftForward
)

// move is a candidate of the neighbourhood. attr is the tabu attribute the
// move sets; reverse is the one whose activity forbids it.
type move struct {
	kind     moveKind
	id1, id2 int
	attr     int
	reverse  int
}

func (e *Engine) describe(mv move) string {
	if mv.kind == changeMode {
		a := e.p.Activities[mv.id1]
		return fmt.Sprintf("%s: -> %s", a.Name, a.Modes[mv.id2].Name)
	}
	return fmt.Sprintf("%s<-%s", e.p.Activities[mv.id2].Name, e.p.Activities[mv.id1].Name)
}

// addMove records a move once per iteration. Shifts between components are
// deduplicated per pair of components.
func (e *Engine) addMove(kind moveKind, id1, id2 int) {
	n := len(e.p.Activities)
	switch kind {
	case changeMode:
		if e.changeMode[id1][id2] != e.iteration {
			e.changeMode[id1][id2] = e.iteration
			e.moves = append(e.moves, move{kind: kind, id1: id1, id2: id2, attr: id1, reverse: id1})
		}
	case shiftForward:
		s1, s2 := e.nw.Scc(id1), e.nw.Scc(id2)
		if s1 == s2 {
			if e.shiftForward[id1][id2] != e.iteration {
				e.shiftForward[id1][id2] = e.iteration
				e.moves = append(e.moves, move{kind: kind, id1: id1, id2: id2, attr: n + id1, reverse: n + id2})
			}
		} else if e.shiftForwardScc[s1][s2] != e.iteration {
			e.shiftForwardScc[s1][s2] = e.iteration
			e.moves = append(e.moves, move{kind: kind, id1: id1, id2: id2, attr: 2*n + s1, reverse: 2*n + s2})
		}
	}
}

func (e *Engine) collect(cur *solution.Solution, v solution.Violation) {
	switch v.Kind {
	case solution.Temporal:
		if v.Penalty > 0 {
			c := e.p.Temporals[v.ID]
			e.collectDueDate(cur, c.Pred)
			e.collectChangeMode(cur, c.Succ)
		}
	case solution.DueDate:
		e.collectDueDate(cur, v.ID)
	case solution.SoftNrr:
		e.collectSoftNrr(cur, e.soft[v.ID])
	}
}

// collectChangeMode proposes every other mode of id, or of the activities
// depending on it. Auto-selected activities pick their own mode.
func (e *Engine) collectChangeMode(cur *solution.Solution, id int) {
	a := e.p.Activities[id]
	if e.changeModeActivity[id] == e.iteration || len(a.Modes) == 1 {
		return
	}
	e.changeModeActivity[id] = e.iteration
	if a.AutoSelect != model.AutoNone {
		return
	}

	if len(a.Dependences) == 0 {
		for m := range a.Modes {
			if m != cur.Modes[id] {
				e.addMove(changeMode, id, m)
			}
		}
		return
	}
	for _, d := range a.Dependences {
		da := e.p.Activities[d]
		if e.changeModeActivity[d] == e.iteration || len(da.Modes) == 1 {
			continue
		}
		for m := range da.Modes {
			if m != cur.Modes[d] {
				e.addMove(changeMode, d, m)
			}
		}
	}
}

// collectSoftNrr proposes mode changes for the activities of a violated soft
// constraint. An auto-selected activity changes mode only through its
// placement, so it is also shifted around the activities sharing its states.
func (e *Engine) collectSoftNrr(cur *solution.Solution, c *model.NrrConstraint) {
	for _, t := range c.Terms {
		i := t.Activity
		if e.changeModeActivity[i] == e.iteration {
			continue
		}
		a := e.p.Activities[i]
		if a.AutoSelect != model.AutoNone {
			for _, tbl := range a.Modes[cur.Modes[i]].States {
				for _, j := range e.p.States[tbl.State].Activities {
					if j == i {
						continue
					}
					if cur.Position(i) < cur.Position(j) {
						e.addMove(shiftForward, j, i)
						continue
					}
					i2 := cur.Next(j)
					if e.nw.Scc(i) != e.nw.Scc(j) {
						for i2 != solution.None && e.nw.Scc(i2) == e.nw.Scc(j) {
							i2 = cur.Next(i2)
						}
					}
					if i2 != solution.None && i2 != i && !e.nw.Precede(i2, i) {
						e.addMove(shiftForward, i, i2)
					}
				}
			}
		}
		e.collectChangeMode(cur, i)
	}
}

// frame is a pending visit of the conflict walk. resumed is set once a
// child has been pushed.
type frame struct {
	id, depth int
	resumed   bool
}

// collectDueDate walks the conflict graph of cur from id, consuming the
// recorded conflicts in random order. Every conflict proposes to move the
// later of the two activities before the earlier one. A walk on an
// infeasible solution follows a single chain; on a feasible one it
// backtracks above Depth.
func (e *Engine) collectDueDate(cur *solution.Solution, id int) {
	e.collectChangeMode(cur, id)
	stack := append(e.frames[:0], frame{id: id})
	for len(stack) > 0 {
		top := len(stack) - 1
		f := &stack[top]
		if f.resumed {
			if len(cur.Executions[model.SinkID]) == 0 {
				if f.depth > 0 {
					stack = stack[:top]
					continue
				}
			} else if f.depth > e.cfg.Depth {
				stack = stack[:top]
				continue
			}
		}
		crit := cur.Critical(f.id)
		if len(crit) == 0 {
			stack = stack[:top]
			continue
		}

		pid := cur.DropCritical(f.id, e.rng.Intn(0, len(crit)-1))
		id1, id2 := f.id, pid
		if cur.Position(id1) < cur.Position(id2) {
			id1, id2 = id2, id1
		}
		if !e.nw.Precede(id2, id1) {
			e.addMove(shiftForward, id1, id2)
		}

		f.resumed = true
		depth := f.depth + 1
		e.collectChangeMode(cur, pid)
		stack = append(stack, frame{id: pid, depth: depth})
	}
	e.frames = stack[:0]
}
