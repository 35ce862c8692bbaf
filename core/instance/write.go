package instance

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/kilianp07/rcpsched/core/model"
	"github.com/kilianp07/rcpsched/core/search"
)

func itoa(v int) string {
	if v >= model.Inf {
		return "inf"
	}
	return strconv.Itoa(v)
}

// linked reports whether c is one of the source/sink arcs added by Prepare.
func linked(c *model.TempConstraint) bool {
	return c.Name == "" && c.Type == model.CS && c.Delay == 0 &&
		c.PredMode == model.AnyMode && c.SuccMode == model.AnyMode &&
		(c.Pred == model.SourceID || c.Succ == model.SinkID)
}

// WriteText prints p in the text format accepted by ParseText.
func WriteText(w io.Writer, p *model.Problem) error {
	bw := bufio.NewWriter(w)
	pf := func(format string, args ...any) { fmt.Fprintf(bw, format, args...) }

	pf("#---------- resource ----------\n")
	for _, r := range p.Resources {
		pf("resource %s\n", r.Name)
		for _, s := range r.Capacity.Segments() {
			if s.Key == 0 || s.From > model.Inf {
				continue
			}
			pf("\tinterval %d %s\tcapacity %s\n", s.From-1, itoa(s.To), itoa(s.Key))
		}
		pf("\n")
	}

	pf("#---------- state ----------\n")
	for _, st := range p.States {
		pf("state %s\n", st.Name)
		for _, f := range st.Facts {
			pf("\ttime %d\tvalue %d\n", f.Time, f.Value)
		}
		pf("\n")
	}

	pf("#---------- mode ----------\n")
	for _, m := range p.Modes[1:] {
		writeMode(pf, p, m)
	}

	pf("#---------- activity ----------\n")
	for _, a := range p.Activities[1:] {
		if a.ID == model.SinkID && !a.Start.Set() && !a.Completion.Set() && !a.Backward {
			continue
		}
		pf("activity %s\n", a.Name)
		if a.Backward {
			pf("\tbackward\n")
		}
		for _, d := range []struct {
			prefix string
			due    model.DueDate
		}{{"start ", a.Start}, {"", a.Completion}} {
			if !d.due.Set() {
				continue
			}
			pf("\tduedate %s%d\tweight %d", d.prefix, d.due.Time, d.due.Weight)
			if d.due.Quadratic {
				pf("\tquad")
			}
			pf("\n")
		}
		if a.AutoSelect != model.AutoNone {
			pf("\t%s\n", a.AutoSelect)
		}
		if !a.Dummy() {
			for _, m := range a.Modes {
				pf("\t%s\n", m.Name)
			}
		}
		pf("\n")
	}

	pf("#---------- temporal constraint ----------\n")
	for _, c := range p.Temporals {
		if linked(c) {
			continue
		}
		pred, succ := p.Activities[c.Pred], p.Activities[c.Succ]
		pf("temporal ")
		if c.Name != "" {
			pf("%s ", c.Name)
		}
		pf("%s", pred.Name)
		if c.PredMode != model.AnyMode {
			pf(" mode %s", pred.Modes[c.PredMode].Name)
		}
		pf(" %s", succ.Name)
		if c.SuccMode != model.AnyMode {
			pf(" mode %s", succ.Modes[c.SuccMode].Name)
		}
		pf(" type %s", c.Type)
		if c.Delay != 0 {
			pf(" delay %d", c.Delay)
		}
		pf("\n")
	}
	pf("\n")

	pf("#---------- nonrenewable resource constraint ----------\n")
	for _, c := range p.Nrrs {
		pf("nonrenewable")
		if c.Soft() {
			pf(" weight %d", c.Weight)
		}
		if c.Name != "" {
			pf(" %s", c.Name)
		}
		pf("\n")
		for _, t := range c.Terms {
			a := p.Activities[t.Activity]
			pf("\t%d (%s,%s)\n", t.Coefficient, a.Name, a.Modes[t.Mode].Name)
		}
		pf("\t<= %d\n", c.Rhs)
	}
	pf("\n")

	pf("#---------- mode dependence ----------\n")
	for _, a := range p.Activities {
		for _, d := range a.Dependences {
			pf("dependence %s %s\n", a.Name, p.Activities[d].Name)
		}
	}
	return bw.Flush()
}

func writeMode(pf func(string, ...any), p *model.Problem, m *model.Mode) {
	d := m.Duration
	pf("mode %s\tduration %d\n", m.Name, d)
	for _, s := range m.MaxBreak.Segments() {
		if s.From > d || s.Key == 0 {
			continue
		}
		pf("\tbreak interval %d %d max %s\n", s.From, s.To, itoa(s.Key))
	}
	for _, s := range m.MaxParallel.Segments() {
		if s.From > d || s.Key == 1 {
			continue
		}
		pf("\tparallel interval %d %d max %s\n", s.From, s.To, itoa(s.Key))
	}
	for _, req := range m.Requirements {
		pf("\t%s", p.Resources[req.Resource].Name)
		if req.Max {
			pf("\tmax")
		}
		pf("\n")
		for _, forBreak := range []bool{false, true} {
			for _, s := range req.Curve(forBreak).Segments() {
				if s.From > d || s.Key == 0 {
					continue
				}
				if forBreak {
					pf("\t\tinterval break %d %d\trequirement %s\n", s.From, s.To, itoa(s.Key))
				} else {
					pf("\t\tinterval %d %d\trequirement %s\n", s.From-1, s.To, itoa(s.Key))
				}
			}
		}
	}
	for _, tbl := range m.States {
		for from, to := range tbl.Next {
			if to >= 0 {
				pf("\t%s from %d\tto %d\n", p.States[tbl.State].Name, from, to)
			}
		}
	}
	pf("\n")
}

// Tardy is the lateness of an activity against its completion due date.
// Backward activities finishing early report a negative value.
type Tardy struct {
	Activity string
	Delay    int
}

// TardyActivities lists the activities of res that miss their completion
// due date.
func TardyActivities(p *model.Problem, res *search.Result) []Tardy {
	var out []Tardy
	sol := res.Solution
	for _, a := range p.Activities {
		ex := sol.Executions[a.ID]
		if len(ex) == 0 {
			continue
		}
		to, due := ex[len(ex)-1].To, a.Completion.Time
		if a.Backward {
			if due < model.Inf && due > to {
				out = append(out, Tardy{Activity: a.Name, Delay: to - due})
			}
		} else if due < to {
			out = append(out, Tardy{Activity: a.Name, Delay: to - due})
		}
	}
	return out
}

// modeName is the selected mode of a, or "---" when a has a single mode.
func modeName(a *model.Activity, lid int) string {
	if len(a.Modes) > 1 {
		return a.Modes[lid].Name
	}
	return "---"
}

// WriteResult prints the best schedule of res. The activity list section
// can be fed back as an initial solution.
func WriteResult(w io.Writer, p *model.Problem, res *search.Result) error {
	bw := bufio.NewWriter(w)
	pf := func(format string, args ...any) { fmt.Fprintf(bw, format, args...) }
	sol := res.Solution
	if !sol.Feasible() {
		pf("no feasible schedule found.\n")
		return bw.Flush()
	}

	pf("--- best solution ---\n")
	for _, a := range p.Activities {
		pf("%s,%s,", a.Name, modeName(a, sol.Modes[a.ID]))
		for _, ex := range sol.Executions[a.ID] {
			pf(" %d", ex.From)
			if ex.From < ex.To {
				pf("--%d", ex.To)
				if ex.Parallel > 1 {
					pf("[%d]", ex.Parallel)
				}
			}
		}
		pf("\n")
	}

	pf("--- tardy activity ---\n")
	for _, t := range TardyActivities(p, res) {
		pf("%s: %d\n", t.Activity, t.Delay)
	}

	pf("--- resource residuals ---\n")
	for _, r := range p.Resources {
		pf("%s: ", r.Name)
		for _, s := range sol.Residuals[r.ID] {
			pf("[%d,%s] %s ", s.From-1, itoa(s.To), itoa(s.Key))
		}
		pf("\n")
	}
	pf("\n")

	pf("--- best activity list ---\n")
	for _, id := range res.Order {
		a := p.Activities[id]
		pf("%s %s\n", a.Name, modeName(a, sol.Modes[id]))
	}
	pf("\n")

	pf("objective value = %d\n", sol.Objective)
	pf("cpu time = %.2f/%.2f(s)\n", sol.Elapsed.Seconds(), res.Elapsed.Seconds())
	pf("iteration = %d/%d\n", sol.Iteration, res.Iterations)
	return bw.Flush()
}
