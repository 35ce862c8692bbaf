package instance

import (
	"fmt"
	"io"

	"github.com/kilianp07/rcpsched/core/model"
)

type parser struct {
	toks []token
	pos  int
	cur  token
	p    *model.Problem
}

// ParseText reads an instance in the text format. Reading stops at "end"
// or at the end of the input.
func ParseText(r io.Reader) (*model.Problem, error) {
	toks, err := tokenize(r)
	if err != nil {
		return nil, err
	}
	ps := &parser{toks: toks, p: model.New()}
	if err := ps.parse(); err != nil {
		return nil, err
	}
	return ps.p, nil
}

// next advances to the following token; past the end it keeps returning
// the EOF token.
func (ps *parser) next() token {
	ps.cur = ps.toks[min(ps.pos, len(ps.toks)-1)]
	ps.pos++
	return ps.cur
}

// push steps back one token.
func (ps *parser) push() {
	ps.pos--
	ps.cur = token{}
	if ps.pos > 0 {
		ps.cur = ps.toks[min(ps.pos-1, len(ps.toks)-1)]
	}
}

func (ps *parser) fail(err error) error {
	return &ParseError{Line: ps.cur.line, Near: ps.cur.text, Err: err}
}

func (ps *parser) failf(format string, args ...any) error {
	return ps.fail(fmt.Errorf("%w: "+format, append([]any{ErrSyntax}, args...)...))
}

func (ps *parser) expect(word string) error {
	if t := ps.next(); t.kind != tokString || t.text != word {
		return ps.failf("%q expected", word)
	}
	return nil
}

func (ps *parser) expectChar(c string) error {
	if t := ps.next(); t.kind != tokChar || t.text != c {
		return ps.failf("%q expected", c)
	}
	return nil
}

func (ps *parser) integer() (int, error) {
	t := ps.next()
	if t.kind != tokInt {
		return 0, ps.failf("integer expected")
	}
	return t.integer(), nil
}

// optional consumes the next token when it is word.
func (ps *parser) optional(word string) bool {
	if t := ps.next(); t.kind == tokString && t.text == word {
		return true
	}
	ps.push()
	return false
}

func (ps *parser) activity() (*model.Activity, error) {
	a, ok := ps.p.Activity(ps.next().text)
	if !ok {
		return nil, ps.fail(fmt.Errorf("activity %w", model.ErrUndefined))
	}
	return a, nil
}

func (ps *parser) mode() (*model.Mode, error) {
	m, ok := ps.p.Mode(ps.next().text)
	if !ok {
		return nil, ps.fail(fmt.Errorf("mode %w", model.ErrUndefined))
	}
	return m, nil
}

func (ps *parser) parse() error {
	for {
		t := ps.next()
		if t.kind == tokEOF {
			return nil
		}
		var err error
		switch t.text {
		case "resource":
			err = ps.resource()
		case "state":
			err = ps.state()
		case "mode":
			_, err = ps.modeBody(ps.next().text)
		case "activity":
			err = ps.activityStmt()
		case "temporal":
			err = ps.temporal()
		case "nonrenewable":
			err = ps.nonrenewable()
		case "dependence":
			err = ps.dependence()
		case "end":
			return nil
		default:
			err = ps.failf("unknown statement")
		}
		if err != nil {
			return err
		}
	}
}

func (ps *parser) resource() error {
	r, err := ps.p.AddResource(ps.next().text)
	if err != nil {
		return ps.fail(err)
	}
	for ps.optional("interval") {
		from, err := ps.integer()
		if err != nil {
			return err
		}
		to, err := ps.integer()
		if err != nil {
			return err
		}
		if err := ps.expect("capacity"); err != nil {
			return err
		}
		add := ps.optional("add")
		value, err := ps.integer()
		if err != nil {
			return err
		}
		if add {
			err = r.AddCapacity(value, from+1, to)
		} else {
			err = r.SetCapacity(value, from+1, to)
		}
		if err != nil {
			return ps.fail(err)
		}
	}
	return nil
}

func (ps *parser) state() error {
	st, err := ps.p.AddState(ps.next().text)
	if err != nil {
		return ps.fail(err)
	}
	for ps.optional("time") {
		t, err := ps.integer()
		if err != nil {
			return err
		}
		if err := ps.expect("value"); err != nil {
			return err
		}
		v, err := ps.integer()
		if err != nil {
			return err
		}
		if err := st.SetValue(v, t); err != nil {
			return ps.fail(err)
		}
	}
	return nil
}

// modeBody reads "duration d" and the clauses of a mode named name.
func (ps *parser) modeBody(name string) (*model.Mode, error) {
	if err := ps.expect("duration"); err != nil {
		return nil, err
	}
	d, err := ps.integer()
	if err != nil {
		return nil, err
	}
	m, err := ps.p.AddMode(name, d)
	if err != nil {
		return nil, ps.fail(err)
	}
	for {
		t := ps.next()
		if t.kind == tokString && (t.text == "break" || t.text == "parallel") {
			if err := ps.limit(m, t.text == "parallel"); err != nil {
				return nil, err
			}
			continue
		}
		if r, ok := ps.p.Resource(t.text); ok && t.kind == tokString {
			if err := ps.requirement(m, r); err != nil {
				return nil, err
			}
			continue
		}
		if st, ok := ps.p.State(t.text); ok && t.kind == tokString {
			if err := ps.transition(m, st); err != nil {
				return nil, err
			}
			continue
		}
		ps.push()
		return m, nil
	}
}

func (ps *parser) limit(m *model.Mode, parallel bool) error {
	if err := ps.expect("interval"); err != nil {
		return err
	}
	from, err := ps.integer()
	if err != nil {
		return err
	}
	to, err := ps.integer()
	if err != nil {
		return err
	}
	value := model.Inf
	if ps.optional("max") {
		if value, err = ps.integer(); err != nil {
			return err
		}
	}
	if parallel {
		err = m.SetMaxParallel(value, from, to)
	} else {
		err = m.SetMaxBreak(value, from, to)
	}
	if err != nil {
		return ps.fail(err)
	}
	return nil
}

func (ps *parser) requirement(m *model.Mode, r *model.Resource) error {
	maximum := ps.optional("max")
	for ps.optional("interval") {
		forBreak := ps.optional("break")
		from, err := ps.integer()
		if err != nil {
			return err
		}
		if !forBreak {
			from++
		}
		to, err := ps.integer()
		if err != nil {
			return err
		}
		if err := ps.expect("requirement"); err != nil {
			return err
		}
		v, err := ps.integer()
		if err != nil {
			return err
		}
		if err := m.SetRequirement(r.ID, v, from, to, forBreak, maximum); err != nil {
			return ps.fail(err)
		}
	}
	return nil
}

func (ps *parser) transition(m *model.Mode, st *model.State) error {
	if err := ps.expect("from"); err != nil {
		return err
	}
	from, err := ps.integer()
	if err != nil {
		return err
	}
	if err := ps.expect("to"); err != nil {
		return err
	}
	to, err := ps.integer()
	if err != nil {
		return err
	}
	if err := m.SetStateTransition(st.ID, from, to); err != nil {
		return ps.fail(err)
	}
	return nil
}

func (ps *parser) activityStmt() error {
	name := ps.next().text
	a, ok := ps.p.Activity(name)
	if ok && a.ID != model.SinkID {
		return ps.fail(fmt.Errorf("activity %w", model.ErrDuplicate))
	}
	if !ok {
		var err error
		if a, err = ps.p.AddActivity(name); err != nil {
			return ps.fail(err)
		}
	}
	if ps.optional("backward") {
		if err := ps.p.SetBackward(a, true); err != nil {
			return ps.fail(err)
		}
	}
	for ps.optional("duedate") {
		due := &a.Completion
		if ps.optional("start") {
			due = &a.Start
		}
		t, err := ps.integer()
		if err != nil {
			return err
		}
		due.Time = t
		if ps.optional("weight") {
			if due.Weight, err = ps.integer(); err != nil {
				return err
			}
		}
		if ps.optional("quad") {
			due.Quadratic = true
		}
	}

	if ps.optional("mode") {
		m, err := ps.modeBody("mode_" + a.Name)
		if err != nil {
			return err
		}
		if _, err := ps.p.AttachMode(a, m); err != nil {
			return ps.fail(err)
		}
		return nil
	}
	if ps.optional("autoselect") {
		switch {
		case ps.optional("slow"):
			a.AutoSelect = model.AutoSlow
		case ps.optional("fast"):
			a.AutoSelect = model.AutoFirst
		default:
			a.AutoSelect = model.AutoAll
		}
	}
	for {
		t := ps.next()
		m, ok := ps.p.Mode(t.text)
		if !ok || t.kind != tokString {
			ps.push()
			return nil
		}
		if _, err := ps.p.AttachMode(a, m); err != nil {
			return ps.fail(err)
		}
	}
}

func (ps *parser) temporal() error {
	name := ""
	if _, ok := ps.p.Activity(ps.next().text); !ok {
		name = ps.cur.text
	} else {
		ps.push()
	}
	side := func() (*model.Activity, *model.Mode, error) {
		a, err := ps.activity()
		if err != nil {
			return nil, nil, err
		}
		if !ps.optional("mode") {
			return a, nil, nil
		}
		m, err := ps.mode()
		return a, m, err
	}
	pred, pm, err := side()
	if err != nil {
		return err
	}
	succ, sm, err := side()
	if err != nil {
		return err
	}
	typ := model.CS
	if ps.optional("type") {
		t := ps.next()
		if t.kind != tokString {
			return ps.failf("temporal type expected")
		}
		if typ, err = model.ParseTempType(t.text); err != nil {
			return ps.fail(err)
		}
	}
	delay := 0
	if ps.optional("delay") {
		if delay, err = ps.integer(); err != nil {
			return err
		}
	}
	if _, err := ps.p.AddTemporal(name, pred, succ, typ, delay, pm, sm); err != nil {
		return ps.fail(err)
	}
	return nil
}

func (ps *parser) nonrenewable() error {
	weight := model.Inf
	if ps.optional("weight") {
		var err error
		if weight, err = ps.integer(); err != nil {
			return err
		}
	}
	name := ""
	if t := ps.next(); t.kind == tokInt {
		ps.push()
	} else {
		name = t.text
	}
	c := ps.p.AddNrr(name, weight)
	for {
		if t := ps.next(); t.kind == tokChar && t.text == "<" {
			if err := ps.expectChar("="); err != nil {
				return err
			}
			rhs, err := ps.integer()
			if err != nil {
				return err
			}
			c.Rhs = rhs
			return nil
		}
		ps.push()
		coef, err := ps.integer()
		if err != nil {
			return err
		}
		if err := ps.expectChar("("); err != nil {
			return err
		}
		a, err := ps.activity()
		if err != nil {
			return err
		}
		if err := ps.expectChar(","); err != nil {
			return err
		}
		m, err := ps.mode()
		if err != nil {
			return err
		}
		if err := ps.expectChar(")"); err != nil {
			return err
		}
		if err := ps.p.AddTerm(c, coef, a, m); err != nil {
			return ps.fail(err)
		}
	}
}

func (ps *parser) dependence() error {
	a, err := ps.activity()
	if err != nil {
		return err
	}
	b, err := ps.activity()
	if err != nil {
		return err
	}
	a.Dependences = append(a.Dependences, b.ID)
	return nil
}
