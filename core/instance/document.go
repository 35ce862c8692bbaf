package instance

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/rcpsched/core/model"
)

// Value is an integer that reads and writes "inf" for model.Inf.
type Value int

func parseValue(s string) (Value, error) {
	if s == "inf" {
		return Value(model.Inf), nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrSyntax, s)
	}
	return Value(min(n, model.Inf)), nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	if int(v) >= model.Inf {
		return []byte(`"inf"`), nil
	}
	return strconv.AppendInt(nil, int64(v), 10), nil
}

func (v *Value) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		n, err := parseValue(s)
		*v = n
		return err
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*v = Value(min(n, model.Inf))
	return nil
}

func (v Value) MarshalYAML() (any, error) {
	if int(v) >= model.Inf {
		return "inf", nil
	}
	return int(v), nil
}

func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: line %d: integer expected", ErrSyntax, node.Line)
	}
	n, err := parseValue(node.Value)
	*v = n
	return err
}

// Document is the structured form of an instance.
type Document struct {
	Resources     []ResourceDef   `json:"resources,omitempty" yaml:"resources,omitempty"`
	States        []StateDef      `json:"states,omitempty" yaml:"states,omitempty"`
	Modes         []ModeDef       `json:"modes,omitempty" yaml:"modes,omitempty"`
	Activities    []ActivityDef   `json:"activities,omitempty" yaml:"activities,omitempty"`
	Temporals     []TemporalDef   `json:"temporals,omitempty" yaml:"temporals,omitempty"`
	Nonrenewables []NrrDef        `json:"nonrenewables,omitempty" yaml:"nonrenewables,omitempty"`
	Dependences   []DependenceDef `json:"dependences,omitempty" yaml:"dependences,omitempty"`
}

type ResourceDef struct {
	Name     string        `json:"name" yaml:"name"`
	Capacity []CapacityDef `json:"capacity,omitempty" yaml:"capacity,omitempty"`
}

// CapacityDef sets (or with Add, raises) the capacity on periods From+1..To.
type CapacityDef struct {
	From  Value `json:"from" yaml:"from"`
	To    Value `json:"to" yaml:"to"`
	Value Value `json:"value" yaml:"value"`
	Add   bool  `json:"add,omitempty" yaml:"add,omitempty"`
}

type StateDef struct {
	Name  string            `json:"name" yaml:"name"`
	Facts []model.StateFact `json:"facts,omitempty" yaml:"facts,omitempty"`
}

type ModeDef struct {
	Name         string           `json:"name,omitempty" yaml:"name,omitempty"`
	Duration     Value            `json:"duration" yaml:"duration"`
	Breaks       []LimitDef       `json:"breaks,omitempty" yaml:"breaks,omitempty"`
	Parallel     []LimitDef       `json:"parallel,omitempty" yaml:"parallel,omitempty"`
	Requirements []RequirementDef `json:"requirements,omitempty" yaml:"requirements,omitempty"`
	Transitions  []TransitionDef  `json:"transitions,omitempty" yaml:"transitions,omitempty"`
}

// LimitDef bounds the break length or parallel width on progress
// From..To. A missing Max means no bound.
type LimitDef struct {
	From Value  `json:"from" yaml:"from"`
	To   Value  `json:"to" yaml:"to"`
	Max  *Value `json:"max,omitempty" yaml:"max,omitempty"`
}

type RequirementDef struct {
	Resource  string     `json:"resource" yaml:"resource"`
	Max       bool       `json:"max,omitempty" yaml:"max,omitempty"`
	Intervals []UsageDef `json:"intervals" yaml:"intervals"`
}

// UsageDef is a requirement on work units From+1..To, or with Break on
// breaks taken after progress From..To.
type UsageDef struct {
	From  Value `json:"from" yaml:"from"`
	To    Value `json:"to" yaml:"to"`
	Value Value `json:"value" yaml:"value"`
	Break bool  `json:"break,omitempty" yaml:"break,omitempty"`
}

type TransitionDef struct {
	State string `json:"state" yaml:"state"`
	From  int    `json:"from" yaml:"from"`
	To    int    `json:"to" yaml:"to"`
}

type DueDateDef struct {
	Time      Value  `json:"time" yaml:"time"`
	Weight    *Value `json:"weight,omitempty" yaml:"weight,omitempty"`
	Quadratic bool   `json:"quadratic,omitempty" yaml:"quadratic,omitempty"`
}

type ActivityDef struct {
	Name       string      `json:"name" yaml:"name"`
	Backward   bool        `json:"backward,omitempty" yaml:"backward,omitempty"`
	Start      *DueDateDef `json:"start,omitempty" yaml:"start,omitempty"`
	Completion *DueDateDef `json:"completion,omitempty" yaml:"completion,omitempty"`
	// AutoSelect is "", "all", "slow" or "fast".
	AutoSelect string   `json:"autoselect,omitempty" yaml:"autoselect,omitempty"`
	Modes      []string `json:"modes,omitempty" yaml:"modes,omitempty"`
	// Mode declares a mode private to the activity.
	Mode *ModeDef `json:"mode,omitempty" yaml:"mode,omitempty"`
}

type TemporalDef struct {
	Name     string `json:"name,omitempty" yaml:"name,omitempty"`
	Pred     string `json:"pred" yaml:"pred"`
	PredMode string `json:"pred_mode,omitempty" yaml:"pred_mode,omitempty"`
	Succ     string `json:"succ" yaml:"succ"`
	SuccMode string `json:"succ_mode,omitempty" yaml:"succ_mode,omitempty"`
	Type     string `json:"type,omitempty" yaml:"type,omitempty"`
	Delay    Value  `json:"delay,omitempty" yaml:"delay,omitempty"`
}

// NrrDef is a non-renewable budget; without a weight it is hard.
type NrrDef struct {
	Name   string    `json:"name,omitempty" yaml:"name,omitempty"`
	Weight *Value    `json:"weight,omitempty" yaml:"weight,omitempty"`
	Terms  []TermDef `json:"terms" yaml:"terms"`
	Rhs    Value     `json:"rhs" yaml:"rhs"`
}

type TermDef struct {
	Coefficient int    `json:"coef" yaml:"coef"`
	Activity    string `json:"activity" yaml:"activity"`
	Mode        string `json:"mode" yaml:"mode"`
}

// DependenceDef makes mode changes of Activity move On instead.
type DependenceDef struct {
	Activity string `json:"activity" yaml:"activity"`
	On       string `json:"on" yaml:"on"`
}

// DecodeDocument reads a YAML or JSON document.
func DecodeDocument(r io.Reader, format Format) (*Document, error) {
	var doc Document
	switch format {
	case YAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil && err != io.EOF {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
	case JSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrFormat, format)
	}
	return &doc, nil
}

// EncodeDocument writes doc as YAML or JSON.
func EncodeDocument(w io.Writer, doc *Document, format Format) error {
	switch format {
	case YAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	case JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}
	return fmt.Errorf("%w: %q", ErrFormat, format)
}

// Build creates the problem described by doc.
func (doc *Document) Build() (*model.Problem, error) {
	p := model.New()
	for _, rs := range doc.Resources {
		r, err := p.AddResource(rs.Name)
		if err != nil {
			return nil, err
		}
		for _, c := range rs.Capacity {
			if c.Add {
				err = r.AddCapacity(int(c.Value), int(c.From)+1, int(c.To))
			} else {
				err = r.SetCapacity(int(c.Value), int(c.From)+1, int(c.To))
			}
			if err != nil {
				return nil, fmt.Errorf("resource %s: %w", rs.Name, err)
			}
		}
	}
	for _, ss := range doc.States {
		st, err := p.AddState(ss.Name)
		if err != nil {
			return nil, err
		}
		for _, f := range ss.Facts {
			if err := st.SetValue(f.Value, f.Time); err != nil {
				return nil, err
			}
		}
	}
	for i := range doc.Modes {
		if _, err := buildMode(p, &doc.Modes[i], doc.Modes[i].Name); err != nil {
			return nil, err
		}
	}
	for i := range doc.Activities {
		if err := buildActivity(p, &doc.Activities[i]); err != nil {
			return nil, err
		}
	}
	for _, ts := range doc.Temporals {
		if err := buildTemporal(p, ts); err != nil {
			return nil, err
		}
	}
	for _, ns := range doc.Nonrenewables {
		weight := model.Inf
		if ns.Weight != nil {
			weight = int(*ns.Weight)
		}
		c := p.AddNrr(ns.Name, weight)
		c.Rhs = int(ns.Rhs)
		for _, t := range ns.Terms {
			a, ok := p.Activity(t.Activity)
			if !ok {
				return nil, fmt.Errorf("activity %s: %w", t.Activity, model.ErrUndefined)
			}
			m, ok := p.Mode(t.Mode)
			if !ok {
				return nil, fmt.Errorf("mode %s: %w", t.Mode, model.ErrUndefined)
			}
			if err := p.AddTerm(c, t.Coefficient, a, m); err != nil {
				return nil, err
			}
		}
	}
	for _, ds := range doc.Dependences {
		a, ok := p.Activity(ds.Activity)
		if !ok {
			return nil, fmt.Errorf("activity %s: %w", ds.Activity, model.ErrUndefined)
		}
		b, ok := p.Activity(ds.On)
		if !ok {
			return nil, fmt.Errorf("activity %s: %w", ds.On, model.ErrUndefined)
		}
		a.Dependences = append(a.Dependences, b.ID)
	}
	return p, nil
}

func buildMode(p *model.Problem, ms *ModeDef, name string) (*model.Mode, error) {
	m, err := p.AddMode(name, int(ms.Duration))
	if err != nil {
		return nil, err
	}
	limits := func(defs []LimitDef, set func(value, from, to int) error) error {
		for _, l := range defs {
			value := model.Inf
			if l.Max != nil {
				value = int(*l.Max)
			}
			if err := set(value, int(l.From), int(l.To)); err != nil {
				return err
			}
		}
		return nil
	}
	if err := limits(ms.Breaks, m.SetMaxBreak); err != nil {
		return nil, err
	}
	if err := limits(ms.Parallel, m.SetMaxParallel); err != nil {
		return nil, err
	}
	for _, rs := range ms.Requirements {
		r, ok := p.Resource(rs.Resource)
		if !ok {
			return nil, fmt.Errorf("mode %s: resource %s: %w", name, rs.Resource, model.ErrUndefined)
		}
		for _, u := range rs.Intervals {
			from := int(u.From)
			if !u.Break {
				from++
			}
			if err := m.SetRequirement(r.ID, int(u.Value), from, int(u.To), u.Break, rs.Max); err != nil {
				return nil, err
			}
		}
	}
	for _, ts := range ms.Transitions {
		st, ok := p.State(ts.State)
		if !ok {
			return nil, fmt.Errorf("mode %s: state %s: %w", name, ts.State, model.ErrUndefined)
		}
		if err := m.SetStateTransition(st.ID, ts.From, ts.To); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func dueDate(d *model.DueDate, s *DueDateDef) {
	if s == nil {
		return
	}
	d.Time = int(s.Time)
	if s.Weight != nil {
		d.Weight = int(*s.Weight)
	}
	d.Quadratic = s.Quadratic
}

func buildActivity(p *model.Problem, as *ActivityDef) error {
	a, ok := p.Activity(as.Name)
	if ok && a.ID != model.SinkID {
		return fmt.Errorf("activity %s: %w", as.Name, model.ErrDuplicate)
	}
	if !ok {
		var err error
		if a, err = p.AddActivity(as.Name); err != nil {
			return err
		}
	}
	if as.Backward {
		if err := p.SetBackward(a, true); err != nil {
			return err
		}
	}
	dueDate(&a.Start, as.Start)
	dueDate(&a.Completion, as.Completion)

	switch as.AutoSelect {
	case "":
	case "all":
		a.AutoSelect = model.AutoAll
	case "slow":
		a.AutoSelect = model.AutoSlow
	case "fast":
		a.AutoSelect = model.AutoFirst
	default:
		return fmt.Errorf("%w: activity %s autoselect %q", model.ErrInvalidArgument, as.Name, as.AutoSelect)
	}

	if as.Mode != nil {
		name := as.Mode.Name
		if name == "" {
			name = "mode_" + a.Name
		}
		m, err := buildMode(p, as.Mode, name)
		if err != nil {
			return err
		}
		_, err = p.AttachMode(a, m)
		return err
	}
	for _, name := range as.Modes {
		m, ok := p.Mode(name)
		if !ok {
			return fmt.Errorf("activity %s: mode %s: %w", as.Name, name, model.ErrUndefined)
		}
		if _, err := p.AttachMode(a, m); err != nil {
			return err
		}
	}
	return nil
}

func buildTemporal(p *model.Problem, ts TemporalDef) error {
	side := func(an, mn string) (*model.Activity, *model.Mode, error) {
		a, ok := p.Activity(an)
		if !ok {
			return nil, nil, fmt.Errorf("temporal: activity %s: %w", an, model.ErrUndefined)
		}
		if mn == "" {
			return a, nil, nil
		}
		m, ok := p.Mode(mn)
		if !ok {
			return nil, nil, fmt.Errorf("temporal: mode %s: %w", mn, model.ErrUndefined)
		}
		return a, m, nil
	}
	pred, pm, err := side(ts.Pred, ts.PredMode)
	if err != nil {
		return err
	}
	succ, sm, err := side(ts.Succ, ts.SuccMode)
	if err != nil {
		return err
	}
	typ := model.CS
	if ts.Type != "" {
		if typ, err = model.ParseTempType(ts.Type); err != nil {
			return err
		}
	}
	_, err = p.AddTemporal(ts.Name, pred, succ, typ, int(ts.Delay), pm, sm)
	return err
}

// FromProblem converts p back to a document. Arcs added by Prepare are
// left out.
func FromProblem(p *model.Problem) *Document {
	doc := &Document{}
	for _, r := range p.Resources {
		rs := ResourceDef{Name: r.Name}
		for _, s := range r.Capacity.Segments() {
			if s.Key == 0 || s.From > model.Inf {
				continue
			}
			rs.Capacity = append(rs.Capacity, CapacityDef{From: Value(s.From - 1), To: Value(s.To), Value: Value(s.Key)})
		}
		doc.Resources = append(doc.Resources, rs)
	}
	for _, st := range p.States {
		doc.States = append(doc.States, StateDef{Name: st.Name, Facts: st.Facts})
	}
	for _, m := range p.Modes[1:] {
		doc.Modes = append(doc.Modes, modeDef(p, m))
	}
	for _, a := range p.Activities[1:] {
		if a.ID == model.SinkID && !a.Start.Set() && !a.Completion.Set() && !a.Backward {
			continue
		}
		as := ActivityDef{Name: a.Name, Backward: a.Backward}
		due := func(d model.DueDate) *DueDateDef {
			if !d.Set() {
				return nil
			}
			w := Value(d.Weight)
			return &DueDateDef{Time: Value(d.Time), Weight: &w, Quadratic: d.Quadratic}
		}
		as.Start, as.Completion = due(a.Start), due(a.Completion)
		switch a.AutoSelect {
		case model.AutoAll:
			as.AutoSelect = "all"
		case model.AutoSlow:
			as.AutoSelect = "slow"
		case model.AutoFirst:
			as.AutoSelect = "fast"
		}
		if !a.Dummy() {
			for _, m := range a.Modes {
				as.Modes = append(as.Modes, m.Name)
			}
		}
		doc.Activities = append(doc.Activities, as)
	}
	for _, c := range p.Temporals {
		if linked(c) {
			continue
		}
		pred, succ := p.Activities[c.Pred], p.Activities[c.Succ]
		ts := TemporalDef{Name: c.Name, Pred: pred.Name, Succ: succ.Name, Type: c.Type.String(), Delay: Value(c.Delay)}
		if c.PredMode != model.AnyMode {
			ts.PredMode = pred.Modes[c.PredMode].Name
		}
		if c.SuccMode != model.AnyMode {
			ts.SuccMode = succ.Modes[c.SuccMode].Name
		}
		doc.Temporals = append(doc.Temporals, ts)
	}
	for _, c := range p.Nrrs {
		ns := NrrDef{Name: c.Name, Rhs: Value(c.Rhs)}
		if c.Soft() {
			w := Value(c.Weight)
			ns.Weight = &w
		}
		for _, t := range c.Terms {
			a := p.Activities[t.Activity]
			ns.Terms = append(ns.Terms, TermDef{Coefficient: t.Coefficient, Activity: a.Name, Mode: a.Modes[t.Mode].Name})
		}
		doc.Nonrenewables = append(doc.Nonrenewables, ns)
	}
	for _, a := range p.Activities {
		for _, d := range a.Dependences {
			doc.Dependences = append(doc.Dependences, DependenceDef{Activity: a.Name, On: p.Activities[d].Name})
		}
	}
	return doc
}

func modeDef(p *model.Problem, m *model.Mode) ModeDef {
	d := m.Duration
	ms := ModeDef{Name: m.Name, Duration: Value(d)}
	for _, s := range m.MaxBreak.Segments() {
		if s.From <= d && s.Key != 0 {
			v := Value(s.Key)
			ms.Breaks = append(ms.Breaks, LimitDef{From: Value(s.From), To: Value(s.To), Max: &v})
		}
	}
	for _, s := range m.MaxParallel.Segments() {
		if s.From <= d && s.Key != 1 {
			v := Value(s.Key)
			ms.Parallel = append(ms.Parallel, LimitDef{From: Value(s.From), To: Value(s.To), Max: &v})
		}
	}
	for _, req := range m.Requirements {
		rs := RequirementDef{Resource: p.Resources[req.Resource].Name, Max: req.Max}
		for _, forBreak := range []bool{false, true} {
			for _, s := range req.Curve(forBreak).Segments() {
				if s.From > d || s.Key == 0 {
					continue
				}
				from := s.From
				if !forBreak {
					from--
				}
				rs.Intervals = append(rs.Intervals, UsageDef{From: Value(from), To: Value(s.To), Value: Value(s.Key), Break: forBreak})
			}
		}
		ms.Requirements = append(ms.Requirements, rs)
	}
	for _, tbl := range m.States {
		for from, to := range tbl.Next {
			if to >= 0 {
				ms.Transitions = append(ms.Transitions, TransitionDef{State: p.States[tbl.State].Name, From: from, To: to})
			}
		}
	}
	return ms
}
