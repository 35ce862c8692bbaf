package instance

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/rcpsched/core/model"
	"github.com/kilianp07/rcpsched/core/search"
	"github.com/kilianp07/rcpsched/infra/logger"
)

const sample = `# two machines
resource worker
	interval 0 inf capacity 2
resource machine
	interval 0 10 capacity 1
	interval 5 10 capacity add 1
state door time 0 value 0 time 3 value 1

mode m1 duration 3
	worker interval 0 3 requirement 1
	machine max interval 0 2 requirement 1
mode m2 duration 2
	parallel interval 1 2 max 2
	break interval 0 2 max inf
	worker interval 0 2 requirement 2 interval break 0 1 requirement 1
	door from 0 to 1

activity a duedate 10 weight 2 m1 m2
activity b backward duedate start 4 weight 1 quad mode duration 1
activity c autoselect fast m1

temporal link a mode m1 b type SS delay -1
nonrenewable weight 3 budget 2 (a,m1) 1 (c,m1) <= 2
dependence c a
end
activity ignored
`

func parseSample(t *testing.T) *model.Problem {
	t.Helper()
	p, err := ParseText(strings.NewReader(sample))
	require.NoError(t, err)
	return p
}

func TestTokenize(t *testing.T) {
	toks, err := tokenize(strings.NewReader("resource r1 # note\n-3 +4 2x inf (a,b)<=\n"))
	require.NoError(t, err)

	type tk struct {
		Kind tokenKind
		Text string
		Line int
	}
	var got []tk
	for _, x := range toks {
		got = append(got, tk{x.kind, x.text, x.line})
	}
	want := []tk{
		{tokString, "resource", 1}, {tokString, "r1", 1},
		{tokInt, "-3", 2}, {tokInt, "+4", 2}, {tokString, "2x", 2}, {tokInt, "inf", 2},
		{tokChar, "(", 2}, {tokString, "a", 2}, {tokChar, ",", 2}, {tokString, "b", 2},
		{tokChar, ")", 2}, {tokChar, "<", 2}, {tokChar, "=", 2},
		{tokEOF, "EOF", 3},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("tokens mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, model.Inf, toks[5].integer())
	assert.Equal(t, 4, toks[3].integer())
}

func TestParseText(t *testing.T) {
	p := parseSample(t)

	worker, ok := p.Resource("worker")
	require.True(t, ok)
	machine, ok := p.Resource("machine")
	require.True(t, ok)
	assert.Equal(t, 2, worker.Capacity.Value(1))
	assert.Equal(t, 2, worker.Capacity.Value(100000))
	assert.Equal(t, 1, machine.Capacity.Value(5))
	assert.Equal(t, 2, machine.Capacity.Value(6))
	assert.Equal(t, 0, machine.Capacity.Value(11))

	door, ok := p.State("door")
	require.True(t, ok)
	assert.Equal(t, []model.StateFact{{Time: 0, Value: 0}, {Time: 3, Value: 1}}, door.Facts)

	m1, _ := p.Mode("m1")
	m2, _ := p.Mode("m2")
	req := m1.Requirement(machine.ID)
	require.NotNil(t, req)
	assert.True(t, req.Max)
	assert.Equal(t, 1, req.Work.Value(2))
	assert.Equal(t, 0, req.Work.Value(3))
	assert.Equal(t, 2, m2.MaxParallel.Value(1))
	assert.Equal(t, model.Inf, m2.MaxBreak.Value(0))
	wreq := m2.Requirement(worker.ID)
	require.NotNil(t, wreq)
	assert.Equal(t, 2, wreq.Work.Value(1))
	assert.Equal(t, 1, wreq.Break.Value(0))
	assert.Equal(t, 0, wreq.Break.Value(2))
	assert.Equal(t, 1, m2.StateTable(door.ID).Transition(0))

	a, _ := p.Activity("a")
	b, _ := p.Activity("b")
	c, _ := p.Activity("c")
	assert.Equal(t, model.DueDate{Time: 10, Weight: 2}, a.Completion)
	assert.Equal(t, []*model.Mode{m1, m2}, a.Modes)
	assert.True(t, b.Backward)
	assert.Equal(t, model.DueDate{Time: 4, Weight: 1, Quadratic: true}, b.Start)
	require.Len(t, b.Modes, 1)
	assert.Equal(t, "mode_b", b.Modes[0].Name)
	assert.Equal(t, model.AutoFirst, c.AutoSelect)
	assert.Equal(t, []int{a.ID}, c.Dependences)

	require.Len(t, p.Temporals, 1)
	assert.Equal(t, model.TempConstraint{
		Name: "link", Pred: a.ID, Succ: b.ID, Type: model.SS, Delay: -1,
		PredMode: 0, SuccMode: model.AnyMode,
	}, *p.Temporals[0])

	require.Len(t, p.Nrrs, 1)
	nrr := p.Nrrs[0]
	assert.Equal(t, "budget", nrr.Name)
	assert.Equal(t, 3, nrr.Weight)
	assert.Equal(t, 2, nrr.Rhs)
	assert.Equal(t, []model.Term{{Coefficient: 2, Activity: a.ID}, {Coefficient: 1, Activity: c.ID}}, nrr.Terms)

	_, ok = p.Activity("ignored")
	assert.False(t, ok)
}

func TestParseTextErrors(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		line     int
		sentinel error
	}{
		{"unknown statement", "resource r\nfoo", 2, ErrSyntax},
		{"missing capacity", "resource r interval 0 5 value 3", 1, ErrSyntax},
		{"undefined activity", "mode m duration 1\nactivity a m\n\ntemporal a z", 4, model.ErrUndefined},
		{"duplicate activity", "activity a mode duration 1\nactivity a mode duration 1", 2, model.ErrDuplicate},
		{"hard autoselect", "mode m duration 1\nactivity a autoselect m\nnonrenewable 1 (a,m) <= 1", 3, model.ErrHardAutoSelect},
		{"missing rhs", "mode m duration 1\nactivity a m\nnonrenewable 1 (a,m) <=", 3, ErrSyntax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseText(strings.NewReader(tt.in))
			require.Error(t, err)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.line, pe.Line)
			assert.ErrorIs(t, err, tt.sentinel)
		})
	}
}

func TestTextRoundTrip(t *testing.T) {
	p := parseSample(t)
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, p))

	q, err := ParseText(&buf)
	require.NoError(t, err, buf.String())
	if diff := cmp.Diff(FromProblem(p), FromProblem(q)); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteTextSkipsPreparedArcs(t *testing.T) {
	p := parseSample(t)
	require.NoError(t, p.Prepare(logger.NopLogger{}))
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, p))
	assert.Equal(t, 1, strings.Count(buf.String(), "\ntemporal "))
	assert.NotContains(t, buf.String(), "activity source")
}

func TestDocumentRoundTrip(t *testing.T) {
	for _, format := range []Format{YAML, JSON} {
		t.Run(string(format), func(t *testing.T) {
			p := parseSample(t)
			var buf bytes.Buffer
			require.NoError(t, Write(&buf, p, format))

			q, err := Load(&buf, format)
			require.NoError(t, err)
			if diff := cmp.Diff(FromProblem(p), FromProblem(q)); diff != "" {
				t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeDocumentRejectsUnknownFields(t *testing.T) {
	_, err := DecodeDocument(strings.NewReader(`{"resources": [], "colour": 1}`), JSON)
	assert.ErrorIs(t, err, ErrSyntax)
	_, err = DecodeDocument(strings.NewReader("colour: 1\n"), YAML)
	assert.ErrorIs(t, err, ErrSyntax)
}

func TestDocumentBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
		err  error
	}{
		{"unknown mode", Document{Activities: []ActivityDef{{Name: "a", Modes: []string{"x"}}}}, model.ErrUndefined},
		{"bad autoselect", Document{Activities: []ActivityDef{{Name: "a", AutoSelect: "often"}}}, model.ErrInvalidArgument},
		{"unknown resource", Document{Modes: []ModeDef{{Name: "m", Duration: 1, Requirements: []RequirementDef{{Resource: "r"}}}}}, model.ErrUndefined},
		{"bad temporal type", Document{
			Activities: []ActivityDef{{Name: "a"}, {Name: "b"}},
			Temporals:  []TemporalDef{{Pred: "a", Succ: "b", Type: "XX"}},
		}, model.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.doc.Build()
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestValueEncoding(t *testing.T) {
	b, err := json.Marshal([]Value{3, Value(model.Inf)})
	require.NoError(t, err)
	assert.JSONEq(t, `[3, "inf"]`, string(b))

	var vs []Value
	require.NoError(t, json.Unmarshal([]byte(`[-2, "inf", "7"]`), &vs))
	assert.Equal(t, []Value{-2, Value(model.Inf), 7}, vs)

	var v Value
	assert.ErrorIs(t, json.Unmarshal([]byte(`"soon"`), &v), ErrSyntax)
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, YAML, FormatOf("a/b.yml"))
	assert.Equal(t, YAML, FormatOf("b.YAML"))
	assert.Equal(t, JSON, FormatOf("b.json"))
	assert.Equal(t, Text, FormatOf("b.txt"))
	assert.Equal(t, Text, FormatOf("b"))

	f, err := ParseFormat("Json")
	require.NoError(t, err)
	assert.Equal(t, JSON, f)
	_, err = ParseFormat("xml")
	assert.ErrorIs(t, err, ErrFormat)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inst.txt")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o600))
	p, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, p.Activities, 5)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
	_, err = LoadFile(bad)
	assert.ErrorIs(t, err, ErrSyntax)
	assert.Contains(t, err.Error(), bad)
}

func TestWriteResult(t *testing.T) {
	p, err := ParseText(strings.NewReader(`
mode ma duration 3
mode mb duration 2
activity a ma
activity b mb
temporal a b
`))
	require.NoError(t, err)

	cfg := search.DefaultConfig()
	cfg.TimeLimit = time.Minute
	cfg.IterationLimit = 10
	e, err := search.New(p, cfg, logger.NopLogger{})
	require.NoError(t, err)
	res, err := e.Run(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteResult(&buf, p, res))
	out := buf.String()
	assert.Contains(t, out, "--- best solution ---\n")
	assert.Contains(t, out, "\na,---, 0 0--3 3\n")
	assert.Contains(t, out, "\nb,---, 3 3--5 5\n")
	assert.Contains(t, out, "--- tardy activity ---\n--- resource residuals ---\n")
	assert.Contains(t, out, "--- best activity list ---\nsource ---\na ---\nb ---\nsink ---\n")
	assert.Contains(t, out, "objective value = 0\n")
	assert.Contains(t, out, "iteration = 0/0\n")

	entries, err := search.ParseInitial(strings.NewReader(out[strings.Index(out, "source ---"):strings.Index(out, "objective")]), p)
	require.NoError(t, err)
	assert.Len(t, entries, 4)
}

func TestTardyActivities(t *testing.T) {
	p, err := ParseText(strings.NewReader(`
mode ma duration 3
activity a duedate 1 weight 1 ma
`))
	require.NoError(t, err)
	e, err := search.New(p, search.DefaultConfig(), logger.NopLogger{})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := e.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, []Tardy{{Activity: "a", Delay: 2}}, TardyActivities(p, res))
}
