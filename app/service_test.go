package app

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/rcpsched/config"
	"github.com/kilianp07/rcpsched/core/events"
	"github.com/kilianp07/rcpsched/core/instance"
	"github.com/kilianp07/rcpsched/core/runlog"
	"github.com/kilianp07/rcpsched/pkg/export"
)

const chain = `
resource worker interval 0 inf capacity 1
mode ma duration 3 worker interval 0 3 requirement 1
mode mb duration 2 worker interval 0 2 requirement 1
activity a ma
activity b mb
temporal a b
`

type spySink struct {
	mu       sync.Mutex
	progress int
	done     []events.Done
	closed   bool
}

func (s *spySink) RecordProgress(events.Progress) error {
	s.mu.Lock()
	s.progress++
	s.mu.Unlock()
	return nil
}

func (s *spySink) RecordResult(ev events.Done) error {
	s.mu.Lock()
	s.done = append(s.done, ev)
	s.mu.Unlock()
	return nil
}

func (s *spySink) Close() error {
	s.closed = true
	return nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Solver.IterationLimit = 20
	cfg.Solver.TimeLimitSeconds = 30
	dir := t.TempDir()
	cfg.Logging.Backend = "jsonl"
	cfg.Logging.Path = filepath.Join(dir, "runs.jsonl")
	cfg.Output.JSON = filepath.Join(dir, "best.json")
	cfg.Output.CSV = filepath.Join(dir, "best.csv")
	cfg.Output.Chart = filepath.Join(dir, "best.html")
	return cfg
}

func TestSolveWritesEverything(t *testing.T) {
	cfg := testConfig(t)
	sink := &spySink{}
	at := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	svc, err := New(cfg, WithMetricsSink(sink), WithClock(func() time.Time { return at }))
	require.NoError(t, err)

	p, err := instance.Load(strings.NewReader(chain), instance.Text)
	require.NoError(t, err)
	res, err := svc.Solve(context.Background(), Request{Problem: p, Instance: "chain"})
	require.NoError(t, err)
	require.True(t, res.Solution.Feasible())
	assert.Equal(t, 0, res.Solution.Objective)

	require.NoError(t, svc.Close())
	assert.True(t, sink.closed)
	require.Len(t, sink.done, 1)
	assert.Equal(t, res.RunID, sink.done[0].RunID)

	store, err := runlog.NewJSONLStore(cfg.Logging.Path)
	require.NoError(t, err)
	recs, err := store.Query(context.Background(), runlog.Query{Instance: "chain"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, res.RunID, recs[0].ID)
	assert.True(t, recs[0].Feasible)
	assert.True(t, recs[0].Time.Equal(at))

	data, err := os.ReadFile(cfg.Output.JSON)
	require.NoError(t, err)
	var entries []export.Entry
	require.NoError(t, json.Unmarshal(data, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "b", entries[1].Activity)
	assert.Equal(t, 3, entries[1].Start)

	csvData, err := os.ReadFile(cfg.Output.CSV)
	require.NoError(t, err)
	assert.Contains(t, string(csvData), "b,mb,3,5,1")

	html, err := os.ReadFile(cfg.Output.Chart)
	require.NoError(t, err)
	assert.Contains(t, string(html), cfg.Output.ChartTitle)
}

func TestSolveCanceled(t *testing.T) {
	cfg := testConfig(t)
	store := &memStore{}
	svc, err := New(cfg, WithMetricsSink(&spySink{}), WithRunLog(store))
	require.NoError(t, err)
	defer func() { _ = svc.Close() }()

	p, err := instance.Load(strings.NewReader(chain), instance.Text)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := svc.Solve(ctx, Request{Problem: p, Instance: "chain"})
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Len(t, store.recs, 1, "canceled runs are still logged")
	assert.Equal(t, res.Reason, store.recs[0].Reason)
}

func TestSolveInvalidProblem(t *testing.T) {
	cfg := testConfig(t)
	cfg.Output = config.OutputConfig{}
	svc, err := New(cfg, WithMetricsSink(&spySink{}), WithRunLog(runlog.NopStore{}))
	require.NoError(t, err)

	p, err := instance.Load(strings.NewReader("activity lonely\n"), instance.Text)
	require.NoError(t, err)
	_, err = svc.Solve(context.Background(), Request{Problem: p})
	assert.Error(t, err)
}

func TestNewRejectsUnknownSink(t *testing.T) {
	cfg := testConfig(t)
	cfg.Metrics.Sinks = append(cfg.Metrics.Sinks, moduleConfig("graphite"))
	_, err := New(cfg)
	assert.Error(t, err)
}

type memStore struct {
	recs []runlog.Record
}

func (m *memStore) Append(_ context.Context, r runlog.Record) error {
	m.recs = append(m.recs, r)
	return nil
}
func (m *memStore) Query(context.Context, runlog.Query) ([]runlog.Record, error) { return m.recs, nil }
func (m *memStore) Close() error                                                  { return nil }
