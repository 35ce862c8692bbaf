package runlog

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/rcpsched/core/search"
	"github.com/kilianp07/rcpsched/core/solution"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func records() []Record {
	return []Record{
		{ID: "a", Time: epoch, Instance: "j30", Seed: 1, Objective: 4, Feasible: true, Iterations: 100, Elapsed: time.Second,
			Violations: []solution.Violation{{Kind: solution.DueDate, ID: 3, Penalty: 4}}},
		{ID: "b", Time: epoch.Add(time.Hour), Instance: "j30", Seed: 2, Objective: solution.Inf, Iterations: 50},
		{ID: "c", Time: epoch.Add(2 * time.Hour), Instance: "j60", Seed: 1, Feasible: true, Iterations: 7},
	}
}

func ids(recs []Record) []string {
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.ID)
	}
	return out
}

func queries() []struct {
	name string
	q    Query
	want []string
} {
	yes, no := true, false
	return []struct {
		name string
		q    Query
		want []string
	}{
		{"all", Query{}, []string{"a", "b", "c"}},
		{"from", Query{Start: epoch.Add(time.Minute)}, []string{"b", "c"}},
		{"until", Query{End: epoch.Add(time.Hour)}, []string{"a", "b"}},
		{"instance", Query{Instance: "j60"}, []string{"c"}},
		{"feasible", Query{Feasible: &yes}, []string{"a", "c"}},
		{"infeasible j30", Query{Feasible: &no, Instance: "j30"}, []string{"b"}},
	}
}

func exercise(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	for _, r := range records() {
		require.NoError(t, s.Append(ctx, r))
	}
	for _, c := range queries() {
		t.Run(c.name, func(t *testing.T) {
			got, err := s.Query(ctx, c.q)
			require.NoError(t, err)
			assert.Equal(t, c.want, ids(got))
		})
	}
	got, err := s.Query(ctx, Query{})
	require.NoError(t, err)
	if diff := cmp.Diff(records(), got); diff != "" {
		t.Errorf("stored records differ (-want +got):\n%s", diff)
	}
}

func TestJSONLStore(t *testing.T) {
	s, err := NewJSONLStore(filepath.Join(t.TempDir(), "runs.jsonl"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exercise(t, s)
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exercise(t, s)
}

func TestRotatingJSONLStore(t *testing.T) {
	s, err := NewRotatingJSONLStore(filepath.Join(t.TempDir(), "logs", "runs.jsonl"), 1, 0, 0)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()
	exercise(t, s)
}

func TestRotatingJSONLStoreRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runs.jsonl")
	s, err := NewRotatingJSONLStore(path, 1, 0, 0)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	big := strings.Repeat("x", 300<<10)
	for i := 0; i < 6; i++ {
		rec := Record{ID: string(rune('a' + i)), Instance: big, Time: epoch}
		require.NoError(t, s.Append(context.Background(), rec))
	}
	files, err := filepath.Glob(filepath.Join(dir, "runs*.jsonl"))
	require.NoError(t, err)
	assert.Greater(t, len(files), 1, "expected rotated files")

	got, err := s.Query(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f"}, ids(got))
}

func TestJSONLStoreSkipsGarbage(t *testing.T) {
	got, err := scan(strings.NewReader("{broken\n{\"id\":\"x\"}\n"), Query{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, ids(got))
}

func TestRecordJSONKeys(t *testing.T) {
	data, err := json.Marshal(records()[0])
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	for _, k := range []string{"id", "time", "instance", "seed", "objective", "feasible", "iterations", "elapsed", "violations"} {
		assert.Contains(t, m, k)
	}
}

func TestNewRecord(t *testing.T) {
	sol := solution.New(3, 0)
	sol.Objective = 9
	sol.UpdateAssigned(3)
	sol.Violations = []solution.Violation{{Kind: solution.Temporal, ID: 1, Penalty: 9}}
	res := &search.Result{RunID: "run", Solution: sol, Iterations: 12, Rounds: 2, Reason: search.ReasonLimit, Elapsed: time.Second}

	rec := NewRecord(res, "inst", 7, epoch)
	want := Record{ID: "run", Time: epoch, Instance: "inst", Seed: 7, Objective: 9, Feasible: true,
		Iterations: 12, Rounds: 2, Reason: search.ReasonLimit, Elapsed: time.Second, Violations: sol.Violations}
	assert.Equal(t, want, rec)

	sol.ResetAssigned()
	assert.Empty(t, NewRecord(res, "inst", 7, epoch).Violations)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	checks := []struct {
		opts Options
		want any
	}{
		{Options{}, NopStore{}},
		{Options{Backend: "none"}, NopStore{}},
		{Options{Backend: "jsonl", Path: filepath.Join(dir, "a.jsonl")}, &JSONLStore{}},
		{Options{Backend: "jsonl", Path: filepath.Join(dir, "b.jsonl"), MaxSizeMB: 5}, &RotatingJSONLStore{}},
		{Options{Backend: "sqlite", Path: filepath.Join(dir, "c.db")}, &SQLiteStore{}},
	}
	for _, c := range checks {
		s, err := Open(c.opts)
		require.NoError(t, err, c.opts.Backend)
		assert.IsType(t, c.want, s)
		require.NoError(t, s.Close())
	}
	_, err := Open(Options{Backend: "csv"})
	assert.Error(t, err)
}
