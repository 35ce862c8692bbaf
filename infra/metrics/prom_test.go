package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/rcpsched/core/events"
)

func TestPromSinkRecords(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewPromSinkWithRegistry("test", reg)
	require.NoError(t, err)

	require.NoError(t, s.RecordProgress(events.Progress{RunID: "r1", Iteration: 7, Objective: 12, Best: 9, Evaluation: 14.5, Neighbors: 3}))
	require.NoError(t, s.RecordRound(events.Round{RunID: "r1", Reason: "restart"}))
	require.NoError(t, s.RecordRound(events.Round{RunID: "r1", Reason: "restart"}))
	require.NoError(t, s.RecordRound(events.Round{RunID: "r1", Reason: "limit"}))
	require.NoError(t, s.RecordResult(events.Done{RunID: "r1", Objective: 8, Feasible: true, Elapsed: time.Second}))

	assert.Equal(t, 12.0, testutil.ToFloat64(s.objective.WithLabelValues("r1")))
	assert.Equal(t, 8.0, testutil.ToFloat64(s.best.WithLabelValues("r1")))
	assert.Equal(t, 14.5, testutil.ToFloat64(s.evaluation.WithLabelValues("r1")))
	assert.Equal(t, 7.0, testutil.ToFloat64(s.iteration.WithLabelValues("r1")))
	assert.Equal(t, 2.0, testutil.ToFloat64(s.rounds.WithLabelValues("restart")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.rounds.WithLabelValues("limit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.runs.WithLabelValues("true")))
	assert.Equal(t, 1, testutil.CollectAndCount(s.duration))
}

func TestPromSinkReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	s1, err := NewPromSinkWithRegistry("test", reg)
	require.NoError(t, err)
	s2, err := NewPromSinkWithRegistry("test", reg)
	require.NoError(t, err)

	require.NoError(t, s1.RecordRound(events.Round{Reason: "limit"}))
	require.NoError(t, s2.RecordRound(events.Round{Reason: "limit"}))
	assert.Equal(t, 2.0, testutil.ToFloat64(s1.rounds.WithLabelValues("limit")))
}

func TestHandlerServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	s, err := NewPromSinkWithRegistry("test", reg)
	require.NoError(t, err)
	require.NoError(t, s.RecordProgress(events.Progress{RunID: "r1", Objective: 4}))

	srv := httptest.NewServer(NewHandler(reg))
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `test_search_objective{run_id="r1"} 4`)
}

func TestHandlerMountsRoutes(t *testing.T) {
	extra := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("runs"))
	})
	srv := httptest.NewServer(NewHandler(prometheus.NewRegistry(), Route{Pattern: "/api/runs", Handler: extra}))
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/api/runs")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "runs", string(body))
}
