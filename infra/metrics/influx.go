package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/kilianp07/rcpsched/core/events"
	coremetrics "github.com/kilianp07/rcpsched/core/metrics"
	"github.com/kilianp07/rcpsched/infra/logger"
)

// InfluxSink writes search events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
	now      func() time.Time
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
		now:      time.Now,
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordProgress writes a search_progress point.
func (s *InfluxSink) RecordProgress(ev events.Progress) error {
	p := write.NewPointWithMeasurement("search_progress").
		AddTag("run_id", ev.RunID).
		AddTag("round", strconv.Itoa(ev.Round)).
		AddField("iteration", ev.Iteration).
		AddField("objective", ev.Objective).
		AddField("best", ev.Best).
		AddField("evaluation", round3(ev.Evaluation)).
		AddField("feasible", ev.Feasible).
		AddField("incumbent", ev.Incumbent).
		AddField("neighbors", ev.Neighbors).
		AddField("elapsed_s", round3(ev.Elapsed.Seconds())).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordRound writes a search_round point.
func (s *InfluxSink) RecordRound(ev events.Round) error {
	p := write.NewPointWithMeasurement("search_round").
		AddTag("run_id", ev.RunID).
		AddTag("reason", ev.Reason).
		AddField("round", ev.Round).
		AddField("iteration", ev.Iteration).
		AddField("best", ev.Best).
		AddField("elapsed_s", round3(ev.Elapsed.Seconds())).
		SetTime(s.now())
	return s.write(p)
}

// RecordResult writes a search_result point.
func (s *InfluxSink) RecordResult(ev events.Done) error {
	p := write.NewPointWithMeasurement("search_result").
		AddTag("run_id", ev.RunID).
		AddTag("feasible", strconv.FormatBool(ev.Feasible)).
		AddField("objective", ev.Objective).
		AddField("iterations", ev.Iterations).
		AddField("rounds", ev.Rounds).
		AddField("elapsed_s", round3(ev.Elapsed.Seconds())).
		SetTime(s.now())
	return s.write(p)
}

// Close releases the HTTP client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
