// Package app wires a solver run to its surroundings: metrics sinks, the
// MQTT progress feed, the run log and the schedule exports.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/rcpsched/api/runs"
	"github.com/kilianp07/rcpsched/config"
	coremetrics "github.com/kilianp07/rcpsched/core/metrics"
	"github.com/kilianp07/rcpsched/core/model"
	"github.com/kilianp07/rcpsched/core/monitoring"
	"github.com/kilianp07/rcpsched/core/runlog"
	"github.com/kilianp07/rcpsched/core/search"
	"github.com/kilianp07/rcpsched/infra/logger"
	"github.com/kilianp07/rcpsched/infra/metrics"
	inframon "github.com/kilianp07/rcpsched/infra/monitoring"
	"github.com/kilianp07/rcpsched/infra/mqtt"
	"github.com/kilianp07/rcpsched/internal/eventbus"
	"github.com/kilianp07/rcpsched/pkg/export"
)

// busBuffer keeps every subscriber of a run far ahead of the engine.
const busBuffer = 1024

// Service runs searches with the configured side effects.
type Service struct {
	cfg       *config.Config
	log       logger.Logger
	sink      coremetrics.MetricsSink
	store     runlog.Store
	publisher *mqtt.ProgressPublisher
	now       func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithMetricsSink replaces the sinks built from the configuration.
func WithMetricsSink(s coremetrics.MetricsSink) Option {
	return func(svc *Service) { svc.sink = s }
}

// WithRunLog replaces the run log built from the configuration.
func WithRunLog(s runlog.Store) Option {
	return func(svc *Service) { svc.store = s }
}

// WithClock sets the time source of run log records.
func WithClock(now func() time.Time) Option {
	return func(svc *Service) { svc.now = now }
}

// New creates a Service from the configuration.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if err := logger.SetLevel(cfg.Logging.Level); err != nil {
		return nil, err
	}
	mon, err := inframon.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	monitoring.Init(mon)

	svc := &Service{cfg: cfg, log: logger.New("service"), now: time.Now}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.sink == nil {
		if svc.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
			return nil, fmt.Errorf("metrics sink: %w", err)
		}
	}
	if svc.store == nil {
		if svc.store, err = runlog.Open(cfg.Logging.RunLog()); err != nil {
			return nil, fmt.Errorf("run log: %w", err)
		}
	}
	if cfg.MQTT.Enabled() {
		if svc.publisher, err = mqtt.NewProgressPublisher(cfg.MQTT, logger.New("mqtt")); err != nil {
			return nil, fmt.Errorf("mqtt publisher: %w", err)
		}
	}
	return svc, nil
}

// Request is one problem to solve.
type Request struct {
	Problem *model.Problem
	// Instance names the problem in the run log.
	Instance string
	Initial  []search.InitialEntry
}

// Solve runs the search on req. Progress flows to the metrics sinks and the
// MQTT feed while the engine runs; the run log and the exports are written
// once it is done. Cancelling ctx ends the search with its incumbent.
func (s *Service) Solve(ctx context.Context, req Request) (*search.Result, error) {
	defer monitoring.Recover()

	engine, err := search.New(req.Problem, s.cfg.Solver.Search(), logger.New("search"))
	if err != nil {
		monitoring.Capture(err, "search", "instance", req.Instance)
		return nil, err
	}
	engine.SetInitial(req.Initial)

	bus := eventbus.New(eventbus.WithBuffer(busBuffer))
	engine.SetPublisher(bus)
	g, gctx := errgroup.WithContext(ctx)

	sub := bus.Subscribe()
	g.Go(func() error {
		defer monitoring.Recover()
		metrics.CollectEvents(gctx, sub, s.sink, s.log)
		return nil
	})
	if s.publisher != nil {
		feed := bus.Subscribe()
		g.Go(func() error {
			defer monitoring.Recover()
			s.publisher.Run(gctx, feed)
			return nil
		})
	}
	serverCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		g.Go(func() error {
			route := metrics.Route{Pattern: runs.Path, Handler: runs.NewHandler(s.store, s.cfg.Metrics.APIToken)}
			if err := metrics.StartPromServer(serverCtx, addr, route); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
			return nil
		})
	}

	var res *search.Result
	g.Go(func() error {
		defer stopServer()
		defer bus.Close()
		var err error
		res, err = engine.Run(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		monitoring.Capture(err, "search", "run_id", engine.RunID(), "instance", req.Instance)
		return nil, err
	}
	if n := bus.Dropped(); n > 0 {
		s.log.Warnf("%d events dropped by slow subscribers", n)
	}

	rec := runlog.NewRecord(res, req.Instance, s.cfg.Solver.Seed, s.now())
	// The run may have been canceled; the record still has to be written.
	if err := s.store.Append(context.WithoutCancel(ctx), rec); err != nil {
		s.log.Errorf("run log: %v", err)
		monitoring.Capture(err, "runlog", "run_id", rec.ID)
	}
	if err := s.export(req.Problem, res); err != nil {
		return res, err
	}
	return res, nil
}

func (s *Service) export(p *model.Problem, res *search.Result) error {
	out := s.cfg.Output
	if out.JSON == "" && out.CSV == "" && out.Chart == "" {
		return nil
	}
	if !res.Solution.Feasible() {
		s.log.Warnf("no feasible schedule, exports skipped")
		return nil
	}
	entries := export.Schedule(p, res.Solution)
	var errs []error
	for _, f := range []struct {
		path  string
		write func(*os.File) error
	}{
		{out.JSON, func(f *os.File) error { return export.WriteJSON(f, entries) }},
		{out.CSV, func(f *os.File) error { return export.WriteCSV(f, entries) }},
		{out.Chart, func(f *os.File) error { return export.WriteChart(f, out.ChartTitle, entries) }},
	} {
		if f.path == "" {
			continue
		}
		if err := writeFile(f.path, f.write); err != nil {
			errs = append(errs, fmt.Errorf("export %s: %w", f.path, err))
			continue
		}
		s.log.Infof("schedule written to %s", f.path)
	}
	return errors.Join(errs...)
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var errs []error
	if c, ok := s.sink.(coremetrics.Closer); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, s.store.Close())
	if s.publisher != nil {
		s.publisher.Disconnect()
	}
	monitoring.Flush(2 * time.Second)
	return errors.Join(errs...)
}
