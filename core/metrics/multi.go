package metrics

import (
	"errors"

	"github.com/kilianp07/rcpsched/core/events"
)

// MultiSink fans events out to several sinks. Every sink sees every event;
// the errors are joined.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

func (m *MultiSink) RecordProgress(ev events.Progress) error {
	var errs []error
	for _, s := range m.Sinks {
		errs = append(errs, s.RecordProgress(ev))
	}
	return errors.Join(errs...)
}

// RecordRound forwards to the sinks recording rounds.
func (m *MultiSink) RecordRound(ev events.Round) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(RoundRecorder); ok {
			errs = append(errs, rec.RecordRound(ev))
		}
	}
	return errors.Join(errs...)
}

// RecordResult forwards to the sinks recording results.
func (m *MultiSink) RecordResult(ev events.Done) error {
	var errs []error
	for _, s := range m.Sinks {
		if rec, ok := s.(ResultRecorder); ok {
			errs = append(errs, rec.RecordResult(ev))
		}
	}
	return errors.Join(errs...)
}

// Close closes the sinks holding connections.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.Sinks {
		if c, ok := s.(Closer); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
