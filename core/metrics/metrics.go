package metrics

import "github.com/kilianp07/rcpsched/core/events"

// MetricsSink records search progress for observability purposes.
type MetricsSink interface {
	RecordProgress(ev events.Progress) error
}

// RoundRecorder records the end of search rounds.
type RoundRecorder interface {
	RecordRound(ev events.Round) error
}

// ResultRecorder records the outcome of a run.
type ResultRecorder interface {
	RecordResult(ev events.Done) error
}

// Closer is implemented by sinks holding connections.
type Closer interface {
	Close() error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordProgress(events.Progress) error { return nil }
func (NopSink) RecordRound(events.Round) error       { return nil }
func (NopSink) RecordResult(events.Done) error       { return nil }
