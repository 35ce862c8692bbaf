// Package runlog keeps one record per solver run so results of different
// seeds and instances can be compared later.
package runlog

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/rcpsched/core/search"
	"github.com/kilianp07/rcpsched/core/solution"
)

// Record summarises one run.
type Record struct {
	ID         string               `json:"id"`
	Time       time.Time            `json:"time"`
	Instance   string               `json:"instance"`
	Seed       int64                `json:"seed"`
	Objective  int                  `json:"objective"`
	Feasible   bool                 `json:"feasible"`
	Iterations int                  `json:"iterations"`
	Rounds     int                  `json:"rounds"`
	Reason     string               `json:"reason"`
	Elapsed    time.Duration        `json:"elapsed"`
	Violations []solution.Violation `json:"violations,omitempty"`
}

// NewRecord builds the record of res. Violations are only kept for
// feasible schedules; an infeasible pass stops early and its list is
// partial.
func NewRecord(res *search.Result, instance string, seed int64, now time.Time) Record {
	rec := Record{
		ID:         res.RunID,
		Time:       now,
		Instance:   instance,
		Seed:       seed,
		Iterations: res.Iterations,
		Rounds:     res.Rounds,
		Reason:     res.Reason,
		Elapsed:    res.Elapsed,
	}
	if sol := res.Solution; sol != nil {
		rec.Objective = sol.Objective
		rec.Feasible = sol.Feasible()
		if rec.Feasible {
			rec.Violations = append([]solution.Violation(nil), sol.Violations...)
		}
	}
	return rec
}

// Query defines filters for retrieving records. Zero values match
// everything.
type Query struct {
	Start    time.Time
	End      time.Time
	Instance string
	Feasible *bool
}

// Match reports whether r passes every filter of q.
func (q Query) Match(r Record) bool {
	switch {
	case !q.Start.IsZero() && r.Time.Before(q.Start):
		return false
	case !q.End.IsZero() && r.Time.After(q.End):
		return false
	case q.Instance != "" && r.Instance != q.Instance:
		return false
	case q.Feasible != nil && r.Feasible != *q.Feasible:
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// Options selects and configures a store.
type Options struct {
	// Backend is "jsonl", "sqlite" or "none".
	Backend    string
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Open creates the store described by o. A jsonl store rotates when
// MaxSizeMB is positive.
func Open(o Options) (Store, error) {
	switch o.Backend {
	case "", "none":
		return NopStore{}, nil
	case "jsonl":
		if o.MaxSizeMB > 0 {
			return NewRotatingJSONLStore(o.Path, o.MaxSizeMB, o.MaxBackups, o.MaxAgeDays)
		}
		return NewJSONLStore(o.Path)
	case "sqlite":
		return NewSQLiteStore(o.Path)
	}
	return nil, fmt.Errorf("unknown run log backend %q", o.Backend)
}

// NopStore drops records.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }
