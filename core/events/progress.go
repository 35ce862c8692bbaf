package events

import "time"

// Progress is published every report interval and whenever the incumbent
// improves.
type Progress struct {
	RunID      string        `json:"run_id"`
	Round      int           `json:"round"`
	Iteration  int           `json:"iteration"`
	Objective  int           `json:"objective"`
	Best       int           `json:"best"`
	Evaluation float64       `json:"evaluation"`
	Feasible   bool          `json:"feasible"`
	Incumbent  bool          `json:"incumbent"`
	Neighbors  int           `json:"neighbors"`
	Tenure     int           `json:"tenure"`
	Elapsed    time.Duration `json:"elapsed"`
	Time       time.Time     `json:"time"`
}
