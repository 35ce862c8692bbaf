package events

import "time"

// Round is emitted when a round of the search ends. Reason is "restart" when
// the neighbourhood ran dry, "limit" when the budget ran out, "optimal" when
// the objective reached zero and "canceled" when the context was done.
type Round struct {
	RunID     string        `json:"run_id"`
	Round     int           `json:"round"`
	Reason    string        `json:"reason"`
	Iteration int           `json:"iteration"`
	Best      int           `json:"best"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Done is emitted once per run with the final incumbent.
type Done struct {
	RunID      string        `json:"run_id"`
	Objective  int           `json:"objective"`
	Feasible   bool          `json:"feasible"`
	Iterations int           `json:"iterations"`
	Rounds     int           `json:"rounds"`
	Elapsed    time.Duration `json:"elapsed"`
}
