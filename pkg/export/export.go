// Package export writes the best schedule of a run as JSON, CSV or an HTML
// chart.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/kilianp07/rcpsched/core/model"
	"github.com/kilianp07/rcpsched/core/solution"
)

// Entry is the placement of one activity.
type Entry struct {
	Activity   string               `json:"activity"`
	Mode       string               `json:"mode"`
	Start      int                  `json:"start"`
	Completion int                  `json:"completion"`
	Executions []solution.Execution `json:"executions"`
}

// Schedule lists the placements of the real activities of sol. Start and
// end markers are dropped from the executions.
func Schedule(p *model.Problem, sol *solution.Solution) []Entry {
	var out []Entry
	for _, a := range p.Activities {
		if a.Dummy() || len(sol.Executions[a.ID]) == 0 {
			continue
		}
		e := Entry{
			Activity:   a.Name,
			Mode:       a.Modes[sol.Modes[a.ID]].Name,
			Start:      sol.Start(a.ID),
			Completion: sol.Completion(a.ID),
		}
		for _, ex := range sol.Executions[a.ID] {
			if ex.Parallel > 0 && ex.From < ex.To {
				e.Executions = append(e.Executions, ex)
			}
		}
		out = append(out, e)
	}
	return out
}

// WriteJSON writes the schedule to w in JSON format.
func WriteJSON(w io.Writer, entries []Entry) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

// WriteCSV writes one row per execution slice. Activities without work get
// a single row spanning start to completion.
func WriteCSV(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"activity", "mode", "from", "to", "parallel"}); err != nil {
		return err
	}
	itoa := strconv.Itoa
	for _, e := range entries {
		if len(e.Executions) == 0 {
			if err := cw.Write([]string{e.Activity, e.Mode, itoa(e.Start), itoa(e.Completion), "0"}); err != nil {
				return err
			}
			continue
		}
		for _, ex := range e.Executions {
			rec := []string{e.Activity, e.Mode, itoa(ex.From), itoa(ex.To), itoa(ex.Parallel)}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}
