package construct

import (
	"github.com/kilianp07/rcpsched/core/model"
	"github.com/kilianp07/rcpsched/core/solution"
)

// assign books (sign 1) or releases (sign -1) the resources and state
// changes of aid placed in mode along execs.
func (s *Scheduler) assign(aid int, mode *model.Mode, execs []solution.Execution, sign int) {
	for k, tbl := range mode.States {
		st := s.states[tbl.State]
		if sign > 0 {
			st.Change(execs[0].From+1, aid, s.stateValues[k])
		} else {
			st.Undo(execs[0].From + 1)
		}
	}

	for _, req := range mode.Requirements {
		ledger := s.resources[req.Resource]
		work := req.Work
		wr := work.Find(1)
		progress := 0
		for k := 1; k < len(execs); k++ {
			prev, cur := execs[k-1], execs[k]
			if prev.To < cur.From {
				if need := req.Break.Value(progress); need > 0 {
					ledger.Consume(prev.To+1, cur.From, need*sign, aid)
				}
			}

			t, fraction, par, peak := cur.From, 0, cur.Parallel, 0
			for t < cur.To {
				key, end := work.Key(wr), work.To(wr)
				if fraction > 0 {
					nf := min(par, fraction+end-progress)
					if req.Max {
						if key > peak {
							ledger.Consume(t+1, t+1, (key-peak)*sign, aid)
							peak = key
						}
					} else {
						ledger.Consume(t+1, t+1, key*(nf-fraction)*sign, aid)
					}
					progress += nf - fraction
					if fraction = nf % par; fraction == 0 {
						t++
					}
				} else {
					if inc := min((end-progress)/par, cur.To-t); inc > 0 {
						num := par
						if req.Max {
							num = 1
						}
						ledger.Consume(t+1, t+inc, key*num*sign, aid)
						t += inc
						progress += inc * par
					}
					if t < cur.To {
						if fraction = (end - progress) % par; fraction > 0 {
							num := fraction
							if req.Max {
								num = 1
								peak = key
							}
							ledger.Consume(t+1, t+1, key*num*sign, aid)
							progress += fraction
						}
					}
				}
				if progress == end {
					wr = work.Next(wr)
				}
			}
		}
	}
}
