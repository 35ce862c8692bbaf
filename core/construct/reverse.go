package construct

import (
	"fmt"
	"slices"

	"github.com/kilianp07/rcpsched/core/model"
	"github.com/kilianp07/rcpsched/core/solution"
	"github.com/kilianp07/rcpsched/core/timeline"
)

func (s *Scheduler) lowerStart(b *bounds, t, by int, test bool) {
	if test {
		b.ubStart = min(b.ubStart, t)
		return
	}
	switch {
	case t < b.ubStart:
		b.ubStart = t
		s.critStart = append(s.critStart[:0], by)
	case t == b.ubStart:
		s.critStart = append(s.critStart, by)
	}
}

func (s *Scheduler) lowerFinish(b *bounds, t, by int, test bool) {
	if test {
		b.ubFinish = min(b.ubFinish, t)
		return
	}
	switch {
	case t < b.ubFinish:
		b.ubFinish = t
		s.critFinish = append(s.critFinish[:0], by)
	case t == b.ubFinish:
		s.critFinish = append(s.critFinish, by)
	}
}

// reverse places a backward activity as late as possible. It walks the
// reversed mode from the completion bound towards time 0; results follow
// forward.
func (s *Scheduler) reverse(sol *solution.Solution, aid int, test bool) (int, int) {
	act := s.p.Activities[aid]
	ml := sol.Modes[aid]
	mode := act.Modes[ml]
	rm := mode.Reverse()
	d := mode.Duration
	b := &s.bounds[aid]

	b.ubStart = min(b.ubStart, act.Start.Time)
	b.ubFinish = min(b.ubFinish, act.Completion.Time)

	s.critStart, s.critFinish = s.critStart[:0], s.critFinish[:0]
	for _, c := range act.Out {
		se := sol.Executions[c.Succ]
		if len(se) == 0 || !c.Applies(ml, sol.Modes[c.Succ]) {
			continue
		}
		start, completion := se[0].From, se[len(se)-1].To
		switch c.Type {
		case model.SS:
			s.lowerStart(b, start-c.Delay, c.Succ, test)
		case model.SC:
			s.lowerStart(b, completion-c.Delay, c.Succ, test)
		case model.CS:
			s.lowerFinish(b, start-c.Delay, c.Succ, test)
		case model.CC:
			s.lowerFinish(b, completion-c.Delay, c.Succ, test)
		}
	}
	if !test {
		s.markBounds(sol, aid)
	}

	br := rm.MaxBreak
	ub := b.ubStart
	ws := append(s.windows[:0], window{d, d, ub, 1})
	for r := br.Find(d); ; r = br.Prev(r) {
		key, bfrom, bto := br.Key(r), br.From(r), br.To(r)
		from := max(bto-(b.ubFinish-ub)/(1+key), bfrom-1)
		ub += (bto - from) * (1 + key)
		if from < bto {
			ws = append(ws, window{from, bto, ub, 1 + key})
		}
		if from != bfrom-1 || bfrom <= 1 {
			break
		}
	}
	if last := &ws[len(ws)-1]; last.from == -1 {
		last.from = 0
		last.value -= last.grad
	}
	if last := ws[len(ws)-1]; last.from == 0 {
		b.ubFinish = min(b.ubFinish, last.value+br.Value(0))
	}

	t := b.ubFinish
	progress := 0
	execs := append(sol.Executions[aid][:0], solution.Execution{From: t, To: t})

	for {
		if t <= 0 && progress < d {
			s.windows = ws
			sol.Executions[aid] = execs[:0]
			if !test {
				sol.AddViolation(solution.DueDate, aid, Inf)
			}
			return Inf, aid
		}

		if n := len(ws); n > 0 && ws[n-1].from == progress && ws[n-1].value < t {
			t = ws[n-1].value
		}
		for len(ws) > 0 {
			w := &ws[len(ws)-1]
			if w.value < t {
				break
			}
			if w.value-(w.to-w.from)*w.grad >= t {
				ws = ws[:len(ws)-1]
				continue
			}
			x := (w.value-t)/w.grad + w.from + 1
			w.value -= (x - w.from) * w.grad
			w.from = x
			break
		}

		nextProgress, retry, restart := d, Inf, Inf
		bd := br.Find(progress)
		bdKey, bdFrom := br.Key(bd), br.From(bd)
		breakPoint := bdFrom - 1
		if bdKey > 0 {
			breakPoint = progress
		}
		mp := rm.MaxParallel
		pi := mp.Find(progress + 1)
		piKey, piTo := mp.Key(pi), mp.To(pi)
		parallel := min(piKey, d-progress)

		if progress < d {
			if n := len(ws); n > 0 {
				w := ws[n-1]
				parallel = min(parallel, w.from-progress)
				if parallel == 1 && w.grad == 1 && t-w.from+progress <= w.value {
					nextProgress = w.to + 1
				} else {
					nextProgress = w.from
				}
			}

			increase := false
			for _, req := range rm.Requirements {
				work := req.Work
				wr := work.Find(progress + 1)
				ledger := s.resources[req.Resource]
				prof := ledger.Profile()
				pr := prof.Find(t)
				if work.Key(wr) > prof.Key(pr) {
					parallel = 0
					for {
						if !test {
							sol.SetCriticalRange(aid, ledger, prof.From(pr), prof.To(pr))
						}
						pr = prof.Prev(pr)
						if pr == timeline.Nil || work.Key(wr) <= prof.Key(pr) {
							break
						}
					}
					bp := breakPoint*2 + 1
					if breakPoint != -1 {
						bk := req.Break
						if r := bk.Find(breakPoint); bk.Key(r) >= work.Key(wr) {
							bp = bk.From(r) * 2
						}
					}
					rt := max(work.From(wr)*2-1, bp)
					if rt < retry {
						retry, restart = rt, Inf
					}
					if rt == retry {
						if pr == timeline.Nil {
							restart = min(restart, -1)
						} else {
							restart = min(restart, prof.To(pr))
						}
					}
				} else if parallel > 1 {
					p := parallel
					if !req.Max && work.Key(wr) != 0 {
						p = min(parallel, prof.Key(pr)/work.Key(wr))
					}
					if work.To(wr) <= progress+p {
						p = work.To(wr) - progress
						used := work.Key(wr)
						if !req.Max {
							used *= p
						}
						for p < parallel {
							wr = work.Next(wr)
							key := work.Key(wr)
							delta := work.To(wr) - work.From(wr) + 1
							add := key * delta
							if req.Max {
								add = max(0, key-used)
							}
							if used+add > prof.Key(pr) {
								if !req.Max && key > 0 {
									p += (prof.Key(pr) - used) / key
								}
								break
							}
							used += add
							p += delta
						}
						increase = true
					}
					parallel = min(parallel, p)
				}
			}

			if retry == Inf {
				if increase {
					nextProgress = progress + parallel
				} else {
					nextProgress -= (nextProgress - progress) % parallel
					if nextProgress > progress+parallel {
						nextProgress = min(nextProgress, progress+parallel*((min(piTo+piKey-1, d)-progress)/parallel))
						for _, req := range rm.Requirements {
							work := req.Work
							wr := work.Find(progress + 1)
							prof := s.resources[req.Resource].Profile()
							pr := prof.Find(t)
							if parallel == 1 {
								nextProgress = min(nextProgress, work.To(wr), progress+t-prof.From(pr)+1)
							} else {
								nextProgress = min(nextProgress, progress+parallel*min((work.To(wr)-progress)/parallel, t-prof.From(pr)+1))
							}
						}
					}
				}
			}
		}

		if retry == Inf {
			last := execs[len(execs)-1]
			if gap := last.From - t; gap > 0 {
				if gap > bdKey {
					if progress == 0 {
						retry, restart = 0, t+bdKey
					} else {
						right := max(bdFrom-1, progress-(last.To-last.From)*last.Parallel)
						if last.Parallel == 1 {
							if bdKey > 0 {
								right = max(right, progress-gap/bdKey)
							}
						} else if bdKey <= gap {
							right = max(right, progress-gap*last.Parallel/((1+bdKey)*last.Parallel-1))
						} else {
							right = progress
						}
						if right >= progress {
							panic(fmt.Sprintf("construct: activity %s cannot move back from progress %d", act.Name, progress))
						}
						restart = t + (progress-right)*(1+bdKey)
						ws = append(ws, window{right, progress, restart, 1 + bdKey})
						retry = right*2 + 1
					}
				} else {
					for _, req := range rm.Requirements {
						need := req.Break.Value(progress)
						if need <= 0 {
							continue
						}
						ledger := s.resources[req.Resource]
						prof := ledger.Profile()
						for pr := prof.Find(t + 1); ; pr = prof.Next(pr) {
							if need > prof.Key(pr) {
								if !test {
									sol.SetCriticalRange(aid, ledger, prof.From(pr), prof.To(pr))
								}
								work := req.Work
								wr := work.Find(progress + 1)
								rt := progress * 2
								if work.Key(wr) > prof.Key(pr) {
									rt = min(rt, work.From(wr)*2-1)
								}
								if rt < retry {
									retry, restart = rt, Inf
								}
								if rt == retry {
									restart = min(restart, max(prof.From(pr)-1, t))
								}
								break
							}
							if prof.To(pr) >= last.From {
								break
							}
						}
					}
				}
			}

			if retry == Inf {
				if progress == d {
					execs = append(execs, solution.Execution{From: t, To: t})
					slices.Reverse(execs)
					break
				}
				inc := (nextProgress - progress) / parallel
				if nextProgress != progress+parallel*inc {
					panic(fmt.Sprintf("construct: activity %s: progress %d to %d is not a multiple of width %d",
						act.Name, progress, nextProgress, parallel))
				}
				if l := &execs[len(execs)-1]; l.From == t && l.Parallel == parallel {
					l.From -= inc
				} else {
					execs = append(execs, solution.Execution{From: t - inc, To: t, Parallel: parallel})
				}
				t -= inc
				progress = nextProgress
				for len(ws) > 0 {
					w := &ws[len(ws)-1]
					if w.from >= progress {
						break
					}
					if w.to < progress {
						ws = ws[:len(ws)-1]
						continue
					}
					w.value -= (progress - w.from) * w.grad
					w.from = progress
					break
				}
				continue
			}
		}

		if n := len(ws); n == 0 || ws[n-1].from > progress {
			ws = append(ws, window{progress, progress, t, 1 + bdKey})
		}
		if retry == 0 {
			execs = append(execs[:0], solution.Execution{From: restart, To: restart})
		} else {
			if retry%2 == 0 {
				restart++
				retry--
			}
			for progress > retry/2 {
				e := execs[len(execs)-1]
				done := (e.To - e.From) * e.Parallel
				if done <= progress-retry/2 {
					execs = execs[:len(execs)-1]
					progress -= done
					continue
				}
				to := e.To
				keep := done - progress + retry/2
				execs = execs[:len(execs)-1]
				if keep/e.Parallel > 0 {
					execs = append(execs, solution.Execution{From: to - keep/e.Parallel, To: to, Parallel: e.Parallel})
					to -= keep / e.Parallel
				}
				if frac := keep % e.Parallel; frac > 0 {
					if l := &execs[len(execs)-1]; l.From == to && l.Parallel == frac {
						l.From = to - 1
					} else {
						execs = append(execs, solution.Execution{From: to - 1, To: to, Parallel: frac})
					}
				}
				break
			}
		}
		progress = retry / 2
		t = restart
	}
	s.windows = ws

	start, completion := execs[0].From, execs[len(execs)-1].To
	target, minPos, constraint := solution.None, Inf, -1
	for _, c := range act.In {
		pe := sol.Executions[c.Pred]
		if len(pe) == 0 || !c.Applies(sol.Modes[c.Pred], ml) {
			continue
		}
		pb := &s.bounds[c.Pred]
		ps, pc := pe[0].From, pe[len(pe)-1].To
		violated := false
		switch c.Type {
		case model.SS:
			if start < ps+c.Delay {
				violated = true
				if !test {
					pb.ubStart = min(pb.ubStart, start-c.Delay)
				}
			}
		case model.SC:
			if completion < ps+c.Delay {
				violated = true
				if !test {
					pb.ubStart = min(pb.ubStart, completion-c.Delay)
				}
			}
		case model.CS:
			if start < pc+c.Delay {
				violated = true
				if !test {
					pb.ubFinish = min(pb.ubFinish, start-c.Delay)
				}
			}
		case model.CC:
			if completion < pc+c.Delay {
				violated = true
				if !test {
					pb.ubFinish = min(pb.ubFinish, completion-c.Delay)
				}
			}
		}
		if !violated {
			continue
		}
		if test {
			sol.Executions[aid] = execs[:0]
			return Inf, aid
		}
		sol.SetCritical(c.Pred, aid)
		if pos := sol.Position(c.Pred); pos < minPos {
			target, minPos, constraint = c.Pred, pos, c.ID
		}
	}

	if target == solution.None {
		if test {
			sol.Executions[aid] = execs[:0]
			return completion, aid
		}
		sol.Executions[aid] = execs
		s.assign(aid, mode, execs, 1)
		sol.UpdateAssigned(sol.Position(aid) + 1)
		return 0, sol.Next(aid)
	}
	sol.Executions[aid] = execs
	return s.backtrack(sol, aid, target, constraint, false)
}
