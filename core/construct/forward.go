package construct

import (
	"fmt"

	"github.com/kilianp07/rcpsched/core/model"
	"github.com/kilianp07/rcpsched/core/solution"
)

func (s *Scheduler) raiseStart(b *bounds, t, by int, test bool) {
	if test {
		b.lbStart = max(b.lbStart, t)
		return
	}
	switch {
	case t > b.lbStart:
		b.lbStart = t
		s.critStart = append(s.critStart[:0], by)
	case t == b.lbStart:
		s.critStart = append(s.critStart, by)
	}
}

func (s *Scheduler) raiseFinish(b *bounds, t, by int, test bool) {
	if test {
		b.lbFinish = max(b.lbFinish, t)
		return
	}
	switch {
	case t > b.lbFinish:
		b.lbFinish = t
		s.critFinish = append(s.critFinish[:0], by)
	case t == b.lbFinish:
		s.critFinish = append(s.critFinish, by)
	}
}

func (s *Scheduler) markBounds(sol *solution.Solution, aid int) {
	for _, ids := range [][]int{s.critStart, s.critFinish} {
		for _, id := range ids {
			if id != model.SourceID {
				sol.SetCritical(aid, id)
			}
		}
	}
}

// forward places aid as early as possible. In test mode nothing outside the
// activity changes and the first result is the completion time (Inf when it
// cannot be placed). Otherwise the first result is zero to continue with the
// returned activity, or non-zero when the pass must stop.
func (s *Scheduler) forward(sol *solution.Solution, aid int, test bool) (int, int) {
	act := s.p.Activities[aid]
	ml := sol.Modes[aid]
	mode := act.Modes[ml]
	d := mode.Duration
	b := &s.bounds[aid]

	s.critStart, s.critFinish = s.critStart[:0], s.critFinish[:0]
	for _, c := range act.In {
		pe := sol.Executions[c.Pred]
		if len(pe) == 0 || !c.Applies(sol.Modes[c.Pred], ml) {
			continue
		}
		start, completion := pe[0].From, pe[len(pe)-1].To
		switch c.Type {
		case model.SS:
			s.raiseStart(b, start+c.Delay, c.Pred, test)
		case model.SC:
			s.raiseFinish(b, start+c.Delay, c.Pred, test)
		case model.CS:
			s.raiseStart(b, completion+c.Delay, c.Pred, test)
		case model.CC:
			s.raiseFinish(b, completion+c.Delay, c.Pred, test)
		}
	}
	if !test {
		s.markBounds(sol, aid)
	}

	// Lower bounds implied by the completion bound, walking the longest
	// breaks allowed back from the end of the work.
	br := mode.MaxBreak
	lb := b.lbFinish
	ws := append(s.windows[:0], window{d, d, lb, 1})
	for r := br.Find(d); ; r = br.Prev(r) {
		key, bfrom, bto := br.Key(r), br.From(r), br.To(r)
		from := max(bto-(lb-b.lbStart)/(1+key), bfrom-1)
		lb -= (bto - from) * (1 + key)
		if from < bto {
			ws = append(ws, window{from, bto, lb, 1 + key})
		}
		if from != bfrom-1 || bfrom <= 1 {
			break
		}
	}
	if last := &ws[len(ws)-1]; last.from == -1 {
		last.from = 0
		last.value += last.grad
	}
	if last := ws[len(ws)-1]; last.from == 0 {
		b.lbStart = max(b.lbStart, last.value-br.Value(0))
	}

	t := b.lbStart
	progress := 0
	execs := append(sol.Executions[aid][:0], solution.Execution{From: t, To: t})

	for {
		if t == execs[0].From {
			t = s.checkStates(sol, aid, mode, t, test)
			execs[0] = solution.Execution{From: t, To: t}
		}
		if t >= Inf {
			s.windows = ws
			sol.Executions[aid] = execs[:0]
			if !test {
				sol.AddViolation(solution.DueDate, aid, Inf)
			}
			return Inf, aid
		}

		if n := len(ws); n > 0 && ws[n-1].from == progress && ws[n-1].value > t {
			t = ws[n-1].value
		}
		for len(ws) > 0 {
			w := &ws[len(ws)-1]
			if w.value > t {
				break
			}
			if w.value+(w.to-w.from)*w.grad <= t {
				ws = ws[:len(ws)-1]
				continue
			}
			x := (t-w.value)/w.grad + w.from + 1
			w.value += (x - w.from) * w.grad
			w.from = x
			break
		}

		nextProgress, retry, restart := d, Inf, 0
		bd := br.Find(progress)
		bdKey, bdFrom := br.Key(bd), br.From(bd)
		breakPoint := bdFrom - 1
		if bdKey > 0 {
			breakPoint = progress
		}
		mp := mode.MaxParallel
		pi := mp.Find(progress + 1)
		piKey, piTo := mp.Key(pi), mp.To(pi)
		parallel := min(piKey, d-progress)

		if progress < d {
			if n := len(ws); n > 0 {
				w := ws[n-1]
				parallel = min(parallel, w.from-progress)
				if parallel == 1 && w.grad == 1 && t+w.from-progress >= w.value {
					nextProgress = w.to + 1
				} else {
					nextProgress = w.from
				}
			}

			increase := false
			for _, req := range mode.Requirements {
				work := req.Work
				wr := work.Find(progress + 1)
				ledger := s.resources[req.Resource]
				prof := ledger.Profile()
				pr := prof.Find(t + 1)
				if work.Key(wr) > prof.Key(pr) {
					parallel = 0
					for {
						if !test {
							sol.SetCriticalRange(aid, ledger, prof.From(pr), prof.To(pr))
						}
						pr = prof.Next(pr)
						if work.Key(wr) <= prof.Key(pr) || prof.To(pr) > Inf {
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
						retry, restart = rt, 0
					}
					if rt == retry {
						restart = max(restart, prof.From(pr)-1)
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
						for _, req := range mode.Requirements {
							work := req.Work
							wr := work.Find(progress + 1)
							prof := s.resources[req.Resource].Profile()
							pr := prof.Find(t + 1)
							if parallel == 1 {
								nextProgress = min(nextProgress, work.To(wr), progress+prof.To(pr)-t)
							} else {
								nextProgress = min(nextProgress, progress+parallel*min((work.To(wr)-progress)/parallel, prof.To(pr)-t))
							}
						}
					}
				}
			}
		}

		if retry == Inf {
			last := execs[len(execs)-1]
			if gap := t - last.To; gap > 0 {
				if gap > bdKey {
					if progress == 0 {
						retry, restart = 0, t-bdKey
					} else {
						left := max(bdFrom-1, progress-(last.To-last.From)*last.Parallel)
						if last.Parallel == 1 {
							if bdKey > 0 {
								left = max(left, progress-gap/bdKey)
							}
						} else if bdKey <= gap {
							left = max(left, progress-gap*last.Parallel/((1+bdKey)*last.Parallel-1))
						} else {
							left = progress
						}
						if left >= progress {
							panic(fmt.Sprintf("construct: activity %s cannot move back from progress %d", act.Name, progress))
						}
						restart = t - (progress-left)*(1+bdKey)
						ws = append(ws, window{left, progress, restart, 1 + bdKey})
						retry = left*2 + 1
					}
				} else {
					for _, req := range mode.Requirements {
						need := req.Break.Value(progress)
						if need <= 0 {
							continue
						}
						ledger := s.resources[req.Resource]
						prof := ledger.Profile()
						for pr := prof.Find(t); ; pr = prof.Prev(pr) {
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
									retry, restart = rt, 0
								}
								if rt == retry {
									restart = max(restart, min(prof.To(pr), t))
								}
								break
							}
							if prof.From(pr) <= last.To+1 {
								break
							}
						}
					}
				}
			}

			if retry == Inf {
				if progress == d {
					execs = append(execs, solution.Execution{From: t, To: t})
					break
				}
				inc := (nextProgress - progress) / parallel
				if nextProgress != progress+parallel*inc {
					panic(fmt.Sprintf("construct: activity %s: progress %d to %d is not a multiple of width %d",
						act.Name, progress, nextProgress, parallel))
				}
				if l := &execs[len(execs)-1]; l.To == t && l.Parallel == parallel {
					l.To += inc
				} else {
					execs = append(execs, solution.Execution{From: t, To: t + inc, Parallel: parallel})
				}
				t += inc
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
					w.value += (progress - w.from) * w.grad
					w.from = progress
					break
				}
				continue
			}
		}

		// Retry from an earlier progress point at a later time.
		if n := len(ws); n == 0 || ws[n-1].from > progress {
			ws = append(ws, window{progress, progress, t, 1 + bdKey})
		}
		if retry == 0 {
			execs = append(execs[:0], solution.Execution{From: restart, To: restart})
		} else {
			if retry%2 == 0 {
				restart--
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
				from := e.From
				keep := done - progress + retry/2
				execs = execs[:len(execs)-1]
				if keep/e.Parallel > 0 {
					execs = append(execs, solution.Execution{From: from, To: from + keep/e.Parallel, Parallel: e.Parallel})
					from += keep / e.Parallel
				}
				if frac := keep % e.Parallel; frac > 0 {
					if l := &execs[len(execs)-1]; l.To == from && l.Parallel == frac {
						l.To = from + 1
					} else {
						execs = append(execs, solution.Execution{From: from, To: from + 1, Parallel: frac})
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
	for _, c := range act.Out {
		se := sol.Executions[c.Succ]
		if len(se) == 0 || !c.Applies(ml, sol.Modes[c.Succ]) {
			continue
		}
		sb := &s.bounds[c.Succ]
		violated := false
		switch c.Type {
		case model.SS:
			if v := start + c.Delay; v > se[0].From {
				violated = true
				if !test {
					sb.lbStart = max(sb.lbStart, v)
				}
			}
		case model.SC:
			if v := start + c.Delay; v > se[len(se)-1].To {
				violated = true
				if !test {
					sb.lbFinish = max(sb.lbFinish, v)
				}
			}
		case model.CS:
			if v := completion + c.Delay; v > se[0].From {
				violated = true
				if !test {
					sb.lbStart = max(sb.lbStart, v)
				}
			}
		case model.CC:
			if v := completion + c.Delay; v > se[len(se)-1].To {
				violated = true
				if !test {
					sb.lbFinish = max(sb.lbFinish, v)
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
		sol.SetCritical(c.Succ, aid)
		if pos := sol.Position(c.Succ); pos < minPos {
			target, minPos, constraint = c.Succ, pos, c.ID
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
	return s.backtrack(sol, aid, target, constraint, true)
}
