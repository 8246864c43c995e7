package kernel

// mlfqsTickLocked runs the MLFQS per-tick bookkeeping schedule, grounded
// on original_source/threads/thread.c's mlfqs_* family:
// recent_cpu += 1 for the running thread every tick; load_avg and every
// thread's recent_cpu are recomputed once per second (timerFreq ticks);
// every thread's priority is recomputed every 4 ticks. Must be called
// with the scheduler lock held.
func (s *Scheduler) mlfqsTickLocked(now uint64) {
	if s.current != s.idle {
		s.current.RecentCPU = s.current.RecentCPU.AddInt(1)
	}

	freq := s.timerFreq
	if freq <= 0 {
		freq = 100
	}
	if now%uint64(freq) == 0 {
		s.mlfqsRecomputeLoadAvgAndRecentCPULocked()
	}
	if now%4 == 0 {
		s.mlfqsRecomputePrioritiesLocked()
	}
}

// mlfqsRecomputeLoadAvgAndRecentCPULocked implements:
//
//	load_avg = (59/60) * load_avg + (1/60) * ready_threads
//	recent_cpu = (2*load_avg)/(2*load_avg + 1) * recent_cpu + nice
//
// applied to every live thread.
func (s *Scheduler) mlfqsRecomputeLoadAvgAndRecentCPULocked() {
	ready := s.ready.len()
	if s.current != s.idle {
		ready++
	}

	fiftyNineSixtieths := IntToFixed(59).DivInt(60)
	oneSixtieth := IntToFixed(1).DivInt(60)
	s.loadAvg = fiftyNineSixtieths.Mul(s.loadAvg).Add(oneSixtieth.MulInt(ready))

	twoLoadAvg := s.loadAvg.MulInt(2)
	coeff := twoLoadAvg.Div(twoLoadAvg.AddInt(1))

	s.registry.forEach(func(t *Thread) {
		if t == s.idle {
			return
		}
		t.RecentCPU = coeff.Mul(t.RecentCPU).AddInt(t.Nice)
	})
}

// mlfqsRecomputePrioritiesLocked implements:
//
//	priority = PRI_MAX - (recent_cpu / 4) - (nice * 2)
//
// clamped to [PriMin, PriMax], applied to every live thread, and re-sorts
// the ready queue to reflect any resulting reordering.
func (s *Scheduler) mlfqsRecomputePrioritiesLocked() {
	s.registry.forEach(func(t *Thread) {
		if t == s.idle {
			return
		}
		p := PriMax - t.RecentCPU.DivInt(4).ToIntNearest() - t.Nice*2
		if p < PriMin {
			p = PriMin
		}
		if p > PriMax {
			p = PriMax
		}
		t.BasePriority = p
		t.recomputeEffectivePriority()
		if t.queueTag == queueReady {
			s.ready.resort(t)
		}
	})
}

// GetLoadAvg returns 100x the current system load average, rounded to the
// nearest integer.
func (s *Scheduler) GetLoadAvg() int {
	restore := s.intrOff()
	defer restore()
	return s.loadAvg.Display100x()
}

// GetRecentCPU returns 100x t's recent_cpu, rounded to the nearest integer.
func (s *Scheduler) GetRecentCPU(t *Thread) int {
	restore := s.intrOff()
	defer restore()
	return t.RecentCPU.Display100x()
}

// SetNice sets the caller's nice value. It does not itself recompute
// priority: the next mlfqsRecomputePrioritiesLocked, on its regular
// 4-tick cadence, picks up the new nice along with everything else,
// matching original_source/threads/thread.c's
// thread_set_nice (whose call to thread_set_priority_mlfqs and
// check_preempt is commented out for exactly this reason).
func (s *Scheduler) SetNice(nice int) {
	if nice < NiceMin {
		nice = NiceMin
	}
	if nice > NiceMax {
		nice = NiceMax
	}

	restore := s.intrOff()
	s.current.Nice = nice
	restore()
}
