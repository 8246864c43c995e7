// Package harness provides a deterministic test driver for kernel's
// cooperative tick model, grounded on eventloop's loopTestHooks pattern
// (function-field hooks injected for deterministic observation of
// otherwise-concurrent behavior) and on
// original_source/tests/threads/mlfqs/mlfqs-fair.c's shape: spawn a fixed
// number of busy threads, drive a fixed number of ticks, then inspect
// per-thread CPU-tick counters.
package harness

import (
	"sync"

	"github.com/joeycumines/go-kernelsim"
)

// Recorder drives a kernel.Scheduler and records, for every spawned busy
// thread, how many ticks it was the Running thread for — the statistic
// MLFQS fairness scenarios are specified against.
type Recorder struct {
	Sched *kernel.Scheduler

	mu       sync.Mutex
	runTicks map[int]uint64
}

// NewRecorder constructs a Recorder wrapping a fresh Scheduler built with
// opts.
func NewRecorder(opts ...kernel.SchedulerOption) *Recorder {
	return &Recorder{
		Sched:    kernel.New(opts...),
		runTicks: make(map[int]uint64),
	}
}

// BusyBody returns a thread entry function that simply calls Tick in a
// tight loop until untilTick is reached, then exits — the harness
// equivalent of mlfqs-fair.c's busy_thread, standing in for a CPU-bound
// user process that never voluntarily yields.
func (r *Recorder) BusyBody(untilTick uint64) func(s *kernel.Scheduler, self *kernel.Thread) {
	return func(s *kernel.Scheduler, self *kernel.Thread) {
		for {
			// self is necessarily the Running thread here: entry bodies
			// only execute while holding the baton (doc.go).
			r.recordTick(self.ID)
			s.Tick()
			if s.Ticks() >= untilTick {
				return
			}
		}
	}
}

func (r *Recorder) recordTick(tid int) {
	r.mu.Lock()
	r.runTicks[tid]++
	r.mu.Unlock()
}

// RunTicks returns how many ticks thread tid was observed Running for.
func (r *Recorder) RunTicks(tid int) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runTicks[tid]
}

// DriveUntil calls Tick on the scheduler's idle thread's behalf until the
// tick counter reaches target, for scenarios where the caller (the
// harness goroutine acting as the Scheduler's main thread) wants to
// "let time pass" without itself being one of the threads under test.
// Precondition: the calling goroutine is the Scheduler's current thread.
func DriveUntil(s *kernel.Scheduler, target uint64) {
	for s.Ticks() < target {
		s.Tick()
	}
}
