// Package kernel simulates the core of a small teaching-style, single-CPU
// preemptive kernel: a priority-scheduled thread model, synchronization
// primitives with priority donation, a timer-driven sleep/wakeup mechanism,
// and an MLFQS scheduler.
//
// # Architecture
//
// A [Scheduler] owns a [*Thread] per kernel thread, a priority-ordered
// ready queue, a sleep queue, and the all-threads [registry]. Each spawned
// thread runs on its own goroutine; [Scheduler.Tick] drives the timer
// interrupt logic and must be called by the goroutine of the currently
// Running thread (see "Execution Model" below).
//
// Synchronization primitives ([Semaphore], [Lock], [Cond]) are built on top
// of the scheduler's block/unblock primitives and implement a bounded
// priority-donation walk up a chain of held locks. [Sleep] and the alarm
// machinery put a thread on the sleep queue until a target tick.
//
// # Execution Model
//
// Go gives no supported way to asynchronously preempt a running goroutine,
// so the single-CPU "exactly one Running thread" invariant is realized
// cooperatively: every thread goroutine parks on a private single-slot
// "baton" channel except while it holds the baton (equivalently, while it
// is the Running thread). All scheduler state transitions — spawn, yield,
// block, unblock, exit, priority change — run while holding the scheduler's
// interrupt-off lock ([Scheduler] uses an RAII-style scoped guard: acquire
// and get back the matching release closure) and hand the baton to the
// next thread before returning control.
//
// [Scheduler.Tick] must always be called by the Running thread's own
// goroutine, exactly as the real timer interrupt runs on the interrupted
// thread's kernel stack rather than a separate core. This keeps the whole
// simulation deterministic: at any instant exactly one goroutine is doing
// anything other than blocking on its baton, so MLFQS fairness and priority
// donation tests never race.
//
// # Thread Safety
//
//   - [Scheduler] methods are safe to call only from a thread's own
//     goroutine while it holds the baton (i.e. from within its entry
//     function), mirroring the real kernel's single-CPU discipline.
//   - [Scheduler.Metrics] and registry iteration (used by MLFQS) are safe
//     to call concurrently with the running simulation; they take their
//     own locks rather than relying on the baton invariant.
//
// # Usage
//
//	sched := kernel.New()
//	sched.Spawn("worker", kernel.PriDefault, func(s *kernel.Scheduler, self *kernel.Thread) {
//	    // runs with the baton held
//	    s.Yield()
//	}, nil)
//	for i := 0; i < 100; i++ {
//	    sched.Tick()
//	}
//
// # Error Types
//
// Errors fall into three kinds: programmer-fatal conditions
// panic ([Scheduler] asserts its own invariants; [Lock] panics with
// [ErrLockNotOwned] or [ErrRecursiveAcquire]), process-fatal conditions
// are reported via [InvalidPointerError] / [PageFaultError], and
// operation-local failures are returned as plain errors
// ([ErrUnknownChild], [ErrDoubleWait], [ErrMappingExists], ...).
package kernel
