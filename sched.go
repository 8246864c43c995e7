package kernel

import "sync"

// schedTimeSlice is the fixed time-slice length in ticks.
const schedTimeSlice = 4

// Scheduler owns the ready queue, sleep queue, all-threads registry and
// destruction queue, and drives context switches between Thread goroutines
// via a per-thread baton channel (see doc.go's "Execution Model").
type Scheduler struct {
	mu sync.Mutex // the "interrupts disabled" critical-section lock

	ready       readyQueue
	sleeping    []*Thread // sorted ascending by WakeupTick (see DESIGN.md)
	registry    *registry
	destruction *destructionQueue

	current *Thread
	idle    *Thread
	main    *Thread

	ticks        uint64
	sliceCounter int
	nextID       int

	mlfqs     bool
	loadAvg   Fixed17_14
	timerFreq int

	logger  Logger
	metrics *SchedulerMetrics
}

// New constructs a Scheduler, its idle thread, and its initial ("main")
// thread. The calling goroutine becomes the main thread's goroutine: no
// separate goroutine is spawned for it, matching the real kernel's
// bootstrap thread, which is simply whatever is executing when scheduling
// is enabled.
func New(opts ...SchedulerOption) *Scheduler {
	cfg, err := resolveOptions(opts)
	if err != nil {
		// Option constructors in this package never return an error; a
		// non-nil err here would indicate a programmer error in a custom
		// SchedulerOption.
		panic(err)
	}

	s := &Scheduler{
		registry:    newRegistry(),
		destruction: newDestructionQueue(),
		mlfqs:       cfg.mlfqs,
		timerFreq:   cfg.timerFreq,
		logger:      cfg.logger,
	}
	if cfg.metricsEnabled {
		s.metrics = &SchedulerMetrics{}
	}

	s.idle = newThread(s, s.allocID(), "idle", PriMin, idleEntry, nil)
	s.registry.add(s.idle)

	s.main = newThread(s, s.allocID(), "main", PriDefault, nil, nil)
	s.registry.add(s.main)
	s.main.state.Store(ThreadRunning)
	s.current = s.main

	go s.runThread(s.idle)

	return s
}

func (s *Scheduler) allocID() int {
	id := s.nextID
	s.nextID++
	return id
}

// intrOff is the RAII-style scoped "interrupts disabled" guard: callers do
// `restore := s.intrOff(); defer restore()`.
func (s *Scheduler) intrOff() func() {
	s.mu.Lock()
	return s.mu.Unlock
}

// CurrentThread returns the thread presently holding the baton. Must be
// called from that thread's own goroutine.
func (s *Scheduler) CurrentThread() *Thread {
	if s.current.magic != threadMagic {
		panic("kernel: stack overflow detected (magic mismatch)")
	}
	return s.current
}

// Ticks returns the monotonic tick counter.
func (s *Scheduler) Ticks() uint64 {
	return s.ticks
}

// Metrics returns the scheduler's metrics, or nil if WithMetrics(true) was
// not supplied to New.
func (s *Scheduler) Metrics() *SchedulerMetrics {
	return s.metrics
}

// idleEntry is the body of the dedicated idle thread: a tight Tick/park
// loop standing in for the real kernel's hlt instruction (doc.go).
func idleEntry(s *Scheduler, self *Thread) {
	for {
		s.Tick()
	}
}

// runThread is the goroutine body shared by every non-main thread: park
// until first granted the baton, run the entry function, then exit with
// status 0 if the entry function returns without calling Exit itself. The
// State check matters: once entry has already called Exit, s.current has
// moved on to whatever thread was scheduled next, so an unconditional
// second call here would tear down that unrelated thread instead of a
// no-op on this one.
func (s *Scheduler) runThread(t *Thread) {
	<-t.resumeCh
	if t.entry != nil {
		t.entry(s, t)
	}
	if t.State() != ThreadDying {
		s.Exit(0)
	}
}

// Spawn allocates a new thread, places it Ready, and returns it (spec
// §4.1). If the caller's effective priority is lower than the new
// thread's, the caller immediately yields.
func (s *Scheduler) Spawn(name string, priority int, entry func(s *Scheduler, self *Thread), arg any) *Thread {
	restore := s.intrOff()

	t := newThread(s, s.allocID(), name, priority, entry, arg)
	s.registry.add(t)
	t.state.Store(ThreadReady)
	s.ready.insert(t)
	s.updateReadyMetricLocked()

	go s.runThread(t)

	self := s.current
	needYield := t.EffectivePriority > self.EffectivePriority
	restore()

	if needYield {
		s.Yield()
	}
	return t
}

// Yield places the caller back on the ready queue (unless it is the idle
// thread) and switches to the next candidate.
func (s *Scheduler) Yield() {
	restore := s.intrOff()
	self := s.current
	if self != s.idle {
		self.state.Store(ThreadReady)
		s.ready.insert(self)
	}
	s.scheduleLocked(restore)
}

// Block marks the caller Blocked and switches to the next candidate. The
// caller is responsible for having already placed itself on some wait
// structure (a semaphore's waiter list, a sleep queue, ...) before calling.
func (s *Scheduler) Block() {
	restore := s.intrOff()
	self := s.current
	self.state.Store(ThreadBlocked)
	s.scheduleLocked(restore)
}

// Unblock moves a Blocked thread to the ready queue at its priority
// position. It does not preempt: callers in interrupt (tick) context rely
// on this.
func (s *Scheduler) Unblock(t *Thread) {
	restore := s.intrOff()
	defer restore()
	if t.State() != ThreadBlocked {
		panic("kernel: unblock of a thread that is not Blocked")
	}
	t.state.Store(ThreadReady)
	s.ready.insert(t)
	s.updateReadyMetricLocked()
}

// Exit marks the caller Dying and hands the baton to the next thread. It
// then returns to its caller without waiting to be rescheduled, so code
// after the call runs without holding the baton: a spawned thread's entry
// function returns right after Exit, and runThread, seeing the thread
// Dying, ends the goroutine without a second Exit. Any still-living children are
// unlinked from this thread (their Parent back-link is cleared) before the
// exit status is published, so a child that outlives its parent never
// retains a dangling reference to it.
func (s *Scheduler) Exit(status int) {
	restore := s.intrOff()
	self := s.current
	self.ExitStatus = status
	self.state.Store(ThreadDying)
	s.registry.remove(self.ID)
	for _, c := range self.Children {
		c.Parent = nil
	}
	if self.AddrSpace != nil {
		self.AddrSpace.Destroy()
	}
	self.exitSync.raiseLocked(s)
	s.scheduleLocked(restore)
}

// SetPriority updates the caller's base priority, recomputes its effective
// priority from current donors, and yields if a higher-priority Ready
// thread now exists. A no-op under MLFQS, which manages priority on its
// own cadence.
func (s *Scheduler) SetPriority(p int) {
	restore := s.intrOff()
	if s.mlfqs {
		restore()
		return
	}
	self := s.current
	self.BasePriority = p
	self.recomputeEffectivePriority()
	needYield := s.ready.len() > 0 && s.ready.items[0].EffectivePriority > self.EffectivePriority
	restore()

	if needYield {
		s.Yield()
	}
}

// Priority returns the caller's effective priority.
func (s *Scheduler) Priority() int {
	return s.current.EffectivePriority
}

// scheduleLocked performs the selection-and-switch sequence: reap dead
// threads, pick the next thread to run, and hand off the baton. Must be
// called with the scheduler lock held; it releases the lock as part of
// the handoff.
func (s *Scheduler) scheduleLocked(restore func()) {
	for _, dead := range s.destruction.drain() {
		close(dead.resumeCh)
	}

	next := s.ready.popFront()
	if next == nil {
		next = s.idle
	}

	prev := s.current
	s.current = next
	next.state.Store(ThreadRunning)
	s.sliceCounter = 0
	s.updateReadyMetricLocked()
	if s.metrics != nil {
		s.metrics.RecordContextSwitch()
	}

	dying := prev.State() == ThreadDying
	if dying && prev != s.main {
		s.destruction.push(prev)
	}

	restore()

	if next == prev {
		return
	}
	next.resumeCh <- struct{}{}
	if !dying {
		<-prev.resumeCh
	}
}

func (s *Scheduler) updateReadyMetricLocked() {
	if s.metrics != nil {
		s.metrics.UpdateReadyQueueDepth(s.ready.len())
	}
}

// Tick models the periodic timer interrupt. It must be called
// by the currently Running thread's own goroutine (see doc.go). It wakes
// expired sleepers, runs MLFQS bookkeeping when enabled, and requests a
// yield at interrupt return once the current thread's time slice expires.
func (s *Scheduler) Tick() {
	restore := s.intrOff()
	s.ticks++
	now := s.ticks

	s.wakeSleepersLocked(now)

	if s.mlfqs {
		s.mlfqsTickLocked(now)
	}

	if s.current == s.idle {
		if s.ready.len() > 0 {
			s.scheduleLocked(restore)
			return
		}
		restore()
		return
	}

	s.sliceCounter++
	if s.sliceCounter >= schedTimeSlice {
		self := s.current
		self.state.Store(ThreadReady)
		s.ready.insert(self)
		s.scheduleLocked(restore)
		return
	}
	restore()
}
