package kernel

import "golang.org/x/exp/slices"

// maxDonationDepth bounds the priority-donation walk: in practice a small
// constant depth, rather than unbounded, keeps interrupt-off sections
// short.
const maxDonationDepth = 8

// Semaphore is a counting semaphore whose waiter list is kept in
// descending-effective-priority order (ties broken by arrival order),
// grounded on original_source/threads/synch.c's sema_down/sema_up.
type Semaphore struct {
	sched   *Scheduler
	value   int
	waiters []*Thread
}

// NewSemaphore constructs a Semaphore with the given initial value.
func NewSemaphore(sched *Scheduler, value int) *Semaphore {
	return &Semaphore{sched: sched, value: value}
}

// Down waits for the semaphore's value to be positive, then decrements it.
func (sem *Semaphore) Down() {
	restore := sem.sched.intrOff()
	for sem.value == 0 {
		self := sem.sched.current
		self.queueTag = queueWait
		sem.insertWaiterLocked(self)
		restore()
		sem.sched.Block()
		restore = sem.sched.intrOff()
	}
	sem.value--
	restore()
}

// insertWaiterLocked inserts t into the waiter list at its priority-ordered
// position, mirroring readyQueue.insert.
func (sem *Semaphore) insertWaiterLocked(t *Thread) {
	idx, _ := slices.BinarySearchFunc(sem.waiters, t, func(a, b *Thread) int {
		if a.EffectivePriority >= b.EffectivePriority {
			return -1
		}
		return 1
	})
	sem.waiters = append(sem.waiters, nil)
	copy(sem.waiters[idx+1:], sem.waiters[idx:])
	sem.waiters[idx] = t
}

// resortWaitersLocked re-sorts the waiter list by current effective
// priority: a donation received after a thread enqueued may have changed
// its priority since insertWaiterLocked last placed it.
func (sem *Semaphore) resortWaitersLocked() {
	slices.SortStableFunc(sem.waiters, func(a, b *Thread) int {
		if a.EffectivePriority > b.EffectivePriority {
			return -1
		}
		if a.EffectivePriority < b.EffectivePriority {
			return 1
		}
		return 0
	})
}

// Up increments the semaphore's value, waking the highest-effective-
// priority waiter if any. Does not itself yield: the newly-unblocked
// thread is merely made Ready.
func (sem *Semaphore) Up() {
	restore := sem.sched.intrOff()
	sem.value++
	var woken *Thread
	if len(sem.waiters) > 0 {
		sem.resortWaitersLocked()
		woken = sem.waiters[0]
		sem.waiters = sem.waiters[1:]
	}
	restore()
	if woken != nil {
		sem.sched.Unblock(woken)
	}
}

// Value returns the semaphore's current value (diagnostic use only).
func (sem *Semaphore) Value() int {
	restore := sem.sched.intrOff()
	defer restore()
	return sem.value
}

// Lock is a non-recursive mutual-exclusion lock with priority donation,
// grounded on original_source/threads/synch.c's lock_acquire/lock_release
// and thread.c's donate_priority.
type Lock struct {
	sched *Scheduler
	sema  *Semaphore
	owner *Thread
}

// NewLock constructs an unheld Lock.
func NewLock(sched *Scheduler) *Lock {
	return &Lock{sched: sched, sema: NewSemaphore(sched, 1)}
}

// Acquire blocks until the lock is free, then takes ownership. Donates the
// caller's effective priority to the current holder (and transitively, up
// a bounded chain of nested locks) while waiting.
func (l *Lock) Acquire() {
	self := l.sched.current

	restore := l.sched.intrOff()
	if l.owner == self {
		restore()
		panic(ErrRecursiveAcquire)
	}
	if l.owner != nil {
		self.WaitOnLock = l
		l.donatePriorityLocked(self)
	}
	restore()

	l.sema.Down()

	restore = l.sched.intrOff()
	self.WaitOnLock = nil
	l.owner = self
	restore()
}

// donatePriorityLocked walks the chain: self donates to the holder of the
// lock it's waiting on; if that holder is itself waiting on another lock,
// the donation continues, up to maxDonationDepth hops. Thread.donors is
// keyed by donor id rather than a pointer graph, so a donation is
// idempotent across repeated acquire storms.
func (l *Lock) donatePriorityLocked(self *Thread) {
	depth := 0
	lock := l
	donor := self
	for lock != nil && lock.owner != nil && depth < maxDonationDepth {
		holder := lock.owner
		if holder.donors == nil {
			holder.donors = make(map[int]*Thread)
		}
		holder.donors[donor.ID] = donor
		holder.recomputeEffectivePriority()
		if holder.queueTag == queueReady {
			l.sched.ready.resort(holder)
		}
		if l.sched.metrics != nil {
			l.sched.metrics.RecordDonationChain(depth + 1)
		}

		lock = holder.WaitOnLock
		donor = holder
		depth++
	}
}

// Release gives up ownership, drops any donation this lock's acquisition
// chain produced, recomputes the releaser's own effective priority, and
// wakes the next waiter (if any).
func (l *Lock) Release() {
	restore := l.sched.intrOff()
	if l.owner != l.sched.current {
		restore()
		panic(ErrLockNotOwned)
	}
	self := l.owner
	l.owner = nil

	for id, d := range self.donors {
		if d.WaitOnLock == l {
			delete(self.donors, id)
		}
	}
	self.recomputeEffectivePriority()
	if self.queueTag == queueReady {
		l.sched.ready.resort(self)
	}
	restore()

	l.sema.Up()
}

// HeldBy reports whether t currently owns the lock.
func (l *Lock) HeldBy(t *Thread) bool {
	restore := l.sched.intrOff()
	defer restore()
	return l.owner == t
}

// condWaiter pairs a waiting thread's private wakeup semaphore with the
// thread itself, so Signal/Broadcast can re-sort by current effective
// priority before waking.
type condWaiter struct {
	sema   *Semaphore
	thread *Thread
}

// Cond is a Mesa-style condition variable used only alongside an
// externally held Lock, grounded on synch.c's cond_wait/cond_signal/
// cond_broadcast.
type Cond struct {
	sched   *Scheduler
	waiters []condWaiter
}

// NewCond constructs a Cond.
func NewCond(sched *Scheduler) *Cond {
	return &Cond{sched: sched}
}

// resortWaitersLocked re-sorts the waiter list by each waiting thread's
// current effective priority, descending.
func (c *Cond) resortWaitersLocked() {
	slices.SortStableFunc(c.waiters, func(a, b condWaiter) int {
		if a.thread.EffectivePriority > b.thread.EffectivePriority {
			return -1
		}
		if a.thread.EffectivePriority < b.thread.EffectivePriority {
			return 1
		}
		return 0
	})
}

// Wait releases lock, blocks until signaled, then reacquires lock. The
// caller must already hold lock.
func (c *Cond) Wait(lock *Lock) {
	self := c.sched.current
	waiter := NewSemaphore(c.sched, 0)

	restore := c.sched.intrOff()
	c.waiters = append(c.waiters, condWaiter{sema: waiter, thread: self})
	restore()

	lock.Release()
	waiter.Down()
	lock.Acquire()
}

// Signal wakes the highest-effective-priority waiting thread, if any. The
// caller must hold the associated lock.
func (c *Cond) Signal() {
	restore := c.sched.intrOff()
	var woken *Semaphore
	if len(c.waiters) > 0 {
		c.resortWaitersLocked()
		woken = c.waiters[0].sema
		c.waiters = c.waiters[1:]
	}
	restore()
	if woken != nil {
		woken.Up()
	}
}

// Broadcast wakes every waiting thread, highest effective priority first.
func (c *Cond) Broadcast() {
	restore := c.sched.intrOff()
	c.resortWaitersLocked()
	woken := c.waiters
	c.waiters = nil
	restore()
	for _, w := range woken {
		w.sema.Up()
	}
}
