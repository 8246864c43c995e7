package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func drainExit(s *Scheduler, threads ...*Thread) {
	for _, t := range threads {
		t.WaitExitSync()
	}
}

func TestSpawnRunsEntryAndExits(t *testing.T) {
	s := New()
	var ran bool
	worker := s.Spawn("worker", PriDefault, func(sch *Scheduler, self *Thread) {
		ran = true
		sch.Exit(7)
	}, nil)

	drainExit(s, worker)

	require.True(t, ran)
	require.Equal(t, 7, worker.ExitStatus)
}

func TestSpawnHigherPriorityPreemptsImmediately(t *testing.T) {
	s := New()
	var ranBeforeReturn bool
	s.Spawn("high", PriDefault+10, func(sch *Scheduler, self *Thread) {
		ranBeforeReturn = true
		sch.Exit(0)
	}, nil)
	// Spawn must have yielded to the new, strictly-higher-priority thread
	// before returning.
	require.True(t, ranBeforeReturn)
}

func TestPriorityDonationSingle(t *testing.T) {
	s := New()
	lock := NewLock(s)
	acquired := NewSemaphore(s, 0)
	releaseSem := NewSemaphore(s, 0)

	low := s.Spawn("low", 10, func(sch *Scheduler, self *Thread) {
		lock.Acquire()
		acquired.Up()
		releaseSem.Down()
		lock.Release()
		sch.Exit(0)
	}, nil)

	// acquired.Down() blocks the caller outright rather than spin-yielding:
	// main's static priority (31) exceeds low's (10), so a busy Yield loop
	// here would always re-select main and never let low run at all.
	acquired.Down()
	require.Equal(t, 10, low.EffectivePriority)

	high := s.Spawn("high", 50, func(sch *Scheduler, self *Thread) {
		lock.Acquire()
		lock.Release()
		sch.Exit(0)
	}, nil)

	// Acquire donates synchronously, inline with the blocking attempt, so
	// by the time Spawn returns control the donation has already landed.
	require.Equal(t, 50, low.EffectivePriority)

	releaseSem.Up()
	drainExit(s, low, high)

	require.Equal(t, 10, low.EffectivePriority)
}

func TestPriorityDonationChainOfThree(t *testing.T) {
	s := New()
	lockA := NewLock(s)
	lockB := NewLock(s)
	t1Acquired := NewSemaphore(s, 0)
	t2HasB := NewSemaphore(s, 0)
	t2HasA := NewSemaphore(s, 0)
	releaseA := NewSemaphore(s, 0)
	releaseB := NewSemaphore(s, 0)

	t1 := s.Spawn("t1", 10, func(sch *Scheduler, self *Thread) {
		lockA.Acquire()
		t1Acquired.Up()
		releaseA.Down()
		lockA.Release()
		sch.Exit(0)
	}, nil)
	t1Acquired.Down()

	t2 := s.Spawn("t2", 20, func(sch *Scheduler, self *Thread) {
		lockB.Acquire()
		t2HasB.Up()
		lockA.Acquire()
		t2HasA.Up()
		releaseB.Down()
		lockA.Release()
		lockB.Release()
		sch.Exit(0)
	}, nil)
	// Up does not yield, so after raising t2HasB, t2 keeps running into
	// lockA.Acquire and blocks there (donating to t1) before main resumes.
	t2HasB.Down()
	require.Equal(t, 20, t1.EffectivePriority)

	// t3's priority (40) exceeds main's (31), so Spawn yields to t3 at once
	// and the donation its Acquire makes lands before Spawn returns.
	t3 := s.Spawn("t3", 40, func(sch *Scheduler, self *Thread) {
		lockB.Acquire()
		lockB.Release()
		sch.Exit(0)
	}, nil)
	require.Equal(t, 40, t1.EffectivePriority)
	require.Equal(t, 40, t2.EffectivePriority)

	releaseA.Up()
	t2HasA.Down()
	releaseB.Up()
	drainExit(s, t1, t2, t3)

	require.Equal(t, 10, t1.EffectivePriority)
}

func TestSleepOrdersWakeupsByTick(t *testing.T) {
	s := New()
	var order []string

	y := s.Spawn("Y", PriDefault, func(sch *Scheduler, self *Thread) {
		sch.Sleep(100)
		order = append(order, "Y")
		sch.Exit(0)
	}, nil)
	x := s.Spawn("X", PriDefault, func(sch *Scheduler, self *Thread) {
		sch.Sleep(200)
		order = append(order, "X")
		sch.Exit(0)
	}, nil)

	for s.Ticks() < 250 {
		s.Tick()
	}
	drainExit(s, x, y)

	require.Equal(t, []string{"Y", "X"}, order)
}

func TestSetPriorityNoOpUnderMLFQS(t *testing.T) {
	s := New(WithMLFQS(true))
	s.SetPriority(5)
	require.Equal(t, PriDefault, s.main.EffectivePriority)
}

// TestExitNullsSurvivingChildrensParentBackLink exercises the half of the
// parent-exits-before-child-does case that does not depend on the process
// package's fork/wait wiring: a thread's Children may still be running
// after it exits, and each must see its own Parent cleared rather than
// left pointing at an exited thread.
func TestExitNullsSurvivingChildrensParentBackLink(t *testing.T) {
	s := New()
	childRelease := NewSemaphore(s, 0)

	var childParentAfterParentExit *Thread

	child := s.Spawn("child", PriDefault, func(sch *Scheduler, self *Thread) {
		childRelease.Down()
		childParentAfterParentExit = self.Parent
		sch.Exit(0)
	}, nil)

	parent := s.Spawn("parent", PriDefault, func(sch *Scheduler, self *Thread) {
		self.Children = append(self.Children, child)
		child.Parent = self
		sch.Exit(0)
	}, nil)

	drainExit(s, parent)
	require.Nil(t, parent.Parent)

	childRelease.Up()
	drainExit(s, child)

	require.Nil(t, childParentAfterParentExit, "child must observe its Parent back-link cleared once the parent has exited")
}
