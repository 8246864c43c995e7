package kernel

import "golang.org/x/exp/slices"

// Sleep blocks the caller for at least ticks timer ticks, grounded on
// original_source/devices/timer.c's timer_sleep. ticks <= 0 returns
// immediately without yielding, matching the original's early-out.
func (s *Scheduler) Sleep(ticks uint64) {
	if ticks == 0 {
		return
	}

	restore := s.intrOff()
	self := s.current
	self.WakeupTick = s.ticks + ticks
	self.queueTag = queueSleep

	idx, _ := slices.BinarySearchFunc(s.sleeping, self, func(a, b *Thread) int {
		if a.WakeupTick < b.WakeupTick {
			return -1
		}
		if a.WakeupTick > b.WakeupTick {
			return 1
		}
		return 0
	})
	s.sleeping = append(s.sleeping, nil)
	copy(s.sleeping[idx+1:], s.sleeping[idx:])
	s.sleeping[idx] = self

	self.state.Store(ThreadBlocked)
	s.scheduleLocked(restore)
}

// wakeSleepersLocked scans the sleep queue's front (sorted ascending by
// WakeupTick: a sorted list trades a dearer insert for a cheap per-tick
// scan, the right tradeoff when a tick handler runs far more often than a
// sleep begins) and unblocks every thread whose wakeup has arrived. Must
// be called with the scheduler lock held.
func (s *Scheduler) wakeSleepersLocked(now uint64) {
	n := 0
	for n < len(s.sleeping) && s.sleeping[n].WakeupTick <= now {
		n++
	}
	if n == 0 {
		return
	}
	woken := s.sleeping[:n]
	s.sleeping = s.sleeping[n:]
	for _, t := range woken {
		t.WakeupTick = 0
		t.queueTag = queueNone
		t.state.Store(ThreadReady)
		s.ready.insert(t)
	}
	s.updateReadyMetricLocked()
}
