package kernel

import "sync/atomic"

// ThreadState is one of a thread's lifecycle states: Ready ⇄ Running,
// Running → Blocked (block), Blocked → Ready (unblock), Running → Dying
// (exit), Dying → reaped.
type ThreadState uint32

const (
	// ThreadBlocked is the initial state at construction; spawn
	// immediately transitions the new thread to ThreadReady.
	ThreadBlocked ThreadState = iota
	ThreadReady
	ThreadRunning
	ThreadDying
)

// String returns a human-readable representation of the state.
func (s ThreadState) String() string {
	switch s {
	case ThreadBlocked:
		return "Blocked"
	case ThreadReady:
		return "Ready"
	case ThreadRunning:
		return "Running"
	case ThreadDying:
		return "Dying"
	default:
		return "Unknown"
	}
}

// atomicState is a lock-free state holder with cache-line padding to avoid
// false sharing between threads' control blocks on adjacent cache lines.
type atomicState struct { // betteralign:ignore
	_ [64]byte
	v atomic.Uint32
	_ [60]byte
}

func newAtomicState(initial ThreadState) *atomicState {
	s := &atomicState{}
	s.v.Store(uint32(initial))
	return s
}

// Load returns the current state atomically.
func (s *atomicState) Load() ThreadState {
	return ThreadState(s.v.Load())
}

// Store atomically stores a new state.
func (s *atomicState) Store(state ThreadState) {
	s.v.Store(uint32(state))
}

// TryTransition attempts to atomically transition from one state to
// another. Returns true if the transition succeeded.
func (s *atomicState) TryTransition(from, to ThreadState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}
