// Package hal provides simple in-memory stand-ins for the hardware
// collaborators a real kernel treats as black boxes: a physical page
// allocator, consumed by vm.SPT to bound simulated physical memory, and a
// tick source. TickSource is not wired into the kernel scheduler's hot
// path (it drives its own tick via whichever thread is Running, per
// doc.go); it exists so a harness can drive ticks externally at a fixed
// wall-clock cadence when that's a more convenient shape for a test than
// cooperative self-ticking.
package hal

import (
	"sync"
	"time"
)

// PhysicalAllocator hands out fixed-size physical frames from a bounded
// pool, grounded on original_source/threads/palloc.c's
// palloc_get_page/palloc_free_page contract, tracked only by count:
// callers above this layer never inspect frame identity.
type PhysicalAllocator struct {
	mu        sync.Mutex
	total     int
	allocated int
}

// NewPhysicalAllocator constructs an allocator with the given number of
// pages in its pool.
func NewPhysicalAllocator(totalPages int) *PhysicalAllocator {
	return &PhysicalAllocator{total: totalPages}
}

// Alloc reserves one frame, reporting false if the pool is exhausted. It
// never blocks or panics on exhaustion; that decision belongs to the
// caller (vm.SPT panics, matching palloc_get_page's PAL_ASSERT callers).
func (p *PhysicalAllocator) Alloc() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.allocated >= p.total {
		return false
	}
	p.allocated++
	return true
}

// Free releases one previously allocated frame.
func (p *PhysicalAllocator) Free() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.allocated > 0 {
		p.allocated--
	}
}

// Available reports the number of unallocated frames remaining.
func (p *PhysicalAllocator) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.total - p.allocated
}

// TickSource periodically invokes a callback at a fixed wall-clock rate,
// standing in for a hardware timer interrupt source. Kernel code never
// needs this directly (see doc.go); it is a convenience
// for harnesses that want real-time-paced ticks instead of manually
// calling Scheduler.Tick in a loop.
type TickSource struct {
	ticker *time.Ticker
	stop   chan struct{}
	done   chan struct{}
}

// NewTickSource starts invoking onTick at the given period until Stop is
// called.
func NewTickSource(period time.Duration, onTick func()) *TickSource {
	ts := &TickSource{
		ticker: time.NewTicker(period),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(ts.done)
		for {
			select {
			case <-ts.ticker.C:
				onTick()
			case <-ts.stop:
				return
			}
		}
	}()
	return ts
}

// Stop halts the tick source and waits for its goroutine to exit.
func (ts *TickSource) Stop() {
	ts.ticker.Stop()
	close(ts.stop)
	<-ts.done
}
