package kernel

import "golang.org/x/exp/slices"

// readyQueue is the priority-ordered ready queue: ordered by
// EffectivePriority descending, ties broken by insertion order (FIFO
// within priority). Grounded on original_source/threads/thread.c's
// cmp_ascending_priority comparator (descending-priority insert, stable
// within a priority band) and generalized to an index-based queue of
// thread pointers rather than an intrusive list node shared with the
// wait-queue role.
type readyQueue struct {
	items []*Thread
}

// insert places t into the queue at its priority-ordered position: after
// every thread of equal-or-higher priority, i.e. as the last among its
// priority peers, which is what a yielding thread's "re-insert after all
// equal-priority peers" round-robin fairness requires.
func (q *readyQueue) insert(t *Thread) {
	idx, _ := slices.BinarySearchFunc(q.items, t, func(a, b *Thread) int {
		// Descending priority order: an existing entry a sorts "before" the
		// target b (cmp < 0) while a.Priority >= b.Priority, so the search
		// lands just past the last equal-priority entry (stable FIFO).
		if a.EffectivePriority >= b.EffectivePriority {
			return -1
		}
		return 1
	})
	q.items = append(q.items, nil)
	copy(q.items[idx+1:], q.items[idx:])
	q.items[idx] = t
	t.queueTag = queueReady
}

// popFront removes and returns the highest-priority (head) thread, or nil
// if the queue is empty.
func (q *readyQueue) popFront() *Thread {
	if len(q.items) == 0 {
		return nil
	}
	t := q.items[0]
	q.items = q.items[1:]
	t.queueTag = queueNone
	return t
}

// remove deletes t from the queue if present, for the rare case a queued
// thread's priority changes and it must be re-sorted.
func (q *readyQueue) remove(t *Thread) bool {
	for i, item := range q.items {
		if item == t {
			q.items = append(q.items[:i], q.items[i+1:]...)
			t.queueTag = queueNone
			return true
		}
	}
	return false
}

// resort re-inserts t at its current priority's position; used after a
// donation or set_priority changes the priority of an already-queued
// thread.
func (q *readyQueue) resort(t *Thread) {
	if q.remove(t) {
		q.insert(t)
	}
}

func (q *readyQueue) len() int { return len(q.items) }

// isSorted reports whether the queue currently satisfies the invariant
// that for every pair of Ready threads at positions i<j,
// ready[i].EffectivePriority >= ready[j].EffectivePriority. Used by
// tests, not by production code.
func (q *readyQueue) isSorted() bool {
	return slices.IsSortedFunc(q.items, func(a, b *Thread) int {
		if a.EffectivePriority > b.EffectivePriority {
			return -1
		}
		if a.EffectivePriority < b.EffectivePriority {
			return 1
		}
		return 0
	})
}
