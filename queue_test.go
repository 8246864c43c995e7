package kernel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestThread(id, priority int) *Thread {
	return newThread(nil, id, "t", priority, nil, nil)
}

func TestReadyQueueOrdersByPriorityDescending(t *testing.T) {
	var q readyQueue
	low := newTestThread(1, 10)
	high := newTestThread(2, 30)
	mid := newTestThread(3, 20)

	q.insert(low)
	q.insert(high)
	q.insert(mid)

	require.True(t, q.isSorted())
	require.Equal(t, high, q.popFront())
	require.Equal(t, mid, q.popFront())
	require.Equal(t, low, q.popFront())
	require.Nil(t, q.popFront())
}

func TestReadyQueueFIFOWithinPriority(t *testing.T) {
	var q readyQueue
	a := newTestThread(1, 10)
	b := newTestThread(2, 10)
	c := newTestThread(3, 10)

	q.insert(a)
	q.insert(b)
	q.insert(c)

	require.Equal(t, a, q.popFront())
	require.Equal(t, b, q.popFront())
	require.Equal(t, c, q.popFront())
}

func TestReadyQueueResort(t *testing.T) {
	var q readyQueue
	a := newTestThread(1, 10)
	b := newTestThread(2, 20)
	q.insert(a)
	q.insert(b)
	require.Equal(t, b, q.items[0])

	a.EffectivePriority = 30
	q.resort(a)
	require.Equal(t, a, q.items[0])
	require.True(t, q.isSorted())
}
