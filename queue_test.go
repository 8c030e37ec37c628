package corort

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newIntQueue() *fifoQueue[int] {
	return newFIFOQueue(newNodePool[int]())
}

func TestFIFOQueuePushBackPopFrontOrder(t *testing.T) {
	q := newIntQueue()
	require.True(t, q.empty())
	q.pushBack(1)
	q.pushBack(2)
	q.pushBack(3)
	require.Equal(t, 3, q.len())

	for _, want := range []int{1, 2, 3} {
		v, ok := q.popFront()
		require.True(t, ok)
		require.Equal(t, want, v)
	}
	_, ok := q.popFront()
	require.False(t, ok)
}

func TestFIFOQueuePushFront(t *testing.T) {
	q := newIntQueue()
	q.pushBack(2)
	q.pushBack(3)
	q.pushFront(1)

	for _, want := range []int{1, 2, 3} {
		v, ok := q.popFront()
		require.True(t, ok)
		require.Equal(t, want, v)
	}
}

func TestFIFOQueueConcatBack(t *testing.T) {
	a := newIntQueue()
	a.pushBack(1)
	a.pushBack(2)
	b := newIntQueue()
	b.pushBack(3)
	b.pushBack(4)

	a.concatBack(b)
	require.Equal(t, 4, a.len())
	require.True(t, b.empty())
	require.Equal(t, 0, b.len())

	for _, want := range []int{1, 2, 3, 4} {
		v, ok := a.popFront()
		require.True(t, ok)
		require.Equal(t, want, v)
	}
}

func TestFIFOQueueConcatFront(t *testing.T) {
	a := newIntQueue()
	a.pushBack(3)
	a.pushBack(4)
	b := newIntQueue()
	b.pushBack(1)
	b.pushBack(2)

	a.concatFront(b)
	require.Equal(t, 4, a.len())
	require.True(t, b.empty())

	for _, want := range []int{1, 2, 3, 4} {
		v, ok := a.popFront()
		require.True(t, ok)
		require.Equal(t, want, v)
	}
}

func TestFIFOQueueConcatOntoEmpty(t *testing.T) {
	a := newIntQueue()
	b := newIntQueue()
	b.pushBack(1)
	a.concatBack(b)
	require.Equal(t, 1, a.len())
	v, ok := a.popFront()
	require.True(t, ok)
	require.Equal(t, 1, v)
}

func TestFIFOQueueConcatEmptyOtherIsNoop(t *testing.T) {
	a := newIntQueue()
	a.pushBack(1)
	b := newIntQueue()
	a.concatBack(b)
	require.Equal(t, 1, a.len())
}

func TestFIFOQueueNodeReuse(t *testing.T) {
	pool := newNodePool[int]()
	q := newFIFOQueue(pool)
	q.pushBack(1)
	_, _ = q.popFront()
	q.pushBack(2)
	v, ok := q.popFront()
	require.True(t, ok)
	require.Equal(t, 2, v)
}
