package meshing

import (
	"sync"

	"github.com/voxenlabs/voxen/world"
)

// handleQueue is an unbounded multi-producer multi-consumer queue of chunk
// handles. Close wakes every receiver blocked in Pop, so shutdown needs no
// per-worker sentinel job.
type handleQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []world.Handle
	closed bool
}

func newHandleQueue() *handleQueue {
	q := &handleQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push enqueues a handle. Reports false if the queue is closed.
func (q *handleQueue) Push(h world.Handle) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, h)
	q.cond.Signal()
	return true
}

// Pop blocks until a handle is available or the queue is closed. A closed
// queue returns false immediately, dropping any still-queued handles.
func (q *handleQueue) Pop() (world.Handle, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for !q.closed && len(q.items) == 0 {
		q.cond.Wait()
	}
	if q.closed {
		return world.Handle{}, false
	}

	h := q.items[0]
	q.items = q.items[1:]
	return h, true
}

// TryPop dequeues without blocking.
func (q *handleQueue) TryPop() (world.Handle, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return world.Handle{}, false
	}
	h := q.items[0]
	q.items = q.items[1:]
	return h, true
}

func (q *handleQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}
