// Package queue holds the in-process job queue and the single background
// worker that drains it. The queue is memory-only: ids enqueued but not yet
// dequeued are lost if the process dies, and the records stay queued in the
// store where an operator can re-enqueue them.
package queue

import (
	"sync"

	"github.com/google/uuid"
)

// Queue is an unbounded FIFO of image record ids. Enqueue never blocks;
// Dequeue blocks until an id is available or the queue is closed.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []uuid.UUID
	closed bool
}

func New() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *Queue) Enqueue(id uuid.UUID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, id)
	q.cond.Signal()
}

// Dequeue returns the oldest id in strict enqueue order. It returns ok=false
// only after Close, once the remaining backlog has been drained.
func (q *Queue) Dequeue() (uuid.UUID, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return uuid.Nil, false
	}
	id := q.items[0]
	q.items = q.items[1:]
	return id, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops the queue: further Enqueue calls are dropped and the consumer
// is released after the backlog drains. This is the only way to stop the
// worker.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}
