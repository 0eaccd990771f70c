package pool

import "sync"

// queue is an unbounded multi-producer, multi-consumer FIFO. enqueue never
// blocks; dequeue blocks until an item is available. The condition variable
// wakes exactly one waiter per enqueue, and the mutex guarantees at most one
// dequeuer receives any given item.
//
// Each Pool owns its own queue; there is no package-level instance, so
// independent pools can coexist in one process.
type queue[T any] struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []T
}

func newQueue[T any]() *queue[T] {
	q := &queue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// enqueue appends v and wakes one waiting consumer. Capacity is unbounded:
// under sustained overload the backlog grows without limit rather than
// blocking producers.
func (q *queue[T]) enqueue(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.cond.Signal()
}

// dequeue blocks until an item is available and returns the oldest one.
func (q *queue[T]) dequeue() T {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 {
		q.cond.Wait()
	}
	v := q.items[0]
	var zero T
	q.items[0] = zero // drop the reference so the backlog doesn't pin payloads
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil // release the drifted backing array once drained
	}
	return v
}

// len reports the number of queued items.
func (q *queue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
