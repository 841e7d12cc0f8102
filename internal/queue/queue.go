// Package queue provides the FIFO shared between telemetry producers and the batch sender.
package queue

import (
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/eapache/queue"
)

// Queue is an unbounded, concurrency-safe FIFO of telemetry items.
// Push and Pop never block; the flush notification is how producers wake the consumer early.
type Queue[T any] struct {
	mu    sync.Mutex
	items *queue.Queue
	flush *FlushSignal
}

// New creates an empty queue whose flush notification uses the wall clock.
func New[T any]() *Queue[T] {
	return NewWithClock[T](nil)
}

// NewWithClock creates an empty queue whose flush notification waits on clk.
func NewWithClock[T any](clk clock.Clock) *Queue[T] {
	return &Queue[T]{
		items: queue.New(),
		flush: NewFlushSignal(clk),
	}
}

// Push appends item to the tail of the queue.
func (q *Queue[T]) Push(item T) {
	q.mu.Lock()
	q.items.Add(item)
	q.mu.Unlock()
}

// Pop removes and returns the head of the queue. ok is false when the queue is empty.
func (q *Queue[T]) Pop() (item T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Length() == 0 {
		return item, false
	}
	// Comma-ok keeps a nil interface item from panicking.
	item, _ = q.items.Remove().(T)
	return item, true
}

// PopN removes up to n items from the head of the queue, preserving order.
func (q *Queue[T]) PopN(n int) []T {
	var batch []T
	for len(batch) < n {
		item, ok := q.Pop()
		if !ok {
			break
		}
		batch = append(batch, item)
	}
	return batch
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Length()
}

// FlushNotification returns the signal the consumer waits on between drain cycles.
func (q *Queue[T]) FlushNotification() *FlushSignal {
	return q.flush
}
