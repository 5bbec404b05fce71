// Package queue defines the contract for buffering fan-out messages.
//
// Publishing is best-effort: Enqueue never blocks and never fails a write
// path. A full queue drops the message and records the drop.
package queue

import (
	"context"
	"sync"

	"github.com/fightcard/ringside/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultCapacity = 10000
)

// Message is one fan-out payload addressed to a bout topic.
type Message struct {
	BoutID  string `json:"bout_id"`
	Kind    string `json:"event"`
	Payload any    `json:"data"`
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a message. Returns false if the queue is full or closed;
	// callers treat false as a dropped broadcast, never an error.
	Enqueue(ctx context.Context, m Message) bool

	// Dequeue returns a channel delivering messages until the queue closes.
	Dequeue(ctx context.Context) <-chan Message

	// Len returns the current number of buffered messages.
	Len(ctx context.Context) int

	// Close shuts the queue down; further enqueues are dropped.
	Close() error

	// IsClosed reports whether the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue on a buffered channel.
type InMemoryQueue struct {
	messages chan Message
	capacity int
	mu       sync.RWMutex
	closed   bool
}

// NewInMemoryQueue creates a new in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.messages = make(chan Message, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0)
	return q
}

// Enqueue implements Queue.Enqueue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, m Message) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueDrop()
		metrics.RecordErrorByComponent("broadcast_queue", "closed")
		return false
	}

	select {
	case q.messages <- m:
		metrics.RecordQueueEnqueue()
		size := len(q.messages)
		metrics.UpdateQueueSize(size)
		metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
		return true
	default:
		metrics.RecordQueueDrop()
		metrics.RecordErrorByComponent("broadcast_queue", "full")
		return false
	}
}

// Dequeue implements Queue.Dequeue.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Message {
	out := make(chan Message)
	go func() {
		defer close(out)
		for m := range q.messages {
			select {
			case out <- m:
				size := len(q.messages)
				metrics.UpdateQueueSize(size)
				metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len implements Queue.Len.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	return len(q.messages)
}

// Close implements Queue.Close.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.messages)
	q.closed = true
	return nil
}

// IsClosed implements Queue.IsClosed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
