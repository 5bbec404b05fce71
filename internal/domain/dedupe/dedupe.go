// Package dedupe defines the interface for idempotency tracking.
package dedupe

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fightcard/ringside/internal/domain/model"
)

// Key builds the idempotency key for an event submission. The triple
// (bout, round, event id) is globally unique: replayed offline queues may
// resend the same client id and must be silently absorbed.
func Key(boutID string, round int, eventID string) string {
	return fmt.Sprintf("%s/%d/%s", boutID, round, eventID)
}

// KeyFor is a convenience wrapper over Key for a full event.
func KeyFor(e *model.Event) string {
	return Key(e.BoutID, e.Round, e.EventID)
}

// Deduper records seen idempotency keys to ensure at-most-once acceptance.
type Deduper interface {
	// SeenAndRecord atomically checks whether key was seen and records it if
	// not. Returns true if key was already seen, false if newly recorded.
	SeenAndRecord(ctx context.Context, key string) bool

	// Unrecord removes a key from the seen set. Used only when an event was
	// marked seen but failed to commit, so the client may retry.
	Unrecord(ctx context.Context, key string)

	Size() int64
}

// inMemoryDeduper implements Deduper with a map. When maxSize > 0 the oldest
// keys are evicted FIFO via a ring of recorded keys; with maxSize <= 0 the
// set grows without bound, which is the mode the engine runs in: event ids
// are audit-relevant and must never be forgotten mid-bout.
type inMemoryDeduper struct {
	mu      sync.Mutex
	seen    map[string]struct{}
	ring    []string
	next    int
	maxSize int
	size    atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		seen: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.maxSize > 0 {
		d.ring = make([]string, d.maxSize)
	}
	return d
}

func (d *inMemoryDeduper) SeenAndRecord(ctx context.Context, key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}

	if d.maxSize > 0 {
		if evicted := d.ring[d.next]; evicted != "" {
			if _, ok := d.seen[evicted]; ok {
				delete(d.seen, evicted)
				d.size.Add(-1)
			}
		}
		d.ring[d.next] = key
		d.next = (d.next + 1) % d.maxSize
	}

	d.seen[key] = struct{}{}
	d.size.Add(1)
	return false
}

func (d *inMemoryDeduper) Unrecord(ctx context.Context, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		delete(d.seen, key)
		d.size.Add(-1)
	}
}

func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}
