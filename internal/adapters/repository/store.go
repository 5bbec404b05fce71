// Package repository holds the in-memory stores backing the scoring engine.
package repository

import (
	"context"

	"github.com/fightcard/ringside/internal/domain/model"
)

// EventLog is the append-only, idempotent log of fight events. Events are
// keyed by (bout, round, event id) and ordered by (timestamp offset,
// arrival sequence) so the merged view is deterministic even though devices
// submit concurrently and offline queues replay late.
type EventLog interface {
	// Append stores an accepted event, assigning its arrival sequence.
	// Returns ErrEventExists if the (bout, round, event id) triple is
	// already present.
	Append(ctx context.Context, e model.Event) (model.Event, error)

	// Get returns a stored event by id.
	Get(ctx context.Context, boutID string, round int, eventID string) (model.Event, bool)

	// Events returns every stored event for the round in log order,
	// tombstones included.
	Events(ctx context.Context, boutID string, round int) []model.Event

	// Merged returns the round's events with tombstones and tombstoned
	// events filtered out, in log order. This is the scoring input.
	Merged(ctx context.Context, boutID string, round int) []model.Event

	// Count returns the number of stored events for the round, tombstones
	// included.
	Count(ctx context.Context, boutID string, round int) int
}
