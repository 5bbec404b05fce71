package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrValidation marks a malformed event. Malformed events are rejected, not
// queued; the caller's offline queue is unaffected.
var ErrValidation = errors.New("validation failed")

// Validate checks an incoming event before it is offered to the reconciler.
func (e *Event) Validate() error {
	switch {
	case strings.TrimSpace(e.EventID) == "":
		return fmt.Errorf("%w: missing event_id", ErrValidation)
	case strings.TrimSpace(e.BoutID) == "":
		return fmt.Errorf("%w: missing bout_id", ErrValidation)
	case e.Round < 1:
		return fmt.Errorf("%w: round must be >= 1", ErrValidation)
	case !e.Side.Valid():
		return fmt.Errorf("%w: unknown fighter side %q", ErrValidation, e.Side)
	case !e.Type.Valid():
		return fmt.Errorf("%w: unknown event type %q", ErrValidation, e.Type)
	case !e.Tier.Valid():
		return fmt.Errorf("%w: unknown tier %q", ErrValidation, e.Tier)
	case e.Role != "" && !e.Role.Valid():
		return fmt.Errorf("%w: unknown device role %q", ErrValidation, e.Role)
	case e.OffsetSeconds < 0:
		return fmt.Errorf("%w: negative timestamp offset", ErrValidation)
	}
	return e.validateMetadata()
}

// validateMetadata enforces the typed keys each event type depends on.
// Unknown keys are allowed and ignored by scoring.
func (e *Event) validateMetadata() error {
	switch e.Type {
	case EventGroundControl, EventClinchControl:
		raw, ok := e.Metadata[MetaControlSeconds]
		if !ok {
			return fmt.Errorf("%w: %s requires metadata %q", ErrValidation, e.Type, MetaControlSeconds)
		}
		secs, err := strconv.Atoi(raw)
		if err != nil || secs < 0 {
			return fmt.Errorf("%w: metadata %q must be a non-negative integer", ErrValidation, MetaControlSeconds)
		}
	case EventTombstone:
		if strings.TrimSpace(e.TombstonedEventID()) == "" {
			return fmt.Errorf("%w: tombstone requires metadata %q", ErrValidation, MetaTombstonedEventID)
		}
	}
	return nil
}

// ControlSeconds returns the control duration carried by a control event.
// Returns 0 for events without the key; Validate guarantees presence for
// control event types.
func (e *Event) ControlSeconds() int {
	raw, ok := e.Metadata[MetaControlSeconds]
	if !ok {
		return 0
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return 0
	}
	return secs
}
