package scoring

import "errors"

// Sentinel kinds for scoring errors.
var (
	// ErrInsufficientData means the round has no scoreable events. Callers
	// must treat this as "round not yet scoreable", never as a 10-10.
	ErrInsufficientData = errors.New("insufficient data to score round")
)
