package audit

import "errors"

// Sentinel kinds for audit log errors.
var (
	ErrEntryNotFound = errors.New("audit entry not found")
	// ErrImmutableResource is returned for any attempt to update or delete
	// a stored entry.
	ErrImmutableResource = errors.New("audit entries are immutable")
)
