package app

import "errors"

// Sentinel kinds for service errors.
var (
	// ErrIncompleteRounds blocks finalization while any round lacks a
	// canonical score. Never silently approximated.
	ErrIncompleteRounds = errors.New("not all rounds are scored")

	// ErrStaleDevice reports a round-advance barrier blocked by a device
	// that stopped heartbeating; a supervisor override is required.
	ErrStaleDevice = errors.New("round advance blocked by unresponsive device")

	ErrDeviceNotRegistered = errors.New("device not registered for bout")
	ErrJudgeNotRegistered  = errors.New("judge not registered for bout")
	ErrRoundOutOfRange     = errors.New("round out of range for bout")
	ErrBoutCompleted       = errors.New("bout already completed")
	ErrEventNotFound       = errors.New("event not found")
)
