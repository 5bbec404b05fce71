package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrEventExists   = errors.New("event already stored")
	ErrBoutExists    = errors.New("bout already exists")
	ErrBoutNotFound  = errors.New("bout not found")
	ErrScoreNotFound = errors.New("round score not found")
	ErrLockExists    = errors.New("judge lock already written")
	ErrLockNotFound  = errors.New("judge lock not found")
)
