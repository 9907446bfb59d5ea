package entity

import "errors"

// Domain error sentinels. Services wrap these with operation context so
// callers can retry without re-deriving identifiers.
var (
	// ErrNotFound indicates a referenced invoice, unit or series is missing
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates an attempt to recreate an existing unit or series
	ErrConflict = errors.New("already exists")

	// ErrValidation indicates malformed or incomplete caller input
	ErrValidation = errors.New("validation failed")

	// ErrNotReady indicates an operation was attempted before its
	// preconditions held (unsigned invoice, missing credentials)
	ErrNotReady = errors.New("not ready")

	// ErrChainBroken indicates a hash-chain integrity violation. This is a
	// data-integrity failure and must never be repaired silently.
	ErrChainBroken = errors.New("invoice hash chain broken")
)
