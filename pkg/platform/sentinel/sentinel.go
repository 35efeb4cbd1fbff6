// Package sentinel holds infrastructure-level facts returned by stores.
// Services translate them into coded domain errors; they never reach clients.
package sentinel

import "errors"

var (
	// ErrNotFound: no row, key or session exists for the lookup.
	ErrNotFound = errors.New("not found")
	// ErrConflict: a uniqueness constraint rejected the write.
	ErrConflict = errors.New("conflict")
	// ErrExpired: a TTL-bound record was read after its expiry.
	ErrExpired = errors.New("expired")
	// ErrAlreadyUsed: a single-use record was already consumed.
	ErrAlreadyUsed = errors.New("already used")
	// ErrInvalidState: the record exists but cannot take the requested transition.
	ErrInvalidState = errors.New("invalid state")
	// ErrUnavailable: the backing store could not be reached.
	ErrUnavailable = errors.New("unavailable")
)
