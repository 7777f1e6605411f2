// Package common defines shared sentinel errors used across the cache,
// remote-store, and sync layers of CardBinder. Callers should use errors.Is
// to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// ErrNoLocalData is returned by cache-first reads when the remote store
	// is unreachable and the local cache holds nothing for the request.
	ErrNoLocalData = errors.New("no local data available")

	// ErrOffline is returned by operations that require connectivity
	// (profile creation) when the remote store cannot be reached.
	ErrOffline = errors.New("remote store unreachable")

	// Validation errors, rejected before any write is attempted.
	ErrInvalidQuantity  = errors.New("quantity must be greater than zero")
	ErrInvalidCondition = errors.New("invalid card condition")

	// ErrInvalidOperation marks a queued mutation that can never replay
	// successfully (unknown kind, unresolvable temporary id).
	ErrInvalidOperation = errors.New("invalid pending operation")
)
