// Package errs holds the error taxonomy shared by the ledger and the two boards.
// Handlers translate these with errors.Is; everything else is an internal failure.
package errs

import "errors"

var (
	// ErrInvalidAmount is returned for non-positive money or hour inputs.
	// It is raised before the store is touched.
	ErrInvalidAmount = errors.New("amount must be greater than zero")

	// ErrInvalidInput covers missing or blank required fields.
	ErrInvalidInput = errors.New("invalid input")

	ErrNotFound = errors.New("not found")

	// ErrAlreadyAccepted means another driver won the ride request.
	ErrAlreadyAccepted = errors.New("ride request already accepted")

	// ErrInvalidTransition means the document was not in the state the
	// operation requires, usually because a concurrent writer got there first.
	ErrInvalidTransition = errors.New("invalid state transition")

	ErrForbidden = errors.New("forbidden")

	// ErrIdempotencyConflict means an idempotency key was reused for a
	// different amount or kind of entry.
	ErrIdempotencyConflict = errors.New("idempotency key reused with different parameters")

	// ErrNoSession is returned for mutations attempted without an identity.
	ErrNoSession = errors.New("no active session")

	// ErrBackendUnavailable marks a failed durable store probe. The selector
	// absorbs it by switching to the fallback store.
	ErrBackendUnavailable = errors.New("backend unavailable")
)
