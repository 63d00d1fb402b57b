// Package booking implements the reservation conflict-resolution and
// lifecycle engine: admission of new reservations under per-facility
// serialization, lifecycle state transitions, and durable reminder
// scheduling with an exactly-once due sweep.  The package owns no SQL
// and no HTTP; persistence is reached through the Store interface and
// outcomes are reported through typed errors and broker events.
package booking

import "errors"

// Validation errors.  These are rejected before any lock is taken and
// must never be retried automatically.
var (
	// ErrInvalidWindow is returned when a candidate window does not
	// satisfy start < end or required fields are missing.
	ErrInvalidWindow = errors.New("invalid reservation window")
)

// State errors.  The caller attempted an operation the current state of
// the reservation forbids.
var (
	// ErrNotFound is returned when the referenced reservation or
	// facility does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotEditable is returned when a reservation is not in an
	// editable state (terminal, already started, or already answered by
	// staff).
	ErrNotEditable = errors.New("reservation not editable")
	// ErrInvalidTransition is returned when a status change is not
	// permitted by the lifecycle state machine.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Transient infrastructure errors.  Callers may retry with backoff; the
// engine itself never retries so that retry policy stays a caller
// concern and side effects are not duplicated.
var (
	// ErrStorageUnavailable wraps store-layer failures such as a lost
	// database connection.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrTimeout is returned when the caller's context expires while
	// waiting to enter a facility's critical section.
	ErrTimeout = errors.New("timed out waiting for facility lock")
)
