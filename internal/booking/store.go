package booking

import (
	"context"
	"time"

	"github.com/james-hub21/ORBIT-sub003/internal/model"
)

// Tx exposes the persistence operations the engine performs inside a
// transaction.  Implementations must make every read observe writes
// committed before the transaction began, and every write atomic with
// the rest of the transaction.
type Tx interface {
	// Facility loads a facility with its blackout ranges.  Returns
	// ErrNotFound when no such facility exists.
	Facility(id uint64) (*model.Facility, error)

	// Reservation loads a reservation by id.  Returns ErrNotFound when
	// no such reservation exists.
	Reservation(id uint64) (*model.Reservation, error)

	// ReservationForUpdate loads a reservation holding an exclusive row
	// lock until the transaction ends, so a check-then-write on the row
	// cannot interleave with a concurrent transition.  Returns
	// ErrNotFound when no such reservation exists.
	ReservationForUpdate(id uint64) (*model.Reservation, error)

	// InsertReservation persists a new reservation and fills in its
	// generated ID and timestamps.
	InsertReservation(r *model.Reservation) error

	// UpdateReservation persists changed fields of an existing
	// reservation and refreshes UpdatedAt.
	UpdateReservation(r *model.Reservation) error

	// TransitionReservation persists a reservation whose Status moved
	// away from from, guarding the write on the stored status still
	// being from.  When another transaction changed the status first
	// the write is refused with ErrInvalidTransition: the caller's
	// decision was made against a stale row.
	TransitionReservation(r *model.Reservation, from string) error

	// ApprovedOverlapping returns approved reservations on the facility
	// whose half-open window intersects [start, end), excluding the
	// reservation with excludeID when non-zero.
	ApprovedOverlapping(facilityID uint64, start, end time.Time, excludeID uint64) ([]model.Reservation, error)

	// RequesterOverlapping returns the requester's approved
	// reservations, on any facility, whose window intersects
	// [start, end), excluding excludeID when non-zero.
	RequesterOverlapping(requesterID uint64, start, end time.Time, excludeID uint64) ([]model.Reservation, error)

	// HasActiveRequest reports whether the requester holds a pending or
	// approved reservation on the facility whose end is after now,
	// excluding excludeID when non-zero.
	HasActiveRequest(requesterID, facilityID uint64, now time.Time, excludeID uint64) (bool, error)

	// ActiveByRequester returns every pending or approved reservation
	// held by the requester.
	ActiveByRequester(requesterID uint64) ([]model.Reservation, error)

	// UpsertReminder inserts or replaces the reminder row keyed by the
	// reservation id, preserving the one-reminder-per-reservation
	// uniqueness.
	UpsertReminder(rem *model.Reminder) error

	// DeleteReminder removes the reminder row for the reservation, if
	// any.
	DeleteReminder(reservationID uint64) error

	// ClaimDueReminders atomically claims up to limit pending reminders
	// with remind_at <= now, marking each SENT and bumping its attempt
	// counter.  Concurrent sweepers must never claim the same row.
	ClaimDueReminders(now time.Time, limit int) ([]DueReminder, error)
}

// DueReminder is a claimed reminder joined with the context the
// notifier needs to render a message.
type DueReminder struct {
	ReservationID uint64
	FacilityID    uint64
	FacilityName  string
	RequesterID   uint64
	StartsAt      time.Time
	EndsAt        time.Time
	RemindAt      time.Time
	Attempt       uint32
}

// Store is the transactional boundary between the engine and durable
// storage.
type Store interface {
	// WithFacility runs fn inside a transaction that holds an
	// exclusive lock scoped to the facility for the duration of the
	// check-then-write.  Requests for different facilities proceed in
	// parallel; requests for the same facility are strictly ordered.
	// The lock is released when the transaction commits or aborts, on
	// every exit path.  A context deadline hit while waiting for the
	// lock surfaces as ErrTimeout.
	WithFacility(ctx context.Context, facilityID uint64, fn func(tx Tx) error) error

	// InTx runs fn inside a plain transaction with no facility lock.
	// Used for operations that only remove reservations from the
	// approved set or act on reminder rows.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// GetReservation is a lock-free read used to locate a reservation
	// before entering its facility's critical section.
	GetReservation(ctx context.Context, id uint64) (*model.Reservation, error)
}
