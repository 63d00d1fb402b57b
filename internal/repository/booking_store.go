package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/james-hub21/ORBIT-sub003/internal/booking"
	"github.com/james-hub21/ORBIT-sub003/internal/model"
)

// BookingStore implements booking.Store on MySQL.  Per-facility
// serialization is an exclusive row lock on the facility
// (SELECT ... FOR UPDATE): two transactions admitting into the same
// facility queue on that row, while different facilities proceed fully
// in parallel.  The lock is held only for the check-then-write and is
// released when the transaction commits or rolls back, on every exit
// path.
type BookingStore struct {
	db *sql.DB
}

// NewBookingStore returns a BookingStore bound to the given database.
func NewBookingStore(db *sql.DB) *BookingStore { return &BookingStore{db: db} }

// DB exposes the underlying pool for wiring display repositories.
func (s *BookingStore) DB() *sql.DB { return s.db }

// WithFacility runs fn inside a transaction holding the facility's row
// lock.
func (s *BookingStore) WithFacility(ctx context.Context, facilityID uint64, fn func(tx booking.Tx) error) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		// Taking the facility row lock is the critical-section entry.
		// A missing facility still has to run the resolver so the
		// caller gets RESOURCE_UNAVAILABLE rather than a bare error.
		var id uint64
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM facilities WHERE id = ? FOR UPDATE`, facilityID).Scan(&id)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fn(&bookingTx{ctx: ctx, tx: tx})
	})
}

// InTx runs fn inside a plain transaction without a facility lock.
func (s *BookingStore) InTx(ctx context.Context, fn func(tx booking.Tx) error) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return fn(&bookingTx{ctx: ctx, tx: tx})
	})
}

func (s *BookingStore) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapStoreErr(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return mapStoreErr(err)
	}
	if err := tx.Commit(); err != nil {
		return mapStoreErr(err)
	}
	committed = true
	return nil
}

// GetReservation is a lock-free read.
func (s *BookingStore) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	res, err := getReservationTx(ctx, s.db, id)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	return res, nil
}

// mapStoreErr translates storage failures into the engine's error
// taxonomy.  Domain outcomes (conflict errors, not-found sentinels,
// state errors) pass through unchanged; everything else is transient
// infrastructure.
func mapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", booking.ErrTimeout, err)
	case errors.Is(err, ErrFacilityNotFound), errors.Is(err, ErrReservationNotFound):
		return fmt.Errorf("%w: %v", booking.ErrNotFound, err)
	}
	var ce *booking.ConflictError
	if errors.As(err, &ce) ||
		errors.Is(err, booking.ErrInvalidWindow) ||
		errors.Is(err, booking.ErrNotEditable) ||
		errors.Is(err, booking.ErrInvalidTransition) ||
		errors.Is(err, booking.ErrNotFound) ||
		errors.Is(err, booking.ErrTimeout) {
		return err
	}
	return fmt.Errorf("%w: %v", booking.ErrStorageUnavailable, err)
}

// bookingTx adapts one *sql.Tx to the booking.Tx contract.
type bookingTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *bookingTx) Facility(id uint64) (*model.Facility, error) {
	f, err := getFacilityTx(t.ctx, t.tx, id)
	if err != nil {
		if errors.Is(err, ErrFacilityNotFound) {
			return nil, booking.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

func (t *bookingTx) Reservation(id uint64) (*model.Reservation, error) {
	res, err := getReservationTx(t.ctx, t.tx, id)
	if err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			return nil, booking.ErrNotFound
		}
		return nil, err
	}
	return res, nil
}

func (t *bookingTx) ReservationForUpdate(id uint64) (*model.Reservation, error) {
	res, err := getReservationForUpdateTx(t.ctx, t.tx, id)
	if err != nil {
		if errors.Is(err, ErrReservationNotFound) {
			return nil, booking.ErrNotFound
		}
		return nil, err
	}
	return res, nil
}

func (t *bookingTx) InsertReservation(r *model.Reservation) error {
	return insertReservationTx(t.ctx, t.tx, r)
}

func (t *bookingTx) UpdateReservation(r *model.Reservation) error {
	return updateReservationTx(t.ctx, t.tx, r)
}

func (t *bookingTx) TransitionReservation(r *model.Reservation, from string) error {
	return transitionReservationTx(t.ctx, t.tx, r, from)
}

func (t *bookingTx) ApprovedOverlapping(facilityID uint64, start, end time.Time, excludeID uint64) ([]model.Reservation, error) {
	return approvedOverlappingTx(t.ctx, t.tx, facilityID, start, end, excludeID)
}

func (t *bookingTx) RequesterOverlapping(requesterID uint64, start, end time.Time, excludeID uint64) ([]model.Reservation, error) {
	return requesterOverlappingTx(t.ctx, t.tx, requesterID, start, end, excludeID)
}

func (t *bookingTx) HasActiveRequest(requesterID, facilityID uint64, now time.Time, excludeID uint64) (bool, error) {
	return hasActiveRequestTx(t.ctx, t.tx, requesterID, facilityID, now, excludeID)
}

func (t *bookingTx) ActiveByRequester(requesterID uint64) ([]model.Reservation, error) {
	return activeByRequesterTx(t.ctx, t.tx, requesterID)
}

func (t *bookingTx) UpsertReminder(rem *model.Reminder) error {
	return upsertReminderTx(t.ctx, t.tx, rem)
}

func (t *bookingTx) DeleteReminder(reservationID uint64) error {
	return deleteReminderTx(t.ctx, t.tx, reservationID)
}

func (t *bookingTx) ClaimDueReminders(now time.Time, limit int) ([]booking.DueReminder, error) {
	return claimDueRemindersTx(t.ctx, t.tx, now, limit)
}
