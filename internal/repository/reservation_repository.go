package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/james-hub21/ORBIT-sub003/internal/booking"
	"github.com/james-hub21/ORBIT-sub003/internal/model"
)

// ReservationRepo provides CRUD and range-query access to the
// reservations table.  All timestamps are stored and compared in UTC.
// Conflict-sensitive reads and writes run inside the booking store's
// transaction via the Tx-suffixed functions; plain methods serve
// display paths.
type ReservationRepo struct {
	db *sql.DB
}

// NewReservationRepo returns a ReservationRepo bound to the given
// database.
func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

const reservationCols = `id, facility_id, requester_id, starts_at, ends_at, status,
	participant_count, purpose, admin_response, acted_by, equipment_status,
	reminder_opt_in, reminder_lead_minutes, reminder_status, reminder_at,
	created_at, updated_at`

func scanReservation(row interface{ Scan(...any) error }) (*model.Reservation, error) {
	var (
		r         model.Reservation
		adminResp sql.NullString
		actedBy   sql.NullInt64
		equipment []byte
		remindAt  sql.NullTime
	)
	if err := row.Scan(
		&r.ID, &r.FacilityID, &r.RequesterID, &r.StartsAt, &r.EndsAt, &r.Status,
		&r.ParticipantCount, &r.Purpose, &adminResp, &actedBy, &equipment,
		&r.ReminderOptIn, &r.ReminderLeadMinutes, &r.ReminderStatus, &remindAt,
		&r.CreatedAt, &r.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if adminResp.Valid {
		s := adminResp.String
		r.AdminResponse = &s
	}
	if actedBy.Valid {
		a := uint64(actedBy.Int64)
		r.ActedBy = &a
	}
	if len(equipment) > 0 {
		// Malformed JSON leaves Equipment nil rather than failing the read.
		_ = json.Unmarshal(equipment, &r.Equipment)
	}
	if remindAt.Valid {
		t := remindAt.Time
		r.ReminderAt = &t
	}
	return &r, nil
}

// GetByID loads a reservation.  Returns ErrReservationNotFound when the
// id does not exist.
func (r *ReservationRepo) GetByID(ctx context.Context, id uint64) (*model.Reservation, error) {
	return getReservationTx(ctx, r.db, id)
}

func getReservationTx(ctx context.Context, q querier, id uint64) (*model.Reservation, error) {
	res, err := scanReservation(q.QueryRowContext(ctx,
		`SELECT `+reservationCols+` FROM reservations WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return res, nil
}

// getReservationForUpdateTx loads a reservation holding an exclusive
// row lock, so the caller's check-then-write cannot interleave with a
// concurrent transition on the same row.
func getReservationForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Reservation, error) {
	res, err := scanReservation(tx.QueryRowContext(ctx,
		`SELECT `+reservationCols+` FROM reservations WHERE id = ? FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrReservationNotFound
		}
		return nil, err
	}
	return res, nil
}

// ListByRequester returns all reservations for the given requester,
// newest first.
func (r *ReservationRepo) ListByRequester(ctx context.Context, requesterID uint64) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reservationCols+` FROM reservations WHERE requester_id = ? ORDER BY created_at DESC`,
		requesterID)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

// ListByFacilityWindow returns reservations on a facility intersecting
// [start, end), any status, ordered by start time.  Used by staff
// schedule views.
func (r *ReservationRepo) ListByFacilityWindow(ctx context.Context, facilityID uint64, start, end time.Time) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+reservationCols+` FROM reservations
		 WHERE facility_id = ? AND starts_at < ? AND ends_at > ?
		 ORDER BY starts_at`,
		facilityID, end.UTC(), start.UTC())
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

func collectReservations(rows *sql.Rows) ([]model.Reservation, error) {
	defer rows.Close()
	var out []model.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	return out, rows.Err()
}

// insertReservationTx persists a new reservation inside the booking
// transaction, filling in the generated ID and timestamps.
func insertReservationTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	equipment, err := marshalEquipment(res.Equipment)
	if err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx,
		`INSERT INTO reservations (facility_id, requester_id, starts_at, ends_at, status,
			participant_count, purpose, admin_response, acted_by, equipment_status,
			reminder_opt_in, reminder_lead_minutes, reminder_status, reminder_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.FacilityID, res.RequesterID, res.StartsAt.UTC(), res.EndsAt.UTC(), res.Status,
		res.ParticipantCount, res.Purpose, res.AdminResponse, nullableID(res.ActedBy), equipment,
		res.ReminderOptIn, res.ReminderLeadMinutes, res.ReminderStatus, nullableTime(res.ReminderAt))
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return tx.QueryRowContext(ctx,
		`SELECT created_at, updated_at FROM reservations WHERE id = ?`, res.ID).
		Scan(&res.CreatedAt, &res.UpdatedAt)
}

// updateReservationTx persists every mutable field of a reservation.
func updateReservationTx(ctx context.Context, tx *sql.Tx, res *model.Reservation) error {
	equipment, err := marshalEquipment(res.Equipment)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`UPDATE reservations SET facility_id = ?, starts_at = ?, ends_at = ?, status = ?,
			participant_count = ?, purpose = ?, admin_response = ?, acted_by = ?,
			equipment_status = ?, reminder_opt_in = ?, reminder_lead_minutes = ?,
			reminder_status = ?, reminder_at = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		res.FacilityID, res.StartsAt.UTC(), res.EndsAt.UTC(), res.Status,
		res.ParticipantCount, res.Purpose, res.AdminResponse, nullableID(res.ActedBy),
		equipment, res.ReminderOptIn, res.ReminderLeadMinutes,
		res.ReminderStatus, nullableTime(res.ReminderAt),
		res.ID)
	return err
}

// transitionReservationTx persists a status transition guarded on the
// expected prior status.  Zero affected rows means another transaction
// changed the status after the caller's read, so the stale decision is
// refused instead of overwriting a committed transition.
func transitionReservationTx(ctx context.Context, tx *sql.Tx, res *model.Reservation, from string) error {
	equipment, err := marshalEquipment(res.Equipment)
	if err != nil {
		return err
	}
	result, err := tx.ExecContext(ctx,
		`UPDATE reservations SET status = ?, admin_response = ?, acted_by = ?,
			equipment_status = ?, reminder_status = ?, reminder_at = ?,
			updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status = ?`,
		res.Status, res.AdminResponse, nullableID(res.ActedBy),
		equipment, res.ReminderStatus, nullableTime(res.ReminderAt),
		res.ID, from)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: reservation %d no longer %s", booking.ErrInvalidTransition, res.ID, from)
	}
	return nil
}

// approvedOverlappingTx returns approved reservations on the facility
// whose half-open window intersects [start, end).  The exclusion id
// supports edit re-validation; zero excludes nothing.
func approvedOverlappingTx(ctx context.Context, tx *sql.Tx, facilityID uint64, start, end time.Time, excludeID uint64) ([]model.Reservation, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+reservationCols+` FROM reservations
		 WHERE facility_id = ? AND status = ? AND starts_at < ? AND ends_at > ? AND id <> ?
		 ORDER BY starts_at`,
		facilityID, model.StatusApproved, end.UTC(), start.UTC(), excludeID)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

// requesterOverlappingTx returns the requester's approved reservations
// on any facility intersecting [start, end).
func requesterOverlappingTx(ctx context.Context, tx *sql.Tx, requesterID uint64, start, end time.Time, excludeID uint64) ([]model.Reservation, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+reservationCols+` FROM reservations
		 WHERE requester_id = ? AND status = ? AND starts_at < ? AND ends_at > ? AND id <> ?
		 ORDER BY starts_at`,
		requesterID, model.StatusApproved, end.UTC(), start.UTC(), excludeID)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

// hasActiveRequestTx reports whether the requester already holds a
// pending or approved reservation on the facility whose end is in the
// future.
func hasActiveRequestTx(ctx context.Context, tx *sql.Tx, requesterID, facilityID uint64, now time.Time, excludeID uint64) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx,
		`SELECT 1 FROM reservations
		 WHERE requester_id = ? AND facility_id = ? AND status IN (?, ?) AND ends_at > ? AND id <> ?
		 LIMIT 1`,
		requesterID, facilityID, model.StatusPending, model.StatusApproved, now.UTC(), excludeID).
		Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// activeByRequesterTx returns every pending or approved reservation for
// the requester, locking the rows for the duration of the transaction
// so the bulk cancel cannot race a concurrent approval.
func activeByRequesterTx(ctx context.Context, tx *sql.Tx, requesterID uint64) ([]model.Reservation, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+reservationCols+` FROM reservations
		 WHERE requester_id = ? AND status IN (?, ?)
		 ORDER BY id FOR UPDATE`,
		requesterID, model.StatusPending, model.StatusApproved)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

func marshalEquipment(eq model.EquipmentStatus) ([]byte, error) {
	if eq == nil {
		return nil, nil
	}
	return json.Marshal(eq)
}

func nullableID(v *uint64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
