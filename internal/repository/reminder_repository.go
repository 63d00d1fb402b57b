package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/james-hub21/ORBIT-sub003/internal/booking"
	"github.com/james-hub21/ORBIT-sub003/internal/model"
)

// Reminder persistence used inside the booking transaction.  The
// reminders table carries a uniqueness constraint on reservation_id so
// the upsert can never create a second pending reminder for the same
// reservation.

// upsertReminderTx inserts or replaces the reminder row for a
// reservation.  A replaced row returns to PENDING with a fresh fire
// time and a reset attempt counter.
func upsertReminderTx(ctx context.Context, tx *sql.Tx, rem *model.Reminder) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO reminders (reservation_id, remind_at, status, attempts)
		 VALUES (?, ?, ?, 0)
		 ON DUPLICATE KEY UPDATE
			remind_at = VALUES(remind_at),
			status = VALUES(status),
			attempts = 0,
			last_attempt_at = NULL,
			updated_at = CURRENT_TIMESTAMP`,
		rem.ReservationID, rem.RemindAt.UTC(), rem.Status)
	return err
}

// deleteReminderTx removes the reminder row for a reservation, if any.
func deleteReminderTx(ctx context.Context, tx *sql.Tx, reservationID uint64) error {
	_, err := tx.ExecContext(ctx,
		`DELETE FROM reminders WHERE reservation_id = ?`, reservationID)
	return err
}

// claimDueRemindersTx atomically claims up to limit due pending
// reminders.  SKIP LOCKED lets concurrent sweepers pass over rows
// another sweeper is claiming instead of blocking or double-claiming;
// each claimed row is marked SENT before the transaction commits.
func claimDueRemindersTx(ctx context.Context, tx *sql.Tx, now time.Time, limit int) ([]booking.DueReminder, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT rm.id, rm.reservation_id, rm.remind_at, rm.attempts,
		        r.facility_id, r.requester_id, r.starts_at, r.ends_at, f.name
		 FROM reminders rm
		 JOIN reservations r ON r.id = rm.reservation_id
		 JOIN facilities f ON f.id = r.facility_id
		 WHERE rm.status = ? AND rm.remind_at <= ?
		 ORDER BY rm.remind_at
		 LIMIT ?
		 FOR UPDATE OF rm SKIP LOCKED`,
		model.ReminderRowPending, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	type claimedRow struct {
		id  uint64
		due booking.DueReminder
	}
	var claimed []claimedRow
	for rows.Next() {
		var c claimedRow
		if err := rows.Scan(
			&c.id, &c.due.ReservationID, &c.due.RemindAt, &c.due.Attempt,
			&c.due.FacilityID, &c.due.RequesterID, &c.due.StartsAt, &c.due.EndsAt, &c.due.FacilityName,
		); err != nil {
			rows.Close()
			return nil, err
		}
		c.due.Attempt++ // this claim
		claimed = append(claimed, c)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}

	out := make([]booking.DueReminder, 0, len(claimed))
	for _, c := range claimed {
		if _, err := tx.ExecContext(ctx,
			`UPDATE reminders SET status = ?, attempts = attempts + 1,
				last_attempt_at = ?, updated_at = CURRENT_TIMESTAMP
			 WHERE id = ?`,
			model.ReminderRowSent, now.UTC(), c.id); err != nil {
			return nil, err
		}
		out = append(out, c.due)
	}
	return out, nil
}
