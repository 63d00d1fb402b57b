package booking

import (
	"context"
	"log"
	"time"

	"github.com/james-hub21/ORBIT-sub003/internal/model"
)

// scheduleOrUpdateReminder keeps the reminder row and the reservation's
// reminder fields in step with the reservation's current window and
// preference.  The reminder fires at StartsAt minus the lead time.  An
// opted-out reservation has no reminder row; a computed fire time that
// is already in the past is recorded as SKIPPED rather than scheduled.
// The unique key on the reservation id makes a second call replace,
// never duplicate, the pending reminder.
func (e *Engine) scheduleOrUpdateReminder(tx Tx, res *model.Reservation, now time.Time) error {
	if !res.ReminderOptIn {
		if err := tx.DeleteReminder(res.ID); err != nil {
			return err
		}
		res.ReminderStatus = model.ReminderSkipped
		res.ReminderAt = nil
		return nil
	}

	remindAt := res.StartsAt.Add(-time.Duration(res.ReminderLeadMinutes) * time.Minute)
	if !remindAt.After(now) {
		if err := tx.DeleteReminder(res.ID); err != nil {
			return err
		}
		res.ReminderStatus = model.ReminderSkipped
		res.ReminderAt = nil
		return nil
	}

	if err := tx.UpsertReminder(&model.Reminder{
		ReservationID: res.ID,
		RemindAt:      remindAt,
		Status:        model.ReminderRowPending,
	}); err != nil {
		return err
	}
	res.ReminderStatus = model.ReminderScheduled
	res.ReminderAt = &remindAt
	return nil
}

// dropReminder removes any pending reminder when the reservation leaves
// the schedulable states.
func (e *Engine) dropReminder(tx Tx, res *model.Reservation) error {
	if err := tx.DeleteReminder(res.ID); err != nil {
		return err
	}
	if res.ReminderStatus == model.ReminderScheduled {
		res.ReminderStatus = model.ReminderSkipped
		res.ReminderAt = nil
	}
	return nil
}

// popBatchSize bounds how many reminders one sweep claims.
const popBatchSize = 100

// PopDueReminders claims every pending reminder whose fire time has
// passed, marks each SENT and emits a ReminderDue event.  The claim is
// atomic per row, so two sweepers running concurrently never deliver
// the same reminder twice.  Rows that fail to process are logged and
// skipped; one bad row cannot stall the rest of the sweep.
func (e *Engine) PopDueReminders(ctx context.Context, now time.Time) ([]DueReminder, error) {
	var claimed []DueReminder
	err := e.store.InTx(ctx, func(tx Tx) error {
		due, err := tx.ClaimDueReminders(now.UTC(), popBatchSize)
		if err != nil {
			return err
		}
		claimed = due
		for _, d := range due {
			// Mirror the claim onto the reservation row.  The locking
			// read keeps the full-row write from clobbering a
			// transition committed after the claim.
			res, err := tx.ReservationForUpdate(d.ReservationID)
			if err != nil {
				log.Printf("booking: reminder %d references unreadable reservation: %v", d.ReservationID, err)
				continue
			}
			res.ReminderStatus = model.ReminderSent
			if err := tx.UpdateReservation(res); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	events := make([]pendingEvent, 0, len(claimed))
	for _, d := range claimed {
		events = append(events, reminderDueEvent(d))
	}
	flush(ctx, e.events, events)
	return claimed, nil
}
