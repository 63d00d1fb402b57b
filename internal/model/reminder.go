package model

import "time"

// Reminder statuses for the reminders table.  A reminder is PENDING
// until a sweep claims it, after which it is SENT.  SKIPPED reminders
// were computed to fire in the past and were never scheduled.
const (
	ReminderRowPending = "PENDING"
	ReminderRowSent    = "SENT"
	ReminderRowSkipped = "SKIPPED"
)

// Reminder is the durable record of a pre-reservation notification.
// Exactly one reminder may exist per reservation (unique key on
// ReservationID); rescheduling replaces the row rather than adding a
// second one.  Reminders survive process restarts and are claimed by a
// periodic sweep instead of in-process timers.
//
// Fields:
//  ID            – primary key identifier.
//  ReservationID – owning reservation (unique).
//  RemindAt      – when the reminder becomes due (StartsAt − lead).
//  Status        – PENDING, SENT or SKIPPED.
//  Attempts      – number of sweep claims that processed this row.
//  LastAttemptAt – timestamp of the most recent claim.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Reminder struct {
	ID            uint64     // reminders.id
	ReservationID uint64     // reminders.reservation_id
	RemindAt      time.Time  // reminders.remind_at
	Status        string     // reminders.status
	Attempts      uint32     // reminders.attempts
	LastAttemptAt *time.Time // reminders.last_attempt_at (nullable)
	CreatedAt     time.Time  // reminders.created_at
	UpdatedAt     time.Time  // reminders.updated_at
}
