package model

import "time"

// Stored reservation statuses.  APPROVED reservations whose window has
// passed are treated as completed for display purposes but keep the
// APPROVED status on disk; see DeriveDisplayStatus.
const (
	StatusPending   = "PENDING"
	StatusApproved  = "APPROVED"
	StatusDenied    = "DENIED"
	StatusCancelled = "CANCELLED"
)

// Derived display statuses.  These are computed from an APPROVED
// reservation's window relative to the current time and are never
// persisted.
const (
	DisplayScheduled = "SCHEDULED"
	DisplayActive    = "ACTIVE"
	DisplayCompleted = "COMPLETED"
)

// Reminder statuses recorded on the reservation row.  They mirror the
// state of the reminder table entry owned by the scheduler.
const (
	ReminderNone      = "NONE"
	ReminderScheduled = "SCHEDULED"
	ReminderSent      = "SENT"
	ReminderSkipped   = "SKIPPED"
)

// EquipmentState enumerates the preparation state of a single equipment
// item attached to a reservation.
type EquipmentState string

const (
	EquipmentPending     EquipmentState = "PENDING"
	EquipmentReady       EquipmentState = "READY"
	EquipmentUnavailable EquipmentState = "UNAVAILABLE"
)

// EquipmentStatus maps an equipment item name (projector, whiteboard,
// ...) to its preparation state.  It is persisted as a JSON column and
// replaces the older habit of embedding this information inside the
// free-text admin response.
type EquipmentStatus map[string]EquipmentState

// Reservation records a requester's claim on a facility for a
// half-open time window [StartsAt, EndsAt).
//
// Fields:
//  ID                  – primary key identifier.
//  FacilityID          – facility being reserved.
//  RequesterID         – external identity of the requesting user.
//  StartsAt            – window start (UTC).
//  EndsAt              – window end (UTC, strictly after StartsAt).
//  Status              – stored lifecycle status (PENDING, APPROVED,
//                        DENIED, CANCELLED).
//  ParticipantCount    – number of attendees.
//  Purpose             – free-text purpose supplied by the requester.
//  AdminResponse       – optional staff note recorded on a transition.
//  ActedBy             – identity of the actor of the last transition.
//  Equipment           – structured per-item preparation state.
//  ReminderOptIn       – whether the requester wants a reminder.
//  ReminderLeadMinutes – how long before StartsAt the reminder fires.
//  ReminderStatus      – NONE, SCHEDULED, SENT or SKIPPED.
//  ReminderAt          – computed fire time when scheduled.
//  CreatedAt           – creation timestamp.
//  UpdatedAt           – last update timestamp.
type Reservation struct {
	ID                  uint64          // reservations.id
	FacilityID          uint64          // reservations.facility_id
	RequesterID         uint64          // reservations.requester_id
	StartsAt            time.Time       // reservations.starts_at
	EndsAt              time.Time       // reservations.ends_at
	Status              string          // reservations.status
	ParticipantCount    uint32          // reservations.participant_count
	Purpose             string          // reservations.purpose
	AdminResponse       *string         // reservations.admin_response (nullable)
	ActedBy             *uint64         // reservations.acted_by (nullable)
	Equipment           EquipmentStatus // reservations.equipment_status (nullable JSON)
	ReminderOptIn       bool            // reservations.reminder_opt_in
	ReminderLeadMinutes uint32          // reservations.reminder_lead_minutes
	ReminderStatus      string          // reservations.reminder_status
	ReminderAt          *time.Time      // reservations.reminder_at (nullable)
	CreatedAt           time.Time       // reservations.created_at
	UpdatedAt           time.Time       // reservations.updated_at
}

// Overlaps reports whether the reservation's half-open window
// intersects [start, end).  Touching endpoints do not overlap, so a
// window ending exactly when another begins is allowed.
func (r *Reservation) Overlaps(start, end time.Time) bool {
	return r.StartsAt.Before(end) && r.EndsAt.After(start)
}

// IsTerminal reports whether the stored status can never change again.
func (r *Reservation) IsTerminal() bool {
	return r.Status == StatusDenied || r.Status == StatusCancelled
}

// DeriveDisplayStatus computes the user-facing status label for a
// reservation at the given instant.  Every caller that labels a
// reservation must go through this function so that "active" and
// "completed" mean the same thing everywhere.  Non-approved statuses
// are returned as stored.
func DeriveDisplayStatus(r *Reservation, now time.Time) string {
	if r.Status != StatusApproved {
		return r.Status
	}
	switch {
	case !now.Before(r.EndsAt):
		return DisplayCompleted
	case !now.Before(r.StartsAt):
		return DisplayActive
	default:
		return DisplayScheduled
	}
}
