// Package queue defines message payloads exchanged over the message broker.
package queue

// Queue names used by the publisher and the notifier consumer.  Each
// event type has its own durable queue so that downstream consumers can
// subscribe selectively.
const (
	ReservationCreatedQueue       = "reservation.created"
	ReservationStatusChangedQueue = "reservation.status_changed"
	ReminderDueQueue              = "reminder.due"
)

// ReservationCreatedEvent is published after a reservation request has
// been admitted and committed.  It carries enough denormalized context
// for downstream consumers to render a notification or audit line
// without querying the primary database.
type ReservationCreatedEvent struct {
	ReservationID uint64 `json:"reservation_id"`
	FacilityID    uint64 `json:"facility_id"`
	FacilityName  string `json:"facility_name"`
	RequesterID   uint64 `json:"requester_id"`
	StartsAt      string `json:"starts_at"`
	EndsAt        string `json:"ends_at"`
	Status        string `json:"status"`
	Purpose       string `json:"purpose"`
	CreatedAt     string `json:"created_at"`
}

// ReservationStatusChangedEvent is published after a lifecycle
// transition commits.  From and To are the stored statuses on either
// side of the transition.
type ReservationStatusChangedEvent struct {
	ReservationID uint64 `json:"reservation_id"`
	FacilityID    uint64 `json:"facility_id"`
	FacilityName  string `json:"facility_name"`
	RequesterID   uint64 `json:"requester_id"`
	StartsAt      string `json:"starts_at"`
	EndsAt        string `json:"ends_at"`
	From          string `json:"from"`
	To            string `json:"to"`
	ActedBy       uint64 `json:"acted_by"`
	Note          string `json:"note,omitempty"`
	ChangedAt     string `json:"changed_at"`
}

// ReminderDueEvent is published when the sweep claims a due reminder.
// The external notifier renders and delivers the actual message.
type ReminderDueEvent struct {
	ReservationID uint64 `json:"reservation_id"`
	FacilityID    uint64 `json:"facility_id"`
	FacilityName  string `json:"facility_name"`
	RequesterID   uint64 `json:"requester_id"`
	StartsAt      string `json:"starts_at"`
	EndsAt        string `json:"ends_at"`
	RemindAt      string `json:"remind_at"`
	Attempt       uint32 `json:"attempt"`
}
