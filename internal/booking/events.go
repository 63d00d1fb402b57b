package booking

import (
	"context"
	"log"
	"time"

	"github.com/james-hub21/ORBIT-sub003/internal/model"
	"github.com/james-hub21/ORBIT-sub003/internal/queue"
)

// EventPublisher hands lifecycle events to the external
// notifier/auditor.  Implementations must be safe for concurrent use.
// Publishing is best-effort: the engine logs failures and keeps going,
// because the reservation state has already committed.
type EventPublisher interface {
	PublishReservationCreated(ctx context.Context, ev queue.ReservationCreatedEvent) error
	PublishReservationStatusChanged(ctx context.Context, ev queue.ReservationStatusChangedEvent) error
	PublishReminderDue(ctx context.Context, ev queue.ReminderDueEvent) error
}

// NopPublisher discards every event.  Used in tests and in deployments
// without a broker.
type NopPublisher struct{}

func (NopPublisher) PublishReservationCreated(context.Context, queue.ReservationCreatedEvent) error {
	return nil
}
func (NopPublisher) PublishReservationStatusChanged(context.Context, queue.ReservationStatusChangedEvent) error {
	return nil
}
func (NopPublisher) PublishReminderDue(context.Context, queue.ReminderDueEvent) error {
	return nil
}

// pendingEvent defers publication until after the owning transaction
// has committed, so aborted admissions never leak events.
type pendingEvent func(ctx context.Context, pub EventPublisher) error

func createdEvent(res *model.Reservation, facilityName string) pendingEvent {
	ev := queue.ReservationCreatedEvent{
		ReservationID: res.ID,
		FacilityID:    res.FacilityID,
		FacilityName:  facilityName,
		RequesterID:   res.RequesterID,
		StartsAt:      res.StartsAt.UTC().Format(time.RFC3339),
		EndsAt:        res.EndsAt.UTC().Format(time.RFC3339),
		Status:        res.Status,
		Purpose:       res.Purpose,
		CreatedAt:     res.CreatedAt.UTC().Format(time.RFC3339),
	}
	return func(ctx context.Context, pub EventPublisher) error {
		return pub.PublishReservationCreated(ctx, ev)
	}
}

func statusChangedEvent(res *model.Reservation, facilityName, from string, actor uint64, note string, at time.Time) pendingEvent {
	ev := queue.ReservationStatusChangedEvent{
		ReservationID: res.ID,
		FacilityID:    res.FacilityID,
		FacilityName:  facilityName,
		RequesterID:   res.RequesterID,
		StartsAt:      res.StartsAt.UTC().Format(time.RFC3339),
		EndsAt:        res.EndsAt.UTC().Format(time.RFC3339),
		From:          from,
		To:            res.Status,
		ActedBy:       actor,
		Note:          note,
		ChangedAt:     at.UTC().Format(time.RFC3339),
	}
	return func(ctx context.Context, pub EventPublisher) error {
		return pub.PublishReservationStatusChanged(ctx, ev)
	}
}

func reminderDueEvent(d DueReminder) pendingEvent {
	ev := queue.ReminderDueEvent{
		ReservationID: d.ReservationID,
		FacilityID:    d.FacilityID,
		FacilityName:  d.FacilityName,
		RequesterID:   d.RequesterID,
		StartsAt:      d.StartsAt.UTC().Format(time.RFC3339),
		EndsAt:        d.EndsAt.UTC().Format(time.RFC3339),
		RemindAt:      d.RemindAt.UTC().Format(time.RFC3339),
		Attempt:       d.Attempt,
	}
	return func(ctx context.Context, pub EventPublisher) error {
		return pub.PublishReminderDue(ctx, ev)
	}
}

// flush publishes committed events, logging rather than failing the
// already-committed operation.
func flush(ctx context.Context, pub EventPublisher, events []pendingEvent) {
	if pub == nil {
		return
	}
	for _, ev := range events {
		if err := ev(ctx, pub); err != nil {
			log.Printf("booking: event publish failed: %v", err)
		}
	}
}
