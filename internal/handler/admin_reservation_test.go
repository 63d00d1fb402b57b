package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/james-hub21/ORBIT-sub003/internal/booking"
	"github.com/james-hub21/ORBIT-sub003/internal/model"
)

// sweepClockStore is an empty booking.Store that records the cutoff the
// sweep claims reminders against.
type sweepClockStore struct {
	claimedAt time.Time
}

func (s *sweepClockStore) WithFacility(_ context.Context, _ uint64, fn func(tx booking.Tx) error) error {
	return fn(&sweepClockTx{store: s})
}

func (s *sweepClockStore) InTx(_ context.Context, fn func(tx booking.Tx) error) error {
	return fn(&sweepClockTx{store: s})
}

func (s *sweepClockStore) GetReservation(context.Context, uint64) (*model.Reservation, error) {
	return nil, booking.ErrNotFound
}

type sweepClockTx struct {
	store *sweepClockStore
}

func (t *sweepClockTx) Facility(uint64) (*model.Facility, error) { return nil, booking.ErrNotFound }
func (t *sweepClockTx) Reservation(uint64) (*model.Reservation, error) {
	return nil, booking.ErrNotFound
}
func (t *sweepClockTx) ReservationForUpdate(uint64) (*model.Reservation, error) {
	return nil, booking.ErrNotFound
}
func (t *sweepClockTx) InsertReservation(*model.Reservation) error { return nil }
func (t *sweepClockTx) UpdateReservation(*model.Reservation) error { return nil }
func (t *sweepClockTx) TransitionReservation(*model.Reservation, string) error {
	return nil
}
func (t *sweepClockTx) ApprovedOverlapping(uint64, time.Time, time.Time, uint64) ([]model.Reservation, error) {
	return nil, nil
}
func (t *sweepClockTx) RequesterOverlapping(uint64, time.Time, time.Time, uint64) ([]model.Reservation, error) {
	return nil, nil
}
func (t *sweepClockTx) HasActiveRequest(uint64, uint64, time.Time, uint64) (bool, error) {
	return false, nil
}
func (t *sweepClockTx) ActiveByRequester(uint64) ([]model.Reservation, error) { return nil, nil }
func (t *sweepClockTx) UpsertReminder(*model.Reminder) error                  { return nil }
func (t *sweepClockTx) DeleteReminder(uint64) error                           { return nil }

func (t *sweepClockTx) ClaimDueReminders(now time.Time, _ int) ([]booking.DueReminder, error) {
	t.store.claimedAt = now
	return nil, nil
}

func TestSweepRemindersUsesEngineClock(t *testing.T) {
	at := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	store := &sweepClockStore{}
	eng := booking.NewEngine(store, nil, booking.DefaultPolicy(), func() time.Time { return at })
	h := NewAdminHandler(eng)

	c, rec := newTestContext(t)
	require.NoError(t, h.SweepReminders(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, at, store.claimedAt, "sweep must claim against the engine clock")
}
