package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/james-hub21/ORBIT-sub003/internal/model"
)

func TestReminderOptOutSkips(t *testing.T) {
	store := newMemStore()
	fac := store.addFacility(model.Facility{Name: "Room A", Capacity: 10, IsActive: true})
	eng, _ := testEngine(t, store, DefaultPolicy())

	in := roomInput(fac.ID, 7, 2*time.Hour, 3*time.Hour)
	in.ReminderOptIn = false
	res, err := eng.RequestReservation(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, model.ReminderSkipped, res.ReminderStatus)
	assert.Nil(t, res.ReminderAt)
	_, ok := store.reminder(res.ID)
	assert.False(t, ok)
}

func TestReminderPastDueSkips(t *testing.T) {
	store := newMemStore()
	fac := store.addFacility(model.Facility{Name: "Room A", Capacity: 10, IsActive: true})
	eng, _ := testEngine(t, store, DefaultPolicy())

	// Lead time longer than the gap to the start: the fire time is
	// already behind the clock, so no reminder is scheduled.
	in := roomInput(fac.ID, 7, 20*time.Minute, 80*time.Minute)
	in.ReminderLeadMinutes = 30
	res, err := eng.RequestReservation(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, model.ReminderSkipped, res.ReminderStatus)
	_, ok := store.reminder(res.ID)
	assert.False(t, ok)
}

func TestReminderRescheduledOnEdit(t *testing.T) {
	store := newMemStore()
	fac := store.addFacility(model.Facility{Name: "Room A", Capacity: 10, IsActive: true})
	eng, _ := testEngine(t, store, DefaultPolicy())

	res, err := eng.RequestReservation(context.Background(), roomInput(fac.ID, 7, 2*time.Hour, 3*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, res.ReminderAt)
	assert.Equal(t, testBase.Add(90*time.Minute), *res.ReminderAt)

	// Moving the window moves the fire time; the unique key replaces
	// the row instead of adding a second reminder.
	newStart := testBase.Add(4 * time.Hour)
	newEnd := testBase.Add(5 * time.Hour)
	updated, err := eng.UpdateReservation(context.Background(), res.ID, 7, UpdateReservationInput{StartsAt: &newStart, EndsAt: &newEnd})
	require.NoError(t, err)
	require.NotNil(t, updated.ReminderAt)
	assert.Equal(t, testBase.Add(210*time.Minute), *updated.ReminderAt)

	rem, ok := store.reminder(res.ID)
	require.True(t, ok)
	assert.Equal(t, testBase.Add(210*time.Minute), rem.RemindAt)
	assert.Equal(t, model.ReminderRowPending, rem.Status)
}

func TestReminderOptOutOnEditDeletesRow(t *testing.T) {
	store := newMemStore()
	fac := store.addFacility(model.Facility{Name: "Room A", Capacity: 10, IsActive: true})
	eng, _ := testEngine(t, store, DefaultPolicy())

	res, err := eng.RequestReservation(context.Background(), roomInput(fac.ID, 7, 2*time.Hour, 3*time.Hour))
	require.NoError(t, err)

	optOut := false
	updated, err := eng.UpdateReservation(context.Background(), res.ID, 7, UpdateReservationInput{ReminderOptIn: &optOut})
	require.NoError(t, err)
	assert.Equal(t, model.ReminderSkipped, updated.ReminderStatus)
	_, ok := store.reminder(res.ID)
	assert.False(t, ok)
}

func TestPopDueRemindersClaimsOnce(t *testing.T) {
	store := newMemStore()
	fac := store.addFacility(model.Facility{Name: "Room A", Capacity: 10, IsActive: true})
	eng, pub := testEngine(t, store, DefaultPolicy())

	res, err := eng.RequestReservation(context.Background(), roomInput(fac.ID, 7, 2*time.Hour, 3*time.Hour))
	require.NoError(t, err)

	// Not yet due.
	due, err := eng.PopDueReminders(context.Background(), testBase.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)

	// Due now: claimed, marked SENT and mirrored onto the reservation.
	due, err = eng.PopDueReminders(context.Background(), testBase.Add(91*time.Minute))
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, res.ID, due[0].ReservationID)
	assert.Equal(t, "Room A", due[0].FacilityName)
	assert.Equal(t, uint32(1), due[0].Attempt)

	stored, _ := store.reservation(res.ID)
	assert.Equal(t, model.ReminderSent, stored.ReminderStatus)
	rem, _ := store.reminder(res.ID)
	assert.Equal(t, model.ReminderRowSent, rem.Status)
	require.Len(t, pub.reminders, 1)
	assert.Equal(t, res.ID, pub.reminders[0].ReservationID)

	// A second sweep finds nothing.
	due, err = eng.PopDueReminders(context.Background(), testBase.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Empty(t, due)
}

func TestPopDueRemindersConcurrentSweeps(t *testing.T) {
	store := newMemStore()
	fac := store.addFacility(model.Facility{Name: "Room A", Capacity: 10, IsActive: true})
	eng, pub := testEngine(t, store, DefaultPolicy())

	const n = 5
	for i := 0; i < n; i++ {
		in := roomInput(fac.ID, uint64(300+i), time.Duration(2+i)*time.Hour, time.Duration(3+i)*time.Hour)
		_, err := eng.RequestReservation(context.Background(), in)
		require.NoError(t, err)
	}

	sweepAt := testBase.Add(24 * time.Hour)
	var wg sync.WaitGroup
	results := make([][]DueReminder, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			due, err := eng.PopDueReminders(context.Background(), sweepAt)
			require.NoError(t, err)
			results[i] = due
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]int)
	total := 0
	for _, due := range results {
		for _, d := range due {
			seen[d.ReservationID]++
			total += 1
		}
	}
	assert.Equal(t, n, total, "every due reminder is claimed exactly once across sweeps")
	for id, c := range seen {
		assert.Equal(t, 1, c, "reservation %d claimed more than once", id)
	}
	assert.Len(t, pub.reminders, n)
}

func TestSweeperRunsAndStops(t *testing.T) {
	store := newMemStore()
	fac := store.addFacility(model.Facility{Name: "Room A", Capacity: 10, IsActive: true})
	pub := &capturePublisher{}
	eng := NewEngine(store, pub, DefaultPolicy(), time.Now)

	start := time.Now().UTC().Add(time.Hour)
	_, err := eng.RequestReservation(context.Background(), RequestReservationInput{
		FacilityID:          fac.ID,
		RequesterID:         7,
		StartsAt:            start,
		EndsAt:              start.Add(time.Hour),
		ReminderOptIn:       true,
		ReminderLeadMinutes: 30,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	s := NewSweeper(eng, 5*time.Millisecond)
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	time.Sleep(25 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on context cancellation")
	}
}
