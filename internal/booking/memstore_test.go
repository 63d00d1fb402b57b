package booking

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/james-hub21/ORBIT-sub003/internal/model"
	"github.com/james-hub21/ORBIT-sub003/internal/queue"
)

// memStore is an in-memory Store used by engine tests.  It reproduces
// the per-facility serialization of the MySQL implementation with one
// mutex per facility id, so concurrency tests exercise the same
// check-then-write ordering the production store provides.
type memStore struct {
	mu           sync.Mutex
	facLocks     map[uint64]*sync.Mutex
	facilities   map[uint64]*model.Facility
	reservations map[uint64]*model.Reservation
	reminders    map[uint64]*model.Reminder // keyed by reservation id
	nextID       uint64
}

func newMemStore() *memStore {
	return &memStore{
		facLocks:     make(map[uint64]*sync.Mutex),
		facilities:   make(map[uint64]*model.Facility),
		reservations: make(map[uint64]*model.Reservation),
		reminders:    make(map[uint64]*model.Reminder),
	}
}

func (s *memStore) addFacility(f model.Facility) *model.Facility {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.ID == 0 {
		s.nextID++
		f.ID = s.nextID
	}
	cp := f
	s.facilities[f.ID] = &cp
	return &cp
}

func (s *memStore) facilityLock(id uint64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.facLocks[id]
	if !ok {
		l = &sync.Mutex{}
		s.facLocks[id] = l
	}
	return l
}

func (s *memStore) WithFacility(ctx context.Context, facilityID uint64, fn func(tx Tx) error) error {
	l := s.facilityLock(facilityID)
	l.Lock()
	defer l.Unlock()
	if err := ctx.Err(); err != nil {
		return ErrTimeout
	}
	return fn(&memTx{s: s})
}

func (s *memStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return ErrTimeout
	}
	return fn(&memTx{s: s})
}

func (s *memStore) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	return (&memTx{s: s}).Reservation(id)
}

func (s *memStore) reservation(id uint64) (model.Reservation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reservations[id]
	if !ok {
		return model.Reservation{}, false
	}
	return *r, true
}

func (s *memStore) reminder(reservationID uint64) (model.Reminder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reminders[reservationID]
	if !ok {
		return model.Reminder{}, false
	}
	return *r, true
}

// memTx implements Tx over the shared maps.  Reads return copies so
// engine-side mutation never aliases stored state before
// UpdateReservation.
type memTx struct {
	s *memStore
}

func (t *memTx) Facility(id uint64) (*model.Facility, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	f, ok := t.s.facilities[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (t *memTx) Reservation(id uint64) (*model.Reservation, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	r, ok := t.s.reservations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

// ReservationForUpdate behaves like Reservation; the fake has no row
// locks, so tests exercising lost-update races rely on the guarded
// TransitionReservation write instead.
func (t *memTx) ReservationForUpdate(id uint64) (*model.Reservation, error) {
	return t.Reservation(id)
}

func (t *memTx) InsertReservation(r *model.Reservation) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.nextID++
	r.ID = t.s.nextID
	r.CreatedAt = time.Now().UTC()
	r.UpdatedAt = r.CreatedAt
	cp := *r
	t.s.reservations[r.ID] = &cp
	return nil
}

func (t *memTx) UpdateReservation(r *model.Reservation) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if _, ok := t.s.reservations[r.ID]; !ok {
		return ErrNotFound
	}
	r.UpdatedAt = time.Now().UTC()
	cp := *r
	t.s.reservations[r.ID] = &cp
	return nil
}

func (t *memTx) TransitionReservation(r *model.Reservation, from string) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	stored, ok := t.s.reservations[r.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Status != from {
		return fmt.Errorf("%w: reservation %d is %s, not %s", ErrInvalidTransition, r.ID, stored.Status, from)
	}
	r.UpdatedAt = time.Now().UTC()
	cp := *r
	t.s.reservations[r.ID] = &cp
	return nil
}

func (t *memTx) ApprovedOverlapping(facilityID uint64, start, end time.Time, excludeID uint64) ([]model.Reservation, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []model.Reservation
	for _, r := range t.s.reservations {
		if r.ID == excludeID || r.FacilityID != facilityID || r.Status != model.StatusApproved {
			continue
		}
		if r.Overlaps(start, end) {
			out = append(out, *r)
		}
	}
	sortByID(out)
	return out, nil
}

func (t *memTx) RequesterOverlapping(requesterID uint64, start, end time.Time, excludeID uint64) ([]model.Reservation, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []model.Reservation
	for _, r := range t.s.reservations {
		if r.ID == excludeID || r.RequesterID != requesterID || r.Status != model.StatusApproved {
			continue
		}
		if r.Overlaps(start, end) {
			out = append(out, *r)
		}
	}
	sortByID(out)
	return out, nil
}

func (t *memTx) HasActiveRequest(requesterID, facilityID uint64, now time.Time, excludeID uint64) (bool, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	for _, r := range t.s.reservations {
		if r.ID == excludeID || r.RequesterID != requesterID || r.FacilityID != facilityID {
			continue
		}
		if (r.Status == model.StatusPending || r.Status == model.StatusApproved) && r.EndsAt.After(now) {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) ActiveByRequester(requesterID uint64) ([]model.Reservation, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var out []model.Reservation
	for _, r := range t.s.reservations {
		if r.RequesterID != requesterID {
			continue
		}
		if r.Status == model.StatusPending || r.Status == model.StatusApproved {
			out = append(out, *r)
		}
	}
	sortByID(out)
	return out, nil
}

func (t *memTx) UpsertReminder(rem *model.Reminder) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	cp := *rem
	if cp.ID == 0 {
		t.s.nextID++
		cp.ID = t.s.nextID
	}
	cp.Status = model.ReminderRowPending
	cp.Attempts = 0
	cp.LastAttemptAt = nil
	t.s.reminders[rem.ReservationID] = &cp
	return nil
}

func (t *memTx) DeleteReminder(reservationID uint64) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	delete(t.s.reminders, reservationID)
	return nil
}

func (t *memTx) ClaimDueReminders(now time.Time, limit int) ([]DueReminder, error) {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	var due []*model.Reminder
	for _, rem := range t.s.reminders {
		if rem.Status == model.ReminderRowPending && !rem.RemindAt.After(now) {
			due = append(due, rem)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].RemindAt.Before(due[j].RemindAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	out := make([]DueReminder, 0, len(due))
	for _, rem := range due {
		rem.Status = model.ReminderRowSent
		rem.Attempts++
		at := now
		rem.LastAttemptAt = &at
		res := t.s.reservations[rem.ReservationID]
		if res == nil {
			continue
		}
		name := ""
		if fac, ok := t.s.facilities[res.FacilityID]; ok {
			name = fac.Name
		}
		out = append(out, DueReminder{
			ReservationID: rem.ReservationID,
			FacilityID:    res.FacilityID,
			FacilityName:  name,
			RequesterID:   res.RequesterID,
			StartsAt:      res.StartsAt,
			EndsAt:        res.EndsAt,
			RemindAt:      rem.RemindAt,
			Attempt:       rem.Attempts,
		})
	}
	return out, nil
}

func sortByID(rs []model.Reservation) {
	sort.Slice(rs, func(i, j int) bool { return rs[i].ID < rs[j].ID })
}

// raceStore wraps memStore and fires one-shot callbacks at the seams
// where a concurrent actor can slip in, so racy interleavings become
// deterministic in tests.
type raceStore struct {
	inner *memStore
	mu    sync.Mutex
	// beforeFacilityLock runs once, before the next facility lock is
	// taken, with the facility id about to be locked.
	beforeFacilityLock func(facilityID uint64)
	// afterApprovedScan runs once, right after the next approved-set
	// overlap scan inside a transaction.
	afterApprovedScan func()
}

func (s *raceStore) takeBeforeLock() func(uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hook := s.beforeFacilityLock
	s.beforeFacilityLock = nil
	return hook
}

func (s *raceStore) takeAfterScan() func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	hook := s.afterApprovedScan
	s.afterApprovedScan = nil
	return hook
}

func (s *raceStore) WithFacility(ctx context.Context, facilityID uint64, fn func(tx Tx) error) error {
	if hook := s.takeBeforeLock(); hook != nil {
		hook(facilityID)
	}
	return s.inner.WithFacility(ctx, facilityID, func(tx Tx) error {
		return fn(&raceTx{Tx: tx, s: s})
	})
}

func (s *raceStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.inner.InTx(ctx, func(tx Tx) error {
		return fn(&raceTx{Tx: tx, s: s})
	})
}

func (s *raceStore) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	return s.inner.GetReservation(ctx, id)
}

type raceTx struct {
	Tx
	s *raceStore
}

func (t *raceTx) ApprovedOverlapping(facilityID uint64, start, end time.Time, excludeID uint64) ([]model.Reservation, error) {
	out, err := t.Tx.ApprovedOverlapping(facilityID, start, end, excludeID)
	if hook := t.s.takeAfterScan(); hook != nil {
		hook()
	}
	return out, err
}

// capturePublisher records published events for assertions.
type capturePublisher struct {
	mu            sync.Mutex
	created       []queue.ReservationCreatedEvent
	statusChanged []queue.ReservationStatusChangedEvent
	reminders     []queue.ReminderDueEvent
}

func (p *capturePublisher) PublishReservationCreated(_ context.Context, ev queue.ReservationCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, ev)
	return nil
}

func (p *capturePublisher) PublishReservationStatusChanged(_ context.Context, ev queue.ReservationStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statusChanged = append(p.statusChanged, ev)
	return nil
}

func (p *capturePublisher) PublishReminderDue(_ context.Context, ev queue.ReminderDueEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reminders = append(p.reminders, ev)
	return nil
}
