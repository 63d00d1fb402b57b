package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/james-hub21/ORBIT-sub003/internal/model"
)

// Policy holds deployment-level switches for the engine.
type Policy struct {
	// AutoApprove admits new reservations directly into APPROVED
	// instead of PENDING awaiting a staff decision.
	AutoApprove bool
	// DuplicateRequestCheck rejects a second pending/approved request
	// by the same requester on the same facility.
	DuplicateRequestCheck bool
}

// DefaultPolicy matches the original deployment: staff approve
// requests, duplicate requests are refused.
func DefaultPolicy() Policy {
	return Policy{AutoApprove: false, DuplicateRequestCheck: true}
}

// Engine is the reservation lifecycle manager.  It serializes admission
// per facility, applies the resolver's verdict, persists outcomes
// transactionally, keeps reminders in step with reservation state and
// emits events after commit.
type Engine struct {
	store    Store
	resolver Resolver
	events   EventPublisher
	policy   Policy
	now      func() time.Time
}

// NewEngine wires an engine.  events may be nil to disable publishing;
// now may be nil to use wall-clock time.
func NewEngine(store Store, events EventPublisher, policy Policy, now func() time.Time) *Engine {
	if store == nil {
		panic("nil store passed to NewEngine")
	}
	if events == nil {
		events = NopPublisher{}
	}
	if now == nil {
		now = time.Now
	}
	return &Engine{
		store:    store,
		resolver: Resolver{DuplicateRequestCheck: policy.DuplicateRequestCheck},
		events:   events,
		policy:   policy,
		now:      now,
	}
}

// RequestReservationInput is the typed payload for admission.  The
// boundary layer validates and converts the wire request before the
// engine sees it.
type RequestReservationInput struct {
	FacilityID          uint64
	RequesterID         uint64
	StartsAt            time.Time
	EndsAt              time.Time
	ParticipantCount    uint32
	Purpose             string
	Equipment           model.EquipmentStatus
	ReminderOptIn       bool
	ReminderLeadMinutes uint32
}

// RequestReservation admits or rejects a new reservation.  The overlap
// check and the insert happen atomically under the facility's exclusive
// lock, so two concurrent requests for overlapping windows on the same
// facility cannot both be admitted: the second to enter observes the
// first's committed write and is rejected deterministically.
func (e *Engine) RequestReservation(ctx context.Context, in RequestReservationInput) (*model.Reservation, error) {
	if err := validateWindow(in.StartsAt, in.EndsAt); err != nil {
		return nil, err
	}
	if in.FacilityID == 0 || in.RequesterID == 0 {
		return nil, fmt.Errorf("%w: facility and requester are required", ErrInvalidWindow)
	}

	var (
		created *model.Reservation
		pending []pendingEvent
	)
	err := e.store.WithFacility(ctx, in.FacilityID, func(tx Tx) error {
		now := e.now().UTC()
		cand := Candidate{
			FacilityID:  in.FacilityID,
			RequesterID: in.RequesterID,
			StartsAt:    in.StartsAt.UTC(),
			EndsAt:      in.EndsAt.UTC(),
		}
		verdict, err := e.resolver.Evaluate(tx, cand, now)
		if err != nil {
			return err
		}
		if !verdict.Admitted() {
			return &ConflictError{Rejections: verdict.Rejections}
		}

		fac, err := tx.Facility(in.FacilityID)
		if err != nil {
			return err
		}

		status := model.StatusPending
		if e.policy.AutoApprove {
			status = model.StatusApproved
		}
		res := &model.Reservation{
			FacilityID:          in.FacilityID,
			RequesterID:         in.RequesterID,
			StartsAt:            in.StartsAt.UTC(),
			EndsAt:              in.EndsAt.UTC(),
			Status:              status,
			ParticipantCount:    in.ParticipantCount,
			Purpose:             strings.TrimSpace(in.Purpose),
			Equipment:           in.Equipment,
			ReminderOptIn:       in.ReminderOptIn,
			ReminderLeadMinutes: in.ReminderLeadMinutes,
			ReminderStatus:      model.ReminderNone,
		}
		if err := tx.InsertReservation(res); err != nil {
			return err
		}
		if err := e.scheduleOrUpdateReminder(tx, res, now); err != nil {
			return err
		}
		if err := tx.UpdateReservation(res); err != nil {
			return err
		}

		created = res
		pending = append(pending, createdEvent(res, fac.Name))
		return nil
	})
	if err != nil {
		return nil, err
	}
	flush(ctx, e.events, pending)
	return created, nil
}

// UpdateReservationInput carries the partial changes of an edit.  Nil
// pointers leave the corresponding field untouched.
type UpdateReservationInput struct {
	FacilityID          *uint64
	StartsAt            *time.Time
	EndsAt              *time.Time
	ParticipantCount    *uint32
	Purpose             *string
	Equipment           model.EquipmentStatus
	ReminderOptIn       *bool
	ReminderLeadMinutes *uint32
}

// touchesWindow reports whether the edit affects conflict-sensitive
// fields and therefore needs re-evaluation under the facility lock.
func (in UpdateReservationInput) touchesWindow() bool {
	return in.FacilityID != nil || in.StartsAt != nil || in.EndsAt != nil
}

// lockCurrentFacility runs fn under the lock of the facility the
// reservation currently belongs to.  The lock-free read that picks the
// facility can lose a race with an owner edit moving the reservation,
// so after the in-lock re-read the facility is verified against the
// locked one and the lock is re-acquired on the current facility when
// they differ.
func (e *Engine) lockCurrentFacility(ctx context.Context, id uint64, fn func(tx Tx, res *model.Reservation) error) error {
	for {
		current, err := e.store.GetReservation(ctx, id)
		if err != nil {
			return err
		}
		locked := current.FacilityID
		moved := false
		err = e.store.WithFacility(ctx, locked, func(tx Tx) error {
			res, err := tx.ReservationForUpdate(id)
			if err != nil {
				return err
			}
			if res.FacilityID != locked {
				moved = true
				return nil
			}
			return fn(tx, res)
		})
		if err != nil {
			return err
		}
		if !moved {
			return nil
		}
	}
}

// UpdateReservation edits a reservation.  Only reservations in an
// editable state may change: PENDING, or APPROVED not yet started and
// without a recorded staff response.  Window or facility changes re-run
// the resolver with the reservation excluded from its own conflict
// check, under the same per-facility serialization as admission.
func (e *Engine) UpdateReservation(ctx context.Context, id uint64, actor uint64, in UpdateReservationInput) (*model.Reservation, error) {
	current, err := e.store.GetReservation(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor != current.RequesterID {
		return nil, fmt.Errorf("%w: reservation %d does not belong to requester %d", ErrNotFound, id, actor)
	}

	var updated *model.Reservation
	apply := func(tx Tx, res *model.Reservation) error {
		now := e.now().UTC()
		if err := editable(res, now); err != nil {
			return err
		}

		next := *res
		if in.FacilityID != nil {
			next.FacilityID = *in.FacilityID
		}
		if in.StartsAt != nil {
			next.StartsAt = in.StartsAt.UTC()
		}
		if in.EndsAt != nil {
			next.EndsAt = in.EndsAt.UTC()
		}
		if in.ParticipantCount != nil {
			next.ParticipantCount = *in.ParticipantCount
		}
		if in.Purpose != nil {
			next.Purpose = strings.TrimSpace(*in.Purpose)
		}
		if in.Equipment != nil {
			next.Equipment = in.Equipment
		}
		if in.ReminderOptIn != nil {
			next.ReminderOptIn = *in.ReminderOptIn
		}
		if in.ReminderLeadMinutes != nil {
			next.ReminderLeadMinutes = *in.ReminderLeadMinutes
		}
		if err := validateWindow(next.StartsAt, next.EndsAt); err != nil {
			return err
		}

		if in.touchesWindow() {
			cand := Candidate{
				FacilityID:           next.FacilityID,
				RequesterID:          next.RequesterID,
				StartsAt:             next.StartsAt,
				EndsAt:               next.EndsAt,
				ExcludeReservationID: next.ID,
			}
			// Edits report every triggered reason at once.
			verdict, err := e.resolver.EvaluateAll(tx, cand, now)
			if err != nil {
				return err
			}
			if !verdict.Admitted() {
				return &ConflictError{Rejections: verdict.Rejections}
			}
		}

		if err := e.scheduleOrUpdateReminder(tx, &next, now); err != nil {
			return err
		}
		if err := tx.UpdateReservation(&next); err != nil {
			return err
		}
		updated = &next
		return nil
	}

	if in.FacilityID != nil {
		// Moving facilities: admission into the target runs under the
		// target facility's lock.
		err = e.store.WithFacility(ctx, *in.FacilityID, func(tx Tx) error {
			res, err := tx.ReservationForUpdate(id)
			if err != nil {
				return err
			}
			return apply(tx, res)
		})
	} else {
		err = e.lockCurrentFacility(ctx, id, apply)
	}
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// transitions is the lifecycle state machine.  Absent entries are
// invalid; DENIED and CANCELLED are terminal.
var transitions = map[string][]string{
	model.StatusPending:  {model.StatusApproved, model.StatusDenied, model.StatusCancelled},
	model.StatusApproved: {model.StatusCancelled},
}

func transitionAllowed(from, to string) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// SetStatus drives a lifecycle transition.  Approval re-checks the
// facility overlap inside the facility lock so the approved set stays
// pairwise non-overlapping even when several pending requests coexist
// for the same slot: the first approval wins, later ones are refused.
// Transitions into DENIED or CANCELLED delete any pending reminder;
// approval (re)schedules it from the current start time.
func (e *Engine) SetStatus(ctx context.Context, id uint64, newStatus string, actor uint64, note string) (*model.Reservation, error) {
	switch newStatus {
	case model.StatusApproved, model.StatusDenied, model.StatusCancelled:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, newStatus)
	}

	var (
		updated *model.Reservation
		pending []pendingEvent
	)
	err := e.lockCurrentFacility(ctx, id, func(tx Tx, res *model.Reservation) error {
		now := e.now().UTC()
		from := res.Status
		if !transitionAllowed(from, newStatus) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, newStatus)
		}

		if newStatus == model.StatusApproved {
			overlapping, err := tx.ApprovedOverlapping(res.FacilityID, res.StartsAt, res.EndsAt, res.ID)
			if err != nil {
				return err
			}
			if len(overlapping) > 0 {
				fac, ferr := tx.Facility(res.FacilityID)
				name := ""
				if ferr == nil {
					name = fac.Name
				}
				return &ConflictError{Rejections: []Rejection{{
					Code:      CodeResourceConflict,
					Conflicts: summarize(overlapping, name),
				}}}
			}
		}

		res.Status = newStatus
		res.ActedBy = &actor
		if note != "" {
			n := note
			res.AdminResponse = &n
		}

		switch newStatus {
		case model.StatusApproved:
			if err := e.scheduleOrUpdateReminder(tx, res, now); err != nil {
				return err
			}
		case model.StatusDenied, model.StatusCancelled:
			if err := e.dropReminder(tx, res); err != nil {
				return err
			}
		}

		// Guarded on the status observed above; a concurrent
		// transition that committed first refuses this one instead of
		// being silently overwritten.
		if err := tx.TransitionReservation(res, from); err != nil {
			return err
		}

		fac, err := tx.Facility(res.FacilityID)
		if err != nil {
			return err
		}
		updated = res
		pending = append(pending, statusChangedEvent(res, fac.Name, from, actor, note, now))
		return nil
	})
	if err != nil {
		return nil, err
	}
	flush(ctx, e.events, pending)
	return updated, nil
}

// CancelAllForRequester bulk-cancels every pending or approved
// reservation held by a requester, used when a requester's access is
// revoked.  Already-terminal reservations are left untouched, so the
// operation is idempotent.  Returns the number of reservations
// cancelled.
func (e *Engine) CancelAllForRequester(ctx context.Context, requesterID, actor uint64, reason string) (int, error) {
	var (
		count   int
		pending []pendingEvent
	)
	// Cancellation only removes windows from the approved set, so no
	// facility lock is needed; the rows are locked by the read below
	// and every write is status-guarded.
	err := e.store.InTx(ctx, func(tx Tx) error {
		now := e.now().UTC()
		active, err := tx.ActiveByRequester(requesterID)
		if err != nil {
			return err
		}
		for i := range active {
			res := &active[i]
			from := res.Status
			res.Status = model.StatusCancelled
			res.ActedBy = &actor
			if reason != "" {
				r := reason
				res.AdminResponse = &r
			}
			if err := e.dropReminder(tx, res); err != nil {
				return err
			}
			if err := tx.TransitionReservation(res, from); err != nil {
				return err
			}
			name := ""
			if fac, ferr := tx.Facility(res.FacilityID); ferr == nil {
				name = fac.Name
			}
			pending = append(pending, statusChangedEvent(res, name, from, actor, reason, now))
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	flush(ctx, e.events, pending)
	return count, nil
}

// GetReservation returns a reservation by id for read paths.
func (e *Engine) GetReservation(ctx context.Context, id uint64) (*model.Reservation, error) {
	return e.store.GetReservation(ctx, id)
}

// Now exposes the engine's clock so boundary layers derive display
// statuses from the same time source.
func (e *Engine) Now() time.Time { return e.now() }

// editable enforces the edit window: PENDING always, APPROVED only
// before its start and before staff have recorded a response.
func editable(res *model.Reservation, now time.Time) error {
	switch res.Status {
	case model.StatusPending:
		if res.AdminResponse != nil {
			return fmt.Errorf("%w: staff already responded", ErrNotEditable)
		}
		return nil
	case model.StatusApproved:
		if res.AdminResponse != nil {
			return fmt.Errorf("%w: staff already responded", ErrNotEditable)
		}
		if !now.Before(res.StartsAt) {
			return fmt.Errorf("%w: reservation already started", ErrNotEditable)
		}
		return nil
	default:
		return fmt.Errorf("%w: status %s", ErrNotEditable, res.Status)
	}
}

func validateWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidWindow)
	}
	if !start.Before(end) {
		return fmt.Errorf("%w: start %s is not before end %s", ErrInvalidWindow,
			start.UTC().Format(time.RFC3339), end.UTC().Format(time.RFC3339))
	}
	return nil
}

// IsConflict reports whether err is a conflict rejection and returns
// the typed error for callers that render the conflict list.
func IsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
