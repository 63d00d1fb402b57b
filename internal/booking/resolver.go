package booking

import (
	"errors"
	"time"

	"github.com/james-hub21/ORBIT-sub003/internal/model"
)

// Candidate is the input to conflict evaluation: a facility, a
// requester and a half-open window.  ExcludeReservationID is set when
// re-validating an edit so the reservation never conflicts with
// itself.
type Candidate struct {
	FacilityID           uint64
	RequesterID          uint64
	StartsAt             time.Time
	EndsAt               time.Time
	ExcludeReservationID uint64
}

// Resolver decides whether a candidate reservation may be admitted.
// It is pure read-and-decide: it queries existing state through the
// transaction it is handed and persists nothing.
type Resolver struct {
	// DuplicateRequestCheck enables the per-facility duplicate active
	// request rejection.  Deployment policy; on by default.
	DuplicateRequestCheck bool
}

// Evaluate runs the conflict checks in their fixed order and stops at
// the first rejection.  The caller must already have ensured
// StartsAt < EndsAt; the resolver fails fast with ErrInvalidWindow
// otherwise.
func (r Resolver) Evaluate(tx Tx, cand Candidate, now time.Time) (Verdict, error) {
	return r.evaluate(tx, cand, now, true)
}

// EvaluateAll runs every check and unions the triggered rejections.
// Edit-validation flows use it so the user sees the complete set of
// problems at once.
func (r Resolver) EvaluateAll(tx Tx, cand Candidate, now time.Time) (Verdict, error) {
	return r.evaluate(tx, cand, now, false)
}

func (r Resolver) evaluate(tx Tx, cand Candidate, now time.Time, firstOnly bool) (Verdict, error) {
	if !cand.StartsAt.Before(cand.EndsAt) {
		return Verdict{}, ErrInvalidWindow
	}

	var v Verdict

	// 1. Facility existence, availability and blackouts.
	fac, err := tx.Facility(cand.FacilityID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// A missing facility cannot be checked further.
			return Verdict{Rejections: []Rejection{{Code: CodeResourceUnavailable}}}, nil
		}
		return Verdict{}, err
	}
	if !fac.IsActive || blackedOut(fac, cand.StartsAt, cand.EndsAt) {
		v.Rejections = append(v.Rejections, Rejection{Code: CodeResourceUnavailable})
		if firstOnly {
			return v, nil
		}
	}

	// 2. Approved overlap on the facility.
	overlapping, err := tx.ApprovedOverlapping(cand.FacilityID, cand.StartsAt, cand.EndsAt, cand.ExcludeReservationID)
	if err != nil {
		return Verdict{}, err
	}
	if len(overlapping) > 0 {
		v.Rejections = append(v.Rejections, Rejection{
			Code:      CodeResourceConflict,
			Conflicts: summarize(overlapping, fac.Name),
		})
		if firstOnly {
			return v, nil
		}
	}

	// 3. Requester self-overlap across facilities.
	mine, err := tx.RequesterOverlapping(cand.RequesterID, cand.StartsAt, cand.EndsAt, cand.ExcludeReservationID)
	if err != nil {
		return Verdict{}, err
	}
	if len(mine) > 0 {
		v.Rejections = append(v.Rejections, Rejection{
			Code:      CodeRequesterConflict,
			Conflicts: summarize(mine, ""),
		})
		if firstOnly {
			return v, nil
		}
	}

	// 4. Duplicate active request on the same facility.
	if r.DuplicateRequestCheck {
		dup, err := tx.HasActiveRequest(cand.RequesterID, cand.FacilityID, now, cand.ExcludeReservationID)
		if err != nil {
			return Verdict{}, err
		}
		if dup {
			v.Rejections = append(v.Rejections, Rejection{Code: CodeDuplicateActiveRequest})
		}
	}

	return v, nil
}

// blackedOut reports whether any blackout range of the facility covers
// a day touched by the window.
func blackedOut(fac *model.Facility, start, end time.Time) bool {
	for _, b := range fac.Blackouts {
		if b.Covers(start, end) {
			return true
		}
	}
	return false
}

// summarize converts reservations into display summaries.  The
// facility name is filled in when known; cross-facility summaries leave
// it empty and the caller may enrich them.
func summarize(rs []model.Reservation, facilityName string) []ConflictSummary {
	out := make([]ConflictSummary, 0, len(rs))
	for _, r := range rs {
		out = append(out, ConflictSummary{
			ReservationID: r.ID,
			FacilityID:    r.FacilityID,
			FacilityName:  facilityName,
			RequesterID:   r.RequesterID,
			StartsAt:      r.StartsAt,
			EndsAt:        r.EndsAt,
		})
	}
	return out
}
