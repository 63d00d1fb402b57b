package booking

import (
	"fmt"
	"strings"
	"time"
)

// RejectionCode identifies why the conflict resolver refused a
// candidate reservation.  Codes are stable strings suitable for API
// responses.
type RejectionCode string

const (
	// CodeResourceUnavailable – facility missing, disabled, or the
	// window touches a blackout day.
	CodeResourceUnavailable RejectionCode = "RESOURCE_UNAVAILABLE"
	// CodeResourceConflict – the window overlaps an approved
	// reservation on the same facility.
	CodeResourceConflict RejectionCode = "RESOURCE_CONFLICT"
	// CodeRequesterConflict – the requester already holds an approved
	// reservation overlapping the window, on any facility.
	CodeRequesterConflict RejectionCode = "REQUESTER_CONFLICT"
	// CodeDuplicateActiveRequest – the requester already has a pending
	// or approved future reservation on the same facility.
	CodeDuplicateActiveRequest RejectionCode = "DUPLICATE_ACTIVE_REQUEST"
)

// ConflictSummary describes one existing reservation that blocks a
// candidate.  It carries only what a caller needs to explain the
// rejection to the end user.
type ConflictSummary struct {
	ReservationID uint64    `json:"reservation_id"`
	FacilityID    uint64    `json:"facility_id"`
	FacilityName  string    `json:"facility_name"`
	RequesterID   uint64    `json:"requester_id"`
	StartsAt      time.Time `json:"starts_at"`
	EndsAt        time.Time `json:"ends_at"`
}

// Rejection couples a code with the reservations that triggered it.
type Rejection struct {
	Code      RejectionCode
	Conflicts []ConflictSummary
}

// Verdict is the outcome of conflict evaluation.  An admitted verdict
// has no rejections; a refused one lists them in check order.
type Verdict struct {
	Rejections []Rejection
}

// Admitted reports whether the candidate passed every check.
func (v Verdict) Admitted() bool { return len(v.Rejections) == 0 }

// ConflictError is the typed, user-facing failure returned when a
// candidate reservation is refused.  It is an expected outcome of
// normal operation, not a system failure.
type ConflictError struct {
	Rejections []Rejection
}

// Code returns the first (highest-priority) rejection code.
func (e *ConflictError) Code() RejectionCode {
	if len(e.Rejections) == 0 {
		return ""
	}
	return e.Rejections[0].Code
}

// Conflicts returns the conflicting reservation summaries of the first
// rejection, for caller display.
func (e *ConflictError) Conflicts() []ConflictSummary {
	if len(e.Rejections) == 0 {
		return nil
	}
	return e.Rejections[0].Conflicts
}

func (e *ConflictError) Error() string {
	codes := make([]string, 0, len(e.Rejections))
	for _, r := range e.Rejections {
		codes = append(codes, string(r.Code))
	}
	return fmt.Sprintf("reservation conflict: %s", strings.Join(codes, ","))
}
