package handler // handler defines http handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/james-hub21/ORBIT-sub003/internal/booking"
	"github.com/james-hub21/ORBIT-sub003/internal/model"
)

// getUserID extracts the user_id claim from echo.Context and converts
// it to uint64.  The JWT middleware stores claims without normalizing
// their type, so every shape the token encoder may produce is handled.
func getUserID(c echo.Context) (uint64, error) {
	v := c.Get("user_id")
	switch t := v.(type) {
	case uint64:
		return t, nil
	case int:
		return uint64(t), nil
	case int64:
		return uint64(t), nil
	case float64:
		return uint64(t), nil
	case string:
		if n, err := strconv.ParseUint(t, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, errors.New("invalid user_id in context")
}

// isAdmin reports whether the authenticated request carries the ADMIN
// role claim.
func isAdmin(c echo.Context) bool {
	role, _ := c.Get("role").(string)
	return role == "ADMIN"
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// reservationView is the wire representation of a reservation.  The
// display status is derived from the stored status and the clock; it is
// the only status most clients should show.
type reservationView struct {
	ID                  uint64                `json:"id"`
	FacilityID          uint64                `json:"facility_id"`
	RequesterID         uint64                `json:"requester_id"`
	StartsAt            time.Time             `json:"starts_at"`
	EndsAt              time.Time             `json:"ends_at"`
	Status              string                `json:"status"`
	DisplayStatus       string                `json:"display_status"`
	ParticipantCount    uint32                `json:"participant_count"`
	Purpose             string                `json:"purpose"`
	AdminResponse       *string               `json:"admin_response,omitempty"`
	Equipment           model.EquipmentStatus `json:"equipment_status,omitempty"`
	ReminderOptIn       bool                  `json:"reminder_opt_in"`
	ReminderLeadMinutes uint32                `json:"reminder_lead_minutes"`
	ReminderStatus      string                `json:"reminder_status"`
	ReminderAt          *time.Time            `json:"reminder_at,omitempty"`
	CreatedAt           time.Time             `json:"created_at"`
	UpdatedAt           time.Time             `json:"updated_at"`
}

func newReservationView(r *model.Reservation, now time.Time) reservationView {
	return reservationView{
		ID:                  r.ID,
		FacilityID:          r.FacilityID,
		RequesterID:         r.RequesterID,
		StartsAt:            r.StartsAt,
		EndsAt:              r.EndsAt,
		Status:              r.Status,
		DisplayStatus:       model.DeriveDisplayStatus(r, now),
		ParticipantCount:    r.ParticipantCount,
		Purpose:             r.Purpose,
		AdminResponse:       r.AdminResponse,
		Equipment:           r.Equipment,
		ReminderOptIn:       r.ReminderOptIn,
		ReminderLeadMinutes: r.ReminderLeadMinutes,
		ReminderStatus:      r.ReminderStatus,
		ReminderAt:          r.ReminderAt,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
}

// writeBookingError maps engine errors onto HTTP responses.  Conflict
// rejections carry their code and the blocking reservations so the
// client can explain the refusal; transient storage failures become 503
// with a retry hint and no internal detail.
func writeBookingError(c echo.Context, err error) error {
	if ce, ok := booking.IsConflict(err); ok {
		rejections := make([]echo.Map, 0, len(ce.Rejections))
		for _, r := range ce.Rejections {
			rejections = append(rejections, echo.Map{
				"code":      r.Code,
				"conflicts": r.Conflicts,
			})
		}
		return c.JSON(http.StatusConflict, echo.Map{
			"error":      "reservation conflict",
			"code":       ce.Code(),
			"rejections": rejections,
		})
	}
	switch {
	case errors.Is(err, booking.ErrInvalidWindow):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	case errors.Is(err, booking.ErrNotEditable):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, booking.ErrTimeout), errors.Is(err, booking.ErrStorageUnavailable):
		c.Response().Header().Set("Retry-After", "1")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily unavailable, please retry"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
