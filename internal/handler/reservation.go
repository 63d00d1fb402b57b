package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/james-hub21/ORBIT-sub003/internal/booking"
	"github.com/james-hub21/ORBIT-sub003/internal/model"
	"github.com/james-hub21/ORBIT-sub003/internal/repository"
)

// ReservationHandler exposes the requester-facing reservation
// endpoints.  Admission, editing and lifecycle rules live in the
// booking engine; the handler only converts between the wire format and
// the engine's typed inputs.
type ReservationHandler struct {
	Engine             *booking.Engine
	Reservations       *repository.ReservationRepo
	DefaultLeadMinutes uint32
}

// NewReservationHandler constructs a ReservationHandler.  All
// dependencies must be non-nil.
func NewReservationHandler(engine *booking.Engine, reservations *repository.ReservationRepo, defaultLeadMinutes uint32) *ReservationHandler {
	if engine == nil || reservations == nil {
		panic("nil dependency passed to NewReservationHandler")
	}
	return &ReservationHandler{
		Engine:             engine,
		Reservations:       reservations,
		DefaultLeadMinutes: defaultLeadMinutes,
	}
}

// Create handles POST /v1/reservations.  The body carries the facility,
// the requested window and the optional equipment and reminder
// preferences.  On admission it returns 201 with the stored
// reservation; on refusal it returns 409 with the rejection codes and
// the conflicting reservations.
func (h *ReservationHandler) Create(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var body struct {
		FacilityID          uint64                `json:"facility_id"`
		StartsAt            time.Time             `json:"starts_at"`
		EndsAt              time.Time             `json:"ends_at"`
		ParticipantCount    uint32                `json:"participant_count"`
		Purpose             string                `json:"purpose"`
		Equipment           model.EquipmentStatus `json:"equipment_status"`
		ReminderOptIn       *bool                 `json:"reminder_opt_in"`
		ReminderLeadMinutes *uint32               `json:"reminder_lead_minutes"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.FacilityID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "facility_id is required"})
	}

	// Reminders default to opted-in with the deployment lead time.
	optIn := true
	if body.ReminderOptIn != nil {
		optIn = *body.ReminderOptIn
	}
	lead := h.DefaultLeadMinutes
	if body.ReminderLeadMinutes != nil && *body.ReminderLeadMinutes > 0 {
		lead = *body.ReminderLeadMinutes
	}

	res, err := h.Engine.RequestReservation(c.Request().Context(), booking.RequestReservationInput{
		FacilityID:          body.FacilityID,
		RequesterID:         userID,
		StartsAt:            body.StartsAt,
		EndsAt:              body.EndsAt,
		ParticipantCount:    body.ParticipantCount,
		Purpose:             body.Purpose,
		Equipment:           body.Equipment,
		ReminderOptIn:       optIn,
		ReminderLeadMinutes: lead,
	})
	if err != nil {
		return writeBookingError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": newReservationView(res, h.Engine.Now().UTC())})
}

// Update handles PATCH /v1/reservations/:id.  Absent fields are left
// unchanged.  Window or facility changes re-run conflict evaluation
// with the reservation excluded from its own check, so shrinking or
// shifting within a previously admitted slot never self-conflicts.
func (h *ReservationHandler) Update(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	resID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var body struct {
		FacilityID          *uint64               `json:"facility_id"`
		StartsAt            *time.Time            `json:"starts_at"`
		EndsAt              *time.Time            `json:"ends_at"`
		ParticipantCount    *uint32               `json:"participant_count"`
		Purpose             *string               `json:"purpose"`
		Equipment           model.EquipmentStatus `json:"equipment_status"`
		ReminderOptIn       *bool                 `json:"reminder_opt_in"`
		ReminderLeadMinutes *uint32               `json:"reminder_lead_minutes"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	res, err := h.Engine.UpdateReservation(c.Request().Context(), resID, userID, booking.UpdateReservationInput{
		FacilityID:          body.FacilityID,
		StartsAt:            body.StartsAt,
		EndsAt:              body.EndsAt,
		ParticipantCount:    body.ParticipantCount,
		Purpose:             body.Purpose,
		Equipment:           body.Equipment,
		ReminderOptIn:       body.ReminderOptIn,
		ReminderLeadMinutes: body.ReminderLeadMinutes,
	})
	if err != nil {
		return writeBookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": newReservationView(res, h.Engine.Now().UTC())})
}

// Cancel handles POST /v1/reservations/:id/cancel.  Requesters may
// cancel their own pending or approved reservations; the transition
// runs through the same state machine as staff decisions.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	resID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	current, err := h.Engine.GetReservation(c.Request().Context(), resID)
	if err != nil {
		return writeBookingError(c, err)
	}
	// Ownership is enforced here; the state machine handles the rest.
	if current.RequesterID != userID {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	}
	res, err := h.Engine.SetStatus(c.Request().Context(), resID, model.StatusCancelled, userID, "")
	if err != nil {
		return writeBookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": newReservationView(res, h.Engine.Now().UTC())})
}

// Get handles GET /v1/reservations/:id.  Requesters only see their own
// reservations; admins see all.  Missing and foreign reservations are
// indistinguishable to non-admins.
func (h *ReservationHandler) Get(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	resID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	res, err := h.Engine.GetReservation(c.Request().Context(), resID)
	if err != nil {
		return writeBookingError(c, err)
	}
	if res.RequesterID != userID && !isAdmin(c) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "reservation not found"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": newReservationView(res, h.Engine.Now().UTC())})
}

// ListMine handles GET /v1/my-reservations.  It returns every
// reservation of the current requester, newest window first, with
// display statuses derived from a single clock reading so one response
// never mixes time bases.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	userID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	items, err := h.Reservations.ListByRequester(c.Request().Context(), userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load reservations"})
	}
	now := h.Engine.Now().UTC()
	views := make([]reservationView, 0, len(items))
	for i := range items {
		views = append(views, newReservationView(&items[i], now))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": views})
}
