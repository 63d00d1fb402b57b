package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/james-hub21/ORBIT-sub003/internal/booking"
)

// AdminHandler exposes the staff-side lifecycle endpoints: deciding on
// requests, revoking a requester's reservations in bulk and triggering
// a reminder sweep out of band.
type AdminHandler struct {
	Engine *booking.Engine
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(engine *booking.Engine) *AdminHandler {
	if engine == nil {
		panic("nil engine passed to NewAdminHandler")
	}
	return &AdminHandler{Engine: engine}
}

// SetStatus handles POST /v1/admin/reservations/:id/status.  The body
// carries the target status and an optional note recorded as the staff
// response.  Approval re-checks facility overlap under the facility
// lock, so approving the second of two pending requests for the same
// slot fails with 409 rather than corrupting the approved set.
func (h *AdminHandler) SetStatus(c echo.Context) error {
	adminID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	resID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid reservation id"})
	}
	var body struct {
		Status string `json:"status"`
		Note   string `json:"note"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	status := strings.ToUpper(strings.TrimSpace(body.Status))
	if status == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "status is required"})
	}

	res, err := h.Engine.SetStatus(c.Request().Context(), resID, status, adminID, body.Note)
	if err != nil {
		return writeBookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": newReservationView(res, h.Engine.Now().UTC())})
}

// CancelAllForRequester handles POST /v1/admin/requesters/:id/cancel-all.
// Every pending or approved reservation of the requester is cancelled
// in one transaction.  Running it again is a no-op, so retrying after a
// timeout is safe.
func (h *AdminHandler) CancelAllForRequester(c echo.Context) error {
	adminID, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	requesterID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid requester id"})
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	count, err := h.Engine.CancelAllForRequester(c.Request().Context(), requesterID, adminID, body.Reason)
	if err != nil {
		return writeBookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"cancelled": count})
}

// SweepReminders handles POST /v1/admin/reminders/sweep.  It claims and
// dispatches every reminder due right now, the same work the background
// sweeper performs on its interval.  Useful after downtime or in tests.
func (h *AdminHandler) SweepReminders(c echo.Context) error {
	due, err := h.Engine.PopDueReminders(c.Request().Context(), h.Engine.Now().UTC())
	if err != nil {
		return writeBookingError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"dispatched": len(due)})
}
