package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/james-hub21/ORBIT-sub003/internal/booking"
	"github.com/james-hub21/ORBIT-sub003/internal/model"
	"github.com/james-hub21/ORBIT-sub003/internal/repository"
)

// FacilityHandler exposes facility catalog and schedule endpoints.
// Reads are open to any authenticated user; mutations are registered
// under the admin group by the router.
type FacilityHandler struct {
	Facilities   *repository.FacilityRepo
	Reservations *repository.ReservationRepo
	Engine       *booking.Engine
}

// NewFacilityHandler constructs a FacilityHandler.  All dependencies
// must be non-nil.
func NewFacilityHandler(facilities *repository.FacilityRepo, reservations *repository.ReservationRepo, engine *booking.Engine) *FacilityHandler {
	if facilities == nil || reservations == nil || engine == nil {
		panic("nil dependency passed to NewFacilityHandler")
	}
	return &FacilityHandler{Facilities: facilities, Reservations: reservations, Engine: engine}
}

// facilityView is the wire representation of a facility.
type facilityView struct {
	ID        uint64         `json:"id"`
	Name      string         `json:"name"`
	Capacity  uint32         `json:"capacity"`
	IsActive  bool           `json:"is_active"`
	Blackouts []blackoutView `json:"blackouts"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type blackoutView struct {
	ID       uint64 `json:"id"`
	StartsOn string `json:"starts_on"`
	EndsOn   string `json:"ends_on"`
	Reason   string `json:"reason,omitempty"`
}

func newFacilityView(f *model.Facility) facilityView {
	blackouts := make([]blackoutView, 0, len(f.Blackouts))
	for _, b := range f.Blackouts {
		blackouts = append(blackouts, blackoutView{
			ID:       b.ID,
			StartsOn: b.StartsOn.UTC().Format("2006-01-02"),
			EndsOn:   b.EndsOn.UTC().Format("2006-01-02"),
			Reason:   b.Reason,
		})
	}
	return facilityView{
		ID:        f.ID,
		Name:      f.Name,
		Capacity:  f.Capacity,
		IsActive:  f.IsActive,
		Blackouts: blackouts,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// List handles GET /v1/facilities.  It returns the full catalog,
// inactive facilities included, so clients can grey them out rather
// than have them vanish.
func (h *FacilityHandler) List(c echo.Context) error {
	items, err := h.Facilities.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load facilities"})
	}
	views := make([]facilityView, 0, len(items))
	for i := range items {
		views = append(views, newFacilityView(&items[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": views})
}

// Get handles GET /v1/facilities/:id.
func (h *FacilityHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid facility id"})
	}
	f, err := h.Facilities.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrFacilityNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "facility not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load facility"})
	}
	return c.JSON(http.StatusOK, echo.Map{"item": newFacilityView(f)})
}

// Schedule handles GET /v1/facilities/:id/reservations.  It lists the
// approved reservations of a facility inside the from/to query window
// so clients can render availability.  Defaults cover the next seven
// days.
func (h *FacilityHandler) Schedule(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid facility id"})
	}
	if _, err := h.Facilities.GetByID(c.Request().Context(), id); err != nil {
		if errors.Is(err, repository.ErrFacilityNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "facility not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load facility"})
	}

	now := h.Engine.Now().UTC()
	from, to := now, now.Add(7*24*time.Hour)
	if raw := c.QueryParam("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid from timestamp"})
		}
		from = t.UTC()
	}
	if raw := c.QueryParam("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid to timestamp"})
		}
		to = t.UTC()
	}
	if !from.Before(to) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "from must be before to"})
	}

	items, err := h.Reservations.ListByFacilityWindow(c.Request().Context(), id, from, to)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load schedule"})
	}
	views := make([]reservationView, 0, len(items))
	for i := range items {
		views = append(views, newReservationView(&items[i], now))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": views})
}

// Create handles POST /v1/admin/facilities.
func (h *FacilityHandler) Create(c echo.Context) error {
	var body struct {
		Name     string `json:"name"`
		Capacity uint32 `json:"capacity"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.Name == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name is required"})
	}
	if body.Capacity == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "capacity must be positive"})
	}
	f := &model.Facility{Name: body.Name, Capacity: body.Capacity, IsActive: true}
	if err := h.Facilities.Create(c.Request().Context(), f); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create facility"})
	}
	return c.JSON(http.StatusCreated, echo.Map{"item": newFacilityView(f)})
}

// SetActive handles POST /v1/admin/facilities/:id/active.  Deactivation
// blocks new admissions only; existing approved reservations are not
// cancelled and staff revoke them explicitly if needed.
func (h *FacilityHandler) SetActive(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid facility id"})
	}
	var body struct {
		Active *bool `json:"active"`
	}
	if err := c.Bind(&body); err != nil || body.Active == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "active is required"})
	}
	if err := h.Facilities.SetActive(c.Request().Context(), id, *body.Active); err != nil {
		if errors.Is(err, repository.ErrFacilityNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "facility not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update facility"})
	}
	return c.JSON(http.StatusOK, echo.Map{"id": id, "active": *body.Active})
}

// AddBlackout handles POST /v1/admin/facilities/:id/blackouts.  Dates
// are inclusive calendar days in YYYY-MM-DD form.
func (h *FacilityHandler) AddBlackout(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid facility id"})
	}
	var body struct {
		StartsOn string `json:"starts_on"`
		EndsOn   string `json:"ends_on"`
		Reason   string `json:"reason"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	startsOn, err := time.ParseInLocation("2006-01-02", body.StartsOn, time.UTC)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid starts_on date"})
	}
	endsOn, err := time.ParseInLocation("2006-01-02", body.EndsOn, time.UTC)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ends_on date"})
	}
	if endsOn.Before(startsOn) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ends_on is before starts_on"})
	}

	b := &model.BlackoutRange{StartsOn: startsOn, EndsOn: endsOn, Reason: body.Reason}
	if err := h.Facilities.AddBlackout(c.Request().Context(), id, b); err != nil {
		if errors.Is(err, repository.ErrFacilityNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "facility not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to add blackout"})
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"id":        b.ID,
		"starts_on": body.StartsOn,
		"ends_on":   body.EndsOn,
		"reason":    body.Reason,
	})
}
