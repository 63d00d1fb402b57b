package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/james-hub21/ORBIT-sub003/internal/handler"
	"github.com/james-hub21/ORBIT-sub003/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health
// check.
func RegisterRoutes(e *echo.Echo) {
	// Load balancers and monitoring poll this endpoint.
	e.GET("/healthz", handler.Health)
}

// RegisterReservations registers the authenticated reservation API.
// Identity comes from IdP-issued JWTs verified by JWTAuth; USER and
// ADMIN roles may call the requester-facing endpoints, while the
// /v1/admin subtree additionally requires ADMIN.
func RegisterReservations(e *echo.Echo, r *handler.ReservationHandler, f *handler.FacilityHandler, a *handler.AdminHandler, jwtSecret string, rateLimit echo.MiddlewareFunc) {
	v1 := e.Group("/v1")
	v1.Use(middleware.JWTAuth(jwtSecret))
	v1.Use(middleware.RequireRole("USER", "ADMIN"))
	if rateLimit != nil {
		v1.Use(rateLimit)
	}

	// Facility catalog and schedules, readable by any authenticated user.
	v1.GET("/facilities", f.List)
	v1.GET("/facilities/:id", f.Get)
	v1.GET("/facilities/:id/reservations", f.Schedule)

	// Requester-facing reservation lifecycle.
	v1.POST("/reservations", r.Create)
	v1.GET("/reservations/:id", r.Get)
	v1.PATCH("/reservations/:id", r.Update)
	v1.POST("/reservations/:id/cancel", r.Cancel)
	v1.GET("/my-reservations", r.ListMine)

	// Staff-only decisions and maintenance.
	admin := v1.Group("/admin")
	admin.Use(middleware.RequireRole("ADMIN"))
	admin.POST("/facilities", f.Create)
	admin.POST("/facilities/:id/active", f.SetActive)
	admin.POST("/facilities/:id/blackouts", f.AddBlackout)
	admin.POST("/reservations/:id/status", a.SetStatus)
	admin.POST("/requesters/:id/cancel-all", a.CancelAllForRequester)
	admin.POST("/reminders/sweep", a.SweepReminders)
}
