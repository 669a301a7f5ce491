package router

import (
	"github.com/labstack/echo/v4"

	"github.com/sirawit8921/massage-shop-reservation/internal/handler"
	"github.com/sirawit8921/massage-shop-reservation/internal/middleware"
)

// Deps carries what RegisterRoutes wires.  RateLimit and Cache may be nil.
type Deps struct {
	Reservations *handler.ReservationHandler
	JWTSecret    string
	RateLimit    echo.MiddlewareFunc
	Cache        *middleware.ResponseCache
}

// RegisterRoutes registers the health check, the public availability
// endpoint, the customer reservation endpoints and the admin endpoints.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health)

	h := d.Reservations
	limit := d.RateLimit
	if limit == nil {
		limit = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	v1 := e.Group("/v1")

	// Public; responses are cached until the next reservation change.
	v1.GET("/venues/:id/availability", h.Availability, limit, d.Cache.Middleware())

	// The limiter follows JWTAuth so buckets are keyed by the token subject.
	auth := v1.Group("/reservations",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(middleware.RoleCustomer, middleware.RoleAdmin),
		limit,
	)
	auth.POST("", h.Create)
	auth.GET("/me", h.ListMine)
	auth.GET("/:id", h.Get)
	auth.POST("/:id/cancel", h.Cancel)
	auth.POST("/:id/checkin", h.Checkin)

	admin := v1.Group("/admin",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(middleware.RoleAdmin),
		limit,
	)
	admin.GET("/reservations", h.AdminList)
	admin.POST("/reservations/expire", h.AdminExpire)
}
