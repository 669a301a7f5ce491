package handler

import (
	"context"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sirawit8921/massage-shop-reservation/internal/middleware"
	"github.com/sirawit8921/massage-shop-reservation/internal/model"
	"github.com/sirawit8921/massage-shop-reservation/internal/queue"
	"github.com/sirawit8921/massage-shop-reservation/internal/service"
)

// EventPublisher delivers reservation events to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

// CacheInvalidator drops cached availability responses.
type CacheInvalidator interface {
	Purge(ctx context.Context) error
}

// sideEffectTimeout bounds publishing and cache purges after a mutation.
const sideEffectTimeout = 5 * time.Second

// ReservationHandler exposes the reservation store over HTTP.  Publisher
// and Cache are optional.
type ReservationHandler struct {
	Store     *service.ReservationStore
	Publisher EventPublisher
	Cache     CacheInvalidator
	now       func() time.Time
}

// NewReservationHandler panics when store is nil.
func NewReservationHandler(store *service.ReservationStore, pub EventPublisher, cache CacheInvalidator) *ReservationHandler {
	if store == nil {
		panic("nil store passed to NewReservationHandler")
	}
	return &ReservationHandler{Store: store, Publisher: pub, Cache: cache, now: time.Now}
}

// Create handles POST /v1/reservations.  The caller's subject is recorded
// on the reservation.
func (h *ReservationHandler) Create(c echo.Context) error {
	var in service.CreateInput
	if err := c.Bind(&in); err != nil {
		return badRequest(c, "body", "invalid request body")
	}
	in.UserID = middleware.UserID(c)
	res, err := h.Store.Create(c.Request().Context(), in)
	if err != nil {
		return writeError(c, err)
	}
	h.afterMutation(queue.EventCreated, res)
	return c.JSON(http.StatusCreated, echo.Map{"item": res})
}

// ListMine handles GET /v1/reservations/me.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	items, err := h.Store.ListByUser(c.Request().Context(), middleware.UserID(c))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	res, err := h.owned(c)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// Cancel handles POST /v1/reservations/:id/cancel.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	if _, err := h.owned(c); err != nil {
		return writeError(c, err)
	}
	res, err := h.Store.Cancel(c.Request().Context(), c.Param("id"))
	if err != nil {
		return writeError(c, err)
	}
	h.afterMutation(queue.EventCancelled, res)
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// checkinRequest carries either the device position or the reason the
// device could not provide one.
type checkinRequest struct {
	Latitude      *float64 `json:"latitude"`
	Longitude     *float64 `json:"longitude"`
	LocationError string   `json:"location_error"`
}

// Locate implements service.Locator.
func (r checkinRequest) Locate(context.Context) (model.Position, error) {
	switch strings.ToLower(strings.TrimSpace(r.LocationError)) {
	case "":
	case "permission_denied":
		return model.Position{}, service.ErrLocationPermissionDenied
	default:
		return model.Position{}, service.ErrLocationUnavailable
	}
	return model.Position{Latitude: *r.Latitude, Longitude: *r.Longitude}, nil
}

// Checkin handles POST /v1/reservations/:id/checkin.
func (h *ReservationHandler) Checkin(c echo.Context) error {
	var req checkinRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "body", "invalid request body")
	}
	if req.LocationError == "" && (req.Latitude == nil || req.Longitude == nil) {
		return badRequest(c, "location", "latitude and longitude are required")
	}
	if _, err := h.owned(c); err != nil {
		return writeError(c, err)
	}
	res, err := h.Store.CheckinLocated(c.Request().Context(), c.Param("id"), req)
	if err != nil {
		return writeError(c, err)
	}
	h.afterMutation(queue.EventCheckedIn, res)
	return c.JSON(http.StatusOK, echo.Map{"item": res})
}

// Availability handles GET /v1/venues/:id/availability?date=YYYY-MM-DD.
// Without a date it answers for today in the store's time zone.
func (h *ReservationHandler) Availability(c echo.Context) error {
	loc := h.Store.Rules().Location
	day := h.now().In(loc)
	if raw := strings.TrimSpace(c.QueryParam("date")); raw != "" {
		d, err := time.ParseInLocation("2006-01-02", raw, loc)
		if err != nil {
			return badRequest(c, "date", "date must be YYYY-MM-DD")
		}
		day = d
	}
	venueID := c.Param("id")
	slots, err := h.Store.CheckAvailability(c.Request().Context(), venueID, day)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"venue_id": venueID,
		"date":     day.Format("2006-01-02"),
		"items":    slots,
	})
}

// AdminList handles GET /v1/admin/reservations.
func (h *ReservationHandler) AdminList(c echo.Context) error {
	items, err := h.Store.List(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// AdminExpire handles POST /v1/admin/reservations/expire.
func (h *ReservationHandler) AdminExpire(c echo.Context) error {
	expired, err := h.ExpireMissed(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": expired, "count": len(expired)})
}

// ExpireMissed cancels reservations whose check-in window has passed and
// announces each one.  The scheduled sweep calls it too.
func (h *ReservationHandler) ExpireMissed(ctx context.Context) ([]model.Reservation, error) {
	expired, err := h.Store.ExpireMissedCheckins(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range expired {
		h.publish(queue.EventExpired, r)
	}
	if len(expired) > 0 {
		h.purge()
	}
	return expired, nil
}

// owned loads the :id reservation and hides it from callers who neither
// created it nor hold the ADMIN role.
func (h *ReservationHandler) owned(c echo.Context) (model.Reservation, error) {
	id := c.Param("id")
	res, err := h.Store.Get(c.Request().Context(), id)
	if err != nil {
		return model.Reservation{}, err
	}
	if middleware.Role(c) != middleware.RoleAdmin && res.UserID != middleware.UserID(c) {
		return model.Reservation{}, &service.Error{Kind: service.KindNotFound, Message: "reservation \"" + id + "\" not found"}
	}
	return res, nil
}

func (h *ReservationHandler) afterMutation(typ string, r model.Reservation) {
	h.publish(typ, r)
	h.purge()
}

func (h *ReservationHandler) publish(typ string, r model.Reservation) {
	if h.Publisher == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()
	if err := h.Publisher.Publish(ctx, queue.NewEvent(typ, r, h.now())); err != nil {
		log.Printf("handler: publish %s for %s: %v", typ, r.ID, err)
	}
}

func (h *ReservationHandler) purge() {
	if h.Cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
	defer cancel()
	if err := h.Cache.Purge(ctx); err != nil {
		log.Printf("handler: purge availability cache: %v", err)
	}
}
