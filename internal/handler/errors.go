package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sirawit8921/massage-shop-reservation/internal/service"
)

// errorStatus maps a domain kind to its HTTP status.
func errorStatus(k service.Kind) int {
	switch k {
	case service.KindInvalidInput:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindInvalidState:
		return http.StatusConflict
	case service.KindTooEarly, service.KindCheckinTimeWindow, service.KindCheckinDistance:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error": code, "message": text}.  Store
// failures that carry no domain kind are logged and hidden behind a
// generic message.
func writeError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrLocationPermissionDenied):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "location_permission_denied", "message": err.Error()})
	case errors.Is(err, service.ErrLocationUnavailable):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "location_unavailable", "message": err.Error()})
	}

	var de *service.Error
	if !errors.As(err, &de) {
		log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "internal server error"})
	}
	body := echo.Map{"error": de.Kind.String(), "message": de.Error()}
	switch de.Kind {
	case service.KindInvalidInput:
		body["field"] = de.Field
	case service.KindTooEarly:
		body["min_advance_minutes"] = int(de.MinAdvance.Minutes())
	case service.KindInvalidState:
		body["status"] = de.Status
	case service.KindCheckinTimeWindow:
		body["earliest"] = de.Earliest
		body["latest"] = de.Latest
	case service.KindCheckinDistance:
		body["distance_meters"] = de.DistanceMeters
		body["radius_meters"] = de.RadiusMeters
	}
	return c.JSON(errorStatus(de.Kind), body)
}

func badRequest(c echo.Context, field, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": service.KindInvalidInput.String(), "field": field, "message": msg})
}
