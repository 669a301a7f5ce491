package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirawit8921/massage-shop-reservation/internal/model"
)

// Kind classifies a domain failure so callers can branch on it without
// inspecting messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidInput
	KindTooEarly
	KindNotFound
	KindInvalidState
	KindCheckinTimeWindow
	KindCheckinDistance
)

// String returns the wire code used in API error bodies.
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindTooEarly:
		return "too_early"
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindCheckinTimeWindow:
		return "checkin_time_window"
	case KindCheckinDistance:
		return "checkin_distance"
	}
	return "unknown"
}

// Error is a domain error returned by ReservationStore.  Only the fields
// relevant to Kind are populated.
type Error struct {
	Kind    Kind
	Message string

	Field string // InvalidInput: offending input field

	Status model.Status // InvalidState: status found on the record

	MinAdvance time.Duration // TooEarly

	Earliest time.Time // CheckinTimeWindow: first instant check-in is allowed
	Latest   time.Time // CheckinTimeWindow: last instant check-in is allowed

	DistanceMeters int // CheckinDistance: rounded to the nearest meter
	RadiusMeters   int // CheckinDistance
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.String()
}

// Is matches any *Error of the same Kind, which makes the sentinels below
// usable with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
	ErrTooEarly          = &Error{Kind: KindTooEarly}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrCheckinTimeWindow = &Error{Kind: KindCheckinTimeWindow}
	ErrCheckinDistance   = &Error{Kind: KindCheckinDistance}
)

// Geolocation failures.  These come from the position source, not from
// validation, and are returned unchanged.
var (
	ErrLocationPermissionDenied = errors.New("location permission denied")
	ErrLocationUnavailable      = errors.New("location unavailable")
)

// KindOf returns the domain kind carried by err, or KindUnknown for
// transport and other non-domain errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func invalidInput(field, msg string) *Error {
	return &Error{Kind: KindInvalidInput, Field: field, Message: msg}
}

func tooEarly(minAdvance time.Duration) *Error {
	return &Error{
		Kind:       KindTooEarly,
		MinAdvance: minAdvance,
		Message:    fmt.Sprintf("reservation must be at least %d minutes in advance", int(minAdvance/time.Minute)),
	}
}

func notFound(id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("reservation %q not found", id)}
}

func invalidState(status model.Status) *Error {
	return &Error{Kind: KindInvalidState, Status: status, Message: "reservation is not in reserved state"}
}

func checkinTimeWindow(earliest, latest time.Time) *Error {
	return &Error{
		Kind:     KindCheckinTimeWindow,
		Earliest: earliest,
		Latest:   latest,
		Message:  "check-in not in allowed time window",
	}
}

func checkinDistance(distance, radius int) *Error {
	return &Error{
		Kind:           KindCheckinDistance,
		DistanceMeters: distance,
		RadiusMeters:   radius,
		Message:        fmt.Sprintf("too far from venue (%dm); move within %dm to check in.", distance, radius),
	}
}
