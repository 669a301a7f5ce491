package model

import "time"

// Status is the lifecycle state of a reservation.  Transitions only move
// forward: reserved -> activated (check-in) or reserved -> cancelled.
type Status string

const (
	StatusReserved  Status = "reserved"
	StatusActivated Status = "activated"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusReserved, StatusActivated, StatusCancelled:
		return true
	}
	return false
}

// Venue is the physical place a reservation is bound to.  Coordinates are
// decimal degrees and are required for geofenced check-in.
type Venue struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Position returns the venue coordinates as a Position.
func (v Venue) Position() Position {
	return Position{Latitude: v.Latitude, Longitude: v.Longitude}
}

// Position is a point on the earth in decimal degrees.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Reservation records a booked slot for a service at a venue.
//
// Fields:
//  ID          – opaque identifier assigned at creation.
//  UserID      – subject of the creator's token (empty for demo records).
//  Name        – customer name, never empty.
//  Phone       – optional contact number.
//  Datetime    – start of the reserved slot; immutable.
//  Service     – optional free-form description.
//  Venue       – where the reservation takes place.
//  Status      – reserved, activated or cancelled.
//  CreatedAt   – creation timestamp.
//  CheckedInAt – set only when Status is activated.
//  CancelledAt – set only when Status is cancelled.
type Reservation struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id,omitempty"`
	Name        string     `json:"name"`
	Phone       string     `json:"phone,omitempty"`
	Datetime    time.Time  `json:"datetime"`
	Service     string     `json:"service,omitempty"`
	Venue       Venue      `json:"venue"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CheckedInAt *time.Time `json:"checked_in_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// Clone returns a deep copy so callers never share the optional timestamps
// with the store's copy.
func (r Reservation) Clone() Reservation {
	out := r
	if r.CheckedInAt != nil {
		t := *r.CheckedInAt
		out.CheckedInAt = &t
	}
	if r.CancelledAt != nil {
		t := *r.CancelledAt
		out.CancelledAt = &t
	}
	return out
}
