// Package queue carries reservation lifecycle events over RabbitMQ: the
// publisher used by the HTTP handlers and the consumer that keeps an audit
// log and sends SMS confirmations.
package queue

import (
	"time"

	"github.com/sirawit8921/massage-shop-reservation/internal/model"
)

// QueueName is the durable queue all reservation events go to.
const QueueName = "reservation.events"

// Event types.
const (
	EventCreated   = "reservation.created"
	EventCancelled = "reservation.cancelled"
	EventCheckedIn = "reservation.checked_in"
	EventExpired   = "reservation.expired"
)

// ReservationEvent is published after a successful lifecycle change.  It
// carries enough of the record for consumers to log or notify without
// reading the store.
type ReservationEvent struct {
	Type          string `json:"type"`
	ReservationID string `json:"reservation_id"`
	UserID        string `json:"user_id,omitempty"`
	Name          string `json:"name"`
	Phone         string `json:"phone,omitempty"`
	Service       string `json:"service,omitempty"`
	VenueID       string `json:"venue_id"`
	VenueName     string `json:"venue_name"`
	Datetime      string `json:"datetime"`
	Status        string `json:"status"`
	OccurredAt    string `json:"occurred_at"`
}

// NewEvent builds an event of type typ for r, stamped with at.
func NewEvent(typ string, r model.Reservation, at time.Time) ReservationEvent {
	return ReservationEvent{
		Type:          typ,
		ReservationID: r.ID,
		UserID:        r.UserID,
		Name:          r.Name,
		Phone:         r.Phone,
		Service:       r.Service,
		VenueID:       r.Venue.ID,
		VenueName:     r.Venue.Name,
		Datetime:      r.Datetime.UTC().Format(time.RFC3339),
		Status:        string(r.Status),
		OccurredAt:    at.UTC().Format(time.RFC3339),
	}
}
