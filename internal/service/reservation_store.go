// Package service holds the reservation lifecycle: creation with an
// advance-notice rule, cancellation, geofenced check-in and availability.
// ReservationStore is the single owner of reservation state; it reads and
// writes the whole collection through a Persistence implementation.
package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sirawit8921/massage-shop-reservation/internal/model"
)

// Persistence loads and replaces the stored reservation collection.  Load
// returns an empty slice when nothing (or nothing readable) is stored.
// Save replaces the whole collection.
type Persistence interface {
	Load(ctx context.Context) ([]model.Reservation, error)
	Save(ctx context.Context, items []model.Reservation) error
}

// Locator supplies the caller's current position for check-in.  It may
// fail with ErrLocationPermissionDenied or ErrLocationUnavailable.
type Locator interface {
	Locate(ctx context.Context) (model.Position, error)
}

// Schedule describes the bookable hours of a venue for one day.
type Schedule struct {
	OpenHour     int
	CloseHour    int
	SlotDuration time.Duration
}

// Rules are the tunable lifecycle parameters.
type Rules struct {
	MinAdvance          time.Duration
	CheckinWindow       time.Duration
	CheckinRadiusMeters float64
	DefaultVenue        model.Venue
	Location            *time.Location
	Schedule            Schedule
}

// DefaultRules returns the rules of the demo deployment.
func DefaultRules() Rules {
	return Rules{
		MinAdvance:          30 * time.Minute,
		CheckinWindow:       30 * time.Minute,
		CheckinRadiusMeters: 100,
		DefaultVenue: model.Venue{
			ID:        "demo-stadium",
			Name:      "Demo Stadium",
			Latitude:  13.736717,
			Longitude: 100.523186,
		},
		Location: time.UTC,
		Schedule: Schedule{OpenHour: 9, CloseHour: 12, SlotDuration: 60 * time.Minute},
	}
}

// CreateInput is the payload of ReservationStore.Create.  Datetime is kept
// as text so that parse failures surface as InvalidInput.
type CreateInput struct {
	UserID   string       `json:"-"`
	Name     string       `json:"name"`
	Phone    string       `json:"phone"`
	Datetime string       `json:"datetime"`
	Service  string       `json:"service"`
	Venue    *model.Venue `json:"venue,omitempty"`
}

// Option configures a ReservationStore.
type Option func(*ReservationStore)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *ReservationStore) { s.now = now }
}

// WithIDGenerator replaces the UUID generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *ReservationStore) { s.newID = gen }
}

// ReservationStore enforces the reservation lifecycle.  Every operation
// holds mu for its load-mutate-save cycle, so one store instance never
// interleaves writes to its collection.
type ReservationStore struct {
	mu      sync.Mutex
	persist Persistence
	rules   Rules
	now     func() time.Time
	newID   func() string
}

// NewReservationStore builds a store over p.  It panics when p is nil.
func NewReservationStore(p Persistence, rules Rules, opts ...Option) *ReservationStore {
	if p == nil {
		panic("nil persistence passed to NewReservationStore")
	}
	if rules.Location == nil {
		rules.Location = time.UTC
	}
	s := &ReservationStore{
		persist: p,
		rules:   rules,
		now:     time.Now,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Rules returns the rules the store was built with.
func (s *ReservationStore) Rules() Rules { return s.rules }

// Create validates in and inserts a new reserved record at the head of the
// collection.
func (s *ReservationStore) Create(ctx context.Context, in CreateInput) (model.Reservation, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return model.Reservation{}, invalidInput("name", "name is required")
	}
	if strings.TrimSpace(in.Datetime) == "" {
		return model.Reservation{}, invalidInput("datetime", "datetime is required")
	}
	at, err := ParseInstant(in.Datetime, s.rules.Location)
	if err != nil {
		return model.Reservation{}, invalidInput("datetime", fmt.Sprintf("datetime %q is not a valid date and time", in.Datetime))
	}
	venue := s.rules.DefaultVenue
	if in.Venue != nil {
		venue = *in.Venue
		venue.ID = strings.TrimSpace(venue.ID)
		venue.Name = strings.TrimSpace(venue.Name)
		if venue.ID == "" {
			return model.Reservation{}, invalidInput("venue", "venue id is required")
		}
		if !validPosition(venue.Position()) {
			return model.Reservation{}, invalidInput("venue", "venue coordinates are out of range")
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if at.Before(now.Add(s.rules.MinAdvance)) {
		return model.Reservation{}, tooEarly(s.rules.MinAdvance)
	}

	items, err := s.load(ctx)
	if err != nil {
		return model.Reservation{}, err
	}
	res := model.Reservation{
		ID:        s.newID(),
		UserID:    in.UserID,
		Name:      name,
		Phone:     strings.TrimSpace(in.Phone),
		Datetime:  at.UTC(),
		Service:   strings.TrimSpace(in.Service),
		Venue:     venue,
		Status:    model.StatusReserved,
		CreatedAt: now,
	}
	for _, r := range items {
		if r.ID == res.ID {
			return model.Reservation{}, fmt.Errorf("generated reservation id %q already exists", res.ID)
		}
	}
	next := make([]model.Reservation, 0, len(items)+1)
	next = append(next, res)
	next = append(next, items...)
	if err := s.save(ctx, next); err != nil {
		return model.Reservation{}, err
	}
	return res.Clone(), nil
}

// List returns every reservation, newest first.
func (s *ReservationStore) List(ctx context.Context) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

// ListByUser returns the reservations created by userID, newest first.
func (s *ReservationStore) ListByUser(ctx context.Context, userID string) ([]model.Reservation, error) {
	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.Reservation, 0, len(items))
	for _, r := range items {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	return out, nil
}

// Get returns the reservation with the given id.
func (s *ReservationStore) Get(ctx context.Context, id string) (model.Reservation, error) {
	items, err := s.List(ctx)
	if err != nil {
		return model.Reservation{}, err
	}
	for _, r := range items {
		if r.ID == id {
			return r, nil
		}
	}
	return model.Reservation{}, notFound(id)
}

// Cancel moves a reserved reservation to cancelled.  Activated and already
// cancelled records are rejected with InvalidState.
func (s *ReservationStore) Cancel(ctx context.Context, id string) (model.Reservation, error) {
	return s.transition(ctx, id, func(r *model.Reservation, now time.Time) error {
		if r.Status != model.StatusReserved {
			return invalidState(r.Status)
		}
		r.Status = model.StatusCancelled
		r.CancelledAt = &now
		return nil
	})
}

// Checkin activates a reservation when pos is within the check-in radius
// of the venue and the current time is inside the check-in window.
func (s *ReservationStore) Checkin(ctx context.Context, id string, pos model.Position) (model.Reservation, error) {
	if !validPosition(pos) {
		return model.Reservation{}, invalidInput("location", "latitude must be within ±90 and longitude within ±180")
	}
	return s.transition(ctx, id, func(r *model.Reservation, now time.Time) error {
		if r.Status != model.StatusReserved {
			return invalidState(r.Status)
		}
		if !WithinCheckinWindow(now, r.Datetime, s.rules.CheckinWindow) {
			return checkinTimeWindow(r.Datetime.Add(-s.rules.CheckinWindow), r.Datetime.Add(s.rules.CheckinWindow))
		}
		dist, ok := WithinRadius(pos, r.Venue.Position(), s.rules.CheckinRadiusMeters)
		if !ok {
			return checkinDistance(roundMeters(dist), roundMeters(s.rules.CheckinRadiusMeters))
		}
		r.Status = model.StatusActivated
		r.CheckedInAt = &now
		return nil
	})
}

// CheckinLocated asks loc for the caller's position and then checks in.
// Locator errors are returned as they are.
func (s *ReservationStore) CheckinLocated(ctx context.Context, id string, loc Locator) (model.Reservation, error) {
	pos, err := loc.Locate(ctx)
	if err != nil {
		return model.Reservation{}, err
	}
	return s.Checkin(ctx, id, pos)
}

// transition applies fn to a copy of the record and persists the result
// only when fn succeeds.
func (s *ReservationStore) transition(ctx context.Context, id string, fn func(r *model.Reservation, now time.Time) error) (model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx)
	if err != nil {
		return model.Reservation{}, err
	}
	idx := indexOf(items, id)
	if idx < 0 {
		return model.Reservation{}, notFound(id)
	}
	updated := items[idx].Clone()
	if err := fn(&updated, s.now().UTC()); err != nil {
		return model.Reservation{}, err
	}
	items[idx] = updated
	if err := s.save(ctx, items); err != nil {
		return model.Reservation{}, err
	}
	return updated.Clone(), nil
}

func (s *ReservationStore) load(ctx context.Context) ([]model.Reservation, error) {
	items, err := s.persist.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load reservations: %w", err)
	}
	out := make([]model.Reservation, len(items))
	for i, r := range items {
		out[i] = r.Clone()
	}
	return out, nil
}

func (s *ReservationStore) save(ctx context.Context, items []model.Reservation) error {
	if err := s.persist.Save(ctx, items); err != nil {
		return fmt.Errorf("save reservations: %w", err)
	}
	return nil
}

// validPosition rejects NaN and out-of-range coordinates.
func validPosition(p model.Position) bool {
	return math.Abs(p.Latitude) <= 90 && math.Abs(p.Longitude) <= 180
}

func indexOf(items []model.Reservation, id string) int {
	for i, r := range items {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// instantLayouts are tried in order.  The zone-less layouts match what an
// HTML datetime-local input submits.
var instantLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseInstant parses an RFC3339 timestamp, or a zone-less local date and
// time interpreted in loc.
func ParseInstant(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	var lastErr error
	for _, layout := range instantLayouts {
		t, err := time.ParseInLocation(layout, raw, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
