package service

import (
	"context"
	"time"

	"github.com/sirawit8921/massage-shop-reservation/internal/model"
)

// CheckAvailability returns the free slots at venueID on the calendar day
// of date (read in the store's location).  Slots run from the schedule's
// opening hour to its closing hour and are dropped when a reserved or
// activated reservation at the venue overlaps them.  The result is never
// nil; an empty slice means the day is fully booked.
func (s *ReservationStore) CheckAvailability(ctx context.Context, venueID string, date time.Time) ([]model.Slot, error) {
	items, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	sched := s.rules.Schedule
	slots := make([]model.Slot, 0)
	if sched.SlotDuration <= 0 || sched.CloseHour <= sched.OpenHour {
		return slots, nil
	}

	y, m, d := date.In(s.rules.Location).Date()
	open := time.Date(y, m, d, sched.OpenHour, 0, 0, 0, s.rules.Location)
	closing := time.Date(y, m, d, sched.CloseHour, 0, 0, 0, s.rules.Location)

	busy := make([]model.Slot, 0)
	for _, r := range items {
		if r.Venue.ID != venueID {
			continue
		}
		if r.Status != model.StatusReserved && r.Status != model.StatusActivated {
			continue
		}
		busy = append(busy, model.Slot{Start: r.Datetime, DurationMinutes: int(sched.SlotDuration / time.Minute)})
	}

	for start := open; !start.Add(sched.SlotDuration).After(closing); start = start.Add(sched.SlotDuration) {
		cand := model.Slot{Start: start, DurationMinutes: int(sched.SlotDuration / time.Minute)}
		if !overlapsAny(cand, busy) {
			slots = append(slots, cand)
		}
	}
	return slots, nil
}

func overlapsAny(s model.Slot, busy []model.Slot) bool {
	for _, b := range busy {
		if s.Start.Before(b.End()) && b.Start.Before(s.End()) {
			return true
		}
	}
	return false
}
