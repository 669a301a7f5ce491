package service

import (
	"context"

	"github.com/sirawit8921/massage-shop-reservation/internal/model"
)

// ExpireMissedCheckins cancels every reserved reservation whose check-in
// window has already closed and returns the cancelled records.  Nothing is
// written when no record qualifies.
func (s *ReservationStore) ExpireMissedCheckins(ctx context.Context) ([]model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now().UTC()
	expired := make([]model.Reservation, 0)
	for i := range items {
		r := &items[i]
		if r.Status != model.StatusReserved || !now.After(r.Datetime.Add(s.rules.CheckinWindow)) {
			continue
		}
		cancelledAt := now
		r.Status = model.StatusCancelled
		r.CancelledAt = &cancelledAt
		expired = append(expired, r.Clone())
	}
	if len(expired) == 0 {
		return expired, nil
	}
	if err := s.save(ctx, items); err != nil {
		return nil, err
	}
	return expired, nil
}
