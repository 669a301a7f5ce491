package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirawit8921/massage-shop-reservation/internal/model"
)

func TestExpireMissedCheckins(t *testing.T) {
	ctx := context.Background()
	s, p, clock := newTestStore(t)
	early, err := s.Create(ctx, CreateInput{Name: "early", Datetime: "2026-03-10T09:00"})
	require.NoError(t, err)
	late, err := s.Create(ctx, CreateInput{Name: "late", Datetime: "2026-03-10T10:00"})
	require.NoError(t, err)

	// Exactly at the end of the window nothing expires yet.
	clock.Set(early.Datetime.Add(30 * time.Minute))
	saves := p.saves
	expired, err := s.ExpireMissedCheckins(ctx)
	require.NoError(t, err)
	assert.Empty(t, expired)
	assert.Equal(t, saves, p.saves)

	clock.Set(early.Datetime.Add(31 * time.Minute))
	expired, err = s.ExpireMissedCheckins(ctx)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, early.ID, expired[0].ID)
	assert.Equal(t, model.StatusCancelled, expired[0].Status)
	require.NotNil(t, expired[0].CancelledAt)

	got, err := s.Get(ctx, late.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusReserved, got.Status)
}

func TestExpireSkipsActivated(t *testing.T) {
	ctx := context.Background()
	s, _, clock := newTestStore(t)
	res, err := s.Create(ctx, CreateInput{Name: "A", Datetime: "2026-03-10T09:00"})
	require.NoError(t, err)
	clock.Set(res.Datetime)
	_, err = s.Checkin(ctx, res.ID, s.Rules().DefaultVenue.Position())
	require.NoError(t, err)

	clock.Set(res.Datetime.Add(2 * time.Hour))
	expired, err := s.ExpireMissedCheckins(ctx)
	require.NoError(t, err)
	assert.Empty(t, expired)
}
