package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirawit8921/massage-shop-reservation/internal/model"
)

// memPersistence is a minimal in-package Persistence with switchable
// failures.
type memPersistence struct {
	mu       sync.Mutex
	items    []model.Reservation
	saves    int
	failLoad error
	failSave error
}

func (m *memPersistence) Load(context.Context) ([]model.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failLoad != nil {
		return nil, m.failLoad
	}
	out := make([]model.Reservation, len(m.items))
	for i, r := range m.items {
		out[i] = r.Clone()
	}
	return out, nil
}

func (m *memPersistence) Save(_ context.Context, items []model.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSave != nil {
		return m.failSave
	}
	m.saves++
	m.items = make([]model.Reservation, len(items))
	for i, r := range items {
		m.items[i] = r.Clone()
	}
	return nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

var baseNow = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) (*ReservationStore, *memPersistence, *testClock) {
	t.Helper()
	p := &memPersistence{}
	clock := &testClock{now: baseNow}
	n := 0
	s := NewReservationStore(p, DefaultRules(),
		WithClock(clock.Now),
		WithIDGenerator(func() string { n++; return fmt.Sprintf("r-%d", n) }),
	)
	return s, p, clock
}

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("valid input is reserved at the default venue", func(t *testing.T) {
		s, p, _ := newTestStore(t)
		res, err := s.Create(ctx, CreateInput{Name: "  Alice ", Phone: "+66800000000", Datetime: "2026-03-10T10:00", Service: "Thai massage"})
		require.NoError(t, err)
		assert.Equal(t, "r-1", res.ID)
		assert.Equal(t, "Alice", res.Name)
		assert.Equal(t, model.StatusReserved, res.Status)
		assert.Equal(t, "demo-stadium", res.Venue.ID)
		assert.Equal(t, time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC), res.Datetime)
		assert.Equal(t, baseNow, res.CreatedAt)
		assert.Nil(t, res.CheckedInAt)
		assert.Nil(t, res.CancelledAt)
		assert.Equal(t, 1, p.saves)
	})

	t.Run("newest first", func(t *testing.T) {
		s, _, _ := newTestStore(t)
		_, err := s.Create(ctx, CreateInput{Name: "A", Datetime: "2026-03-10T10:00:00Z"})
		require.NoError(t, err)
		_, err = s.Create(ctx, CreateInput{Name: "B", Datetime: "2026-03-10T11:00:00Z"})
		require.NoError(t, err)
		items, err := s.List(ctx)
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, "B", items[0].Name)
		assert.Equal(t, "A", items[1].Name)
	})

	t.Run("explicit venue", func(t *testing.T) {
		s, _, _ := newTestStore(t)
		v := &model.Venue{ID: "spa-1", Name: "Spa One", Latitude: 1, Longitude: 2}
		res, err := s.Create(ctx, CreateInput{Name: "A", Datetime: "2026-03-10T10:00:00Z", Venue: v})
		require.NoError(t, err)
		assert.Equal(t, *v, res.Venue)
	})

	t.Run("exactly the minimum advance is accepted", func(t *testing.T) {
		s, _, _ := newTestStore(t)
		_, err := s.Create(ctx, CreateInput{Name: "A", Datetime: baseNow.Add(30 * time.Minute).Format(time.RFC3339)})
		assert.NoError(t, err)
	})

	failures := []struct {
		name  string
		in    CreateInput
		kind  Kind
		field string
	}{
		{"blank name", CreateInput{Name: "   ", Datetime: "2026-03-10T10:00"}, KindInvalidInput, "name"},
		{"missing datetime", CreateInput{Name: "A"}, KindInvalidInput, "datetime"},
		{"unparseable datetime", CreateInput{Name: "A", Datetime: "tomorrow at ten"}, KindInvalidInput, "datetime"},
		{"ten minutes ahead", CreateInput{Name: "A", Datetime: "2026-03-10T08:10"}, KindTooEarly, ""},
		{"in the past", CreateInput{Name: "A", Datetime: "2026-03-09T10:00"}, KindTooEarly, ""},
		{"venue without id", CreateInput{Name: "A", Datetime: "2026-03-10T10:00", Venue: &model.Venue{Latitude: 13.7, Longitude: 100.5}}, KindInvalidInput, "venue"},
		{"venue latitude out of range", CreateInput{Name: "A", Datetime: "2026-03-10T10:00", Venue: &model.Venue{ID: "v", Latitude: 500}}, KindInvalidInput, "venue"},
		{"venue longitude out of range", CreateInput{Name: "A", Datetime: "2026-03-10T10:00", Venue: &model.Venue{ID: "v", Longitude: -180.5}}, KindInvalidInput, "venue"},
		{"venue latitude NaN", CreateInput{Name: "A", Datetime: "2026-03-10T10:00", Venue: &model.Venue{ID: "v", Latitude: math.NaN()}}, KindInvalidInput, "venue"},
	}
	for _, tc := range failures {
		t.Run(tc.name, func(t *testing.T) {
			s, p, _ := newTestStore(t)
			_, err := s.Create(ctx, tc.in)
			require.Error(t, err)
			assert.Equal(t, tc.kind, KindOf(err))
			if tc.field != "" {
				var de *Error
				require.ErrorAs(t, err, &de)
				assert.Equal(t, tc.field, de.Field)
			}
			assert.Equal(t, 0, p.saves)
		})
	}

	t.Run("too early message", func(t *testing.T) {
		s, _, _ := newTestStore(t)
		_, err := s.Create(ctx, CreateInput{Name: "A", Datetime: "2026-03-10T08:10"})
		assert.ErrorIs(t, err, ErrTooEarly)
		assert.EqualError(t, err, "reservation must be at least 30 minutes in advance")
	})

	t.Run("persistence failure", func(t *testing.T) {
		s, p, _ := newTestStore(t)
		p.failSave = errors.New("disk full")
		_, err := s.Create(ctx, CreateInput{Name: "A", Datetime: "2026-03-10T10:00"})
		require.Error(t, err)
		assert.Equal(t, KindUnknown, KindOf(err))
		assert.Empty(t, p.items)
	})
}

func TestCancel(t *testing.T) {
	ctx := context.Background()

	t.Run("reserved becomes cancelled", func(t *testing.T) {
		s, _, clock := newTestStore(t)
		res, err := s.Create(ctx, CreateInput{Name: "A", Datetime: "2026-03-10T10:00"})
		require.NoError(t, err)
		clock.Set(baseNow.Add(5 * time.Minute))

		got, err := s.Cancel(ctx, res.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusCancelled, got.Status)
		require.NotNil(t, got.CancelledAt)
		assert.Equal(t, baseNow.Add(5*time.Minute), *got.CancelledAt)
		assert.Nil(t, got.CheckedInAt)
	})

	t.Run("unknown id", func(t *testing.T) {
		s, _, _ := newTestStore(t)
		_, err := s.Cancel(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("cancelling twice", func(t *testing.T) {
		s, _, _ := newTestStore(t)
		res, err := s.Create(ctx, CreateInput{Name: "A", Datetime: "2026-03-10T10:00"})
		require.NoError(t, err)
		_, err = s.Cancel(ctx, res.ID)
		require.NoError(t, err)
		_, err = s.Cancel(ctx, res.ID)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("activated cannot be cancelled", func(t *testing.T) {
		s, _, clock := newTestStore(t)
		res, err := s.Create(ctx, CreateInput{Name: "A", Datetime: "2026-03-10T10:00"})
		require.NoError(t, err)
		clock.Set(res.Datetime)
		_, err = s.Checkin(ctx, res.ID, s.Rules().DefaultVenue.Position())
		require.NoError(t, err)

		_, err = s.Cancel(ctx, res.ID)
		require.ErrorIs(t, err, ErrInvalidState)
		var de *Error
		require.ErrorAs(t, err, &de)
		assert.Equal(t, model.StatusActivated, de.Status)
	})

	t.Run("failed save leaves the record reserved", func(t *testing.T) {
		s, p, _ := newTestStore(t)
		res, err := s.Create(ctx, CreateInput{Name: "A", Datetime: "2026-03-10T10:00"})
		require.NoError(t, err)
		p.failSave = errors.New("connection reset")

		_, err = s.Cancel(ctx, res.ID)
		require.Error(t, err)
		p.failSave = nil
		got, err := s.Get(ctx, res.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusReserved, got.Status)
		assert.Nil(t, got.CancelledAt)
	})
}

func TestCheckin(t *testing.T) {
	ctx := context.Background()
	venue := DefaultRules().DefaultVenue

	setup := func(t *testing.T) (*ReservationStore, *memPersistence, *testClock, model.Reservation) {
		s, p, clock := newTestStore(t)
		res, err := s.Create(ctx, CreateInput{Name: "A", Datetime: "2026-03-10T10:00"})
		require.NoError(t, err)
		return s, p, clock, res
	}

	t.Run("on site at slot time", func(t *testing.T) {
		s, _, clock, res := setup(t)
		clock.Set(res.Datetime.Add(-10 * time.Minute))
		got, err := s.Checkin(ctx, res.ID, venue.Position())
		require.NoError(t, err)
		assert.Equal(t, model.StatusActivated, got.Status)
		require.NotNil(t, got.CheckedInAt)
		assert.Equal(t, res.Datetime.Add(-10*time.Minute), *got.CheckedInAt)
		assert.Nil(t, got.CancelledAt)
	})

	t.Run("200m away", func(t *testing.T) {
		s, p, clock, res := setup(t)
		clock.Set(res.Datetime)
		pos := model.Position{
			Latitude:  venue.Latitude + (200/EarthRadiusMeters)*(180/math.Pi),
			Longitude: venue.Longitude,
		}
		saves := p.saves
		_, err := s.Checkin(ctx, res.ID, pos)
		require.ErrorIs(t, err, ErrCheckinDistance)
		var de *Error
		require.ErrorAs(t, err, &de)
		assert.Equal(t, 200, de.DistanceMeters)
		assert.Equal(t, 100, de.RadiusMeters)
		assert.EqualError(t, err, "too far from venue (200m); move within 100m to check in.")
		assert.Equal(t, saves, p.saves)
	})

	t.Run("forty minutes late", func(t *testing.T) {
		s, _, clock, res := setup(t)
		clock.Set(res.Datetime.Add(40 * time.Minute))
		_, err := s.Checkin(ctx, res.ID, venue.Position())
		require.ErrorIs(t, err, ErrCheckinTimeWindow)
		assert.EqualError(t, err, "check-in not in allowed time window")
		var de *Error
		require.ErrorAs(t, err, &de)
		assert.Equal(t, res.Datetime.Add(-30*time.Minute), de.Earliest)
		assert.Equal(t, res.Datetime.Add(30*time.Minute), de.Latest)

		got, err := s.Get(ctx, res.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusReserved, got.Status)
	})

	t.Run("window is checked before distance", func(t *testing.T) {
		s, _, clock, res := setup(t)
		clock.Set(res.Datetime.Add(-time.Hour))
		_, err := s.Checkin(ctx, res.ID, model.Position{})
		assert.ErrorIs(t, err, ErrCheckinTimeWindow)
	})

	t.Run("second check-in", func(t *testing.T) {
		s, _, clock, res := setup(t)
		clock.Set(res.Datetime)
		_, err := s.Checkin(ctx, res.ID, venue.Position())
		require.NoError(t, err)
		_, err = s.Checkin(ctx, res.ID, venue.Position())
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("cancelled reservation", func(t *testing.T) {
		s, _, clock, res := setup(t)
		_, err := s.Cancel(ctx, res.ID)
		require.NoError(t, err)
		clock.Set(res.Datetime)
		_, err = s.Checkin(ctx, res.ID, venue.Position())
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("unknown id", func(t *testing.T) {
		s, _, _, _ := setup(t)
		_, err := s.Checkin(ctx, "missing", venue.Position())
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("near-antipodal position", func(t *testing.T) {
		s, _, clock := newTestStore(t)
		res, err := s.Create(ctx, CreateInput{Name: "A", Datetime: "2026-03-10T10:00",
			Venue: &model.Venue{ID: "north", Latitude: 86.78, Longitude: 1}})
		require.NoError(t, err)
		clock.Set(res.Datetime)

		_, err = s.Checkin(ctx, res.ID, model.Position{Latitude: -86.78, Longitude: -179})
		require.ErrorIs(t, err, ErrCheckinDistance)
		got, err := s.Get(ctx, res.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StatusReserved, got.Status)
	})

	invalid := []struct {
		name string
		pos  model.Position
	}{
		{"latitude above 90", model.Position{Latitude: 90.5, Longitude: 100}},
		{"latitude below -90", model.Position{Latitude: -91, Longitude: 100}},
		{"longitude above 180", model.Position{Latitude: 13, Longitude: 181}},
		{"NaN longitude", model.Position{Latitude: 13, Longitude: math.NaN()}},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			s, _, clock, res := setup(t)
			clock.Set(res.Datetime)
			_, err := s.Checkin(ctx, res.ID, tc.pos)
			require.ErrorIs(t, err, ErrInvalidInput)
			var de *Error
			require.ErrorAs(t, err, &de)
			assert.Equal(t, "location", de.Field)
		})
	}
}

type stubLocator struct {
	pos model.Position
	err error
}

func (l stubLocator) Locate(context.Context) (model.Position, error) { return l.pos, l.err }

func TestCheckinLocated(t *testing.T) {
	ctx := context.Background()
	s, p, clock := newTestStore(t)
	res, err := s.Create(ctx, CreateInput{Name: "A", Datetime: "2026-03-10T10:00"})
	require.NoError(t, err)
	clock.Set(res.Datetime)

	t.Run("permission denied passes through", func(t *testing.T) {
		p.failLoad = errors.New("must not be called")
		defer func() { p.failLoad = nil }()
		_, err := s.CheckinLocated(ctx, res.ID, stubLocator{err: ErrLocationPermissionDenied})
		assert.Same(t, ErrLocationPermissionDenied, err)
	})

	t.Run("unavailable passes through", func(t *testing.T) {
		_, err := s.CheckinLocated(ctx, res.ID, stubLocator{err: ErrLocationUnavailable})
		assert.ErrorIs(t, err, ErrLocationUnavailable)
		assert.Equal(t, KindUnknown, KindOf(err))
	})

	t.Run("position is validated", func(t *testing.T) {
		got, err := s.CheckinLocated(ctx, res.ID, stubLocator{pos: s.Rules().DefaultVenue.Position()})
		require.NoError(t, err)
		assert.Equal(t, model.StatusActivated, got.Status)
	})
}

func TestListByUserAndGet(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)
	a, err := s.Create(ctx, CreateInput{UserID: "alice", Name: "Alice", Datetime: "2026-03-10T10:00"})
	require.NoError(t, err)
	_, err = s.Create(ctx, CreateInput{UserID: "bob", Name: "Bob", Datetime: "2026-03-10T11:00"})
	require.NoError(t, err)

	mine, err := s.ListByUser(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, a.ID, mine[0].ID)

	got, err := s.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserID)

	_, err = s.Get(ctx, "zzz")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListIsStableWithoutMutation(t *testing.T) {
	ctx := context.Background()
	s, _, _ := newTestStore(t)
	for _, at := range []string{"2026-03-10T10:00", "2026-03-10T11:00", "2026-03-10T12:00"} {
		_, err := s.Create(ctx, CreateInput{Name: "A", Datetime: at})
		require.NoError(t, err)
	}

	first, err := s.List(ctx)
	require.NoError(t, err)
	second, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadFailureIsWrapped(t *testing.T) {
	s, p, _ := newTestStore(t)
	boom := errors.New("redis down")
	p.failLoad = boom
	_, err := s.List(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, KindUnknown, KindOf(err))
}

func TestConcurrentCreates(t *testing.T) {
	ctx := context.Background()
	p := &memPersistence{}
	s := NewReservationStore(p, DefaultRules(), WithClock(func() time.Time { return baseNow }))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Create(ctx, CreateInput{Name: fmt.Sprintf("c%d", i), Datetime: "2026-03-10T10:00"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	items, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 20)
}

func TestNewReservationStorePanicsOnNil(t *testing.T) {
	assert.Panics(t, func() { NewReservationStore(nil, DefaultRules()) })
}

func TestParseInstant(t *testing.T) {
	bkk := time.FixedZone("ICT", 7*3600)
	cases := []struct {
		raw  string
		want time.Time
	}{
		{"2026-03-10T10:00:00Z", time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)},
		{"2026-03-10T10:00:00+07:00", time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)},
		{"2026-03-10T10:00", time.Date(2026, 3, 10, 10, 0, 0, 0, bkk)},
		{"2026-03-10T10:00:30", time.Date(2026, 3, 10, 10, 0, 30, 0, bkk)},
		{" 2026-03-10 10:00 ", time.Date(2026, 3, 10, 10, 0, 0, 0, bkk)},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := ParseInstant(tc.raw, bkk)
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "got %s want %s", got, tc.want)
		})
	}

	_, err := ParseInstant("10/03/2026", bkk)
	assert.Error(t, err)
}
