package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneDoesNotShareTimestamps(t *testing.T) {
	at := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	r := Reservation{ID: "r-1", Status: StatusActivated, CheckedInAt: &at}
	c := r.Clone()
	*c.CheckedInAt = at.Add(time.Hour)
	assert.Equal(t, at, *r.CheckedInAt)
}

func TestReservationJSON(t *testing.T) {
	at := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	b, err := json.Marshal(Reservation{
		ID:       "r-1",
		Name:     "Alice",
		Datetime: at,
		Venue:    Venue{ID: "demo-stadium", Name: "Demo Stadium", Latitude: 13.736717, Longitude: 100.523186},
		Status:   StatusReserved,
	})
	require.NoError(t, err)
	s := string(b)
	assert.Contains(t, s, `"datetime":"2026-03-10T10:00:00Z"`)
	assert.Contains(t, s, `"status":"reserved"`)
	assert.NotContains(t, s, "checked_in_at")
	assert.NotContains(t, s, "user_id")
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusReserved.Valid())
	assert.True(t, StatusCancelled.Valid())
	assert.False(t, Status("pending").Valid())
}

func TestSlotEnd(t *testing.T) {
	at := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, at.Add(time.Hour), Slot{Start: at, DurationMinutes: 60}.End())
}
