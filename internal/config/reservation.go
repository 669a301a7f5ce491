package config

import (
	"fmt"
	"time"

	"github.com/sirawit8921/massage-shop-reservation/internal/model"
)

// ReservationConfig holds the lifecycle rules: advance notice, check-in
// window and radius, the bookable day and the venue used when a request
// names none.
type ReservationConfig struct {
	MinAdvance          time.Duration
	CheckinWindow       time.Duration
	CheckinRadiusMeters float64
	Location            *time.Location
	OpenHour            int
	CloseHour           int
	SlotDuration        time.Duration
	DefaultVenue        model.Venue
}

// LoadReservationConfig reads the MIN_ADVANCE_MINUTES, CHECKIN_*, SLOT_*,
// APP_TIMEZONE and DEFAULT_VENUE_* variables.  It fails only when
// APP_TIMEZONE names an unknown zone.
func LoadReservationConfig() (ReservationConfig, error) {
	tz := envStr("APP_TIMEZONE", "UTC")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return ReservationConfig{}, fmt.Errorf("invalid APP_TIMEZONE %q: %w", tz, err)
	}
	cfg := ReservationConfig{
		MinAdvance:          time.Duration(envInt("MIN_ADVANCE_MINUTES", 30)) * time.Minute,
		CheckinWindow:       time.Duration(envInt("CHECKIN_WINDOW_MINUTES", 30)) * time.Minute,
		CheckinRadiusMeters: envFloat("CHECKIN_RADIUS_METERS", 100),
		Location:            loc,
		OpenHour:            envInt("SLOT_OPEN_HOUR", 9),
		CloseHour:           envInt("SLOT_CLOSE_HOUR", 12),
		SlotDuration:        time.Duration(envInt("SLOT_DURATION_MINUTES", 60)) * time.Minute,
		DefaultVenue: model.Venue{
			ID:        envStr("DEFAULT_VENUE_ID", "demo-stadium"),
			Name:      envStr("DEFAULT_VENUE_NAME", "Demo Stadium"),
			Latitude:  envFloat("DEFAULT_VENUE_LAT", 13.736717),
			Longitude: envFloat("DEFAULT_VENUE_LON", 100.523186),
		},
	}
	if cfg.MinAdvance < 0 {
		cfg.MinAdvance = 0
	}
	if cfg.CheckinWindow < 0 {
		cfg.CheckinWindow = 0
	}
	if cfg.SlotDuration <= 0 {
		cfg.SlotDuration = 60 * time.Minute
	}
	return cfg, nil
}
