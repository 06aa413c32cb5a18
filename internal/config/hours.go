package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Location resolves the configured timezone.
func (m MarketHours) Location() (*time.Location, error) {
	return time.LoadLocation(m.Timezone)
}

// Contains reports whether t falls inside the configured local trading
// window on a weekday. This is the fallback market-hours check; the broker
// clock endpoint is the canonical source.
func (m MarketHours) Contains(t time.Time) (bool, error) {
	loc, err := m.Location()
	if err != nil {
		return false, err
	}
	local := t.In(loc)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false, nil
	}
	openMin, err := parseClockMinutes(m.Open)
	if err != nil {
		return false, fmt.Errorf("parse open: %w", err)
	}
	closeMin, err := parseClockMinutes(m.Close)
	if err != nil {
		return false, fmt.Errorf("parse close: %w", err)
	}
	minutes := local.Hour()*60 + local.Minute()
	return minutes >= openMin && minutes < closeMin, nil
}

func parseClockMinutes(s string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("hour: %w", err)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("minute: %w", err)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("out of range: %q", s)
	}
	return hour*60 + minute, nil
}
