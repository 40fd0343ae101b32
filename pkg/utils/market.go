package utils

import (
	"fmt"
	"time"
)

// MarketHours is a configurable trading-session gate. Weekends are always
// closed; open and close are minutes since midnight in the session timezone.
type MarketHours struct {
	Location    *time.Location
	OpenMinute  int
	CloseMinute int
}

// NewMarketHours builds a session gate from a timezone name and "HH:MM"
// open/close times.
func NewMarketHours(timezone, open, close string) (*MarketHours, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", timezone, err)
	}
	openMin, err := parseClock(open)
	if err != nil {
		return nil, err
	}
	closeMin, err := parseClock(close)
	if err != nil {
		return nil, err
	}
	if closeMin <= openMin {
		return nil, fmt.Errorf("close %s must be after open %s", close, open)
	}
	return &MarketHours{
		Location:    loc,
		OpenMinute:  openMin,
		CloseMinute: closeMin,
	}, nil
}

func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// IsOpen returns true if the market is open at the given instant.
func (m *MarketHours) IsOpen(now time.Time) bool {
	local := now.In(m.Location)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	minute := local.Hour()*60 + local.Minute()
	return minute >= m.OpenMinute && minute < m.CloseMinute
}

// SessionOpen returns the session open instant for the trading day
// containing now (today's open even if now is before it).
func (m *MarketHours) SessionOpen(now time.Time) time.Time {
	local := now.In(m.Location)
	return time.Date(local.Year(), local.Month(), local.Day(),
		m.OpenMinute/60, m.OpenMinute%60, 0, 0, m.Location)
}

// SessionClose returns the session close instant for the trading day
// containing now.
func (m *MarketHours) SessionClose(now time.Time) time.Time {
	local := now.In(m.Location)
	return time.Date(local.Year(), local.Month(), local.Day(),
		m.CloseMinute/60, m.CloseMinute%60, 0, 0, m.Location)
}

// NextOpen returns the next market opening time, skipping weekends.
func (m *MarketHours) NextOpen(now time.Time) time.Time {
	next := m.SessionOpen(now)
	if !now.Before(next) {
		next = next.AddDate(0, 0, 1)
	}
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// MinutesSinceOpen returns minutes elapsed since session open, negative
// before the open.
func (m *MarketHours) MinutesSinceOpen(now time.Time) int {
	return int(now.Sub(m.SessionOpen(now)) / time.Minute)
}

// MinutesUntilClose returns minutes remaining until session close, negative
// after the close.
func (m *MarketHours) MinutesUntilClose(now time.Time) int {
	return int(m.SessionClose(now).Sub(now) / time.Minute)
}

// CronSpec returns a cron expression (with minute resolution) firing at the
// given minute-of-day on weekdays, for session-boundary jobs.
func CronSpec(minuteOfDay int) string {
	return fmt.Sprintf("%d %d * * MON-FRI", minuteOfDay%60, minuteOfDay/60)
}
