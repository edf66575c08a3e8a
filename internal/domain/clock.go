package domain

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Today returns midnight of the current calendar day in loc. Production code
// passes the real clock; tests inject a fake for deterministic dates.
func Today(c clockwork.Clock, loc *time.Location) time.Time {
	if c == nil {
		c = clockwork.NewRealClock()
	}
	if loc == nil {
		loc = time.UTC
	}
	now := c.Now().In(loc)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
}

// DaysSince returns the number of whole calendar days from isoDate to today.
// It fails when isoDate is not a YYYY-MM-DD date.
func DaysSince(isoDate string, today time.Time) (int, error) {
	d, err := time.ParseInLocation(DateLayout, isoDate, today.Location())
	if err != nil {
		return 0, err
	}
	// Calendar arithmetic in UTC avoids DST-length days.
	a := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24), nil
}
