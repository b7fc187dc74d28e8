// Package dates provides the UTC day keys and send timestamps the queue
// is organized around. Everything here is pure given a reference moment.
package dates

import "time"

// Clock abstracts "now" so cycles can be driven by a fake time in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// DayKey identifies one UTC calendar day ("2006-01-02").
// Lexicographic order equals chronological order, so keys compare with > directly.
type DayKey string

const dayLayout = "2006-01-02"

// Day returns the UTC day key for t, shifted by whole days.
func Day(t time.Time, shiftDays int) DayKey {
	u := t.UTC()
	if shiftDays != 0 {
		u = u.AddDate(0, 0, shiftDays)
	}
	return DayKey(u.Format(dayLayout))
}

// After reports whether k is a strictly later day than other.
func (k DayKey) After(other DayKey) bool { return k > other }

func (k DayKey) String() string { return string(k) }

// Time returns midnight UTC of the key's day. Invalid keys return a zero time.
func (k DayKey) Time() time.Time {
	t, err := time.ParseInLocation(dayLayout, string(k), time.UTC)
	if err != nil {
		return time.Time{}
	}
	return t
}

// At returns the unix-milli timestamp of hour:minute UTC on base's calendar date.
// No timezone conversion beyond UTC is performed.
func At(base time.Time, hour, minute int) int64 {
	u := base.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), hour, minute, 0, 0, time.UTC).UnixMilli()
}
