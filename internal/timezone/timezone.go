// Package timezone converts UTC instants into calendar dates as seen by a user
// in their configured IANA zone. All "today" boundaries in the API go through here.
//
// The IANA database is embedded, so zones resolve on hosts without zoneinfo.
package timezone

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

// DateLayout is the wire format for local dates (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// Clock is the source of "now" for services. Tests swap in a fixed clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock returns the wall clock in UTC.
func SystemClock() Clock { return systemClock{} }

// ParseError is returned when a timestamp is not valid ISO-8601.
type ParseError struct {
	Value string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid ISO-8601 timestamp %q", e.Value)
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	DateLayout,
}

func NowUTC() time.Time {
	return time.Now().UTC()
}

func NowUTCISO() string {
	return FormatISO(NowUTC())
}

// FormatISO renders an instant the way it is persisted.
func FormatISO(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseISO parses an ISO-8601 timestamp. A trailing "Z" means UTC and naive
// timestamps are assumed to be UTC.
func ParseISO(text string) (time.Time, error) {
	value := strings.TrimSpace(text)
	if value == "" {
		return time.Time{}, &ParseError{Value: text}
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &ParseError{Value: text}
}

// IsValidTimezone reports whether name resolves against the IANA database.
// The empty string and "Local" are rejected: they name the server's zone, not a user's.
func IsValidTimezone(name string) bool {
	if name == "" || name == "Local" {
		return false
	}
	_, err := time.LoadLocation(name)
	return err == nil
}

// Location resolves name, falling back to UTC when it is absent or invalid.
func Location(name string) *time.Location {
	if !IsValidTimezone(name) {
		return time.UTC
	}
	location, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return location
}

// LocalDate projects at into the named zone and returns its calendar date.
func LocalDate(name string, at time.Time) string {
	return at.In(Location(name)).Format(DateLayout)
}

// LocalDateRange returns the last days local dates, newest first.
func LocalDateRange(name string, days int, at time.Time) []string {
	if days <= 0 {
		return []string{}
	}
	today, _ := time.Parse(DateLayout, LocalDate(name, at))
	dates := make([]string, 0, days)
	for i := 0; i < days; i++ {
		dates = append(dates, today.AddDate(0, 0, -i).Format(DateLayout))
	}
	return dates
}

// AddDays shifts a YYYY-MM-DD date by n calendar days.
func AddDays(date string, n int) (string, error) {
	day, err := time.Parse(DateLayout, date)
	if err != nil {
		return "", err
	}
	return day.AddDate(0, 0, n).Format(DateLayout), nil
}

// ShouldResetDaily reports whether the local day of lastActivityISO differs from
// the local day of now. An absent or unparsable last activity never resets.
func ShouldResetDaily(lastActivityISO string, name string, now time.Time) bool {
	if lastActivityISO == "" {
		return false
	}
	last, err := ParseISO(lastActivityISO)
	if err != nil {
		return false
	}
	return LocalDate(name, last) != LocalDate(name, now)
}

// FixedClock always reports the same instant; Advance moves it forward.
type FixedClock struct {
	At time.Time
}

func (c *FixedClock) Now() time.Time { return c.At }

func (c *FixedClock) Advance(d time.Duration) { c.At = c.At.Add(d) }
