// Package timeutil provides the two calendar clocks the bot runs on.
// Assignments are tracked in Thailand time (UTC+7). Relocation of passed
// assignments rolls over on a separate morning calendar (UTC+1) so that it
// happens after the Thai school day has fully ended.
// Calendar dates are represented as time.Time at midnight UTC, which keeps
// day arithmetic exact and independent of the clock's zone.
package timeutil

import (
	"time"
)

// ThailandTZ is the zone used for urgency, passed detection and reconciliation.
var ThailandTZ = time.FixedZone("Asia/Bangkok", 7*60*60)

// MorningTZ is the zone used for passed-work relocation.
var MorningTZ = time.FixedZone("UTC+1", 1*60*60)

// Common layouts.
const (
	// StampLayout is used for persisted "last seen" day strings and date trackers.
	StampLayout = "02-01-2006"

	// ReadableLayout renders a date for humans: "Monday 02 January 2006".
	ReadableLayout = "Monday 02 January 2006"

	// ShortLayout is the layout relative dates resolve to ("5/3/2024").
	ShortLayout = "2/1/2006"

	// LogLayout prefixes operator log lines.
	LogLayout = "02-01-2006 15:04:05"
)

// Calendar is a named clock fixed to one UTC offset.
type Calendar struct {
	name string
	loc  *time.Location
	now  func() time.Time
}

// NewCalendar creates a calendar reading the system clock in loc.
func NewCalendar(name string, loc *time.Location) *Calendar {
	return &Calendar{name: name, loc: loc, now: time.Now}
}

// Thailand returns the calendar used for assignment urgency.
func Thailand() *Calendar {
	return NewCalendar("thailand", ThailandTZ)
}

// Morning returns the calendar used for passed-work relocation.
func Morning() *Calendar {
	return NewCalendar("morning", MorningTZ)
}

// WithClock returns a copy of the calendar that reads time from now.
func (c *Calendar) WithClock(now func() time.Time) *Calendar {
	cp := *c
	cp.now = now
	return &cp
}

// Name returns the calendar name.
func (c *Calendar) Name() string {
	return c.name
}

// Now returns the current instant in the calendar's zone.
func (c *Calendar) Now() time.Time {
	return c.now().In(c.loc)
}

// Today returns the current calendar date.
func (c *Calendar) Today() time.Time {
	n := c.Now()
	return Date(n.Year(), int(n.Month()), n.Day())
}

// Stamp returns today's date as "DD-MM-YYYY".
func (c *Calendar) Stamp() string {
	return c.Today().Format(StampLayout)
}

// LogStamp returns the current time formatted for operator logs.
func (c *Calendar) LogStamp() string {
	return c.Now().Format(LogLayout)
}

// DaysUntil returns whole days from today to d. Negative when d is in the past.
func (c *Calendar) DaysUntil(d time.Time) int {
	return DaysBetween(c.Today(), d)
}

// AddDays returns today shifted by n days.
func (c *Calendar) AddDays(n int) time.Time {
	return c.Today().AddDate(0, 0, n)
}

// Date creates a calendar date.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of days from t1 to t2 (t2 - t1).
func DaysBetween(t1, t2 time.Time) int {
	a := Date(t1.Year(), int(t1.Month()), t1.Day())
	b := Date(t2.Year(), int(t2.Month()), t2.Day())
	return int(b.Sub(a).Hours() / 24)
}

// Readable formats a calendar date for humans.
func Readable(d time.Time) string {
	return d.Format(ReadableLayout)
}

// IsValidDate reports whether year/month/day name a real calendar day.
func IsValidDate(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return false
	}
	d := Date(year, month, day)
	return d.Year() == year && int(d.Month()) == month && d.Day() == day
}
