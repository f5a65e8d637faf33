// Package calendar models civil dates independent of time-of-day and
// converts them to instants in a configured evaluation timezone.
//
// A Date carries no location. The location enters only when a Date is
// derived from an instant (In) or turned back into one (Start, BucketMs),
// so batch materialization and display paths agree on "today" as long as
// they are handed the same *time.Location.
package calendar

import (
	"fmt"
	"time"
)

const layout = "2006-01-02"

// Date is a calendar day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// New returns the normalized date for y-m-d, so New(2026, 1, 32) is Feb 1.
func New(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// Of returns the date of t in t's own location.
func Of(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// In returns the date of the instant t as observed in loc.
func In(t time.Time, loc *time.Location) Date {
	return Of(t.In(loc))
}

// Parse parses a YYYY-MM-DD string.
func Parse(s string) (Date, error) {
	t, err := time.Parse(layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Of(t), nil
}

// FromBucket returns the date whose day bucket in loc contains ms.
func FromBucket(ms int64, loc *time.Location) Date {
	return In(time.UnixMilli(ms), loc)
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) IsZero() bool {
	return d == Date{}
}

// Weekday is computed from the civil date alone.
func (d Date) Weekday() time.Weekday {
	return d.noonUTC().Weekday()
}

func (d Date) AddDays(n int) Date {
	return New(d.Year, d.Month, d.Day+n)
}

func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }
func (d Date) After(o Date) bool  { return d.Compare(o) > 0 }

// Compare returns -1, 0 or +1.
func (d Date) Compare(o Date) int {
	switch {
	case d.Year != o.Year:
		return cmpInt(d.Year, o.Year)
	case d.Month != o.Month:
		return cmpInt(int(d.Month), int(o.Month))
	default:
		return cmpInt(d.Day, o.Day)
	}
}

// Start returns midnight of d in loc. On days where midnight does not
// exist (DST gaps), time.Date normalizes forward.
func (d Date) Start(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// BucketMs is the day bucket key used by the completion ledger: the Unix
// millisecond of d's local midnight.
func (d Date) BucketMs(loc *time.Location) int64 {
	return d.Start(loc).UnixMilli()
}

// Bounds returns the inclusive millisecond window covering d in loc.
func (d Date) Bounds(loc *time.Location) (startMs, endMs int64) {
	return d.BucketMs(loc), d.AddDays(1).BucketMs(loc) - 1
}

func (d Date) noonUTC() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 12, 0, 0, 0, time.UTC)
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
