package recurrence

import (
	"strings"

	"github.com/dustin/go-humanize"
)

// Describe returns a short human-readable label for a schedule, or the
// expression itself when no simpler wording fits.
func Describe(expression string) string {
	switch strings.ToLower(strings.TrimSpace(expression)) {
	case "@yearly", "@annually":
		return "Yearly"
	case "@monthly", "monthly":
		return "Monthly"
	case "@weekly", "weekly":
		return "Weekly"
	case "@daily", "@midnight", "daily":
		return "Daily"
	case "@hourly":
		return "Hourly"
	case "@weekday":
		return "Weekdays"
	}

	e, err := Parse(expression)
	if err != nil || e.fields[fieldMonth] != "*" {
		return expression
	}

	switch {
	case e.domAny && e.dowAny:
		return "Daily"
	case e.domAny:
		return describeWeekdays(e.daysOfWeek)
	case e.dowAny:
		if day, ok := single(e.daysOfMonth, 1, 31); ok {
			return "Monthly on the " + humanize.Ordinal(day)
		}
	}
	return expression
}

var weekdayLabels = [7]string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

func describeWeekdays(days bitset64) string {
	const (
		weekdays bitset64 = 0b0111110
		weekends bitset64 = 0b1000001
		all      bitset64 = 0b1111111
	)
	switch days {
	case all:
		return "Daily"
	case weekdays:
		return "Weekdays"
	case weekends:
		return "Weekends"
	}

	var labels []string
	for d := 0; d < 7; d++ {
		if days.has(d) {
			labels = append(labels, weekdayLabels[d])
		}
	}
	return strings.Join(labels, ", ")
}

// single returns the only member of set within [lo, hi].
func single(set bitset64, lo, hi int) (int, bool) {
	found := -1
	for v := lo; v <= hi; v++ {
		if !set.has(v) {
			continue
		}
		if found >= 0 {
			return 0, false
		}
		found = v
	}
	return found, found >= 0
}
