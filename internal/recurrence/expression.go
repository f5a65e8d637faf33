// Package recurrence parses the cron-subset schedules attached to chore
// templates and decides whether a calendar date is included.
//
// Accepted syntax, after macro expansion:
//
//	┌───────────── minute        (0-59, ignored for day matching)
//	│ ┌─────────── hour          (0-23, ignored for day matching)
//	│ │ ┌───────── day of month  (1-31)
//	│ │ │ ┌─────── month         (1-12 or jan-dec)
//	│ │ │ │ ┌───── day of week   (0-7 or sun-sat, 7 = Sunday)
//	│ │ │ │ │
//	* * * * *
//
// A leading seconds field is accepted and discarded. Each field is a
// comma-separated list of values, ranges (a-b) and steps (*/n, a-b/n).
// Out-of-range values are clamped into the field's range instead of being
// rejected, and a range whose start exceeds its end wraps around (5-1 in
// the day-of-week field is Fri through Mon).
//
// Macros: @yearly @annually @monthly @weekly @daily @midnight @hourly
// @weekday, and the bare aliases daily, weekly, monthly.
package recurrence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chantastic/oomph/internal/calendar"
)

// ErrInvalidExpression is matched by every *ParseError.
var ErrInvalidExpression = errors.New("invalid recurrence expression")

// ParseError describes why an expression could not be parsed.
type ParseError struct {
	Expression string
	Field      string
	Reason     string
}

func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("recurrence: %q: %s", e.Expression, e.Reason)
	}
	return fmt.Sprintf("recurrence: %q: %s field: %s", e.Expression, e.Field, e.Reason)
}

func (e *ParseError) Unwrap() error { return ErrInvalidExpression }

// Expression is a parsed schedule. Only the day-level fields take part in
// matching; minute and hour are validated and kept for Describe.
type Expression struct {
	source string
	fields [5]string

	daysOfMonth bitset64
	months      bitset64
	daysOfWeek  bitset64

	domAny bool
	dowAny bool
}

const (
	fieldMinute = iota
	fieldHour
	fieldDayOfMonth
	fieldMonth
	fieldDayOfWeek
)

// Parse parses a schedule string.
func Parse(expression string) (Expression, error) {
	normalized := strings.ToLower(strings.TrimSpace(expression))
	if expanded, ok := expandMacro(normalized); ok {
		normalized = expanded
	}

	parts := strings.Fields(normalized)
	if len(parts) == 6 {
		parts = parts[1:]
	}
	if len(parts) != 5 {
		return Expression{}, &ParseError{
			Expression: expression,
			Reason:     fmt.Sprintf("expected 5 or 6 fields, got %d", len(parts)),
		}
	}

	e := Expression{source: expression}
	copy(e.fields[:], parts)

	sets := make([]bitset64, len(fieldSpecs))
	for i, f := range fieldSpecs {
		set, err := f.parse(parts[i])
		if err != nil {
			return Expression{}, &ParseError{Expression: expression, Field: f.name, Reason: err.Error()}
		}
		sets[i] = set
	}

	e.daysOfMonth = sets[fieldDayOfMonth]
	e.months = sets[fieldMonth]
	e.daysOfWeek = sets[fieldDayOfWeek]
	e.domAny = parts[fieldDayOfMonth] == "*"
	e.dowAny = parts[fieldDayOfWeek] == "*"
	return e, nil
}

// MustParse is Parse for expressions known to be valid.
func MustParse(expression string) Expression {
	e, err := Parse(expression)
	if err != nil {
		panic(err)
	}
	return e
}

// Validate reports whether expression parses.
func Validate(expression string) error {
	_, err := Parse(expression)
	return err
}

// String returns the expression exactly as it was given to Parse.
func (e Expression) String() string { return e.source }

// Matches reports whether d is included by the schedule. When both the
// day-of-month and day-of-week fields are restricted, a date matches if
// either one does; otherwise the restricted field alone decides.
func (e Expression) Matches(d calendar.Date) bool {
	if !e.months.has(int(d.Month)) {
		return false
	}

	domOK := e.daysOfMonth.has(d.Day)
	dowOK := e.daysOfWeek.has(int(d.Weekday()))

	switch {
	case !e.domAny && !e.dowAny:
		return domOK || dowOK
	case !e.domAny:
		return domOK
	case !e.dowAny:
		return dowOK
	}
	return true
}

// maxSearchDays covers a full leap-year cycle.
const maxSearchDays = 4 * 366

// NextDue returns the first date on or after from that the schedule
// includes. The second result is false for schedules that can never match,
// such as the 31st of February.
func (e Expression) NextDue(from calendar.Date) (calendar.Date, bool) {
	d := from
	for i := 0; i < maxSearchDays; i++ {
		if e.Matches(d) {
			return d, true
		}
		d = d.AddDays(1)
	}
	return calendar.Date{}, false
}

// expandMacro maps a lower-cased macro to its 5-field form.
func expandMacro(s string) (string, bool) {
	switch s {
	case "@yearly", "@annually":
		return "0 0 1 1 *", true
	case "@monthly", "monthly":
		return "0 0 1 * *", true
	case "@weekly", "weekly":
		return "0 0 * * 0", true
	case "@daily", "@midnight", "daily":
		return "0 0 * * *", true
	case "@hourly":
		return "0 * * * *", true
	case "@weekday":
		return "0 0 * * 1-5", true
	}
	return "", false
}
