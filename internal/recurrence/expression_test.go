package recurrence

import (
	"errors"
	"testing"
	"time"

	"github.com/chantastic/oomph/internal/calendar"
)

func day(year int, month time.Month, d int) calendar.Date {
	return calendar.New(year, month, d)
}

func TestMatches(t *testing.T) {
	tests := []struct {
		name string
		expr string
		date calendar.Date
		want bool
	}{
		// Both day fields restricted: either one is enough.
		{"or dom side", "0 1 15 * 1", day(2023, time.April, 15), true},
		{"or dow side", "0 1 15 * 1", day(2023, time.April, 17), true},
		{"or neither", "0 1 15 * 1", day(2023, time.April, 18), false},

		// Only day-of-week restricted.
		{"mwf monday", "0 1 * * 1,3,5", day(2023, time.April, 17), true},
		{"mwf tuesday", "0 1 * * 1,3,5", day(2023, time.April, 18), false},
		{"mwf wednesday", "0 1 * * 1,3,5", day(2023, time.April, 19), true},
		{"mwf friday", "0 1 * * 1,3,5", day(2023, time.April, 21), true},
		{"mwf saturday", "0 1 * * 1,3,5", day(2023, time.April, 15), false},

		// Only day-of-month restricted.
		{"dom only match", "0 0 15 * *", day(2023, time.April, 15), true},
		{"dom only miss", "0 0 15 * *", day(2023, time.April, 17), false},

		// Wrapping ranges.
		{"wrap friday", "0 0 * * 5-1", day(2023, time.April, 14), true},
		{"wrap saturday", "0 0 * * 5-1", day(2023, time.April, 15), true},
		{"wrap sunday", "0 0 * * 5-1", day(2023, time.April, 16), true},
		{"wrap monday", "0 0 * * 5-1", day(2023, time.April, 17), true},
		{"wrap tuesday", "0 0 * * 5-1", day(2023, time.April, 18), false},
		{"wrap thursday", "0 0 * * 5-1", day(2023, time.April, 20), false},
		{"wrap step friday", "0 0 * * 5-1/2", day(2023, time.April, 14), true},
		{"wrap step saturday", "0 0 * * 5-1/2", day(2023, time.April, 15), false},
		{"wrap step sunday", "0 0 * * 5-1/2", day(2023, time.April, 16), true},
		{"wrap step monday", "0 0 * * 5-1/2", day(2023, time.April, 17), false},
		{"wrap from seven", "0 0 * * 7-1", day(2023, time.April, 17), true},
		{"wrap from seven tuesday", "0 0 * * 7-1", day(2023, time.April, 18), false},
		{"full week step sunday", "0 0 * * 0-7/2", day(2023, time.April, 16), true},
		{"full week step monday", "0 0 * * 0-7/2", day(2023, time.April, 17), false},
		{"full week step tuesday", "0 0 * * 0-7/2", day(2023, time.April, 18), true},
		{"full week step saturday", "0 0 * * 0-7/2", day(2023, time.April, 15), true},
		{"sat through sun", "0 0 * * 6-7", day(2023, time.April, 16), true},
		{"wrap months", "0 0 1 nov-feb *", day(2023, time.January, 1), true},
		{"wrap months miss", "0 0 1 nov-feb *", day(2023, time.March, 1), false},

		// Seven is Sunday.
		{"seven sunday", "0 0 * * 7", day(2023, time.April, 16), true},
		{"seven monday", "0 0 * * 7", day(2023, time.April, 17), false},

		// Names.
		{"names weekday", "0 0 * * mon-fri", day(2023, time.April, 18), true},
		{"names weekend", "0 0 * * mon-fri", day(2023, time.April, 15), false},
		{"month name", "0 0 1 jan *", day(2023, time.January, 1), true},
		{"month name miss", "0 0 1 jan *", day(2023, time.February, 1), false},
		{"upper case", "0 0 * * MON", day(2023, time.April, 17), true},

		// Macros.
		{"daily", "@daily", day(2023, time.April, 18), true},
		{"bare daily", "daily", day(2023, time.April, 18), true},
		{"weekly sunday", "@weekly", day(2023, time.April, 16), true},
		{"weekly monday", "weekly", day(2023, time.April, 17), false},
		{"monthly first", "@monthly", day(2023, time.May, 1), true},
		{"monthly second", "monthly", day(2023, time.May, 2), false},
		{"yearly", "@yearly", day(2024, time.January, 1), true},
		{"yearly miss", "@annually", day(2024, time.February, 1), false},
		{"weekday", "@weekday", day(2023, time.April, 21), true},
		{"weekday weekend", "@weekday", day(2023, time.April, 22), false},
		{"hourly", "@hourly", day(2023, time.April, 22), true},

		// Seconds field is dropped.
		{"six fields", "30 0 1 * * 1", day(2023, time.April, 17), true},
		{"six fields miss", "30 0 1 * * 1", day(2023, time.April, 18), false},

		// Clamping.
		{"dom clamped to 31", "0 0 35 * *", day(2023, time.January, 31), true},
		{"dom clamped never 30th", "0 0 35 * *", day(2023, time.April, 30), false},
		{"dow clamped to sunday", "0 0 * * 9", day(2023, time.April, 16), true},

		// Steps.
		{"every other day odd", "0 0 */2 * *", day(2023, time.April, 15), true},
		{"every other day even", "0 0 */2 * *", day(2023, time.April, 16), false},
		{"range step", "0 0 * * 1-5/2", day(2023, time.April, 19), true},
		{"range step skip", "0 0 * * 1-5/2", day(2023, time.April, 18), false},
		{"single value on step", "0 0 5/2 * *", day(2023, time.April, 5), true},
		{"zero step", "0 0 */0 * *", day(2023, time.April, 18), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := Parse(tt.expr)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.expr, err)
			}
			if got := e.Matches(tt.date); got != tt.want {
				t.Errorf("Parse(%q).Matches(%v) = %v, want %v", tt.expr, tt.date, got, tt.want)
			}
		})
	}
}

func TestWildcardDayOfMonthDefersToWeekday(t *testing.T) {
	e := MustParse("0 1 * * 1,3,5")
	start := day(2023, time.April, 1)
	for i := 0; i < 60; i++ {
		d := start.AddDays(i)
		wd := d.Weekday()
		want := wd == time.Monday || wd == time.Wednesday || wd == time.Friday
		if got := e.Matches(d); got != want {
			t.Errorf("Matches(%v %v) = %v, want %v", d, wd, got, want)
		}
	}
}

func TestSingleValueOffStepNeverMatches(t *testing.T) {
	e := MustParse("0 0 4/2 * *")
	if _, ok := e.NextDue(day(2023, time.January, 1)); ok {
		t.Error("expected no due date for a value that is not on the step")
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		expr  string
		field string
	}{
		{"empty", "", ""},
		{"four fields", "0 0 * *", ""},
		{"seven fields", "0 0 * * * * *", ""},
		{"unknown macro", "@fortnightly", ""},
		{"garbage dom", "0 0 x * *", "day-of-month"},
		{"garbage dow name", "0 0 * * foo", "day-of-week"},
		{"garbage month", "0 0 1 smarch *", "month"},
		{"empty list element", "0 0 1,,2 * *", "day-of-month"},
		{"bad step", "0 0 */x * *", "day-of-month"},
		{"bad minute", "x 0 * * *", "minute"},
		{"bad hour", "0 h * * *", "hour"},
		{"dangling range", "0 0 * * 1-", "day-of-week"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.expr)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want error", tt.expr)
			}
			if !errors.Is(err, ErrInvalidExpression) {
				t.Errorf("error %v does not match ErrInvalidExpression", err)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error %T is not a *ParseError", err)
			}
			if pe.Field != tt.field {
				t.Errorf("Field = %q, want %q", pe.Field, tt.field)
			}
			if pe.Expression != tt.expr {
				t.Errorf("Expression = %q, want %q", pe.Expression, tt.expr)
			}
		})
	}
}

func TestOutOfRangeMinuteAndHourAreClamped(t *testing.T) {
	for _, expr := range []string{"60 * * * *", "0 99 * * *", "0 0 0 0 *"} {
		if err := Validate(expr); err != nil {
			t.Errorf("Validate(%q): %v", expr, err)
		}
	}
}

func TestString(t *testing.T) {
	const expr = "  0 1 * * MON  "
	if got := MustParse(expr).String(); got != expr {
		t.Errorf("String() = %q, want %q", got, expr)
	}
}

func TestNextDue(t *testing.T) {
	tests := []struct {
		name   string
		expr   string
		from   calendar.Date
		want   calendar.Date
		wantOK bool
	}{
		{"same day", "0 1 * * 6", day(2023, time.April, 15), day(2023, time.April, 15), true},
		{"next monday", "0 1 * * 1,4", day(2023, time.April, 15), day(2023, time.April, 17), true},
		{"leap day", "0 0 29 2 *", day(2023, time.March, 1), day(2024, time.February, 29), true},
		{"next month", "@monthly", day(2023, time.April, 2), day(2023, time.May, 1), true},
		{"impossible", "0 0 31 2 *", day(2023, time.January, 1), calendar.Date{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MustParse(tt.expr).NextDue(tt.from)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("NextDue(%v) = %v, %v; want %v, %v", tt.from, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestMustParsePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("MustParse did not panic")
		}
	}()
	MustParse("not a schedule")
}
