package recurrence

import (
	"fmt"
	"strings"

	"github.com/chantastic/oomph/internal/calendar"
)

// Policy decides what an unparseable schedule means at a call site.
type Policy int

const (
	// Show treats the date as included. Used by display paths so a broken
	// schedule stays visible.
	Show Policy = iota
	// Hide treats the date as excluded. Used by materialization so a
	// broken schedule cannot create instances.
	Hide
	// Reject surfaces the parse error. Used when saving templates.
	Reject
)

func (p Policy) String() string {
	switch p {
	case Show:
		return "show"
	case Hide:
		return "hide"
	case Reject:
		return "reject"
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParsePolicy parses "show", "hide" or "reject".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "show":
		return Show, nil
	case "hide":
		return Hide, nil
	case "reject":
		return Reject, nil
	}
	return 0, fmt.Errorf("unknown parse policy %q", s)
}

// Evaluate parses expression and reports whether d is included, falling
// back to p when the expression does not parse. Only Reject returns an
// error.
func Evaluate(expression string, d calendar.Date, p Policy) (bool, error) {
	e, err := Parse(expression)
	if err != nil {
		return p.fallback(err)
	}
	return e.Matches(d), nil
}

func (p Policy) fallback(err error) (bool, error) {
	switch p {
	case Show:
		return true, nil
	case Hide:
		return false, nil
	}
	return false, err
}
