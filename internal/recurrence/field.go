package recurrence

import (
	"fmt"
	"strconv"
	"strings"
)

// bitset64 uses a uint64 as a compact set of integers 0-63.
type bitset64 uint64

func (b bitset64) has(value int) bool { return b&(1<<uint(value)) != 0 }
func (b *bitset64) set(value int)     { *b |= 1 << uint(value) }

// Three-letter names packed into one constant each; a name's index is its
// offset divided by three.
const (
	monthNames   = "janfebmaraprmayjunjulaugsepoctnovdec"
	weekdayNames = "sunmontuewedthufrisat"
)

type fieldSpec struct {
	name     string
	min, max int
	names    string
	nameBase int
	// sundaySeven folds 7 onto 0 in the day-of-week field.
	sundaySeven bool
}

var fieldSpecs = [5]fieldSpec{
	{name: "minute", min: 0, max: 59},
	{name: "hour", min: 0, max: 23},
	{name: "day-of-month", min: 1, max: 31},
	{name: "month", min: 1, max: 12, names: monthNames, nameBase: 1},
	{name: "day-of-week", min: 0, max: 7, names: weekdayNames, nameBase: 0, sundaySeven: true},
}

// parse compiles a comma-separated field into a set.
func (f fieldSpec) parse(field string) (bitset64, error) {
	var result bitset64
	for _, term := range strings.Split(field, ",") {
		if term == "" {
			return 0, fmt.Errorf("empty list element in %q", field)
		}
		bits, err := f.parseTerm(term)
		if err != nil {
			return 0, err
		}
		result |= bits
	}
	return result, nil
}

// parseTerm parses one of *, */N, V, V/N, A-B, A-B/N.
func (f fieldSpec) parseTerm(term string) (bitset64, error) {
	rangeExpression, stepText, hasStep := strings.Cut(term, "/")
	step := 1
	if hasStep {
		parsed, err := strconv.Atoi(stepText)
		if err != nil {
			return 0, fmt.Errorf("invalid step %q", stepText)
		}
		step = max(parsed, 1)
	}

	var result bitset64
	switch {
	case rangeExpression == "*":
		for v := f.min; v <= f.max; v += step {
			f.add(&result, v)
		}

	case strings.Contains(rangeExpression, "-"):
		startText, endText, _ := strings.Cut(rangeExpression, "-")
		start, err := f.resolve(startText)
		if err != nil {
			return 0, err
		}
		end, err := f.resolve(endText)
		if err != nil {
			return 0, err
		}
		if start <= end {
			for v := start; v <= end; v += step {
				f.add(&result, v)
			}
			break
		}
		// Walk forward from start, wrapping past max back to min. In the
		// day-of-week field 7 and 0 are the same day, so the week wraps
		// after Saturday.
		lo, span := f.min, f.max-f.min+1
		if f.sundaySeven {
			start, end, span = start%7, end%7, 7
		}
		length := (end - start + span) % span
		for i := 0; i <= length; i += step {
			f.add(&result, lo+(start-lo+i)%span)
		}

	default:
		value, err := f.resolve(rangeExpression)
		if err != nil {
			return 0, err
		}
		if (value-f.min)%step == 0 {
			f.add(&result, value)
		}
	}
	return result, nil
}

// resolve turns a name or number into a value clamped to [min, max].
func (f fieldSpec) resolve(token string) (int, error) {
	if f.names != "" && len(token) == 3 {
		if i := strings.Index(f.names, token); i >= 0 && i%3 == 0 {
			return f.nameBase + i/3, nil
		}
	}
	value, err := strconv.Atoi(token)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q", token)
	}
	return min(max(value, f.min), f.max), nil
}

func (f fieldSpec) add(set *bitset64, value int) {
	if f.sundaySeven && value == 7 {
		value = 0
	}
	set.set(value)
}
