package chore

import (
	"github.com/chantastic/oomph/internal/calendar"
	"github.com/chantastic/oomph/internal/model"
	"github.com/chantastic/oomph/internal/recurrence"
)

type Status string

const (
	StatusComplete   Status = "complete"
	StatusIncomplete Status = "incomplete"
)

// StatusOf derives an instance's status from its completion event for the
// day, if any.
func StatusOf(e *model.CompletionEvent) Status {
	if e != nil {
		return StatusComplete
	}
	return StatusIncomplete
}

// IsDueOn reports whether t is due on d, resolving an unparseable schedule
// with p.
func IsDueOn(t model.Template, d calendar.Date, p recurrence.Policy) (bool, error) {
	return recurrence.Evaluate(t.Schedule, d, p)
}
