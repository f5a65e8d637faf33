package chore

import (
	"fmt"
	"time"

	"github.com/chantastic/oomph/internal/calendar"
	"github.com/chantastic/oomph/internal/model"
)

// Ledger records which instances were completed on which days. Recurring
// and JIT instances share it; an event is keyed by the instance reference
// and the day bucket of the day it counts for.
type Ledger struct {
	completions CompletionStore
	instances   InstanceStore
	jits        JitStore
	loc         *time.Location
}

func NewLedger(completions CompletionStore, instances InstanceStore, jits JitStore, loc *time.Location) *Ledger {
	return &Ledger{completions: completions, instances: instances, jits: jits, loc: loc}
}

// Bucket returns the day bucket of d in the ledger's timezone.
func (l *Ledger) Bucket(d calendar.Date) int64 {
	return d.BucketMs(l.loc)
}

// RecordCompletion fails with ErrDuplicateCompletion when the key is
// already recorded. Prefer Toggle.
func (l *Ledger) RecordCompletion(ref model.InstanceRef, bucketMs int64) (*model.CompletionEvent, error) {
	if _, err := l.resolve(ref); err != nil {
		return nil, err
	}
	return l.completions.Create(ref.Kind, ref.ID, bucketMs)
}

// RemoveCompletion deletes an event by id. Unknown ids are not an error.
func (l *Ledger) RemoveCompletion(eventID int64) error {
	return l.completions.DeleteByID(eventID)
}

// RemoveCompletionByKey deletes every event for the key. Removing a key
// that was never recorded is not an error.
func (l *Ledger) RemoveCompletionByKey(ref model.InstanceRef, bucketMs int64) error {
	if !ref.Kind.Valid() {
		return fmt.Errorf("instance kind %q: %w", ref.Kind, ErrInvalidInput)
	}
	_, err := l.completions.DeleteByKey(ref.Kind, ref.ID, bucketMs)
	return err
}

// Toggle flips the completion state for the key. It returns the new event,
// or nil when the key was cleared.
func (l *Ledger) Toggle(ref model.InstanceRef, bucketMs int64) (*model.CompletionEvent, error) {
	if _, err := l.resolve(ref); err != nil {
		return nil, err
	}
	return l.completions.Toggle(ref.Kind, ref.ID, bucketMs)
}

// ToggleInstance toggles ref on its own day.
func (l *Ledger) ToggleInstance(ref model.InstanceRef) (*model.CompletionEvent, error) {
	day, err := l.resolve(ref)
	if err != nil {
		return nil, err
	}
	return l.completions.Toggle(ref.Kind, ref.ID, l.Bucket(day))
}

// IsComplete reports whether ref has an event for the bucket.
func (l *Ledger) IsComplete(ref model.InstanceRef, bucketMs int64) (bool, error) {
	e, err := l.completions.GetByKey(ref.Kind, ref.ID, bucketMs)
	if err != nil {
		return false, err
	}
	return e != nil, nil
}

// CompletionsInWindow returns events whose day bucket is in
// [startMs, endMs].
func (l *Ledger) CompletionsInWindow(startMs, endMs int64) ([]model.CompletionEvent, error) {
	return l.completions.ListInWindow(startMs, endMs)
}

// CompletionsForAssignee is CompletionsInWindow filtered to the instances
// the assignee owns. Ownership does not depend on the instance's day, so an
// event toggled on another day's bucket still counts.
func (l *Ledger) CompletionsForAssignee(assigneeID, startMs, endMs int64) ([]model.CompletionEvent, error) {
	events, err := l.completions.ListInWindow(startMs, endMs)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}

	owned, err := l.ownedRefs(assigneeID)
	if err != nil {
		return nil, err
	}

	var out []model.CompletionEvent
	for _, e := range events {
		if owned[e.Ref()] {
			out = append(out, e)
		}
	}
	return out, nil
}

func (l *Ledger) ownedRefs(assigneeID int64) (map[model.InstanceRef]bool, error) {
	instances, err := l.instances.ListByAssignee(assigneeID, "")
	if err != nil {
		return nil, err
	}
	jits, err := l.jits.ListByAssignee(assigneeID, "")
	if err != nil {
		return nil, err
	}
	owned := make(map[model.InstanceRef]bool, len(instances)+len(jits))
	for _, i := range instances {
		owned[model.InstanceRef{Kind: model.KindRecurring, ID: i.ID}] = true
	}
	for _, j := range jits {
		owned[model.InstanceRef{Kind: model.KindJit, ID: j.ID}] = true
	}
	return owned, nil
}

// Orphans returns a MissingReferenceError for every event in the window
// whose instance no longer exists.
func (l *Ledger) Orphans(startMs, endMs int64) ([]*MissingReferenceError, error) {
	events, err := l.completions.Orphans(startMs, endMs)
	if err != nil {
		return nil, err
	}
	out := make([]*MissingReferenceError, 0, len(events))
	for _, e := range events {
		out = append(out, &MissingReferenceError{Entity: string(e.InstanceKind) + " instance", ID: e.InstanceID})
	}
	return out, nil
}

// resolve checks that ref names an existing instance and returns its day.
func (l *Ledger) resolve(ref model.InstanceRef) (calendar.Date, error) {
	var dayTag string
	switch ref.Kind {
	case model.KindRecurring:
		inst, err := l.instances.GetByID(ref.ID)
		if err != nil {
			return calendar.Date{}, err
		}
		if inst == nil {
			return calendar.Date{}, missing("recurring instance", ref.ID)
		}
		dayTag = inst.Day
	case model.KindJit:
		j, err := l.jits.GetByID(ref.ID)
		if err != nil {
			return calendar.Date{}, err
		}
		if j == nil {
			return calendar.Date{}, missing("jit instance", ref.ID)
		}
		dayTag = j.Day
	default:
		return calendar.Date{}, fmt.Errorf("instance kind %q: %w", ref.Kind, ErrInvalidInput)
	}
	return calendar.Parse(dayTag)
}
