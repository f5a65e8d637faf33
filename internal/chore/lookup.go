package chore

import "github.com/chantastic/oomph/internal/model"

// Lookup indexes completion events for constant-time checks while
// rendering. Build a fresh one per read; it is never stored.
type Lookup struct {
	byRef map[model.InstanceRef]model.CompletionEvent
	byDay map[dayKey]model.CompletionEvent
}

type dayKey struct {
	ref    model.InstanceRef
	bucket int64
}

func NewLookup(events []model.CompletionEvent) *Lookup {
	l := &Lookup{
		byRef: make(map[model.InstanceRef]model.CompletionEvent, len(events)),
		byDay: make(map[dayKey]model.CompletionEvent, len(events)),
	}
	for _, e := range events {
		ref := e.Ref()
		// byRef keeps the most recent day for the instance.
		if prev, ok := l.byRef[ref]; !ok || e.DayBucketMs > prev.DayBucketMs {
			l.byRef[ref] = e
		}
		l.byDay[dayKey{ref: ref, bucket: e.DayBucketMs}] = e
	}
	return l
}

// ForInstance returns the latest event for ref.
func (l *Lookup) ForInstance(ref model.InstanceRef) (*model.CompletionEvent, bool) {
	e, ok := l.byRef[ref]
	if !ok {
		return nil, false
	}
	return &e, true
}

// ForDay returns the event for ref on the bucket.
func (l *Lookup) ForDay(ref model.InstanceRef, bucketMs int64) (*model.CompletionEvent, bool) {
	e, ok := l.byDay[dayKey{ref: ref, bucket: bucketMs}]
	if !ok {
		return nil, false
	}
	return &e, true
}

func (l *Lookup) Len() int { return len(l.byDay) }
