package model

import (
	"fmt"
	"time"
)

type InstanceKind string

const (
	KindRecurring InstanceKind = "recurring"
	KindJit       InstanceKind = "jit"
)

func (k InstanceKind) Valid() bool {
	return k == KindRecurring || k == KindJit
}

// InstanceRef identifies an instance across both instance tables.
type InstanceRef struct {
	Kind InstanceKind `json:"kind"`
	ID   int64        `json:"id"`
}

func (r InstanceRef) String() string {
	return fmt.Sprintf("%s-%d", r.Kind, r.ID)
}

// CompletionEvent records that an instance was done on the day starting at
// DayBucketMs. Events are never mutated; toggling off deletes the row.
type CompletionEvent struct {
	ID           int64        `json:"id"`
	InstanceID   int64        `json:"instance_id"`
	InstanceKind InstanceKind `json:"instance_kind"`
	DayBucketMs  int64        `json:"day_bucket_ms"`
	CreatedAt    time.Time    `json:"created_at"`
}

func (e CompletionEvent) Ref() InstanceRef {
	return InstanceRef{Kind: e.InstanceKind, ID: e.InstanceID}
}
