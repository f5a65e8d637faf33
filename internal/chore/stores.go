package chore

import (
	"database/sql"

	"github.com/chantastic/oomph/internal/model"
	"github.com/chantastic/oomph/internal/store"
)

// Single-row getters return (nil, nil) when the row does not exist.

type AssigneeStore interface {
	Create(name string) (*model.Assignee, error)
	List() ([]model.Assignee, error)
	GetByID(id int64) (*model.Assignee, error)
	Rename(id int64, name string) (*model.Assignee, error)
	Delete(id int64) error
}

type TemplateStore interface {
	Create(assigneeID int64, title, description, schedule string) (*model.Template, error)
	GetByID(id int64) (*model.Template, error)
	List() ([]model.Template, error)
	ListByAssignee(assigneeID int64) ([]model.Template, error)
	Update(id int64, title, description, schedule string) (*model.Template, error)
	Delete(id int64) error
}

type InstanceStore interface {
	CreateIfAbsent(assigneeID int64, templateID *int64, title, description, day string) (*model.Instance, bool, error)
	GetByID(id int64) (*model.Instance, error)
	ListForDay(day string) ([]model.Instance, error)
	ListByAssignee(assigneeID int64, day string) ([]model.Instance, error)
	ListByAssigneeBetween(assigneeID int64, from, to string) ([]model.Instance, error)
}

type JitStore interface {
	Create(assigneeID int64, title, description, day string) (*model.JitInstance, error)
	GetByID(id int64) (*model.JitInstance, error)
	ListByAssignee(assigneeID int64, day string) ([]model.JitInstance, error)
	ListByAssigneeBetween(assigneeID int64, from, to string) ([]model.JitInstance, error)
	Delete(id int64) error
}

type CompletionStore interface {
	Create(kind model.InstanceKind, instanceID, bucketMs int64) (*model.CompletionEvent, error)
	GetByKey(kind model.InstanceKind, instanceID, bucketMs int64) (*model.CompletionEvent, error)
	DeleteByID(id int64) error
	DeleteByKey(kind model.InstanceKind, instanceID, bucketMs int64) (int64, error)
	Toggle(kind model.InstanceKind, instanceID, bucketMs int64) (*model.CompletionEvent, error)
	ListInWindow(startMs, endMs int64) ([]model.CompletionEvent, error)
	Orphans(startMs, endMs int64) ([]model.CompletionEvent, error)
}

type RunStore interface {
	Start(runID, day, scope string) (*model.Run, error)
	Finish(runID string, total, failures int) error
}

type Stores struct {
	Assignees   AssigneeStore
	Templates   TemplateStore
	Instances   InstanceStore
	Jits        JitStore
	Completions CompletionStore
	// Runs is optional.
	Runs RunStore
}

// SQLStores wires the SQLite-backed stores.
func SQLStores(db *sql.DB) Stores {
	return Stores{
		Assignees:   store.NewAssigneeStore(db),
		Templates:   store.NewTemplateStore(db),
		Instances:   store.NewInstanceStore(db),
		Jits:        store.NewJitStore(db),
		Completions: store.NewCompletionStore(db),
		Runs:        store.NewRunStore(db),
	}
}
