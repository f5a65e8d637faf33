// Package chore turns chore templates into dated instances and keeps the
// completion ledger for them. All day arithmetic happens in one evaluation
// timezone supplied at construction.
package chore

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/chantastic/oomph/internal/calendar"
	"github.com/chantastic/oomph/internal/model"
)

type Service struct {
	*Ledger

	assignees AssigneeStore
	templates TemplateStore
	instances InstanceStore
	jits      JitStore
	runs      RunStore

	loc    *time.Location
	logger *slog.Logger

	// inflight collapses overlapping materialization runs for the same
	// scope and day within this process.
	inflight singleflight.Group
	newRunID func() string
}

func NewService(stores Stores, loc *time.Location, logger *slog.Logger) *Service {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Ledger:    NewLedger(stores.Completions, stores.Instances, stores.Jits, loc),
		assignees: stores.Assignees,
		templates: stores.Templates,
		instances: stores.Instances,
		jits:      stores.Jits,
		runs:      stores.Runs,
		loc:       loc,
		logger:    logger.With("component", "chore"),
		newRunID:  uuid.NewString,
	}
}

// Location is the evaluation timezone.
func (s *Service) Location() *time.Location { return s.loc }

// Today returns the calendar date of now in the evaluation timezone.
func (s *Service) Today(now time.Time) calendar.Date {
	return calendar.In(now, s.loc)
}

func (s *Service) CreateAssignee(name string) (*model.Assignee, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("assignee name is required: %w", ErrInvalidInput)
	}
	return s.assignees.Create(name)
}

func (s *Service) ListAssignees() ([]model.Assignee, error) {
	return s.assignees.List()
}

func (s *Service) GetAssignee(id int64) (*model.Assignee, error) {
	a, err := s.assignees.GetByID(id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, missing("assignee", id)
	}
	return a, nil
}

func (s *Service) RenameAssignee(id int64, name string) (*model.Assignee, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("assignee name is required: %w", ErrInvalidInput)
	}
	a, err := s.assignees.Rename(id, name)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, missing("assignee", id)
	}
	return a, nil
}

// DeleteAssignee removes the assignee and everything it owns.
func (s *Service) DeleteAssignee(id int64) error {
	if err := s.assignees.Delete(id); err != nil {
		return err
	}
	s.logger.Info("assignee deleted", "assignee_id", id)
	return nil
}
