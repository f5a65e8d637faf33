package chore

import (
	"fmt"
	"strings"

	"github.com/chantastic/oomph/internal/calendar"
	"github.com/chantastic/oomph/internal/model"
)

// CreateJitInstance issues a one-off chore for a single day. Every call
// creates a new instance, even when title and day repeat.
func (s *Service) CreateJitInstance(assigneeID int64, title, description string, day calendar.Date) (*model.JitInstance, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("jit title is required: %w", ErrInvalidInput)
	}
	if day.IsZero() {
		return nil, fmt.Errorf("jit day is required: %w", ErrInvalidInput)
	}
	if _, err := s.GetAssignee(assigneeID); err != nil {
		return nil, err
	}

	j, err := s.jits.Create(assigneeID, title, description, day.String())
	if err != nil {
		return nil, err
	}
	s.logger.Debug("jit instance created", "jit_id", j.ID, "assignee_id", assigneeID, "day", j.Day)
	return j, nil
}

// DeleteJitInstance removes the instance and its completions.
func (s *Service) DeleteJitInstance(id int64) error {
	return s.jits.Delete(id)
}
