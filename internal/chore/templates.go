package chore

import (
	"fmt"
	"strings"

	"github.com/chantastic/oomph/internal/model"
	"github.com/chantastic/oomph/internal/recurrence"
)

// TemplateInput creates a template when ID is zero and updates the mutable
// fields otherwise. AssigneeID is ignored on update.
type TemplateInput struct {
	ID          int64
	AssigneeID  int64
	Title       string
	Description string
	Schedule    string
}

// SaveTemplate validates the schedule strictly before writing: a template
// whose schedule does not parse is rejected with a *recurrence.ParseError.
// Editing a template never touches instances that already exist.
func (s *Service) SaveTemplate(in TemplateInput) (*model.Template, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, fmt.Errorf("template title is required: %w", ErrInvalidInput)
	}
	if err := recurrence.Validate(in.Schedule); err != nil {
		return nil, err
	}

	if in.ID == 0 {
		if _, err := s.GetAssignee(in.AssigneeID); err != nil {
			return nil, err
		}
		t, err := s.templates.Create(in.AssigneeID, in.Title, in.Description, in.Schedule)
		if err != nil {
			return nil, err
		}
		s.logger.Info("template created", "template_id", t.ID, "assignee_id", t.AssigneeID, "schedule", t.Schedule)
		return t, nil
	}

	t, err := s.templates.Update(in.ID, in.Title, in.Description, in.Schedule)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, missing("template", in.ID)
	}
	s.logger.Info("template updated", "template_id", t.ID, "schedule", t.Schedule)
	return t, nil
}

func (s *Service) GetTemplate(id int64) (*model.Template, error) {
	t, err := s.templates.GetByID(id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, missing("template", id)
	}
	return t, nil
}

// ListTemplates lists one assignee's templates, or all when assigneeID is 0.
func (s *Service) ListTemplates(assigneeID int64) ([]model.Template, error) {
	if assigneeID == 0 {
		return s.templates.List()
	}
	return s.templates.ListByAssignee(assigneeID)
}

func (s *Service) DeleteTemplate(id int64) error {
	return s.templates.Delete(id)
}
