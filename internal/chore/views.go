package chore

import (
	"fmt"

	"github.com/chantastic/oomph/internal/calendar"
	"github.com/chantastic/oomph/internal/model"
	"github.com/chantastic/oomph/internal/recurrence"
)

// DayItem is one instance shown for a day.
type DayItem struct {
	Ref         model.InstanceRef      `json:"ref"`
	TemplateID  *int64                 `json:"template_id,omitempty"`
	Title       string                 `json:"title"`
	Description string                 `json:"description,omitempty"`
	Status      Status                 `json:"status"`
	Completion  *model.CompletionEvent `json:"completion,omitempty"`
}

type DayView struct {
	AssigneeID int64         `json:"assignee_id"`
	Date       calendar.Date `json:"date"`
	BucketMs   int64         `json:"bucket_ms"`
	Items      []DayItem     `json:"items"`
}

// DayView lists the assignee's recurring instances materialized for d and
// its JIT instances dated d, each with its completion status for d.
func (s *Service) DayView(assigneeID int64, d calendar.Date) (*DayView, error) {
	if _, err := s.GetAssignee(assigneeID); err != nil {
		return nil, err
	}
	dayTag := d.String()

	instances, err := s.instances.ListByAssignee(assigneeID, dayTag)
	if err != nil {
		return nil, fmt.Errorf("day view instances: %w", err)
	}
	jits, err := s.jits.ListByAssignee(assigneeID, dayTag)
	if err != nil {
		return nil, fmt.Errorf("day view jit instances: %w", err)
	}
	start, end := d.Bounds(s.loc)
	events, err := s.CompletionsInWindow(start, end)
	if err != nil {
		return nil, fmt.Errorf("day view completions: %w", err)
	}
	lookup := NewLookup(events)

	view := &DayView{AssigneeID: assigneeID, Date: d, BucketMs: start}
	for _, inst := range instances {
		ref := model.InstanceRef{Kind: model.KindRecurring, ID: inst.ID}
		e, _ := lookup.ForDay(ref, start)
		view.Items = append(view.Items, DayItem{
			Ref: ref, TemplateID: inst.TemplateID,
			Title: inst.Title, Description: inst.Description,
			Status: StatusOf(e), Completion: e,
		})
	}
	for _, j := range jits {
		ref := model.InstanceRef{Kind: model.KindJit, ID: j.ID}
		e, _ := lookup.ForDay(ref, start)
		view.Items = append(view.Items, DayItem{
			Ref: ref, Title: j.Title, Description: j.Description,
			Status: StatusOf(e), Completion: e,
		})
	}
	return view, nil
}

// WeekCell is one day of a WeekRow. Instance is nil until the day has been
// materialized (always set for JIT rows on their own date).
type WeekCell struct {
	Date       calendar.Date          `json:"date"`
	Due        bool                   `json:"due"`
	Instance   *model.InstanceRef     `json:"instance,omitempty"`
	Completion *model.CompletionEvent `json:"completion,omitempty"`
}

type WeekRow struct {
	Kind        model.InstanceKind `json:"kind"`
	TemplateID  *int64             `json:"template_id,omitempty"`
	Title       string             `json:"title"`
	Description string             `json:"description,omitempty"`
	Schedule    string             `json:"schedule,omitempty"`
	Label       string             `json:"label,omitempty"`
	Cells       [7]WeekCell        `json:"cells"`
}

type WeekView struct {
	AssigneeID int64         `json:"assignee_id"`
	Week       calendar.Week `json:"week"`
	Rows       []WeekRow     `json:"rows"`
}

// WeekView builds the Sunday-start week containing d. Templates get a row
// when they are due on at least one day of the week or already have an
// instance in it; schedules that do not parse are shown as due every day.
// JIT instances get a row that only occupies their own date.
func (s *Service) WeekView(assigneeID int64, d calendar.Date) (*WeekView, error) {
	if _, err := s.GetAssignee(assigneeID); err != nil {
		return nil, err
	}
	week := calendar.WeekOf(d)
	from, to := week.Start().String(), week.End().String()

	templates, err := s.templates.ListByAssignee(assigneeID)
	if err != nil {
		return nil, fmt.Errorf("week view templates: %w", err)
	}
	instances, err := s.instances.ListByAssigneeBetween(assigneeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("week view instances: %w", err)
	}
	jits, err := s.jits.ListByAssigneeBetween(assigneeID, from, to)
	if err != nil {
		return nil, fmt.Errorf("week view jit instances: %w", err)
	}
	start, end := week.Bounds(s.loc)
	events, err := s.CompletionsInWindow(start, end)
	if err != nil {
		return nil, fmt.Errorf("week view completions: %w", err)
	}
	lookup := NewLookup(events)

	// title -> day -> instance
	byTitle := make(map[string]map[string]model.Instance)
	for _, inst := range instances {
		if byTitle[inst.Title] == nil {
			byTitle[inst.Title] = make(map[string]model.Instance)
		}
		byTitle[inst.Title][inst.Day] = inst
	}

	view := &WeekView{AssigneeID: assigneeID, Week: week}
	for _, t := range templates {
		if err := recurrence.Validate(t.Schedule); err != nil {
			s.logger.Warn("showing template with invalid schedule", "template_id", t.ID, "schedule", t.Schedule, "error", err)
		}
		templateID := t.ID
		row := WeekRow{
			Kind: model.KindRecurring, TemplateID: &templateID,
			Title: t.Title, Description: t.Description,
			Schedule: t.Schedule, Label: recurrence.Describe(t.Schedule),
		}
		visible := false
		for i, day := range week {
			due, _ := IsDueOn(t, day, recurrence.Show)
			row.Cells[i] = s.weekCell(day, due, byTitle[t.Title], lookup)
			visible = visible || due || row.Cells[i].Instance != nil
		}
		delete(byTitle, t.Title)
		if visible {
			view.Rows = append(view.Rows, row)
		}
	}

	// Instances whose template was renamed or deleted keep their own row.
	for _, inst := range instances {
		days, ok := byTitle[inst.Title]
		if !ok {
			continue
		}
		row := WeekRow{Kind: model.KindRecurring, Title: inst.Title, Description: inst.Description}
		for i, day := range week {
			row.Cells[i] = s.weekCell(day, false, days, lookup)
		}
		delete(byTitle, inst.Title)
		view.Rows = append(view.Rows, row)
	}

	for _, j := range jits {
		row := WeekRow{Kind: model.KindJit, Title: j.Title, Description: j.Description}
		for i, day := range week {
			row.Cells[i].Date = day
			if day.String() != j.Day {
				continue
			}
			ref := model.InstanceRef{Kind: model.KindJit, ID: j.ID}
			e, _ := lookup.ForDay(ref, day.BucketMs(s.loc))
			row.Cells[i] = WeekCell{Date: day, Due: true, Instance: &ref, Completion: e}
		}
		view.Rows = append(view.Rows, row)
	}
	return view, nil
}

func (s *Service) weekCell(day calendar.Date, due bool, byDay map[string]model.Instance, lookup *Lookup) WeekCell {
	cell := WeekCell{Date: day, Due: due}
	inst, ok := byDay[day.String()]
	if !ok {
		return cell
	}
	ref := model.InstanceRef{Kind: model.KindRecurring, ID: inst.ID}
	cell.Instance = &ref
	cell.Completion, _ = lookup.ForDay(ref, day.BucketMs(s.loc))
	return cell
}
