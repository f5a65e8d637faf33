package chore

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.uber.org/multierr"

	"github.com/chantastic/oomph/internal/calendar"
	"github.com/chantastic/oomph/internal/model"
	"github.com/chantastic/oomph/internal/recurrence"
)

// ScopeAll is the run scope of MaterializeDay.
const ScopeAll = "all"

// Report describes one materialization run.
type Report struct {
	RunID   string           `json:"run_id"`
	Day     calendar.Date    `json:"day"`
	Results []AssigneeResult `json:"results"`
	// Orphans are templates whose assignee no longer exists.
	Orphans []*MissingReferenceError `json:"-"`
	Total   int                      `json:"total_materialized"`
}

type AssigneeResult struct {
	AssigneeID   int64             `json:"assignee_id"`
	AssigneeName string            `json:"assignee_name"`
	Materialized []model.Instance  `json:"materialized"`
	Count        int               `json:"count"`
	Skipped      []SkippedTemplate `json:"skipped,omitempty"`
	Err          error             `json:"-"`
}

// SkippedTemplate is a template left out because its schedule does not
// parse.
type SkippedTemplate struct {
	TemplateID int64  `json:"template_id"`
	Title      string `json:"title"`
	Err        error  `json:"-"`
}

// Failures counts assignees that hit an error plus orphaned templates.
func (r *Report) Failures() int {
	n := len(r.Orphans)
	for _, res := range r.Results {
		if res.Err != nil {
			n++
		}
	}
	return n
}

// Err combines every per-assignee error and orphan into one error, or nil.
func (r *Report) Err() error {
	var err error
	for _, res := range r.Results {
		err = multierr.Append(err, res.Err)
	}
	for _, o := range r.Orphans {
		err = multierr.Append(err, o)
	}
	return err
}

// MaterializeDay creates the instances due on day for every assignee.
// Running it again for the same day creates nothing new. A failure for one
// assignee is recorded in its result and does not stop the others; the
// returned error is reserved for store failures that prevent the run.
func (s *Service) MaterializeDay(ctx context.Context, day calendar.Date) (*Report, error) {
	return s.materializeShared(ctx, ScopeAll, day, nil)
}

// MaterializeDayForAssignee is MaterializeDay restricted to one assignee.
func (s *Service) MaterializeDayForAssignee(ctx context.Context, assigneeID int64, day calendar.Date) (*Report, error) {
	return s.materializeShared(ctx, fmt.Sprintf("assignee:%d", assigneeID), day, &assigneeID)
}

// materializeShared lets concurrent callers for the same scope and day wait
// on a single run and share its report.
func (s *Service) materializeShared(ctx context.Context, scope string, day calendar.Date, only *int64) (*Report, error) {
	v, err, _ := s.inflight.Do(scope+"/"+day.String(), func() (any, error) {
		return s.materialize(ctx, scope, day, only)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Report), nil
}

func (s *Service) materialize(ctx context.Context, scope string, day calendar.Date, only *int64) (*Report, error) {
	start := time.Now()
	dayTag := day.String()
	report := &Report{RunID: s.newRunID(), Day: day}
	logger := s.logger.With("run_id", report.RunID, "day", dayTag, "scope", scope)

	assignees, templates, existing, err := s.loadDay(dayTag, only)
	if err != nil {
		return nil, err
	}

	if s.runs != nil {
		if _, err := s.runs.Start(report.RunID, dayTag, scope); err != nil {
			return nil, fmt.Errorf("record run start: %w", err)
		}
	}

	byAssignee := make(map[int64][]model.Template)
	known := make(map[int64]bool, len(assignees))
	for _, a := range assignees {
		known[a.ID] = true
	}
	for _, t := range templates {
		if !known[t.AssigneeID] {
			report.Orphans = append(report.Orphans, &MissingReferenceError{Entity: "assignee", ID: t.AssigneeID})
			logger.Warn("template references missing assignee", "template_id", t.ID, "assignee_id", t.AssigneeID)
			continue
		}
		byAssignee[t.AssigneeID] = append(byAssignee[t.AssigneeID], t)
	}

	var canceled error
	for _, a := range assignees {
		if canceled = ctx.Err(); canceled != nil {
			break
		}
		res := s.materializeAssignee(a, byAssignee[a.ID], existing[a.ID], day, logger)
		report.Total += res.Count
		report.Results = append(report.Results, res)
	}

	failures := report.Failures()
	if canceled != nil {
		// A canceled run is finished as failed so it never counts as done.
		failures++
	}
	if s.runs != nil {
		if err := s.runs.Finish(report.RunID, report.Total, failures); err != nil {
			logger.Warn("failed to record run finish", "error", err)
		}
	}
	if canceled != nil {
		logger.Warn("materialization canceled", "total", report.Total)
		return nil, canceled
	}

	logger.Info("materialization finished",
		"assignees", len(report.Results),
		"total", report.Total,
		"failures", failures,
		"duration", time.Since(start),
	)
	return report, nil
}

// loadDay reads everything a run needs in one pass. existing maps assignee
// id to the titles already materialized on dayTag.
func (s *Service) loadDay(dayTag string, only *int64) ([]model.Assignee, []model.Template, map[int64]map[string]bool, error) {
	var (
		assignees []model.Assignee
		templates []model.Template
		instances []model.Instance
		err       error
	)

	if only != nil {
		a, err := s.assignees.GetByID(*only)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("load assignee: %w", err)
		}
		if a == nil {
			return nil, nil, nil, missing("assignee", *only)
		}
		assignees = []model.Assignee{*a}
		if templates, err = s.templates.ListByAssignee(a.ID); err != nil {
			return nil, nil, nil, fmt.Errorf("load templates: %w", err)
		}
		if instances, err = s.instances.ListByAssignee(a.ID, dayTag); err != nil {
			return nil, nil, nil, fmt.Errorf("load instances: %w", err)
		}
	} else {
		if assignees, err = s.assignees.List(); err != nil {
			return nil, nil, nil, fmt.Errorf("load assignees: %w", err)
		}
		if templates, err = s.templates.List(); err != nil {
			return nil, nil, nil, fmt.Errorf("load templates: %w", err)
		}
		if instances, err = s.instances.ListForDay(dayTag); err != nil {
			return nil, nil, nil, fmt.Errorf("load instances: %w", err)
		}
	}

	existing := make(map[int64]map[string]bool)
	for _, inst := range instances {
		if existing[inst.AssigneeID] == nil {
			existing[inst.AssigneeID] = make(map[string]bool)
		}
		existing[inst.AssigneeID][inst.Title] = true
	}
	return assignees, templates, existing, nil
}

func (s *Service) materializeAssignee(a model.Assignee, templates []model.Template, existing map[string]bool, day calendar.Date, logger *slog.Logger) AssigneeResult {
	res := AssigneeResult{AssigneeID: a.ID, AssigneeName: a.Name}
	dayTag := day.String()

	for _, t := range templates {
		// Unparseable schedules are hidden from materialization.
		expr, err := recurrence.Parse(t.Schedule)
		if err != nil {
			res.Skipped = append(res.Skipped, SkippedTemplate{TemplateID: t.ID, Title: t.Title, Err: err})
			logger.Warn("skipping template with invalid schedule",
				"assignee_id", a.ID, "template_id", t.ID, "schedule", t.Schedule, "error", err)
			continue
		}
		if !expr.Matches(day) || existing[t.Title] {
			continue
		}

		templateID := t.ID
		inst, created, err := s.instances.CreateIfAbsent(a.ID, &templateID, t.Title, t.Description, dayTag)
		if err != nil {
			res.Err = fmt.Errorf("assignee %d: template %d: %w", a.ID, t.ID, err)
			logger.Warn("materialization failed for assignee", "assignee_id", a.ID, "error", err)
			break
		}
		if created {
			res.Materialized = append(res.Materialized, *inst)
		}
		if existing == nil {
			existing = make(map[string]bool)
		}
		existing[t.Title] = true
	}

	res.Count = len(res.Materialized)
	return res
}
