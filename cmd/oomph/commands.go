package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/chantastic/oomph/internal/backup"
	"github.com/chantastic/oomph/internal/calendar"
	"github.com/chantastic/oomph/internal/chore"
	"github.com/chantastic/oomph/internal/model"
	"github.com/chantastic/oomph/internal/scheduler"
	"github.com/chantastic/oomph/internal/store"
)

// date parses a YYYY-MM-DD flag value; empty means today in the
// evaluation timezone.
func (a *app) date(s string) (calendar.Date, error) {
	if s == "" {
		return a.svc.Today(a.clock.Now()), nil
	}
	return calendar.Parse(s)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func runServe(a *app, args []string) error {
	fs := subcommand("serve")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched := scheduler.New(a.svc, store.NewRunStore(a.db), a.clock, scheduler.Config{
		Hour:      a.cfg.Schedule.Hour,
		Minute:    a.cfg.Schedule.Minute,
		Retries:   a.cfg.Schedule.Retries,
		RetryBase: a.cfg.Schedule.RetryBase,
	}, a.logger)
	sched.Start(ctx)
	a.logger.Info("oomph running", "db_path", a.cfg.DBPath, "timezone", a.cfg.Timezone)

	<-ctx.Done()
	a.logger.Info("shutting down")
	sched.Stop()
	return nil
}

func runMaterialize(a *app, args []string) error {
	fs := subcommand("materialize")
	dateFlag := fs.String("date", "", "day to materialize, YYYY-MM-DD (default today)")
	assignee := fs.Int64("assignee", 0, "only this assignee")
	if err := fs.Parse(args); err != nil {
		return err
	}
	day, err := a.date(*dateFlag)
	if err != nil {
		return err
	}

	var report *chore.Report
	if *assignee != 0 {
		report, err = a.svc.MaterializeDayForAssignee(context.Background(), *assignee, day)
	} else {
		report, err = a.svc.MaterializeDay(context.Background(), day)
	}
	if err != nil {
		return err
	}
	if err := a.print(report, func() { a.printReport(report) }); err != nil {
		return err
	}
	return report.Err()
}

func runAssignee(a *app, args []string) error {
	if len(args) == 0 {
		return usageError("assignee add|list|rename|rm")
	}
	switch action, rest := args[0], args[1:]; action {
	case "add":
		if len(rest) == 0 {
			return usageError("assignee add NAME")
		}
		created, err := a.svc.CreateAssignee(joinArgs(rest))
		if err != nil {
			return err
		}
		return a.print(created, func() { fmt.Fprintf(a.out, "assignee %d: %s\n", created.ID, created.Name) })
	case "list":
		list, err := a.svc.ListAssignees()
		if err != nil {
			return err
		}
		return a.print(list, func() { a.printAssignees(list) })
	case "rename":
		if len(rest) < 2 {
			return usageError("assignee rename ID NAME")
		}
		id, err := parseID(rest[0])
		if err != nil {
			return err
		}
		renamed, err := a.svc.RenameAssignee(id, joinArgs(rest[1:]))
		if err != nil {
			return err
		}
		return a.print(renamed, func() { fmt.Fprintf(a.out, "assignee %d: %s\n", renamed.ID, renamed.Name) })
	case "rm":
		if len(rest) != 1 {
			return usageError("assignee rm ID")
		}
		id, err := parseID(rest[0])
		if err != nil {
			return err
		}
		return a.svc.DeleteAssignee(id)
	default:
		return fmt.Errorf("unknown assignee action %q", action)
	}
}

func runTemplate(a *app, args []string) error {
	if len(args) == 0 {
		return usageError("template add|edit|list|rm")
	}
	action, rest := args[0], args[1:]
	fs := subcommand("template " + action)
	assignee := fs.Int64("assignee", 0, "assignee id")
	title := fs.String("title", "", "template title")
	schedule := fs.String("schedule", "", "five-field cron expression or macro such as @daily")
	description := fs.String("description", "", "free-form description")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	switch action {
	case "add":
		t, err := a.svc.SaveTemplate(chore.TemplateInput{
			AssigneeID:  *assignee,
			Title:       *title,
			Description: *description,
			Schedule:    *schedule,
		})
		if err != nil {
			return err
		}
		return a.print(t, func() { a.printTemplates([]model.Template{*t}) })
	case "edit":
		if fs.NArg() != 1 {
			return usageError("template edit ID [--title T] [--schedule S] [--description D]")
		}
		id, err := parseID(fs.Arg(0))
		if err != nil {
			return err
		}
		current, err := a.svc.GetTemplate(id)
		if err != nil {
			return err
		}
		in := chore.TemplateInput{ID: id, Title: current.Title, Description: current.Description, Schedule: current.Schedule}
		if fs.Changed("title") {
			in.Title = *title
		}
		if fs.Changed("schedule") {
			in.Schedule = *schedule
		}
		if fs.Changed("description") {
			in.Description = *description
		}
		t, err := a.svc.SaveTemplate(in)
		if err != nil {
			return err
		}
		return a.print(t, func() { a.printTemplates([]model.Template{*t}) })
	case "list":
		list, err := a.svc.ListTemplates(*assignee)
		if err != nil {
			return err
		}
		return a.print(list, func() { a.printTemplates(list) })
	case "rm":
		if fs.NArg() != 1 {
			return usageError("template rm ID")
		}
		id, err := parseID(fs.Arg(0))
		if err != nil {
			return err
		}
		return a.svc.DeleteTemplate(id)
	default:
		return fmt.Errorf("unknown template action %q", action)
	}
}

func runJit(a *app, args []string) error {
	if len(args) == 0 {
		return usageError("jit add|rm")
	}
	action, rest := args[0], args[1:]
	fs := subcommand("jit " + action)
	assignee := fs.Int64("assignee", 0, "assignee id")
	title := fs.String("title", "", "chore title")
	description := fs.String("description", "", "free-form description")
	dateFlag := fs.String("date", "", "day the chore is for, YYYY-MM-DD (default today)")
	if err := fs.Parse(rest); err != nil {
		return err
	}

	switch action {
	case "add":
		day, err := a.date(*dateFlag)
		if err != nil {
			return err
		}
		j, err := a.svc.CreateJitInstance(*assignee, *title, *description, day)
		if err != nil {
			return err
		}
		return a.print(j, func() { fmt.Fprintf(a.out, "jit %d: %s on %s\n", j.ID, j.Title, j.Day) })
	case "rm":
		if fs.NArg() != 1 {
			return usageError("jit rm ID")
		}
		id, err := parseID(fs.Arg(0))
		if err != nil {
			return err
		}
		return a.svc.DeleteJitInstance(id)
	default:
		return fmt.Errorf("unknown jit action %q", action)
	}
}

func runToggle(a *app, args []string) error {
	fs := subcommand("toggle")
	kind := fs.String("kind", string(model.KindRecurring), "instance kind: recurring or jit")
	dateFlag := fs.String("date", "", "day to toggle, YYYY-MM-DD (default the instance's own day)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError("toggle [--kind recurring|jit] [--date D] ID")
	}
	id, err := parseID(fs.Arg(0))
	if err != nil {
		return err
	}
	ref := model.InstanceRef{Kind: model.InstanceKind(*kind), ID: id}

	var e *model.CompletionEvent
	if *dateFlag == "" {
		e, err = a.svc.ToggleInstance(ref)
	} else {
		var day calendar.Date
		if day, err = calendar.Parse(*dateFlag); err != nil {
			return err
		}
		e, err = a.svc.Toggle(ref, a.svc.Bucket(day))
	}
	if err != nil {
		return err
	}
	return a.print(map[string]any{"ref": ref, "status": chore.StatusOf(e), "completion": e}, func() {
		fmt.Fprintf(a.out, "%s: %s\n", ref, chore.StatusOf(e))
	})
}

func runDay(a *app, args []string) error {
	fs := subcommand("day")
	assignee := fs.Int64("assignee", 0, "assignee id")
	dateFlag := fs.String("date", "", "YYYY-MM-DD (default today)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	day, err := a.date(*dateFlag)
	if err != nil {
		return err
	}
	view, err := a.svc.DayView(*assignee, day)
	if err != nil {
		return err
	}
	return a.print(view, func() { a.printDay(view) })
}

func runWeek(a *app, args []string) error {
	fs := subcommand("week")
	assignee := fs.Int64("assignee", 0, "assignee id")
	dateFlag := fs.String("date", "", "any day in the week, YYYY-MM-DD (default today)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	day, err := a.date(*dateFlag)
	if err != nil {
		return err
	}
	view, err := a.svc.WeekView(*assignee, day)
	if err != nil {
		return err
	}
	return a.print(view, func() { a.printWeek(view) })
}

func runCompletions(a *app, args []string) error {
	fs := subcommand("completions")
	assignee := fs.Int64("assignee", 0, "only this assignee's instances")
	from := fs.String("from", "", "first day, YYYY-MM-DD (default today)")
	to := fs.String("to", "", "last day, YYYY-MM-DD (default --from)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	first, err := a.date(*from)
	if err != nil {
		return err
	}
	last := first
	if *to != "" {
		if last, err = calendar.Parse(*to); err != nil {
			return err
		}
	}
	if last.Before(first) {
		return fmt.Errorf("--to %s is before --from %s", last, first)
	}

	start, _ := first.Bounds(a.svc.Location())
	_, end := last.Bounds(a.svc.Location())
	var events []model.CompletionEvent
	if *assignee != 0 {
		events, err = a.svc.CompletionsForAssignee(*assignee, start, end)
	} else {
		events, err = a.svc.CompletionsInWindow(start, end)
	}
	if err != nil {
		return err
	}
	return a.print(events, func() { a.printCompletions(events) })
}

func runRuns(a *app, args []string) error {
	fs := subcommand("runs")
	limit := fs.Int("limit", 10, "number of runs to show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	runs, err := store.NewRunStore(a.db).Recent(*limit)
	if err != nil {
		return err
	}
	return a.print(runs, func() { a.printRuns(runs) })
}

func (a *app) backupManager() *backup.Manager {
	b := a.cfg.Backup
	return backup.NewManager(backup.Config{
		Dir:        b.Dir,
		Passphrase: b.Passphrase,
		S3: backup.S3Config{
			Endpoint:  b.S3.Endpoint,
			Bucket:    b.S3.Bucket,
			Region:    b.S3.Region,
			AccessKey: b.S3.AccessKey,
			SecretKey: b.S3.SecretKey,
		},
	}, a.db, a.clock, a.logger)
}

func runBackup(a *app, args []string) error {
	fs := subcommand("backup")
	keep := fs.Int("keep", 0, "after backing up, delete all but the newest N backups (0 keeps all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	m := a.backupManager()

	if fs.NArg() == 1 && fs.Arg(0) == "list" {
		list, err := m.List()
		if err != nil {
			return err
		}
		return a.print(list, func() { a.printBackups(list) })
	}
	if fs.NArg() != 0 {
		return usageError("backup [--keep N] | backup list")
	}

	ctx := context.Background()
	b, err := m.Run(ctx)
	if err != nil {
		return err
	}
	if *keep > 0 {
		if _, err := m.Prune(ctx, *keep); err != nil {
			return err
		}
	}
	return a.print(b, func() { a.printBackups([]backup.Backup{*b}) })
}

func runRestore(a *app, args []string) error {
	fs := subcommand("restore")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return usageError("restore NAME")
	}
	err := a.backupManager().Restore(context.Background(), fs.Arg(0), a.cfg.DBPath)
	if errors.Is(err, backup.ErrBadPassphrase) {
		return fmt.Errorf("%w (check OOMPH_BACKUP_PASSPHRASE)", err)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "restored %s to %s\n", fs.Arg(0), a.cfg.DBPath)
	return nil
}
