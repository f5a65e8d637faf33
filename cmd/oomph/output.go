package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/chantastic/oomph/internal/backup"
	"github.com/chantastic/oomph/internal/calendar"
	"github.com/chantastic/oomph/internal/chore"
	"github.com/chantastic/oomph/internal/model"
	"github.com/chantastic/oomph/internal/recurrence"
)

// print writes v as indented JSON with --json, otherwise calls text.
func (a *app) print(v any, text func()) error {
	if a.json {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text()
	return nil
}

func (a *app) table() *tabwriter.Writer {
	return tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
}

func (a *app) printReport(r *chore.Report) {
	fmt.Fprintf(a.out, "run %s for %s: %d materialized\n", r.RunID, r.Day, r.Total)
	for _, res := range r.Results {
		line := fmt.Sprintf("  %s: %d", res.AssigneeName, res.Count)
		if len(res.Skipped) > 0 {
			line += fmt.Sprintf(", %d skipped", len(res.Skipped))
		}
		if res.Err != nil {
			line += fmt.Sprintf(", error: %v", res.Err)
		}
		fmt.Fprintln(a.out, line)
		for _, sk := range res.Skipped {
			fmt.Fprintf(a.out, "    skipped %q: %v\n", sk.Title, sk.Err)
		}
	}
	for _, o := range r.Orphans {
		fmt.Fprintf(a.out, "  orphan: %v\n", o)
	}
}

func (a *app) printAssignees(list []model.Assignee) {
	w := a.table()
	fmt.Fprintln(w, "ID\tNAME")
	for _, x := range list {
		fmt.Fprintf(w, "%d\t%s\n", x.ID, x.Name)
	}
	w.Flush()
}

func (a *app) printTemplates(list []model.Template) {
	w := a.table()
	fmt.Fprintln(w, "ID\tASSIGNEE\tTITLE\tSCHEDULE\tREPEATS")
	for _, t := range list {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n", t.ID, t.AssigneeID, t.Title, t.Schedule, recurrence.Describe(t.Schedule))
	}
	w.Flush()
}

func (a *app) printDay(v *chore.DayView) {
	fmt.Fprintf(a.out, "%s %s\n", v.Date.Weekday().String()[:3], v.Date)
	if len(v.Items) == 0 {
		fmt.Fprintln(a.out, "  nothing to do")
		return
	}
	for _, it := range v.Items {
		fmt.Fprintf(a.out, "  %s %-24s %s\n", checkbox(it.Status == chore.StatusComplete), it.Title, it.Ref)
	}
}

func (a *app) printWeek(v *chore.WeekView) {
	w := a.table()
	fmt.Fprint(w, "CHORE")
	for _, d := range v.Week {
		fmt.Fprintf(w, "\t%s %02d", d.Weekday().String()[:3], d.Day)
	}
	fmt.Fprintln(w)
	for _, row := range v.Rows {
		fmt.Fprint(w, row.Title)
		for _, c := range row.Cells {
			fmt.Fprintf(w, "\t%s", weekCell(c))
		}
		fmt.Fprintln(w)
	}
	w.Flush()
}

func weekCell(c chore.WeekCell) string {
	switch {
	case c.Instance != nil:
		return checkbox(c.Completion != nil)
	case c.Due:
		return "due"
	default:
		return "."
	}
}

func checkbox(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

func (a *app) printCompletions(events []model.CompletionEvent) {
	w := a.table()
	fmt.Fprintln(w, "ID\tINSTANCE\tDAY\tRECORDED")
	for _, e := range events {
		day := calendar.FromBucket(e.DayBucketMs, a.svc.Location())
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", e.ID, e.Ref(), day, humanize.Time(e.CreatedAt))
	}
	w.Flush()
}

func (a *app) printRuns(runs []model.Run) {
	w := a.table()
	fmt.Fprintln(w, "RUN\tDAY\tSCOPE\tTOTAL\tFAILURES\tSTARTED\tTOOK")
	for _, r := range runs {
		took := "running"
		if r.FinishedAt != nil {
			took = r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.RunID, r.Day, r.Scope, r.Total, r.Failures, humanize.Time(r.StartedAt), took)
	}
	w.Flush()
}

func (a *app) printBackups(list []backup.Backup) {
	w := a.table()
	fmt.Fprintln(w, "NAME\tSIZE\tCREATED\tREMOTE")
	for _, b := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", b.Name, humanize.Bytes(uint64(b.SizeBytes)), humanize.Time(b.CreatedAt), b.Key)
	}
	w.Flush()
}
