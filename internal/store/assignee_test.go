package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/chantastic/oomph/internal/database"
	"github.com/chantastic/oomph/internal/model"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// openFileTestDB is for tests that need more than one connection.
func openFileTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func TestAssigneeCRUD(t *testing.T) {
	s := NewAssigneeStore(openTestDB(t))

	a, err := s.Create("Alex")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.ID == 0 || a.Name != "Alex" {
		t.Errorf("created = %+v", a)
	}
	if a.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}

	if _, err := s.Create("Blair"); err != nil {
		t.Fatalf("create: %v", err)
	}
	list, err := s.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Alex" || list[1].Name != "Blair" {
		t.Errorf("list = %+v", list)
	}

	renamed, err := s.Rename(a.ID, "Alexis")
	if err != nil {
		t.Fatalf("rename: %v", err)
	}
	if renamed.Name != "Alexis" {
		t.Errorf("renamed = %q, want Alexis", renamed.Name)
	}

	missing, err := s.Rename(9999, "Nobody")
	if err != nil {
		t.Fatalf("rename missing: %v", err)
	}
	if missing != nil {
		t.Errorf("rename missing = %+v, want nil", missing)
	}

	got, err := s.GetByID(9999)
	if err != nil || got != nil {
		t.Errorf("GetByID(9999) = %v, %v; want nil, nil", got, err)
	}
}

func TestAssigneeDeleteCascades(t *testing.T) {
	db := openTestDB(t)
	assignees := NewAssigneeStore(db)
	templates := NewTemplateStore(db)
	instances := NewInstanceStore(db)
	jits := NewJitStore(db)
	completions := NewCompletionStore(db)

	keep, _ := assignees.Create("Keep")
	gone, _ := assignees.Create("Gone")

	for _, a := range []*model.Assignee{keep, gone} {
		tmpl, err := templates.Create(a.ID, "Dishes", "", "@daily")
		if err != nil {
			t.Fatalf("create template: %v", err)
		}
		inst, _, err := instances.CreateIfAbsent(a.ID, &tmpl.ID, "Dishes", "", "2024-06-10")
		if err != nil {
			t.Fatalf("create instance: %v", err)
		}
		jit, err := jits.Create(a.ID, "Call plumber", "", "2024-06-10")
		if err != nil {
			t.Fatalf("create jit: %v", err)
		}
		if _, err := completions.Create(model.KindRecurring, inst.ID, 1000); err != nil {
			t.Fatalf("complete instance: %v", err)
		}
		if _, err := completions.Create(model.KindJit, jit.ID, 1000); err != nil {
			t.Fatalf("complete jit: %v", err)
		}
	}

	if err := assignees.Delete(gone.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	for table, want := range map[string]int{
		"assignees":         1,
		"templates":         1,
		"instances":         1,
		"jit_instances":     1,
		"completion_events": 2,
	} {
		if got := countRows(t, db, table); got != want {
			t.Errorf("%s rows = %d, want %d", table, got, want)
		}
	}

	orphans, err := completions.Orphans(0, 2000)
	if err != nil {
		t.Fatalf("orphans: %v", err)
	}
	if len(orphans) != 0 {
		t.Errorf("orphans after cascade = %+v", orphans)
	}

	if err := assignees.Delete(gone.ID); err != nil {
		t.Errorf("second delete: %v", err)
	}
}
