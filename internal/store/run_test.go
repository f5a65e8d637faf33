package store

import "testing"

func TestRunLifecycle(t *testing.T) {
	s := NewRunStore(openTestDB(t))

	r, err := s.Start("run-1", "2024-06-10", "all")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if r.FinishedAt != nil {
		t.Error("new run already finished")
	}

	last, err := s.LastSuccessful("2024-06-10", "all")
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if last != nil {
		t.Errorf("unfinished run counted as successful: %+v", last)
	}

	if err := s.Finish("run-1", 3, 1); err != nil {
		t.Fatalf("finish: %v", err)
	}
	last, _ = s.LastSuccessful("2024-06-10", "all")
	if last != nil {
		t.Errorf("failed run counted as successful: %+v", last)
	}

	if _, err := s.Start("run-2", "2024-06-10", "all"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := s.Finish("run-2", 0, 0); err != nil {
		t.Fatalf("finish: %v", err)
	}
	last, err = s.LastSuccessful("2024-06-10", "all")
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if last == nil || last.RunID != "run-2" || last.FinishedAt == nil {
		t.Fatalf("last = %+v, want run-2", last)
	}

	if other, _ := s.LastSuccessful("2024-06-10", "assignee:1"); other != nil {
		t.Errorf("other scope = %+v", other)
	}

	recent, err := s.Recent(10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(recent) != 2 || recent[0].RunID != "run-2" {
		t.Errorf("recent = %+v", recent)
	}
	if recent[1].Total != 3 || recent[1].Failures != 1 {
		t.Errorf("run-1 = %+v", recent[1])
	}
}
