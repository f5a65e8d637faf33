package store

import (
	"database/sql"
	"fmt"

	"github.com/chantastic/oomph/internal/model"
)

// RunStore records materialization runs.
type RunStore struct {
	db *sql.DB
}

func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

func scanRun(scanner interface{ Scan(...any) error }) (*model.Run, error) {
	var r model.Run
	var finished sql.NullTime
	err := scanner.Scan(
		&r.ID, &r.RunID, &r.Day, &r.Scope, &r.Total, &r.Failures, &r.StartedAt, &finished,
	)
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		r.FinishedAt = &finished.Time
	}
	return &r, nil
}

const runCols = `id, run_id, day, scope, total, failures, started_at, finished_at`

func (s *RunStore) Start(runID, day, scope string) (*model.Run, error) {
	_, err := s.db.Exec(`INSERT INTO runs (run_id, day, scope) VALUES (?, ?, ?)`, runID, day, scope)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return s.GetByRunID(runID)
}

func (s *RunStore) Finish(runID string, total, failures int) error {
	_, err := s.db.Exec(
		`UPDATE runs SET total = ?, failures = ?, finished_at = CURRENT_TIMESTAMP WHERE run_id = ?`,
		total, failures, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

func (s *RunStore) GetByRunID(runID string) (*model.Run, error) {
	row := s.db.QueryRow(`SELECT `+runCols+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// LastSuccessful returns the most recent finished run for day and scope that
// had no failures, or nil.
func (s *RunStore) LastSuccessful(day, scope string) (*model.Run, error) {
	row := s.db.QueryRow(
		`SELECT `+runCols+` FROM runs
		 WHERE day = ? AND scope = ? AND finished_at IS NOT NULL AND failures = 0
		 ORDER BY id DESC LIMIT 1`,
		day, scope,
	)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last successful run: %w", err)
	}
	return r, nil
}

// Recent returns up to limit runs, newest first.
func (s *RunStore) Recent(limit int) ([]model.Run, error) {
	rows, err := s.db.Query(`SELECT `+runCols+` FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}
