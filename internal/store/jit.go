package store

import (
	"database/sql"
	"fmt"

	"github.com/chantastic/oomph/internal/model"
)

// JitStore holds one-off instances. Nothing is deduplicated.
type JitStore struct {
	db *sql.DB
}

func NewJitStore(db *sql.DB) *JitStore {
	return &JitStore{db: db}
}

func scanJit(scanner interface{ Scan(...any) error }) (*model.JitInstance, error) {
	var j model.JitInstance
	err := scanner.Scan(&j.ID, &j.AssigneeID, &j.Title, &j.Description, &j.Day, &j.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

const jitCols = `id, assignee_id, title, description, day, created_at`

func (s *JitStore) Create(assigneeID int64, title, description, day string) (*model.JitInstance, error) {
	result, err := s.db.Exec(
		`INSERT INTO jit_instances (assignee_id, title, description, day) VALUES (?, ?, ?, ?)`,
		assigneeID, title, description, day,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("insert jit instance: assignee: %w", ErrMissingReference)
		}
		return nil, fmt.Errorf("insert jit instance: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *JitStore) GetByID(id int64) (*model.JitInstance, error) {
	row := s.db.QueryRow(`SELECT `+jitCols+` FROM jit_instances WHERE id = ?`, id)
	j, err := scanJit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get jit instance: %w", err)
	}
	return j, nil
}

// ListByAssignee returns the assignee's JIT instances, restricted to day
// unless day is empty.
func (s *JitStore) ListByAssignee(assigneeID int64, day string) ([]model.JitInstance, error) {
	if day == "" {
		return s.query(`SELECT `+jitCols+` FROM jit_instances WHERE assignee_id = ? ORDER BY day, id`, assigneeID)
	}
	return s.query(`SELECT `+jitCols+` FROM jit_instances WHERE assignee_id = ? AND day = ? ORDER BY id`, assigneeID, day)
}

func (s *JitStore) ListByAssigneeBetween(assigneeID int64, from, to string) ([]model.JitInstance, error) {
	return s.query(
		`SELECT `+jitCols+` FROM jit_instances WHERE assignee_id = ? AND day BETWEEN ? AND ? ORDER BY day, id`,
		assigneeID, from, to,
	)
}

func (s *JitStore) query(query string, args ...any) ([]model.JitInstance, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jit instances: %w", err)
	}
	defer rows.Close()

	var out []model.JitInstance
	for rows.Next() {
		j, err := scanJit(rows)
		if err != nil {
			return nil, fmt.Errorf("scan jit instance: %w", err)
		}
		out = append(out, *j)
	}
	return out, rows.Err()
}

// Delete removes the JIT instance and its completion events.
func (s *JitStore) Delete(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM completion_events WHERE instance_kind = 'jit' AND instance_id = ?`, id); err != nil {
		return fmt.Errorf("delete jit completions: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM jit_instances WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete jit instance: %w", err)
	}
	return tx.Commit()
}
