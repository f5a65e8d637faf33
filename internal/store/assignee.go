package store

import (
	"database/sql"
	"fmt"

	"github.com/chantastic/oomph/internal/model"
)

type AssigneeStore struct {
	db *sql.DB
}

func NewAssigneeStore(db *sql.DB) *AssigneeStore {
	return &AssigneeStore{db: db}
}

func scanAssignee(scanner interface{ Scan(...any) error }) (*model.Assignee, error) {
	var a model.Assignee
	if err := scanner.Scan(&a.ID, &a.Name, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

const assigneeCols = `id, name, created_at, updated_at`

func (s *AssigneeStore) Create(name string) (*model.Assignee, error) {
	result, err := s.db.Exec(`INSERT INTO assignees (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("insert assignee: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *AssigneeStore) List() ([]model.Assignee, error) {
	rows, err := s.db.Query(`SELECT ` + assigneeCols + ` FROM assignees ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list assignees: %w", err)
	}
	defer rows.Close()

	var assignees []model.Assignee
	for rows.Next() {
		a, err := scanAssignee(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignee: %w", err)
		}
		assignees = append(assignees, *a)
	}
	return assignees, rows.Err()
}

func (s *AssigneeStore) GetByID(id int64) (*model.Assignee, error) {
	row := s.db.QueryRow(`SELECT `+assigneeCols+` FROM assignees WHERE id = ?`, id)
	a, err := scanAssignee(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get assignee: %w", err)
	}
	return a, nil
}

// Rename returns nil if the assignee does not exist.
func (s *AssigneeStore) Rename(id int64, name string) (*model.Assignee, error) {
	_, err := s.db.Exec(
		`UPDATE assignees SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, id,
	)
	if err != nil {
		return nil, fmt.Errorf("rename assignee: %w", err)
	}
	return s.GetByID(id)
}

// Delete removes the assignee together with its templates, instances, JIT
// instances and their completion events in a single transaction. Deleting
// an unknown id is a no-op.
func (s *AssigneeStore) Delete(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	steps := []struct {
		what  string
		query string
	}{
		{"recurring completions", `DELETE FROM completion_events WHERE instance_kind = 'recurring'
			AND instance_id IN (SELECT id FROM instances WHERE assignee_id = ?)`},
		{"jit completions", `DELETE FROM completion_events WHERE instance_kind = 'jit'
			AND instance_id IN (SELECT id FROM jit_instances WHERE assignee_id = ?)`},
		{"instances", `DELETE FROM instances WHERE assignee_id = ?`},
		{"jit instances", `DELETE FROM jit_instances WHERE assignee_id = ?`},
		{"templates", `DELETE FROM templates WHERE assignee_id = ?`},
		{"assignee", `DELETE FROM assignees WHERE id = ?`},
	}
	for _, step := range steps {
		if _, err := tx.Exec(step.query, id); err != nil {
			return fmt.Errorf("delete %s: %w", step.what, err)
		}
	}
	return tx.Commit()
}
