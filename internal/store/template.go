package store

import (
	"database/sql"
	"fmt"

	"github.com/chantastic/oomph/internal/model"
)

type TemplateStore struct {
	db *sql.DB
}

func NewTemplateStore(db *sql.DB) *TemplateStore {
	return &TemplateStore{db: db}
}

func scanTemplate(scanner interface{ Scan(...any) error }) (*model.Template, error) {
	var t model.Template
	err := scanner.Scan(
		&t.ID, &t.AssigneeID, &t.Title, &t.Description, &t.Schedule,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const templateCols = `id, assignee_id, title, description, schedule, created_at, updated_at`

func (s *TemplateStore) Create(assigneeID int64, title, description, schedule string) (*model.Template, error) {
	result, err := s.db.Exec(
		`INSERT INTO templates (assignee_id, title, description, schedule) VALUES (?, ?, ?, ?)`,
		assigneeID, title, description, schedule,
	)
	if err != nil {
		return nil, templateWriteError("insert template", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *TemplateStore) GetByID(id int64) (*model.Template, error) {
	row := s.db.QueryRow(`SELECT `+templateCols+` FROM templates WHERE id = ?`, id)
	t, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

// List returns every template ordered by assignee, then title.
func (s *TemplateStore) List() ([]model.Template, error) {
	return s.query(`SELECT ` + templateCols + ` FROM templates ORDER BY assignee_id, title`)
}

func (s *TemplateStore) ListByAssignee(assigneeID int64) ([]model.Template, error) {
	return s.query(`SELECT `+templateCols+` FROM templates WHERE assignee_id = ? ORDER BY title`, assigneeID)
}

func (s *TemplateStore) query(query string, args ...any) ([]model.Template, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []model.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

// Update changes the mutable fields. It returns nil if the template does
// not exist.
func (s *TemplateStore) Update(id int64, title, description, schedule string) (*model.Template, error) {
	_, err := s.db.Exec(
		`UPDATE templates SET title = ?, description = ?, schedule = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		title, description, schedule, id,
	)
	if err != nil {
		return nil, templateWriteError("update template", err)
	}
	return s.GetByID(id)
}

func (s *TemplateStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM templates WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete template: %w", err)
	}
	return nil
}

func templateWriteError(op string, err error) error {
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w", op, ErrDuplicateTemplate)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%s: assignee: %w", op, ErrMissingReference)
	}
	return fmt.Errorf("%s: %w", op, err)
}
