package store

import (
	"database/sql"
	"fmt"

	"github.com/chantastic/oomph/internal/model"
)

// InstanceStore holds materialized recurring instances. Rows are unique
// per (assignee, title, day).
type InstanceStore struct {
	db *sql.DB
}

func NewInstanceStore(db *sql.DB) *InstanceStore {
	return &InstanceStore{db: db}
}

func scanInstance(scanner interface{ Scan(...any) error }) (*model.Instance, error) {
	var i model.Instance
	var templateID sql.NullInt64
	err := scanner.Scan(
		&i.ID, &i.AssigneeID, &templateID, &i.Title, &i.Description, &i.Day, &i.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if templateID.Valid {
		i.TemplateID = &templateID.Int64
	}
	return &i, nil
}

const instanceCols = `id, assignee_id, template_id, title, description, day, created_at`

// CreateIfAbsent inserts an instance unless one already exists for the same
// assignee, title and day. The returned bool reports whether a row was
// inserted; when it is false the existing row is returned.
func (s *InstanceStore) CreateIfAbsent(assigneeID int64, templateID *int64, title, description, day string) (*model.Instance, bool, error) {
	var tID sql.NullInt64
	if templateID != nil {
		tID = sql.NullInt64{Int64: *templateID, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO instances (assignee_id, template_id, title, description, day) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (assignee_id, title, day) DO NOTHING`,
		assigneeID, tID, title, description, day,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, false, fmt.Errorf("insert instance: %w", ErrMissingReference)
		}
		return nil, false, fmt.Errorf("insert instance: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		existing, err := s.GetByKey(assigneeID, title, day)
		return existing, false, err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("last insert id: %w", err)
	}
	inst, err := s.GetByID(id)
	return inst, true, err
}

func (s *InstanceStore) GetByID(id int64) (*model.Instance, error) {
	row := s.db.QueryRow(`SELECT `+instanceCols+` FROM instances WHERE id = ?`, id)
	i, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get instance: %w", err)
	}
	return i, nil
}

func (s *InstanceStore) GetByKey(assigneeID int64, title, day string) (*model.Instance, error) {
	row := s.db.QueryRow(
		`SELECT `+instanceCols+` FROM instances WHERE assignee_id = ? AND title = ? AND day = ?`,
		assigneeID, title, day,
	)
	i, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get instance by key: %w", err)
	}
	return i, nil
}

// ListForDay returns every assignee's instances for day.
func (s *InstanceStore) ListForDay(day string) ([]model.Instance, error) {
	return s.query(`SELECT `+instanceCols+` FROM instances WHERE day = ? ORDER BY assignee_id, id`, day)
}

// ListByAssignee returns the assignee's instances, restricted to day unless
// day is empty.
func (s *InstanceStore) ListByAssignee(assigneeID int64, day string) ([]model.Instance, error) {
	if day == "" {
		return s.query(`SELECT `+instanceCols+` FROM instances WHERE assignee_id = ? ORDER BY day, id`, assigneeID)
	}
	return s.query(`SELECT `+instanceCols+` FROM instances WHERE assignee_id = ? AND day = ? ORDER BY id`, assigneeID, day)
}

// ListByAssigneeBetween returns instances whose day falls in [from, to].
func (s *InstanceStore) ListByAssigneeBetween(assigneeID int64, from, to string) ([]model.Instance, error) {
	return s.query(
		`SELECT `+instanceCols+` FROM instances WHERE assignee_id = ? AND day BETWEEN ? AND ? ORDER BY day, id`,
		assigneeID, from, to,
	)
}

func (s *InstanceStore) query(query string, args ...any) ([]model.Instance, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	var instances []model.Instance
	for rows.Next() {
		i, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		instances = append(instances, *i)
	}
	return instances, rows.Err()
}
