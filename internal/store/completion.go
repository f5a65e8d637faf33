package store

import (
	"database/sql"
	"fmt"

	"github.com/chantastic/oomph/internal/model"
)

// CompletionStore is the completion ledger. Events are keyed by
// (instance_kind, instance_id, day_bucket_ms) and are inserted or deleted,
// never updated.
type CompletionStore struct {
	db *sql.DB
}

func NewCompletionStore(db *sql.DB) *CompletionStore {
	return &CompletionStore{db: db}
}

func scanCompletion(scanner interface{ Scan(...any) error }) (*model.CompletionEvent, error) {
	var e model.CompletionEvent
	err := scanner.Scan(&e.ID, &e.InstanceKind, &e.InstanceID, &e.DayBucketMs, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

const completionCols = `id, instance_kind, instance_id, day_bucket_ms, created_at`

// Create fails with ErrDuplicateCompletion if the key is already recorded.
func (s *CompletionStore) Create(kind model.InstanceKind, instanceID, bucketMs int64) (*model.CompletionEvent, error) {
	result, err := s.db.Exec(
		`INSERT INTO completion_events (instance_kind, instance_id, day_bucket_ms) VALUES (?, ?, ?)`,
		kind, instanceID, bucketMs,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert completion: %w", ErrDuplicateCompletion)
		}
		return nil, fmt.Errorf("insert completion: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *CompletionStore) GetByID(id int64) (*model.CompletionEvent, error) {
	row := s.db.QueryRow(`SELECT `+completionCols+` FROM completion_events WHERE id = ?`, id)
	e, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion: %w", err)
	}
	return e, nil
}

func (s *CompletionStore) GetByKey(kind model.InstanceKind, instanceID, bucketMs int64) (*model.CompletionEvent, error) {
	row := s.db.QueryRow(
		`SELECT `+completionCols+` FROM completion_events WHERE instance_kind = ? AND instance_id = ? AND day_bucket_ms = ?`,
		kind, instanceID, bucketMs,
	)
	e, err := scanCompletion(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get completion by key: %w", err)
	}
	return e, nil
}

// DeleteByID is a no-op for unknown ids.
func (s *CompletionStore) DeleteByID(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM completion_events WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete completion: %w", err)
	}
	return nil
}

// DeleteByKey deletes every event matching the key and returns how many
// were removed.
func (s *CompletionStore) DeleteByKey(kind model.InstanceKind, instanceID, bucketMs int64) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM completion_events WHERE instance_kind = ? AND instance_id = ? AND day_bucket_ms = ?`,
		kind, instanceID, bucketMs,
	)
	if err != nil {
		return 0, fmt.Errorf("delete completion by key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// Toggle removes the events for the key if any exist, otherwise records
// one. It runs in a single write transaction so concurrent toggles on the
// same key serialize. The returned event is nil when the key was cleared.
func (s *CompletionStore) Toggle(kind model.InstanceKind, instanceID, bucketMs int64) (*model.CompletionEvent, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`DELETE FROM completion_events WHERE instance_kind = ? AND instance_id = ? AND day_bucket_ms = ?`,
		kind, instanceID, bucketMs,
	)
	if err != nil {
		return nil, fmt.Errorf("toggle delete: %w", err)
	}
	removed, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if removed > 0 {
		return nil, tx.Commit()
	}

	result, err = tx.Exec(
		`INSERT INTO completion_events (instance_kind, instance_id, day_bucket_ms) VALUES (?, ?, ?)`,
		kind, instanceID, bucketMs,
	)
	if err != nil {
		return nil, fmt.Errorf("toggle insert: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	e, err := scanCompletion(tx.QueryRow(`SELECT `+completionCols+` FROM completion_events WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("get toggled completion: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit toggle: %w", err)
	}
	return e, nil
}

// ListInWindow returns events whose day bucket falls in [startMs, endMs].
func (s *CompletionStore) ListInWindow(startMs, endMs int64) ([]model.CompletionEvent, error) {
	return s.query(
		`SELECT `+completionCols+` FROM completion_events WHERE day_bucket_ms BETWEEN ? AND ? ORDER BY day_bucket_ms, id`,
		startMs, endMs,
	)
}

// Orphans returns events in [startMs, endMs] whose instance row no longer
// exists.
func (s *CompletionStore) Orphans(startMs, endMs int64) ([]model.CompletionEvent, error) {
	return s.query(
		`SELECT `+completionCols+` FROM completion_events c
		 WHERE c.day_bucket_ms BETWEEN ? AND ?
		   AND ((c.instance_kind = 'recurring' AND NOT EXISTS (SELECT 1 FROM instances i WHERE i.id = c.instance_id))
		     OR (c.instance_kind = 'jit' AND NOT EXISTS (SELECT 1 FROM jit_instances j WHERE j.id = c.instance_id)))
		 ORDER BY c.day_bucket_ms, c.id`,
		startMs, endMs,
	)
}

func (s *CompletionStore) query(query string, args ...any) ([]model.CompletionEvent, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list completions: %w", err)
	}
	defer rows.Close()

	var events []model.CompletionEvent
	for rows.Next() {
		e, err := scanCompletion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}
