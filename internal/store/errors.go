package store

import (
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrDuplicateTemplate is returned when an assignee already has a
	// template with the same title.
	ErrDuplicateTemplate = errors.New("duplicate template")

	// ErrDuplicateCompletion is returned when a completion event already
	// exists for the instance and day bucket.
	ErrDuplicateCompletion = errors.New("duplicate completion")

	// ErrMissingReference is returned when a row points at an assignee,
	// template or instance that does not exist.
	ErrMissingReference = errors.New("missing reference")
)

func isUniqueViolation(err error) bool {
	return isConstraint(err, sqlite3.SQLITE_CONSTRAINT_UNIQUE, "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return isConstraint(err, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY, "FOREIGN KEY constraint failed")
}

func isConstraint(err error, code int, text string) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == code || strings.Contains(se.Error(), text)
}
