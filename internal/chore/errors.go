package chore

import (
	"errors"
	"fmt"

	"github.com/chantastic/oomph/internal/store"
)

var (
	ErrMissingReference    = store.ErrMissingReference
	ErrDuplicateTemplate   = store.ErrDuplicateTemplate
	ErrDuplicateCompletion = store.ErrDuplicateCompletion

	// ErrInvalidInput is returned for empty titles, unknown instance kinds
	// and similar caller mistakes.
	ErrInvalidInput = errors.New("invalid input")
)

// MissingReferenceError names the entity that could not be found.
type MissingReferenceError struct {
	Entity string
	ID     int64
}

func (e *MissingReferenceError) Error() string {
	return fmt.Sprintf("%s %d does not exist", e.Entity, e.ID)
}

func (e *MissingReferenceError) Unwrap() error { return ErrMissingReference }

func missing(entity string, id int64) error {
	return &MissingReferenceError{Entity: entity, ID: id}
}
