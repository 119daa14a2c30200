package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidID is returned when an identifier is not a well-formed task id.
	ErrInvalidID = errors.New("invalid id")
	// ErrNotFound is returned when a well-formed id matches no stored task.
	ErrNotFound = errors.New("not found")
	// ErrEmptyReorder is returned when a reorder request carries no ids.
	ErrEmptyReorder = errors.New("ids must be a non-empty list")
)

// ValidationError carries the human readable field violations of a payload.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Errors, "; ")
}

// ReorderIDError reports the first entry of a reorder list that is not a valid id.
type ReorderIDError struct {
	Index int
	Value string
	Err   error
}

func (e *ReorderIDError) Error() string {
	return fmt.Sprintf("bad id in list: %q at index %d", e.Value, e.Index)
}

func (e *ReorderIDError) Unwrap() error { return e.Err }
