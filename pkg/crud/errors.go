package crud

import (
	"errors"
	"fmt"

	"github.com/residenciauni/residencia/pkg/policy"
)

var (
	// ErrNotPermitted is returned when the predicate hides the control; nothing is sent
	ErrNotPermitted = errors.New("operation not permitted for this role")
	// ErrNotConfirmed is returned when the user declines a delete
	ErrNotConfirmed = errors.New("deletion not confirmed")
	// ErrUnknownRecord is returned when the id is not in the loaded list
	ErrUnknownRecord = errors.New("record is not loaded")
	// ErrNoStatus is returned by ChangeStatus on modules without status transitions
	ErrNoStatus = errors.New("module has no status transitions")
)

// FetchError is a failed list load
type FetchError struct {
	Module policy.Module
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to load %s: %v", e.Module, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// MutationError is a failed create, edit, delete, or status change
type MutationError struct {
	Module    policy.Module
	Operation string
	ID        string
	Err       error
}

func (e *MutationError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("failed to %s %s %s: %v", e.Operation, e.Module, e.ID, e.Err)
	}
	return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Module, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}
