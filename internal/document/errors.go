// Package document holds the pieces shared by the quote and invoice
// engines: the error taxonomy and line item inputs.
package document

import (
	"errors"
	"fmt"
)

// Sentinel errors for the engine's failure taxonomy. Typed errors below
// match these through errors.Is, so callers can branch on category while
// logs keep the diagnostic detail.
var (
	ErrValidation        = errors.New("validation_failed")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrNotFound          = errors.New("not_found")
	ErrConflict          = errors.New("conflict")
	ErrStorage           = errors.New("storage_failure")
)

// ValidationError reports malformed input. No partial state is written.
type ValidationError struct {
	Field   string
	Rule    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation_failed: %s %s: %s", e.Field, e.Rule, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// NewValidationError builds a field-level validation failure.
func NewValidationError(field, rule, message string) error {
	return &ValidationError{Field: field, Rule: rule, Message: message}
}

// InvalidTransitionError reports an operation attempted from a status that
// does not permit it. It names the current status and the trigger.
type InvalidTransitionError struct {
	Status  string
	Trigger string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid_transition: cannot %s from %s", e.Trigger, e.Status)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// NotFoundError reports a missing document or referenced entity.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("not_found: %s %s", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ConflictError reports a uniqueness violation, typically a duplicate
// document number. Retryable by re-issuing a new number.
type ConflictError struct {
	Resource string
	Value    string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: %s %q already exists", e.Resource, e.Value)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// StorageError wraps an underlying atomic-write failure. The engine never
// retries these; retry policy belongs to the caller.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage_failure: %v", e.Err)
}

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func (e *StorageError) Unwrap() error { return e.Err }

// WrapStorage classifies err as a storage failure unless it already belongs
// to the engine's taxonomy.
func WrapStorage(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) || errors.Is(err, ErrStorage) {
		return err
	}
	return &StorageError{Err: err}
}
