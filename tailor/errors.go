/*
errors.go - Centralized error types for the customer book

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers match sentinels with errors.Is and structured errors with errors.As.

ERROR CATEGORIES:
  1. Initialization - Storage unavailable or migration failure (fatal)
  2. Validation     - Record invariants violated (caller corrects and resubmits)
  3. Identity       - Duplicate id, missing record, concurrent modification
  4. Capacity       - The 9000-value id space is exhausted (structural limit)

USAGE:
  _, err := book.Save(ctx, customer)
  var vErr *tailor.ValidationError
  if errors.As(err, &vErr) {
      for _, v := range vErr.Violations { ... }
  }

SEE ALSO:
  - validate.go: Produces ValidationError
  - idgen.go: Produces ExhaustionError
  - api/handlers.go: Maps errors to HTTP status codes
*/
package tailor

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInitialization is returned when durable storage cannot be opened or migrated.
	ErrInitialization = errors.New("storage initialization failed")

	// ErrValidation is returned when a record violates an invariant.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicateID is returned when an active record already holds the id.
	ErrDuplicateID = errors.New("duplicate customer id")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("customer not found")

	// ErrIDSpaceExhausted is returned when every id in [1000, 9999] is in use.
	ErrIDSpaceExhausted = errors.New("customer id space exhausted")

	// ErrConcurrentModification is returned when the stored version differs from
	// the version the caller last read.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// ErrInvalidDocument is returned when an import document is malformed.
	ErrInvalidDocument = errors.New("invalid import document")

	// ErrBackupNotFound is returned when a referenced backup doesn't exist.
	ErrBackupNotFound = errors.New("backup not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InitializationError wraps the failure that prevented opening the store.
type InitializationError struct {
	Op  string
	Err error
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialize storage: %s: %v", e.Op, e.Err)
}

func (e *InitializationError) Unwrap() []error {
	return []error{ErrInitialization, e.Err}
}

// Violation is a single failed invariant.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every violated invariant, not only the first.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.Field + ": " + v.Message
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// Has reports whether a violation was recorded for field.
func (e *ValidationError) Has(field string) bool {
	for _, v := range e.Violations {
		if v.Field == field {
			return true
		}
	}
	return false
}

type DuplicateIDError struct {
	ID string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("customer %s already exists", e.ID)
}

func (e *DuplicateIDError) Unwrap() error {
	return ErrDuplicateID
}

type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("customer %s not found", e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ExhaustionError signals the structural capacity limit of the id space.
// It is not transient: retrying cannot succeed until ids are released.
type ExhaustionError struct {
	Capacity int
	Used     int
}

func (e *ExhaustionError) Error() string {
	return fmt.Sprintf("customer id space exhausted: %d of %d ids in use", e.Used, e.Capacity)
}

func (e *ExhaustionError) Unwrap() error {
	return ErrIDSpaceExhausted
}

// ConflictError reports a failed compare-and-swap on the record version.
type ConflictError struct {
	ID       string
	Expected int
	Actual   int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("customer %s: expected version %d, stored version %d", e.ID, e.Expected, e.Actual)
}

func (e *ConflictError) Unwrap() error {
	return ErrConcurrentModification
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrDuplicateID) ||
		errors.Is(err, ErrConcurrentModification) ||
		errors.Is(err, ErrInvalidDocument)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrBackupNotFound)
}

// IsFatal returns true for errors that retrying cannot fix.
func IsFatal(err error) bool {
	return errors.Is(err, ErrInitialization) || errors.Is(err, ErrIDSpaceExhausted)
}
