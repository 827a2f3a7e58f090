/*
errors.go - Centralized error types for the recognition engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The HTTP layer maps these to status codes; services wrap them with context.

ERROR CATEGORIES:
  1. NotFound     - criteria, entry, approval, leaderboard, member absent
  2. Conflict     - actor or owner does not match the approval record
  3. InvalidState - acting on a track that is not pending
  4. Validation   - malformed input
  5. Drift        - bucket arithmetic would go negative; clamped and logged,
                    never returned to callers (see ledger.go)

USAGE:
    if generic.IsNotFound(err) {
        writeError(w, http.StatusNotFound, "Entry not found", err)
    }

SEE ALSO:
  - workflow.go: Raises NotFound/Conflict/InvalidState
  - ledger.go:   Clamps drift
  - api/handlers.go: Maps errors to HTTP status
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when the records involved in an operation
	// disagree, e.g. an entry whose owner is not the leaderboard owner.
	ErrConflict = errors.New("conflict")

	// ErrForbidden is returned when the acting employee is not the approver
	// recorded on the approval entry.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidState is returned when a transition is not allowed from the
	// current approval state.
	ErrInvalidState = errors.New("invalid state")

	// ErrValidation is returned for malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrDuplicate is returned when a unique key already exists.
	ErrDuplicate = errors.New("duplicate")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError names the missing record.
type NotFoundError struct {
	Kind string // "criteria", "reward entry", "approval entry", ...
	ID   string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Kind + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

func notFound(kind string, id any) error {
	return &NotFoundError{Kind: kind, ID: fmt.Sprint(id)}
}

// ConflictError describes an integrity mismatch between records.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return "conflict: " + e.Message }

func (e *ConflictError) Unwrap() error { return ErrConflict }

// ForbiddenError describes an actor that may not perform an action.
type ForbiddenError struct {
	ActorID EmployeeID
	Action  string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("employee %s may not %s", e.ActorID, e.Action)
}

func (e *ForbiddenError) Unwrap() error { return ErrForbidden }

// Is makes a forbidden actor match ErrConflict as well.
func (e *ForbiddenError) Is(target error) bool { return target == ErrConflict }

// InvalidStateError reports a rejected transition.
type InvalidStateError struct {
	State  ApprovalState
	Action string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s: approval is %s", e.Action, e.State)
}

func (e *InvalidStateError) Unwrap() error { return ErrInvalidState }

// ValidationError points at the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true for actor and owner mismatches.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsClientError returns true if the error is due to the caller's request.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrDuplicate)
}
