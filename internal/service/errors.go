package service

import (
	"errors"
	"fmt"

	"equipment_service/internal/models"
	"equipment_service/internal/repository"
)

// ValidationError reports a missing or malformed input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidStateError reports a transition that is not allowed from the current state.
type InvalidStateError struct {
	Entity models.EntityKind
	ID     string
	State  string
	Op     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s %s %s in state %s", e.Op, e.Entity, e.ID, e.State)
}

// ConflictError reports a duplicate schedule or a lost optimistic update.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Reason
}

type InsufficientStockError struct {
	PartID    string
	Requested int
	OnHand    int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for part %s: requested %d, on hand %d", e.PartID, e.Requested, e.OnHand)
}

type NoAgentAvailableError struct {
	Category string
}

func (e *NoAgentAvailableError) Error() string {
	return fmt.Sprintf("no agent available for category %q", e.Category)
}

type NotFoundError struct {
	Entity models.EntityKind
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// InfrastructureError wraps an unexpected record store failure.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error { return e.Err }

// ErrForbidden is returned when the capability check denies an action.
var ErrForbidden = errors.New("action not permitted")

func isDomainError(err error) bool {
	var (
		v  *ValidationError
		s  *InvalidStateError
		c  *ConflictError
		st *InsufficientStockError
		na *NoAgentAvailableError
		nf *NotFoundError
		ie *InfrastructureError
	)
	return errors.As(err, &v) || errors.As(err, &s) || errors.As(err, &c) ||
		errors.As(err, &st) || errors.As(err, &na) || errors.As(err, &nf) ||
		errors.As(err, &ie) || errors.Is(err, ErrForbidden)
}

// storeErr maps repository failures onto the domain taxonomy.
func storeErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case isDomainError(err):
		return err
	case errors.Is(err, repository.ErrStaleVersion):
		return &ConflictError{Reason: op + ": record was modified concurrently"}
	case errors.Is(err, repository.ErrDuplicate):
		return &ConflictError{Reason: op + ": a record with the same key already exists"}
	default:
		return &InfrastructureError{Op: op, Err: err}
	}
}

// notFound converts repository.ErrNotFound for the given entity.
func notFound(entity models.EntityKind, id string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return err
}
