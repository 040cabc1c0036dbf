package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors
var (
	ErrNotFound        = errors.New("not found")
	ErrClaimConflict   = errors.New("claim conflict")
	ErrVersionConflict = errors.New("concurrent modification")
	ErrDuplicate       = errors.New("already exists")
	ErrSessionInactive = errors.New("no active session")
)

// ValidationError rejects a command before anything is persisted. State
// carries the authoritative resource when the rejection depends on it.
type ValidationError struct {
	Field   string
	Message string
	State   any
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// InvalidStateError is returned when a transition is attempted from a
// status that does not allow it.
type InvalidStateError struct {
	Resource string
	ID       string
	Status   string
	Action   string
	State    any
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s %s %s in status %s", e.Action, e.Resource, e.ID, e.Status)
}

// ConcurrentTaskError means the worker already holds an open task
type ConcurrentTaskError struct {
	WorkerID       string
	ExistingTaskID string
}

func (e *ConcurrentTaskError) Error() string {
	return fmt.Sprintf("worker %s already holds task %s", e.WorkerID, e.ExistingTaskID)
}

// CapacityError means the zone is at its active-worker cap. It never leaves
// the assignment coordinator.
type CapacityError struct {
	Zone   string
	Active int
	Max    int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("zone %s at capacity (%d/%d)", e.Zone, e.Active, e.Max)
}

// AlreadyReleasedError is returned when releasing a wave that left DRAFT
type AlreadyReleasedError struct {
	WaveID string
	Status WaveStatus
	State  any
}

func (e *AlreadyReleasedError) Error() string {
	return fmt.Sprintf("wave %s already released (status %s)", e.WaveID, e.Status)
}

// EmptyWaveError is returned when no picklist is eligible at release time
type EmptyWaveError struct {
	WaveID string
}

func (e *EmptyWaveError) Error() string {
	return fmt.Sprintf("wave %s has no eligible picklists", e.WaveID)
}

// NotFoundError names the missing resource
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// IsNotFound reports whether err is or wraps ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
