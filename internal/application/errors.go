package application

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when the referenced point or claim no longer exists.
	ErrNotFound = errors.New("application: not found")
	// ErrForbidden is returned when the acting principal does not own the resource.
	ErrForbidden = errors.New("application: forbidden")
	// ErrConflict is returned when another recycler already holds the point.
	ErrConflict = errors.New("application: conflict")
	// ErrAlreadyTerminal is returned when a claim has already been cancelled or completed.
	ErrAlreadyTerminal = errors.New("application: claim already terminal")
	// ErrTransientStorage is returned for connectivity and timeout failures of the store.
	ErrTransientStorage = errors.New("application: transient storage failure")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// add records a field level validation error.
func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// merge copies entries from another validation error into the receiver.
func (v *ValidationError) merge(other *ValidationError) {
	if other == nil || len(other.FieldErrors) == 0 {
		return
	}
	for field, msg := range other.FieldErrors {
		v.add(field, msg)
	}
}

// PenaltyError reports that the recycler cancelled this point recently and
// may claim it again at AvailableAt.
type PenaltyError struct {
	PointID     string
	AvailableAt time.Time
}

func (e *PenaltyError) Error() string {
	return fmt.Sprintf("point %s is on penalty until %s", e.PointID, e.AvailableAt.UTC().Format(time.RFC3339))
}

// Unwrap lets callers treat a penalty as ErrForbidden.
func (e *PenaltyError) Unwrap() error {
	return ErrForbidden
}
