package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")

	// ErrConcurrencyConflict is returned by stores when a commit loses a write race.
	ErrConcurrencyConflict = errors.New("concurrent write conflict")
	// ErrStoreUnavailable wraps transient I/O failures of the backing store.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrObjectStore wraps failures of the image object store.
	ErrObjectStore = errors.New("object store failure")
)

// ValidationError carries a human readable reason and, for room related
// failures, the room numbers (or ids when unknown) that caused it.
type ValidationError struct {
	Reason string
	Rooms  []string
}

func (e *ValidationError) Error() string {
	if len(e.Rooms) == 0 {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, strings.Join(e.Rooms, ", "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Invalid(reason string) error { return &ValidationError{Reason: reason} }

func InvalidRooms(reason string, rooms []string) error {
	return &ValidationError{Reason: reason, Rooms: rooms}
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func NotFound(resource string, id int64) error {
	return &NotFoundError{Resource: resource, ID: fmt.Sprint(id)}
}
