// Package repository defines error types that are reused across
// multiple repositories. These sentinel values allow higher layers
// such as handlers to distinguish between different failure
// scenarios and map them onto HTTP statuses.
package repository

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a lookup by id yields no row.
// Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an operation cannot proceed because of
// conflicting state, such as reserving a seat that is no longer
// available. Handlers should translate this into an HTTP 409
// response.
var ErrConflict = errors.New("conflict")

// ErrInvalidState is returned when a record is not in the status an
// operation requires, such as refunding a payment that was never
// completed.
var ErrInvalidState = errors.New("invalid state")

// SeatUnavailableError reports the first seat that failed an
// availability check. It matches ErrConflict under errors.Is so
// callers can branch on the category without losing the seat label.
type SeatUnavailableError struct {
	SeatNumber string
}

func (e *SeatUnavailableError) Error() string {
	return fmt.Sprintf("seat %s is not available", e.SeatNumber)
}

// Is makes errors.Is(err, ErrConflict) hold for seat conflicts.
func (e *SeatUnavailableError) Is(target error) bool {
	return target == ErrConflict
}
