package repository

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("conflict")
	ErrReferenced = errors.New("referenced by other records")
	ErrNoFields   = errors.New("no fields to update")

	// ErrSerialization marks a transaction the database aborted to keep
	// serializable isolation. The whole transaction may be retried.
	ErrSerialization = errors.New("serialization failure")
)

// SeatConflictError reports that the active-seat uniqueness index rejected
// an insert. SeatCode is empty when the store did not say which seat collided.
type SeatConflictError struct {
	TripID   int64
	SeatCode string
}

func (e *SeatConflictError) Error() string {
	if e.SeatCode == "" {
		return fmt.Sprintf("seat conflict on trip %d", e.TripID)
	}
	return fmt.Sprintf("seat %s already taken on trip %d", e.SeatCode, e.TripID)
}

func (e *SeatConflictError) Unwrap() error { return ErrConflict }
