package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrRecordNotFound         = errors.New("record not found")
	ErrInvalidHallLayout      = errors.New("hall layout must have a positive number of rows and seats per row")
	ErrPerformanceNotFound    = errors.New("performance not found")
	ErrReservationNotFound    = errors.New("reservation not found")
	ErrEmptyReservation       = errors.New("reservation must contain at least one seat")
	ErrDuplicateSeatInRequest = errors.New("seat requested more than once")
	ErrSeatOutOfBounds        = errors.New("seat is outside of the hall layout")
	ErrSeatAlreadyTaken       = errors.New("seat(s) are already taken")
	ErrPersistenceFailure     = errors.New("reservation could not be persisted")
)

type DuplicateSeatError struct {
	Seat Seat
}

func (e *DuplicateSeatError) Error() string {
	return fmt.Sprintf("%s is requested more than once", e.Seat)
}

func (e *DuplicateSeatError) Unwrap() error {
	return ErrDuplicateSeatInRequest
}

type SeatOutOfBoundsError struct {
	Seat Seat
}

func (e *SeatOutOfBoundsError) Error() string {
	return fmt.Sprintf("%s is outside of the hall layout", e.Seat)
}

func (e *SeatOutOfBoundsError) Unwrap() error {
	return ErrSeatOutOfBounds
}

// SeatAlreadyTakenError lists the requested seats that collided with
// committed tickets, in request order.
type SeatAlreadyTakenError struct {
	Seats []Seat
}

func (e *SeatAlreadyTakenError) Error() string {
	seats := make([]string, len(e.Seats))
	for i, seat := range e.Seats {
		seats[i] = seat.String()
	}

	return fmt.Sprintf("%s: %s", ErrSeatAlreadyTaken, strings.Join(seats, ", "))
}

func (e *SeatAlreadyTakenError) Unwrap() error {
	return ErrSeatAlreadyTaken
}

// PersistenceError wraps a storage failure that happened after seats were
// claimed. The claim has already been released when this error is returned.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", ErrPersistenceFailure, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	return []error{ErrPersistenceFailure, e.Err}
}

// IsRetryable reports whether a booking may succeed when retried: with a
// different selection for seat conflicts, as-is for persistence failures.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrSeatAlreadyTaken) || errors.Is(err, ErrPersistenceFailure)
}
