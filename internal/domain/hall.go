package domain

import "fmt"

// HallLayout is the immutable seating grid of a theatre hall.
type HallLayout struct {
	rows        int
	seatsPerRow int
}

// NewHallLayout returns ErrInvalidHallLayout unless both dimensions are positive.
func NewHallLayout(rows, seatsPerRow int) (HallLayout, error) {
	if rows < 1 || seatsPerRow < 1 {
		return HallLayout{}, fmt.Errorf("%w: got %d rows and %d seats per row", ErrInvalidHallLayout, rows, seatsPerRow)
	}

	return HallLayout{rows: rows, seatsPerRow: seatsPerRow}, nil
}

func (h HallLayout) Rows() int {
	return h.rows
}

func (h HallLayout) SeatsPerRow() int {
	return h.seatsPerRow
}

func (h HallLayout) Capacity() int {
	return h.rows * h.seatsPerRow
}

func (h HallLayout) IsValidSeat(row, number int) bool {
	return row >= 1 && row <= h.rows && number >= 1 && number <= h.seatsPerRow
}

// ValidateSeats checks seats in the given order and reports the first one
// outside of the layout.
func (h HallLayout) ValidateSeats(seats []Seat) error {
	for _, seat := range seats {
		if !h.IsValidSeat(seat.Row, seat.Number) {
			return &SeatOutOfBoundsError{Seat: seat}
		}
	}

	return nil
}

type Hall struct {
	ID     int
	Name   string
	Layout HallLayout
}
