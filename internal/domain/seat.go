package domain

import (
	"cmp"
	"fmt"
	"slices"
)

// Seat is a 1-indexed (row, seat number) coordinate inside a hall.
type Seat struct {
	Row    int
	Number int
}

func (s Seat) String() string {
	return fmt.Sprintf("row %d seat %d", s.Row, s.Number)
}

// SortSeats orders seats by row, then by seat number.
func SortSeats(seats []Seat) {
	slices.SortFunc(seats, func(a, b Seat) int {
		if c := cmp.Compare(a.Row, b.Row); c != 0 {
			return c
		}

		return cmp.Compare(a.Number, b.Number)
	})
}

// FirstDuplicate returns the first seat that appears more than once, in request order.
func FirstDuplicate(seats []Seat) (Seat, bool) {
	seen := make(map[Seat]struct{}, len(seats))

	for _, seat := range seats {
		if _, ok := seen[seat]; ok {
			return seat, true
		}

		seen[seat] = struct{}{}
	}

	return Seat{}, false
}
