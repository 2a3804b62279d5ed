package domain

import (
	"context"
	"time"
)

type Play struct {
	ID          int
	Title       string
	Description string
}

// Performance is a scheduled showing of a play in exactly one hall.
type Performance struct {
	ID       int
	Play     Play
	Hall     Hall
	ShowTime time.Time
}

type PerformanceSummary struct {
	Performance
	TicketsAvailable int
}

// PerformanceCatalog is the lookup the booking core consumes. GetPerformance
// returns ErrRecordNotFound for unknown IDs.
type PerformanceCatalog interface {
	GetPerformance(ctx context.Context, id int) (*Performance, error)
}

type PerformanceRepository interface {
	PerformanceCatalog
	ListPerformances(ctx context.Context, pagination Pagination) ([]PerformanceSummary, *Metadata, error)
}

// SeatAvailability is a point-in-time view of a performance's occupancy.
type SeatAvailability struct {
	Performance *Performance
	Occupied    []Seat
}

func (a SeatAvailability) Capacity() int {
	return a.Performance.Hall.Layout.Capacity()
}

func (a SeatAvailability) Available() int {
	return a.Capacity() - len(a.Occupied)
}

func (a SeatAvailability) IsOccupied(seat Seat) bool {
	for _, s := range a.Occupied {
		if s == seat {
			return true
		}
	}

	return false
}
