package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Reservation struct {
	ID            int
	Reference     uuid.UUID
	UserID        int
	PerformanceID int
	CreatedAt     time.Time
	Tickets       []Ticket
}

type Ticket struct {
	ID            int
	ReservationID int
	PerformanceID int
	Seat          Seat
}

// NewReservation builds an uncommitted reservation holding one ticket per
// seat, in the given order.
func NewReservation(userID, performanceID int, seats []Seat, createdAt time.Time) *Reservation {
	tickets := make([]Ticket, len(seats))
	for i, seat := range seats {
		tickets[i] = Ticket{PerformanceID: performanceID, Seat: seat}
	}

	return &Reservation{
		Reference:     uuid.New(),
		UserID:        userID,
		PerformanceID: performanceID,
		CreatedAt:     createdAt,
		Tickets:       tickets,
	}
}

func (r *Reservation) Seats() []Seat {
	seats := make([]Seat, len(r.Tickets))
	for i, ticket := range r.Tickets {
		seats[i] = ticket.Seat
	}

	return seats
}

// ReservationSummary is a reservation joined with its catalog details, used
// for listings.
type ReservationSummary struct {
	Reservation
	PlayTitle string
	HallName  string
	ShowTime  time.Time
}

// ReservationRepository persists reservations together with their tickets.
// Create is all-or-nothing; when the store detects a seat that is already
// sold it returns *SeatAlreadyTakenError.
type ReservationRepository interface {
	Create(ctx context.Context, reservation *Reservation) error
	Delete(ctx context.Context, id int) error
	GetByID(ctx context.Context, id int) (*Reservation, error)
	GetSummariesByUserID(ctx context.Context, userID int, pagination Pagination) ([]ReservationSummary, *Metadata, error)
	GetSeatClaimsByPerformanceID(ctx context.Context, performanceID int) ([]SeatClaim, error)
}

// SeatClaim is a seat held in the ledger on behalf of a reservation. Owner
// is the reservation reference. ClaimedAt is zero for claims loaded from
// committed reservations.
type SeatClaim struct {
	Seat      Seat
	Owner     string
	ClaimedAt time.Time
}

// TicketLedger is the authoritative occupancy record per performance.
// TryClaim marks every seat of the batch as held by owner or none of them;
// on conflict it returns *SeatAlreadyTakenError. Release only frees seats
// held by owner. Restore adds claims for seats nobody holds.
type TicketLedger interface {
	OccupiedSeats(ctx context.Context, performanceID int) ([]Seat, error)
	TryClaim(ctx context.Context, performanceID int, owner string, seats []Seat) error
	Release(ctx context.Context, performanceID int, owner string, seats []Seat) error
	Claims(ctx context.Context, performanceID int, seats []Seat) ([]SeatClaim, error)
	Restore(ctx context.Context, performanceID int, claims []SeatClaim) error
}
