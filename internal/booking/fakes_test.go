package booking

import (
	"context"
	"sync"
	"time"

	"github.com/metinatakli/theatre-reservation-system/internal/domain"
	"github.com/metinatakli/theatre-reservation-system/internal/ledger"
)

type fakeCatalog struct {
	performances map[int]*domain.Performance
	err          error
}

func (c *fakeCatalog) GetPerformance(ctx context.Context, id int) (*domain.Performance, error) {
	if c.err != nil {
		return nil, c.err
	}

	performance, ok := c.performances[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	return performance, nil
}

func newPerformance(id, rows, seatsPerRow int) *domain.Performance {
	layout, err := domain.NewHallLayout(rows, seatsPerRow)
	if err != nil {
		panic(err)
	}

	return &domain.Performance{
		ID:       id,
		Play:     domain.Play{ID: 1, Title: "Hamlet"},
		Hall:     domain.Hall{ID: id, Name: "Main Stage", Layout: layout},
		ShowTime: time.Date(2025, 12, 1, 19, 30, 0, 0, time.UTC),
	}
}

// memStore is a reservation store that, like the Postgres one, refuses to
// sell a seat twice. Several coordinators can share it to behave like
// separate processes on one database.
type memStore struct {
	domain.ReservationRepository

	mu           sync.Mutex
	nextID       int
	reservations map[int]*domain.Reservation
	sold         map[int]map[domain.Seat]int
}

func newMemStore() *memStore {
	return &memStore{
		reservations: make(map[int]*domain.Reservation),
		sold:         make(map[int]map[domain.Seat]int),
	}
}

func (s *memStore) Create(ctx context.Context, reservation *domain.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sold := s.sold[reservation.PerformanceID]
	if sold == nil {
		sold = make(map[domain.Seat]int)
		s.sold[reservation.PerformanceID] = sold
	}

	var taken []domain.Seat
	for _, ticket := range reservation.Tickets {
		if _, ok := sold[ticket.Seat]; ok {
			taken = append(taken, ticket.Seat)
		}
	}

	if len(taken) > 0 {
		return &domain.SeatAlreadyTakenError{Seats: taken}
	}

	s.nextID++
	reservation.ID = s.nextID

	for i := range reservation.Tickets {
		reservation.Tickets[i].ID = s.nextID*100 + i
		reservation.Tickets[i].ReservationID = reservation.ID
		sold[reservation.Tickets[i].Seat] = reservation.ID
	}

	s.reservations[reservation.ID] = cloneReservation(reservation)

	return nil
}

func (s *memStore) Delete(ctx context.Context, id int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservation, ok := s.reservations[id]
	if !ok {
		return domain.ErrRecordNotFound
	}

	for _, ticket := range reservation.Tickets {
		delete(s.sold[reservation.PerformanceID], ticket.Seat)
	}
	delete(s.reservations, id)

	return nil
}

func (s *memStore) GetByID(ctx context.Context, id int) (*domain.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reservation, ok := s.reservations[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	return cloneReservation(reservation), nil
}

func (s *memStore) GetSeatClaimsByPerformanceID(ctx context.Context, performanceID int) ([]domain.SeatClaim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	claims := make([]domain.SeatClaim, 0, len(s.sold[performanceID]))
	for seat, id := range s.sold[performanceID] {
		claims = append(claims, domain.SeatClaim{
			Seat:  seat,
			Owner: s.reservations[id].Reference.String(),
		})
	}

	return claims, nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.reservations)
}

func cloneReservation(r *domain.Reservation) *domain.Reservation {
	clone := *r
	clone.Tickets = append([]domain.Ticket(nil), r.Tickets...)
	return &clone
}

// lostReplyLedger applies every claim and then reports a timeout, like a
// Redis call whose reply never arrived.
type lostReplyLedger struct {
	*ledger.Memory
}

func (l lostReplyLedger) TryClaim(ctx context.Context, performanceID int, owner string, seats []domain.Seat) error {
	err := l.Memory.TryClaim(ctx, performanceID, owner, seats)
	if err != nil {
		return err
	}

	return context.DeadlineExceeded
}
