package mocks

import (
	"context"

	"github.com/metinatakli/theatre-reservation-system/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockCoordinator struct {
	mock.Mock
}

func (m *MockCoordinator) CreateReservation(
	ctx context.Context,
	performanceID, userID int,
	seats []domain.Seat) (*domain.Reservation, error) {

	args := m.Called(ctx, performanceID, userID, seats)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockCoordinator) CancelReservation(ctx context.Context, reservationID int) (*domain.Reservation, error) {
	args := m.Called(ctx, reservationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockCoordinator) GetReservation(ctx context.Context, reservationID int) (*domain.Reservation, error) {
	args := m.Called(ctx, reservationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockCoordinator) Availability(ctx context.Context, performanceID int) (*domain.SeatAvailability, error) {
	args := m.Called(ctx, performanceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SeatAvailability), args.Error(1)
}
