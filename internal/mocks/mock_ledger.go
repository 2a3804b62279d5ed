package mocks

import (
	"context"

	"github.com/metinatakli/theatre-reservation-system/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) OccupiedSeats(ctx context.Context, performanceID int) ([]domain.Seat, error) {
	args := m.Called(ctx, performanceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Seat), args.Error(1)
}

func (m *MockLedger) TryClaim(ctx context.Context, performanceID int, owner string, seats []domain.Seat) error {
	args := m.Called(ctx, performanceID, owner, seats)
	return args.Error(0)
}

func (m *MockLedger) Release(ctx context.Context, performanceID int, owner string, seats []domain.Seat) error {
	args := m.Called(ctx, performanceID, owner, seats)
	return args.Error(0)
}

func (m *MockLedger) Claims(ctx context.Context, performanceID int, seats []domain.Seat) ([]domain.SeatClaim, error) {
	args := m.Called(ctx, performanceID, seats)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SeatClaim), args.Error(1)
}

func (m *MockLedger) Restore(ctx context.Context, performanceID int, claims []domain.SeatClaim) error {
	args := m.Called(ctx, performanceID, claims)
	return args.Error(0)
}
