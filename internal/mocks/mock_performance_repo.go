package mocks

import (
	"context"

	"github.com/metinatakli/theatre-reservation-system/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockPerformanceRepo struct {
	mock.Mock
	domain.PerformanceRepository
}

func (m *MockPerformanceRepo) GetPerformance(ctx context.Context, id int) (*domain.Performance, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Performance), args.Error(1)
}

func (m *MockPerformanceRepo) ListPerformances(
	ctx context.Context,
	pagination domain.Pagination) ([]domain.PerformanceSummary, *domain.Metadata, error) {

	args := m.Called(ctx, pagination)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]domain.PerformanceSummary), args.Get(1).(*domain.Metadata), args.Error(2)
}
