package booking

import (
	"errors"

	"github.com/metinatakli/theatre-reservation-system/internal/domain"
	"go.opentelemetry.io/otel/metric"
)

type metrics struct {
	created   metric.Int64Counter
	rejected  metric.Int64Counter
	cancelled metric.Int64Counter
	guardWait metric.Float64Histogram
}

func newMetrics(meter metric.Meter) (*metrics, error) {
	created, err := meter.Int64Counter("reservations.created",
		metric.WithDescription("Number of committed reservations"))
	if err != nil {
		return nil, err
	}

	rejected, err := meter.Int64Counter("reservations.rejected",
		metric.WithDescription("Number of reservation requests that were not committed, by reason"))
	if err != nil {
		return nil, err
	}

	cancelled, err := meter.Int64Counter("reservations.cancelled",
		metric.WithDescription("Number of cancelled reservations"))
	if err != nil {
		return nil, err
	}

	guardWait, err := meter.Float64Histogram("booking.guard.wait",
		metric.WithDescription("Time spent waiting for a performance's critical section"),
		metric.WithUnit("ms"))
	if err != nil {
		return nil, err
	}

	return &metrics{
		created:   created,
		rejected:  rejected,
		cancelled: cancelled,
		guardWait: guardWait,
	}, nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyReservation):
		return "empty"
	case errors.Is(err, domain.ErrDuplicateSeatInRequest):
		return "duplicate_seat"
	case errors.Is(err, domain.ErrPerformanceNotFound):
		return "performance_not_found"
	case errors.Is(err, domain.ErrSeatOutOfBounds):
		return "seat_out_of_bounds"
	case errors.Is(err, domain.ErrSeatAlreadyTaken):
		return "seat_taken"
	case errors.Is(err, domain.ErrPersistenceFailure):
		return "persistence"
	default:
		return "error"
	}
}
