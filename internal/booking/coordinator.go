// Package booking turns seat requests into committed reservations. It owns
// the ordered validation pipeline and the critical section in which seats
// are claimed and persisted.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/metinatakli/theatre-reservation-system/internal/domain"
	"github.com/metinatakli/theatre-reservation-system/internal/events"
	"github.com/metinatakli/theatre-reservation-system/internal/guard"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/metinatakli/theatre-reservation-system/internal/booking"

const defaultCommitTimeout = 5 * time.Second

type Coordinator struct {
	catalog   domain.PerformanceCatalog
	ledger    domain.TicketLedger
	store     domain.ReservationRepository
	publisher events.Publisher
	guard     *guard.KeyedMutex[int]
	logger    *slog.Logger
	now       func() time.Time

	// commitTimeout bounds the claim, persist and compensation steps once
	// the critical section is entered. A claim older than twice that with
	// no committed reservation behind it is considered abandoned.
	commitTimeout time.Duration

	meterProvider metric.MeterProvider
	tracer        trace.Tracer
	metrics       *metrics
}

type Option func(*Coordinator)

func WithPublisher(publisher events.Publisher) Option {
	return func(c *Coordinator) {
		c.publisher = publisher
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithClock overrides the source of reservation timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

// WithCommitTimeout bounds the work done inside the critical section.
// Non-positive values keep the default.
func WithCommitTimeout(timeout time.Duration) Option {
	return func(c *Coordinator) {
		if timeout > 0 {
			c.commitTimeout = timeout
		}
	}
}

func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(c *Coordinator) {
		c.meterProvider = provider
	}
}

func NewCoordinator(
	catalog domain.PerformanceCatalog,
	ledger domain.TicketLedger,
	store domain.ReservationRepository,
	opts ...Option) (*Coordinator, error) {

	c := &Coordinator{
		catalog:       catalog,
		ledger:        ledger,
		store:         store,
		publisher:     events.NopPublisher{},
		guard:         guard.New[int](),
		logger:        slog.New(slog.DiscardHandler),
		now:           time.Now,
		commitTimeout: defaultCommitTimeout,
		meterProvider: otel.GetMeterProvider(),
		tracer:        otel.Tracer(instrumentationName),
	}

	for _, opt := range opts {
		opt(c)
	}

	m, err := newMetrics(c.meterProvider.Meter(instrumentationName))
	if err != nil {
		return nil, err
	}
	c.metrics = m

	return c, nil
}

// CreateReservation books the given seats of a performance for a user. The
// request is checked in a fixed order: non-empty, no duplicate coordinates,
// known performance, every seat inside the hall. Seats are then claimed and
// persisted while holding the performance's critical section, so either all
// of them are sold to the new reservation or none are.
func (c *Coordinator) CreateReservation(
	ctx context.Context,
	performanceID, userID int,
	seats []domain.Seat) (*domain.Reservation, error) {

	ctx, span := c.tracer.Start(ctx, "booking.CreateReservation", trace.WithAttributes(
		attribute.Int("performance.id", performanceID),
		attribute.Int("seats.count", len(seats)),
	))
	defer span.End()

	reservation, err := c.createReservation(ctx, performanceID, userID, seats)
	if err != nil {
		c.metrics.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", rejectionReason(err))))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	c.metrics.created.Add(ctx, 1)
	span.SetAttributes(attribute.Int("reservation.id", reservation.ID))

	c.publish(ctx, events.TypeReservationCreated, reservation)

	return reservation, nil
}

func (c *Coordinator) createReservation(
	ctx context.Context,
	performanceID, userID int,
	seats []domain.Seat) (*domain.Reservation, error) {

	if len(seats) == 0 {
		return nil, domain.ErrEmptyReservation
	}

	if seat, ok := domain.FirstDuplicate(seats); ok {
		return nil, &domain.DuplicateSeatError{Seat: seat}
	}

	performance, err := c.getPerformance(ctx, performanceID)
	if err != nil {
		return nil, err
	}

	err = performance.Hall.Layout.ValidateSeats(seats)
	if err != nil {
		return nil, err
	}

	unlock, err := c.lock(ctx, performanceID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// past this point the caller going away must not leave a half-done claim
	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.commitTimeout)
	defer cancel()

	reservation := domain.NewReservation(userID, performanceID, slices.Clone(seats), c.now().UTC())
	owner := reservation.Reference.String()

	err = c.claim(commitCtx, performanceID, owner, seats)
	if err != nil {
		return nil, err
	}

	err = c.store.Create(commitCtx, reservation)
	if err == nil {
		return reservation, nil
	}

	c.release(commitCtx, performanceID, owner, seats)

	var taken *domain.SeatAlreadyTakenError
	if errors.As(err, &taken) {
		c.logger.WarnContext(ctx, "seats sold by another instance",
			"performance_id", performanceID,
			"seats", taken.Seats)
		c.restoreCommitted(commitCtx, performanceID, taken.Seats)
		return nil, taken
	}

	if errors.Is(err, domain.ErrPerformanceNotFound) {
		return nil, domain.ErrPerformanceNotFound
	}

	return nil, &domain.PersistenceError{Err: err}
}

// claim holds seats for owner in the ledger. Conflicting claims that no
// committed reservation backs are dropped and the claim is tried once more.
// When the ledger fails without a verdict the claim may still have been
// applied, so it is released before returning.
func (c *Coordinator) claim(ctx context.Context, performanceID int, owner string, seats []domain.Seat) error {
	err := c.ledger.TryClaim(ctx, performanceID, owner, seats)

	var taken *domain.SeatAlreadyTakenError
	if errors.As(err, &taken) {
		reaped, reapErr := c.reapStaleClaims(ctx, performanceID, taken.Seats)
		if reapErr != nil {
			c.logger.ErrorContext(ctx, "failed to reconcile ledger with store",
				"performance_id", performanceID,
				"error", reapErr)
		}

		if reaped {
			err = c.ledger.TryClaim(ctx, performanceID, owner, seats)
		}
	}

	if err == nil {
		return nil
	}

	if errors.As(err, &taken) {
		c.logger.WarnContext(ctx, "seats already taken",
			"performance_id", performanceID,
			"seats", taken.Seats)
		return taken
	}

	c.release(ctx, performanceID, owner, seats)

	return fmt.Errorf("failed to claim seats: %w", err)
}

// reapStaleClaims releases ledger claims on seats that no committed
// reservation holds, unless they are recent enough to belong to a commit
// still in progress elsewhere. Claims loaded from the store carry no time
// and are reaped as soon as the store no longer backs them.
func (c *Coordinator) reapStaleClaims(ctx context.Context, performanceID int, seats []domain.Seat) (bool, error) {
	claims, err := c.ledger.Claims(ctx, performanceID, seats)
	if err != nil {
		return false, fmt.Errorf("failed to read seat claims: %w", err)
	}

	lease := 2 * c.commitTimeout

	candidates := make([]domain.SeatClaim, 0, len(claims))
	for _, claim := range claims {
		if claim.ClaimedAt.IsZero() || time.Since(claim.ClaimedAt) >= lease {
			candidates = append(candidates, claim)
		}
	}

	if len(candidates) == 0 {
		return false, nil
	}

	committed, err := c.store.GetSeatClaimsByPerformanceID(ctx, performanceID)
	if err != nil {
		return false, fmt.Errorf("failed to load committed seats: %w", err)
	}

	holders := make(map[domain.Seat]string, len(committed))
	for _, claim := range committed {
		holders[claim.Seat] = claim.Owner
	}

	stale := make(map[string][]domain.Seat)
	for _, claim := range candidates {
		if holders[claim.Seat] != claim.Owner {
			stale[claim.Owner] = append(stale[claim.Owner], claim.Seat)
		}
	}

	for owner, ownerSeats := range stale {
		err = c.ledger.Release(ctx, performanceID, owner, ownerSeats)
		if err != nil {
			return false, fmt.Errorf("failed to release stale claims: %w", err)
		}

		c.logger.WarnContext(ctx, "released seats claimed without a committed reservation",
			"performance_id", performanceID,
			"owner", owner,
			"seats", ownerSeats)
	}

	return len(stale) > 0, nil
}

// restoreCommitted puts the committed holders of seats back into the ledger
// after the store refused them, so the next request is rejected early.
func (c *Coordinator) restoreCommitted(ctx context.Context, performanceID int, seats []domain.Seat) {
	committed, err := c.store.GetSeatClaimsByPerformanceID(ctx, performanceID)
	if err == nil {
		wanted := make(map[domain.Seat]struct{}, len(seats))
		for _, seat := range seats {
			wanted[seat] = struct{}{}
		}

		claims := slices.DeleteFunc(committed, func(claim domain.SeatClaim) bool {
			_, ok := wanted[claim.Seat]
			return !ok
		})

		err = c.ledger.Restore(ctx, performanceID, claims)
	}

	if err != nil {
		c.logger.ErrorContext(ctx, "failed to restore committed seats into ledger",
			"performance_id", performanceID,
			"seats", seats,
			"error", err)
	}
}

// CancelReservation removes a committed reservation and frees its seats. If
// the store cannot delete the reservation, its seats are claimed again so
// the ledger keeps matching what is persisted.
func (c *Coordinator) CancelReservation(ctx context.Context, reservationID int) (*domain.Reservation, error) {
	ctx, span := c.tracer.Start(ctx, "booking.CancelReservation", trace.WithAttributes(
		attribute.Int("reservation.id", reservationID),
	))
	defer span.End()

	reservation, err := c.cancelReservation(ctx, reservationID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	c.metrics.cancelled.Add(ctx, 1)

	c.publish(ctx, events.TypeReservationCancelled, reservation)

	return reservation, nil
}

func (c *Coordinator) cancelReservation(ctx context.Context, reservationID int) (*domain.Reservation, error) {
	reservation, err := c.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	unlock, err := c.lock(ctx, reservation.PerformanceID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	// it may have been cancelled while we were waiting
	reservation, err = c.GetReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.commitTimeout)
	defer cancel()

	owner := reservation.Reference.String()
	seats := reservation.Seats()

	err = c.ledger.Release(commitCtx, reservation.PerformanceID, owner, seats)
	if err != nil {
		return nil, fmt.Errorf("failed to release seats: %w", err)
	}

	err = c.store.Delete(commitCtx, reservationID)
	if err == nil {
		return reservation, nil
	}

	if errors.Is(err, domain.ErrRecordNotFound) {
		return nil, domain.ErrReservationNotFound
	}

	claims := make([]domain.SeatClaim, len(seats))
	for i, seat := range seats {
		claims[i] = domain.SeatClaim{Seat: seat, Owner: owner}
	}

	restoreErr := c.ledger.Restore(commitCtx, reservation.PerformanceID, claims)
	if restoreErr != nil {
		c.logger.ErrorContext(ctx, "failed to reclaim seats of reservation that could not be deleted",
			"reservation_id", reservationID,
			"performance_id", reservation.PerformanceID,
			"error", restoreErr)
	}

	return nil, &domain.PersistenceError{Err: err}
}

func (c *Coordinator) GetReservation(ctx context.Context, reservationID int) (*domain.Reservation, error) {
	reservation, err := c.store.GetByID(ctx, reservationID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, domain.ErrReservationNotFound
		}

		return nil, fmt.Errorf("failed to get reservation %d: %w", reservationID, err)
	}

	return reservation, nil
}

// Availability reports the occupied seats of a performance as recorded by
// the ledger.
func (c *Coordinator) Availability(ctx context.Context, performanceID int) (*domain.SeatAvailability, error) {
	performance, err := c.getPerformance(ctx, performanceID)
	if err != nil {
		return nil, err
	}

	occupied, err := c.ledger.OccupiedSeats(ctx, performanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to read occupied seats: %w", err)
	}

	return &domain.SeatAvailability{
		Performance: performance,
		Occupied:    occupied,
	}, nil
}

func (c *Coordinator) getPerformance(ctx context.Context, performanceID int) (*domain.Performance, error) {
	performance, err := c.catalog.GetPerformance(ctx, performanceID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, domain.ErrPerformanceNotFound
		}

		return nil, fmt.Errorf("failed to get performance %d: %w", performanceID, err)
	}

	return performance, nil
}

func (c *Coordinator) lock(ctx context.Context, performanceID int) (func(), error) {
	start := time.Now()

	unlock, err := c.guard.Lock(ctx, performanceID)

	c.metrics.guardWait.Record(ctx, float64(time.Since(start))/float64(time.Millisecond))

	if err != nil {
		return nil, fmt.Errorf("failed to enter critical section of performance %d: %w", performanceID, err)
	}

	return unlock, nil
}

// release undoes owner's claim after a failed commit. It runs on its own
// deadline so an expired or cancelled commit context still gets cleaned up.
func (c *Coordinator) release(ctx context.Context, performanceID int, owner string, seats []domain.Seat) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.commitTimeout)
	defer cancel()

	err := c.ledger.Release(ctx, performanceID, owner, seats)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to release claimed seats",
			"performance_id", performanceID,
			"owner", owner,
			"seats", seats,
			"error", err)
	}
}

func (c *Coordinator) publish(ctx context.Context, eventType string, reservation *domain.Reservation) {
	event := events.NewReservationEvent(eventType, reservation, c.now())

	err := c.publisher.Publish(context.WithoutCancel(ctx), event)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to publish reservation event",
			"type", eventType,
			"reservation_id", reservation.ID,
			"error", err)
	}
}
