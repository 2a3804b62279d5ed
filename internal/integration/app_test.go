package integration_test

import (
	"log/slog"
	"os"

	"github.com/alexedwards/scs/v2"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/theatre-reservation-system/internal/app"
	"github.com/metinatakli/theatre-reservation-system/internal/booking"
	"github.com/metinatakli/theatre-reservation-system/internal/repository"
	appvalidator "github.com/metinatakli/theatre-reservation-system/internal/validator"
	"github.com/redis/go-redis/v9"
)

type TestApp struct {
	App             *app.Application
	Config          app.Config
	DB              *pgxpool.Pool
	RedisClient     *redis.Client
	SessionManager  *scs.SessionManager
	PerformanceRepo *repository.PostgresPerformanceRepository
	ReservationRepo *repository.PostgresReservationRepository
	Coordinator     *booking.Coordinator

	logger    *slog.Logger
	validator *validator.Validate
}

func newTestApp(cfg app.Config) (*TestApp, error) {
	db, err := app.NewDatabasePool(cfg)
	if err != nil {
		return nil, err
	}

	redisClient, err := app.NewRedisClient(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	testApp := &TestApp{
		Config:          cfg,
		DB:              db,
		RedisClient:     redisClient,
		SessionManager:  app.NewSessionManager(redisClient),
		PerformanceRepo: repository.NewPostgresPerformanceRepository(db),
		ReservationRepo: repository.NewPostgresReservationRepository(db),
		logger:          slog.New(slog.NewTextHandler(os.Stderr, nil)),
		validator:       appvalidator.NewValidator(),
	}

	err = testApp.rebuild()
	if err != nil {
		testApp.Close()
		return nil, err
	}

	return testApp, nil
}

// newCoordinator builds a coordinator with its own ledger over the shared
// database, the way a second process would.
func (a *TestApp) newCoordinator(cfg app.Config, opts ...booking.Option) (*booking.Coordinator, error) {
	ledger, err := app.NewTicketLedger(cfg, a.RedisClient, a.ReservationRepo)
	if err != nil {
		return nil, err
	}

	return booking.NewCoordinator(
		a.PerformanceRepo,
		ledger,
		a.ReservationRepo,
		append([]booking.Option{booking.WithLogger(a.logger)}, opts...)...,
	)
}

// rebuild replaces the coordinator so an in-process ledger is seeded again
// from the current database state.
func (a *TestApp) rebuild() error {
	coordinator, err := a.newCoordinator(a.Config)
	if err != nil {
		return err
	}

	a.Coordinator = coordinator
	a.App = app.NewApp(
		a.Config,
		a.logger,
		a.validator,
		a.SessionManager,
		a.PerformanceRepo,
		a.ReservationRepo,
		coordinator,
	)

	return nil
}

func (a *TestApp) Close() {
	a.RedisClient.Close()
	a.DB.Close()
}
