package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/goredisstore"
	"github.com/alexedwards/scs/v2"
	"github.com/exaring/otelpgx"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/metinatakli/theatre-reservation-system/internal/booking"
	"github.com/metinatakli/theatre-reservation-system/internal/domain"
	"github.com/metinatakli/theatre-reservation-system/internal/events"
	"github.com/metinatakli/theatre-reservation-system/internal/ledger"
	"github.com/metinatakli/theatre-reservation-system/internal/repository"
	appvalidator "github.com/metinatakli/theatre-reservation-system/internal/validator"
	"github.com/metinatakli/theatre-reservation-system/internal/vcs"
	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

const serviceName = "theatre-reservation-api"

const (
	LedgerMemory = "memory"
	LedgerRedis  = "redis"
)

var (
	version = vcs.Version()
)

// ReservationCoordinator is the booking core as seen by the HTTP handlers.
type ReservationCoordinator interface {
	CreateReservation(ctx context.Context, performanceID, userID int, seats []domain.Seat) (*domain.Reservation, error)
	CancelReservation(ctx context.Context, reservationID int) (*domain.Reservation, error)
	GetReservation(ctx context.Context, reservationID int) (*domain.Reservation, error)
	Availability(ctx context.Context, performanceID int) (*domain.SeatAvailability, error)
}

type Application struct {
	config         Config
	logger         *slog.Logger
	validator      *validator.Validate
	sessionManager *scs.SessionManager

	performanceRepo domain.PerformanceRepository
	reservationRepo domain.ReservationRepository
	coordinator     ReservationCoordinator
}

type Config struct {
	Port             int
	Env              string
	OtelCollectorUrl string
	DB               DBConfig
	Redis            RedisConfig
	Ledger           LedgerConfig
	AMQP             AMQPConfig
}

type DBConfig struct {
	DSN          string
	MaxOpenConns int
	MaxIdleTime  time.Duration
	Migrate      bool
}

type RedisConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	MaxIdleTime  time.Duration
}

type LedgerConfig struct {
	Backend       string
	IdleTTL       time.Duration
	CommitTimeout time.Duration
}

type AMQPConfig struct {
	URL   string
	Queue string
}

func NewApp(
	cfg Config,
	logger *slog.Logger,
	validator *validator.Validate,
	sessionManager *scs.SessionManager,
	performanceRepo domain.PerformanceRepository,
	reservationRepo domain.ReservationRepository,
	coordinator ReservationCoordinator) *Application {

	return &Application{
		config:          cfg,
		logger:          logger,
		validator:       validator,
		sessionManager:  sessionManager,
		performanceRepo: performanceRepo,
		reservationRepo: reservationRepo,
		coordinator:     coordinator,
	}
}

func Run() error {
	// values from .env become the flag defaults; a missing file is fine
	_ = godotenv.Load()

	var cfg Config

	flag.IntVar(&cfg.Port, "port", 3000, "server port")
	flag.StringVar(&cfg.Env, "env", getEnv("APP_ENV", "dev"), "Environment (dev|staging|prod)")
	flag.StringVar(&cfg.OtelCollectorUrl, "otel-collector-url", os.Getenv("OTEL_COLLECTOR_URL"), "OpenTelemetry collector gRPC endpoint")

	flag.StringVar(&cfg.DB.DSN, "db-dsn", os.Getenv("DB_DSN"), "PostgreSQL DSN")
	flag.IntVar(&cfg.DB.MaxOpenConns, "db-max-open-conns", 25, "PostgreSQL max open connections")
	flag.DurationVar(&cfg.DB.MaxIdleTime, "db-max-idle-time", 15*time.Minute, "PostgreSQL max idle time for connections")
	flag.BoolVar(&cfg.DB.Migrate, "migrate", false, "Apply database migrations before starting")

	flag.StringVar(&cfg.Redis.URL, "redis-url", os.Getenv("REDIS_URL"), "Redis URL")
	flag.IntVar(&cfg.Redis.MaxOpenConns, "redis-max-open-conns", 25, "Redis max open connections")
	flag.IntVar(&cfg.Redis.MaxIdleConns, "redis-max-idle-conns", 10, "Redis max idle connections")
	flag.DurationVar(&cfg.Redis.MaxIdleTime, "redis-max-idle-time", 2*time.Minute, "Redis max idle time for connections")

	flag.StringVar(&cfg.Ledger.Backend, "ledger", getEnv("LEDGER_BACKEND", LedgerMemory), "Ticket ledger backend (memory|redis)")
	flag.DurationVar(&cfg.Ledger.IdleTTL, "ledger-idle-ttl", 10*time.Minute, "How long the memory ledger keeps an unused performance, 0 keeps it forever")
	flag.DurationVar(&cfg.Ledger.CommitTimeout, "commit-timeout", 5*time.Second, "Upper bound for claiming, persisting and compensating one reservation")

	flag.StringVar(&cfg.AMQP.URL, "amqp-url", os.Getenv("AMQP_URL"), "RabbitMQ URL, events are not published when empty")
	flag.StringVar(&cfg.AMQP.Queue, "amqp-queue", getEnv("AMQP_QUEUE", "reservation_events"), "RabbitMQ queue for reservation events")

	displayVersion := flag.Bool("version", false, "Display version and exit")

	flag.Parse()

	if *displayVersion {
		fmt.Printf("Version:\t%s\n", version)
		os.Exit(0)
	}

	textHandler := slog.NewTextHandler(os.Stdout, nil)
	logger := slog.New(textHandler)

	shutdownTelemetry, err := initTelemetry(cfg, logger)
	if err != nil {
		return err
	}
	defer shutdownTelemetry(context.Background())

	if cfg.OtelCollectorUrl != "" {
		logger = slog.New(NewMultiHandler(textHandler, otelslog.NewHandler(serviceName)))
	}

	if cfg.DB.Migrate {
		err = runMigrations(cfg.DB.DSN, "file://migrations")
		if err != nil {
			return err
		}
		logger.Info("database migrations applied")
	}

	db, err := NewDatabasePool(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient, err := NewRedisClient(cfg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	performanceRepo := repository.NewPostgresPerformanceRepository(db)
	reservationRepo := repository.NewPostgresReservationRepository(db)

	ticketLedger, err := NewTicketLedger(cfg, redisClient, reservationRepo)
	if err != nil {
		return err
	}

	publisher, err := NewPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	coordinator, err := booking.NewCoordinator(
		performanceRepo,
		ticketLedger,
		reservationRepo,
		booking.WithLogger(logger),
		booking.WithPublisher(publisher),
		booking.WithCommitTimeout(cfg.Ledger.CommitTimeout),
	)
	if err != nil {
		return err
	}

	app := NewApp(
		cfg,
		logger,
		appvalidator.NewValidator(),
		NewSessionManager(redisClient),
		performanceRepo,
		reservationRepo,
		coordinator,
	)

	return app.run()
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}

// NewSessionManager reads sessions from the Redis store shared with the
// account service, which is the one writing the user id into them.
func NewSessionManager(client *redis.Client) *scs.SessionManager {
	sessionManager := scs.New()

	sessionManager.Store = goredisstore.New(client)
	sessionManager.IdleTimeout = 20 * time.Minute
	sessionManager.Cookie.Name = "session_id"

	return sessionManager
}

func NewRedisClient(cfg Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Redis.URL,
		MaxIdleConns:    cfg.Redis.MaxIdleConns,
		MaxActiveConns:  cfg.Redis.MaxOpenConns,
		ConnMaxIdleTime: cfg.Redis.MaxIdleTime,
	})

	err := errors.Join(redisotel.InstrumentTracing(rdb), redisotel.InstrumentMetrics(rdb))
	if err != nil {
		rdb.Close()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = rdb.Ping(ctx).Err()
	if err != nil {
		rdb.Close()
		return nil, err
	}

	return rdb, nil
}

func NewDatabasePool(cfg Config) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(cfg.DB.DSN)
	if err != nil {
		return nil, err
	}

	config.MaxConnIdleTime = cfg.DB.MaxIdleTime
	config.MaxConns = int32(cfg.DB.MaxOpenConns)
	config.ConnConfig.Tracer = otelpgx.NewTracer()

	db, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err = db.Ping(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// NewTicketLedger builds the configured ledger. The in-process ledger is
// seeded from the committed tickets so a restart does not forget sales.
func NewTicketLedger(cfg Config, client redis.UniversalClient, reservationRepo domain.ReservationRepository) (domain.TicketLedger, error) {
	switch cfg.Ledger.Backend {
	case LedgerMemory, "":
		return ledger.NewMemory(
			reservationRepo.GetSeatClaimsByPerformanceID,
			ledger.WithIdleTTL(cfg.Ledger.IdleTTL),
		), nil
	case LedgerRedis:
		return ledger.NewRedis(client), nil
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}
}

func NewPublisher(cfg Config) (events.Publisher, error) {
	if cfg.AMQP.URL == "" {
		return events.NopPublisher{}, nil
	}

	return events.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Queue)
}

func (app *Application) run() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", app.config.Port),
		Handler:      app.Routes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(app.logger.Handler(), slog.LevelDebug),
	}

	shutdownError := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		app.logger.Info("shutting down server", "signal", s.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		shutdownError <- srv.Shutdown(ctx)
	}()

	app.logger.Info("starting server",
		"addr", srv.Addr,
		"env", app.config.Env,
		"ledger", app.config.Ledger.Backend)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdownError
	if err != nil {
		return err
	}

	app.logger.Info("stopped server", "addr", srv.Addr)

	return nil
}
