package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"time"

	electionservice "campus/contexts/academic-governance/election-service"
	electionmongo "campus/contexts/academic-governance/election-service/adapters/mongo"
	electionpostgres "campus/contexts/academic-governance/election-service/adapters/postgres"
	electionredis "campus/contexts/academic-governance/election-service/adapters/redis"
	electionports "campus/contexts/academic-governance/election-service/ports"
	studentdirectory "campus/contexts/identity-access/student-directory"
	studentmongo "campus/contexts/identity-access/student-directory/adapters/mongo"
	"campus/contexts/identity-access/student-directory/adapters/objectstore"
	studentpostgres "campus/contexts/identity-access/student-directory/adapters/postgres"
	"campus/contexts/identity-access/student-directory/adapters/security"
	studentports "campus/contexts/identity-access/student-directory/ports"
	"campus/internal/platform/config"
	"campus/internal/platform/db"
	"campus/internal/platform/httpserver"
	"campus/internal/platform/messaging"
	"campus/internal/shared/events"
	"campus/migrations"

	"github.com/redis/go-redis/v9"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type electionStore interface {
	electionports.ElectionRepository
	electionports.StudentDirectory
	electionports.IdempotencyStore
	electionports.OutboxRepository
}

type studentStore interface {
	studentports.StudentRepository
	studentports.OutboxRepository
}

// stores holds the repositories for the configured STORE_DRIVER and the
// connections to close on shutdown.
type stores struct {
	elections electionStore
	students  studentStore
	closers   []func() error
}

func (s stores) close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type APIApp struct {
	server *httpserver.Server
	stores stores
	redis  *redis.Client
	logger *slog.Logger
}

type WorkerApp struct {
	stores       stores
	relays       []relay
	pollInterval time.Duration
	closeBus     func() error
	logger       *slog.Logger
}

type relay struct {
	name   string
	runner interface{ RunOnce(context.Context) error }
}

func newLogger(cfg config.Config, process string) *slog.Logger {
	level := slog.LevelInfo
	if cfg.IsDevelopment() {
		level = slog.LevelDebug
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With("service", cfg.ServiceName, "process", process)
}

func BuildAPI(ctx context.Context) (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, "api")
	slog.SetDefault(logger)

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	redisClient, err := db.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		_ = st.close()
		return nil, err
	}

	elections := electionservice.NewModule(electionservice.Dependencies{
		Elections:      st.elections,
		Students:       st.elections,
		Idempotency:    st.elections,
		Outbox:         st.elections,
		Clock:          electionpostgres.SystemClock{},
		IDGen:          electionpostgres.UUIDGenerator{},
		IdempotencyTTL: cfg.IdempotencyTTL,
		CloseAttempts:  cfg.CloseAttempts,
		Logger:         logger,
	})

	students, err := buildStudentModule(ctx, cfg, st, nil, true, logger)
	if err != nil {
		_ = redisClient.Close()
		_ = st.close()
		return nil, err
	}

	server := httpserver.New(elections, students, httpserver.Options{
		Addr:           normalizeAddr(cfg.HTTPPort),
		Development:    cfg.IsDevelopment(),
		VoteLimiter:    electionredis.NewRateLimiter(redisClient, "campus:ratelimit:"),
		VoteRateLimit:  cfg.VoteRateLimit,
		VoteRateWindow: cfg.VoteRateWindow,
		Logger:         logger,
	})
	return &APIApp{
		server: server,
		stores: st,
		redis:  redisClient,
		logger: logger,
	}, nil
}

func BuildWorker(ctx context.Context) (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg, "worker")
	slog.SetDefault(logger)

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	publisher, closeBus, err := newPublisher(cfg, logger)
	if err != nil {
		_ = st.close()
		return nil, err
	}

	app := &WorkerApp{
		stores:       st,
		pollInterval: cfg.OutboxPollInterval,
		closeBus:     closeBus,
		logger:       logger,
	}
	if app.pollInterval <= 0 {
		app.pollInterval = 2 * time.Second
	}
	if cfg.EnableElectionOutboxRelay {
		elections := electionservice.NewModule(electionservice.Dependencies{
			Elections: st.elections,
			Students:  st.elections,
			Outbox:    st.elections,
			Publisher: publisher,
			Clock:     electionpostgres.SystemClock{},
			IDGen:     electionpostgres.UUIDGenerator{},
			Logger:    logger,
		})
		app.relays = append(app.relays, relay{name: "election", runner: elections.Relay})
	}
	if cfg.EnableStudentOutboxRelay {
		students, err := buildStudentModule(ctx, cfg, st, publisher, false, logger)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		app.relays = append(app.relays, relay{name: "student", runner: students.Relay})
	}
	return app, nil
}

func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (stores, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMongo:
		conn, err := db.ConnectMongo(cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return stores{}, err
		}
		electionRepo := electionmongo.NewRepository(conn.Client, conn.DB, logger)
		studentRepo := studentmongo.NewRepository(conn.Client, conn.DB, logger)
		if err := electionRepo.EnsureIndexes(ctx); err != nil {
			_ = conn.Close()
			return stores{}, err
		}
		if err := studentRepo.EnsureIndexes(ctx); err != nil {
			_ = conn.Close()
			return stores{}, err
		}
		return stores{
			elections: electionRepo,
			students:  studentRepo,
			closers:   []func() error{conn.Close},
		}, nil
	default:
		pg, err := db.Connect(cfg.PostgresDSN, db.PoolOptions{
			MaxOpenConns:    cfg.PostgresMaxOpenConns,
			MaxIdleConns:    cfg.PostgresMaxIdleConns,
			ConnMaxLifetime: 30 * time.Minute,
		})
		if err != nil {
			return stores{}, err
		}
		if cfg.AutoMigrate {
			if err := pg.Migrate(ctx, migrations.Files); err != nil {
				_ = pg.Close()
				return stores{}, err
			}
		}
		return stores{
			elections: electionpostgres.NewRepository(pg.DB, logger),
			students:  studentpostgres.NewRepository(pg.DB, logger),
			closers:   []func() error{pg.Close},
		}, nil
	}
}

func buildStudentModule(
	ctx context.Context,
	cfg config.Config,
	st stores,
	publisher studentports.EventPublisher,
	withAvatars bool,
	logger *slog.Logger,
) (studentdirectory.Module, error) {
	tokens, err := security.NewJWTIssuer(
		cfg.AccessTokenSecret,
		cfg.AccessTokenExpiry,
		cfg.RefreshTokenSecret,
		cfg.RefreshTokenExpiry,
	)
	if err != nil {
		return studentdirectory.Module{}, err
	}

	var avatars studentports.AvatarStorage
	if withAvatars && strings.TrimSpace(cfg.Minio.Endpoint) != "" {
		store, err := objectstore.NewAvatarStore(ctx, objectstore.MinioConfig{
			Endpoint:  cfg.Minio.Endpoint,
			AccessKey: cfg.Minio.AccessKey,
			SecretKey: cfg.Minio.SecretKey,
			Bucket:    cfg.Minio.Bucket,
			UseSSL:    cfg.Minio.UseSSL,
			PublicURL: cfg.Minio.PublicURL,
		}, logger)
		if err != nil {
			return studentdirectory.Module{}, err
		}
		avatars = store
	}

	return studentdirectory.NewModule(studentdirectory.Dependencies{
		Students:  st.students,
		Hasher:    security.NewBcryptHasher(cfg.BcryptCost),
		Tokens:    tokens,
		Avatars:   avatars,
		Outbox:    st.students,
		Publisher: publisher,
		Clock:     electionpostgres.SystemClock{},
		IDGen:     electionpostgres.UUIDGenerator{},
		Logger:    logger,

		AllowPrivilegedSignup: cfg.AllowPrivilegedSignup,
	}), nil
}

type eventPublisher interface {
	Publish(ctx context.Context, topic string, event events.Envelope) error
}

func newPublisher(cfg config.Config, logger *slog.Logger) (eventPublisher, func() error, error) {
	if cfg.EventBus == config.EventBusLocal {
		logger.Warn("local event bus has no consumers in the worker process; outbox rows stay pending",
			"event", "bootstrap_local_bus_selected",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		return messaging.NewLocalBus(logger), func() error { return nil }, nil
	}
	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, cfg.KafkaTopicPrefix, logger)
	if err != nil {
		return nil, nil, err
	}
	return kafka, kafka.Close, nil
}

func (a *APIApp) Run(ctx context.Context) error {
	a.logger.Info("api app started",
		"event", "bootstrap_api_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)
	return a.server.Start(ctx)
}

func (a *APIApp) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, a.stores.close())
	return errors.Join(errs...)
}

// Run polls every relay until ctx is cancelled. A failed cycle is logged by
// the relay and retried on the next tick.
func (w *WorkerApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
		"relay_count", len(w.relays),
	)

	for {
		for _, r := range w.relays {
			if err := r.runner.RunOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				w.logger.Warn("outbox relay cycle failed",
					"event", "bootstrap_worker_relay_failed",
					"module", "internal/app/bootstrap",
					"layer", "platform",
					"relay", r.name,
					"error", err.Error(),
				)
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	var errs []error
	if w.closeBus != nil {
		errs = append(errs, w.closeBus())
	}
	errs = append(errs, w.stores.close())
	return errors.Join(errs...)
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
