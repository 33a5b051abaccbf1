package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/crisferre80/gestion-politica-sub000/internal/application"
	"github.com/crisferre80/gestion-politica-sub000/internal/config"
	"github.com/crisferre80/gestion-politica-sub000/internal/events"
	httptransport "github.com/crisferre80/gestion-politica-sub000/internal/http"
	"github.com/crisferre80/gestion-politica-sub000/internal/logging"
	"github.com/crisferre80/gestion-politica-sub000/internal/persistence"
	"github.com/crisferre80/gestion-politica-sub000/internal/persistence/postgres"
	"github.com/crisferre80/gestion-politica-sub000/internal/persistence/sqlite"
)

func main() {
	bootstrap := logging.New(os.Stdout, "info")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		bootstrap.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stdout, cfg.LogLevel)

	app, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start coordinator", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           app.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("coordinator API listening", "addr", server.Addr, "storage", cfg.StorageDriver, "publisher", cfg.Publisher)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

type repositories struct {
	points   persistence.PointRepository
	claims   persistence.ClaimRepository
	profiles persistence.ProfileRepository
}

type app struct {
	Handler http.Handler
	closers []func() error
	logger  *slog.Logger
}

// Close releases storage and publisher connections in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Error("failed to close resource", "error", err)
		}
	}
}

func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{logger: logger}

	repos, closeStorage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closeStorage)

	publisher, closePublisher, err := newPublisher(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closePublisher)

	idGenerator := uuid.NewString
	now := time.Now

	points := application.NewPointServiceWithLogger(repos.points, repos.claims, idGenerator, now, logger)
	claims := application.NewClaimServiceWithLogger(repos.points, repos.claims, publisher, idGenerator, now, cfg.PenaltyWindow, logger)
	availability := application.NewAvailabilityService(repos.points, repos.claims, repos.profiles, now, application.AvailabilityOptions{
		PenaltyWindow:         cfg.PenaltyWindow,
		DefaultMaxDistanceKm:  cfg.DefaultMaxDistanceKm,
		InstitutionalCacheTTL: cfg.InstitutionalCacheTTL,
		Logger:                logger,
	})
	stats := application.NewStatsService(repos.claims, logger)
	profiles := application.NewProfileService(repos.profiles, now, logger)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Points:       httptransport.NewPointHandler(points, availability, logger),
		Claims:       httptransport.NewClaimHandler(claims, logger),
		Account:      httptransport.NewAccountHandler(stats, profiles, logger),
		ClaimLimiter: httptransport.NewActorLimiter(cfg.ClaimRatePerSecond, cfg.ClaimRateBurst),
		Logger:       logger,
		Middleware:   []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})
	a.Handler = router
	return a, nil
}

func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (repositories, func() error, error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres:
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return repositories{}, nil, err
		}
		if err := postgres.Migrate(ctx, db, logger); err != nil {
			_ = db.Close()
			return repositories{}, nil, fmt.Errorf("apply migrations: %w", err)
		}
		return repositories{
			points:   postgres.NewPointRepository(db),
			claims:   postgres.NewClaimRepository(db),
			profiles: postgres.NewProfileRepository(db),
		}, db.Close, nil
	default:
		pool, err := sqlite.Open(cfg.SQLiteDSN)
		if err != nil {
			return repositories{}, nil, err
		}
		if err := pool.Migrate(ctx, logger); err != nil {
			_ = pool.Close()
			return repositories{}, nil, fmt.Errorf("apply migrations: %w", err)
		}
		return repositories{
			points:   sqlite.NewPointRepository(pool),
			claims:   sqlite.NewClaimRepository(pool),
			profiles: sqlite.NewProfileRepository(pool),
		}, pool.Close, nil
	}
}

// newPublisher selects the claim event sink. An unreachable Redis is logged
// and tolerated; publish failures never fail claim writes.
func newPublisher(ctx context.Context, cfg config.Config, logger *slog.Logger) (application.EventPublisher, func() error, error) {
	if cfg.Publisher != config.PublisherRedis {
		return events.NewLogPublisher(logger), func() error { return nil }, nil
	}

	publisher := events.NewRedisPublisher(events.RedisOptions{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		Channel:  cfg.RedisChannel,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := publisher.Ping(pingCtx); err != nil {
		logger.Warn("redis not reachable at startup", "addr", cfg.RedisAddr, "error", err)
	}
	return publisher, publisher.Close, nil
}
