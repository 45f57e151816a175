package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/library-backend/api/middleware"
	"github.com/angelmondragon/library-backend/api/responses"
	"github.com/angelmondragon/library-backend/api/routes"
	"github.com/angelmondragon/library-backend/internal/auth"
	"github.com/angelmondragon/library-backend/internal/books"
	"github.com/angelmondragon/library-backend/internal/lending"
	"github.com/angelmondragon/library-backend/internal/notifications"
	"github.com/angelmondragon/library-backend/internal/repo"
	"github.com/angelmondragon/library-backend/internal/seed"
	"github.com/angelmondragon/library-backend/internal/stats"
	"github.com/angelmondragon/library-backend/internal/users"
	"github.com/angelmondragon/library-backend/pkg/auth/session"
	"github.com/angelmondragon/library-backend/pkg/config"
	"github.com/angelmondragon/library-backend/pkg/instance"
	"github.com/angelmondragon/library-backend/pkg/logger"
	"github.com/angelmondragon/library-backend/pkg/metrics"
	"github.com/angelmondragon/library-backend/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	responses.SetDebug(cfg.App.IsDev())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := repo.Open(ctx, cfg, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap storage", err)
		os.Exit(1)
	}

	deps := routes.Dependencies{
		Pingers: store.Pingers,
		Limiter: middleware.NewLocalLimiter(),
	}
	closers := []func(context.Context) error{store.Close}

	var sessions *session.Manager
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		closers = append(closers, func(context.Context) error { return redisClient.Close() })

		sessions, err = session.NewManager(redisClient, cfg.JWT)
		if err != nil {
			logg.Error(ctx, "failed to create session manager", err)
			os.Exit(1)
		}
		deps.Pingers["redis"] = redisClient
		deps.Limiter = redisClient
		deps.Idempotency = redisClient
		deps.Sessions = sessions
	} else {
		logg.Warn(ctx, "redis not configured; sessions, idempotency and shared rate limits disabled")
	}

	registry := metrics.NewRegistry()
	var lendingMetrics *metrics.LendingMetrics
	if cfg.Metrics.Enabled {
		deps.Metrics = metrics.NewHTTPMetrics(registry)
		deps.MetricsRoute = metrics.Handler(registry)
		lendingMetrics = metrics.NewLendingMetrics(registry)
	}

	authParams := auth.ServiceParams{
		Users:          store.Users,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		AdminSecret:    cfg.Admin.RegistrationSecret,
		Logger:         logg,
	}
	if sessions != nil {
		authParams.Sessions = sessions
	}
	authService, err := auth.NewService(authParams)
	requireService(ctx, logg, "auth", err)
	deps.Auth = authService

	userService, err := users.NewService(store.Users)
	requireService(ctx, logg, "users", err)
	deps.Users = userService

	bookService, err := books.NewService(store.Books, store.Borrows)
	requireService(ctx, logg, "books", err)
	deps.Books = bookService

	coordinator, err := lending.NewCoordinator(lending.Params{
		Books:   store.Books,
		Borrows: store.Borrows,
		Users:   store.Users,
		Config:  cfg.Lending,
		Metrics: lendingMetrics,
		Logger:  logg,
		Now:     time.Now,
	})
	requireService(ctx, logg, "lending", err)
	deps.Lending = coordinator

	notificationService, err := notifications.NewService(store.Messages, store.Users, time.Now)
	requireService(ctx, logg, "notifications", err)
	deps.Notifications = notificationService

	statsService, err := stats.NewService(store.Books, store.Users, store.Borrows, time.Now)
	requireService(ctx, logg, "stats", err)
	deps.Stats = statsService

	if cfg.FeatureFlags.SeedData {
		seeder, err := seed.New(seed.Params{Users: store.Users, Books: store.Books, Password: cfg.Password, Logger: logg})
		requireService(ctx, logg, "seed", err)
		if _, err := seeder.Run(ctx); err != nil {
			logg.Error(ctx, "seed data incomplete", err)
		}
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	serverCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"driver":   store.Driver,
		"instance": instance.ID(),
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, deps),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(serverCtx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	exitCode := 0
	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(serverCtx, "api server stopped unexpectedly", err)
			exitCode = 1
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	errs := server.Shutdown(shutdownCtx)
	for _, closeFn := range closers {
		errs = multierr.Append(errs, closeFn(shutdownCtx))
	}
	if errs != nil {
		logg.Error(serverCtx, "shutdown incomplete", errs)
		exitCode = 1
	}
	logg.Info(serverCtx, "api server stopped")
	os.Exit(exitCode)
}

func requireService(ctx context.Context, logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(logg.WithField(ctx, "service", name), "failed to create service", err)
	os.Exit(1)
}
