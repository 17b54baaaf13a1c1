// Package main is the entry point for the Meridian Bank API server.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/prn-tf/meridian-bank/internal/auth"
	"github.com/prn-tf/meridian-bank/internal/cache/memory"
	"github.com/prn-tf/meridian-bank/internal/cache/redis"
	"github.com/prn-tf/meridian-bank/internal/config"
	"github.com/prn-tf/meridian-bank/internal/handler"
	"github.com/prn-tf/meridian-bank/internal/lock"
	"github.com/prn-tf/meridian-bank/internal/metrics"
	"github.com/prn-tf/meridian-bank/internal/repository"
	"github.com/prn-tf/meridian-bank/internal/repository/postgres"
	"github.com/prn-tf/meridian-bank/internal/repository/sqlite"
	"github.com/prn-tf/meridian-bank/internal/service"
)

// Version information (set at build time)
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)
	logger := newLogger(cfg.Logging)

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Str("database", cfg.Database.Driver).
		Msg("starting meridian bank server")

	if cfg.Auth.JWTSecret == "" {
		logger.Fatal().Msg("auth.jwt_secret must be configured")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, dbHealth, err := openDatabase(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open database")
	}
	defer dbHealth.Close()

	var (
		userCache repository.Cache
		locker    lock.Locker
	)
	if cfg.Redis.Enabled {
		client, err := redis.NewClient(ctx, cfg.Redis, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer client.Close()
		userCache = client
		locker = lock.NewRedisLocker(client.NewLock())
	} else {
		mem := memory.NewCache()
		defer mem.Stop()
		userCache = mem
		locker = lock.NewMemoryLocker()
	}

	policy := auth.NewAccessPolicy()
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	userService := service.NewUserService(repos.Users, logger)
	accountService := service.NewAccountService(
		repos.Accounts, repos.Users, repos.Transactions, policy,
		service.AccountServiceConfig{
			IBANMaxAttempts:  cfg.Bank.IBANMaxAttempts,
			StrictOwnerCheck: cfg.Bank.StrictOwnerCheck,
			Location:         cfg.Location(),
		},
		logger,
	)
	transactionService := service.NewTransactionService(
		repos.Accounts, repos.Transactions, repos.Tx, locker, policy,
		service.TransactionServiceConfig{
			Location:       cfg.Location(),
			LockTTL:        cfg.Bank.LockTTL,
			LockMaxRetries: cfg.Bank.LockMaxRetries,
			LockRetryDelay: cfg.Bank.LockRetryDelay,
		},
		logger,
	)

	// The clearing account must exist before the first deposit arrives.
	if _, err := accountService.Bootstrap(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to bootstrap clearing account")
	}

	loader := auth.NewCachedUserLoader(repos.Users, userCache, 30*time.Second, logger)
	authMiddleware := auth.NewMiddleware(tokens, loader, logger, handler.WriteError)

	m := metrics.New()
	router := handler.NewRouter(handler.RouterConfig{
		AuthHandler:        handler.NewAuthHandler(userService, tokens, logger),
		UserHandler:        handler.NewUserHandler(userService, policy, loader, logger),
		AccountHandler:     handler.NewAccountHandler(accountService, logger),
		TransactionHandler: handler.NewTransactionHandler(transactionService, m, logger),
		AuthMiddleware:     authMiddleware,
		Metrics:            m,
		MetricsConfig:      cfg.Metrics,
		Logger:             logger,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Fatal().Err(err).Msg("http server failed")
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// openDatabase connects to the configured backend, applies migrations and
// returns the repository bundle.
func openDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (repository.Repositories, repository.DatabaseHealth, error) {
	if cfg.Database.IsEmbedded() {
		db, err := sqlite.NewDB(ctx, sqlite.DefaultConfig(cfg.Database.Path), logger)
		if err != nil {
			return repository.Repositories{}, nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return repository.Repositories{}, nil, err
		}
		return repository.Repositories{
			Users:        sqlite.NewUserRepository(db),
			Accounts:     sqlite.NewAccountRepository(db),
			Transactions: sqlite.NewTransactionRepository(db),
			Tx:           db,
		}, db, nil
	}

	db, err := postgres.NewDB(ctx, cfg.Database, logger)
	if err != nil {
		return repository.Repositories{}, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return repository.Repositories{}, nil, err
	}
	return repository.Repositories{
		Users:        postgres.NewUserRepository(db),
		Accounts:     postgres.NewAccountRepository(db),
		Transactions: postgres.NewTransactionRepository(db),
		Tx:           db,
	}, db, nil
}

// newLogger builds the process logger from the logging configuration.
func newLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out = os.Stdout
	if cfg.Output == "stderr" {
		out = os.Stderr
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat

	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: cfg.TimeFormat}).
			Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
