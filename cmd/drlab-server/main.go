// Package main is the entry point for the drlab server.
// drlab is a laboratory information management system for sample intake,
// testing workflows and report delivery.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/drlab-io/drlab/internal/cache/memory"
	rediscache "github.com/drlab-io/drlab/internal/cache/redis"
	"github.com/drlab-io/drlab/internal/config"
	"github.com/drlab-io/drlab/internal/handler"
	"github.com/drlab-io/drlab/internal/lock"
	"github.com/drlab-io/drlab/internal/report"
	"github.com/drlab-io/drlab/internal/repository"
	"github.com/drlab-io/drlab/internal/repository/postgres"
	"github.com/drlab-io/drlab/internal/repository/sqlite"
	"github.com/drlab-io/drlab/internal/service"
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

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", Version).
		Str("build_time", BuildTime).
		Str("git_commit", GitCommit).
		Str("database", cfg.Database.Driver).
		Msg("starting drlab server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
	logger.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	repos, dbHealth, err := connectDatabase(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer dbHealth.Close()

	// Cache and locker. Redis gives distributed coordination; the in-memory
	// fallback is for single-node embedded deployments.
	var (
		cache  repository.Cache
		locker lock.Locker
	)
	if cfg.Redis.Enabled {
		client, err := rediscache.Connect(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer client.Close()

		redisLock, err := rediscache.NewLock(client)
		if err != nil {
			return fmt.Errorf("failed to initialize redis lock: %w", err)
		}
		cache = rediscache.NewCache(client)
		locker = lock.NewRedisLocker(redisLock)
	} else {
		memCache := memory.NewCache()
		defer memCache.Stop()
		cache = memCache
		locker = lock.NewMemoryLocker()
	}

	archive, err := buildArchive(ctx, cfg.Reports, logger)
	if err != nil {
		return err
	}

	// Services
	idgen := service.NewIdentifierGenerator(repos.Sequence)
	userService := service.NewUserService(repos.User, locker, cfg.Auth, logger)
	authService := service.NewAuthService(repos.User, repos.Token, repos.Session, cache, cfg.Auth, logger)
	groupService := service.NewGroupService(repos.Group, repos.Membership, repos.User, locker, logger)
	invitationService := service.NewInvitationService(repos.Invitation, groupService, repos.User, locker, cfg.Auth.InvitationTTL, logger)
	clientService := service.NewClientService(repos.Client, repos.Project, repos.Batch, repos.Sample, cache, logger)
	sampleService := service.NewSampleService(repos.Batch, repos.Sample, repos.Client, repos.Project, idgen, archive, locker, logger)
	worksheetService := service.NewWorksheetService(repos.Worksheet, repos.Sample, repos.User, idgen, logger)

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	router := handler.NewRouter(handler.RouterConfig{
		AuthHandler:       handler.NewAuthHandler(authService, logger),
		UserHandler:       handler.NewUserHandler(userService, logger),
		GroupHandler:      handler.NewGroupHandler(groupService, logger),
		InvitationHandler: handler.NewInvitationHandler(invitationService, logger),
		ClientHandler:     handler.NewClientHandler(clientService, logger),
		SampleHandler:     handler.NewSampleHandler(sampleService, logger),
		WorksheetHandler:  handler.NewWorksheetHandler(worksheetService, logger),
		AuthService:       authService,
		DB:                dbHealth,
		MetricsPath:       metricsPath,
		Logger:            logger,
	})

	if cfg.Sweep.Enabled {
		go runSweeps(ctx, cfg.Sweep, sampleService, invitationService, logger)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// connectDatabase opens the configured backend, applies pending migrations
// and wires the repository bundle.
func connectDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*repository.Repositories, repository.DatabaseHealth, error) {
	switch cfg.Database.Driver {
	case "sqlite":
		sqliteCfg := sqlite.DefaultConfig(cfg.Database.Path)
		if cfg.Database.JournalMode != "" {
			sqliteCfg.JournalMode = cfg.Database.JournalMode
		}
		if cfg.Database.BusyTimeout > 0 {
			sqliteCfg.BusyTimeout = cfg.Database.BusyTimeout
		}
		if cfg.Database.SynchronousMode != "" {
			sqliteCfg.SynchronousMode = cfg.Database.SynchronousMode
		}

		db, err := sqlite.NewDB(ctx, sqliteCfg, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to migrate sqlite database: %w", err)
		}
		return sqlite.NewRepositories(db), db, nil

	case "postgres":
		db, err := postgres.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to migrate postgres database: %w", err)
		}
		return postgres.NewRepositories(db), db, nil
	}
	return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
}

// buildArchive selects the report archive backend.
func buildArchive(ctx context.Context, cfg config.ReportsConfig, logger zerolog.Logger) (report.Archive, error) {
	switch cfg.Backend {
	case "s3":
		return report.NewS3Archive(ctx, cfg.S3, logger)
	default:
		return report.NewFilesystemArchive(cfg.Dir, logger)
	}
}

// runSweeps periodically discards samples past retention and expires stale
// invitations. Each sweep runs under a distributed lock, so multiple server
// instances don't double-process.
func runSweeps(
	ctx context.Context,
	cfg config.SweepConfig,
	sampleService *service.SampleService,
	invitationService *service.InvitationService,
	logger zerolog.Logger,
) {
	sweepLogger := logger.With().Str("component", "sweeper").Logger()
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	sweepLogger.Info().Dur("interval", cfg.Interval).Msg("background sweeps enabled")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := sampleService.SweepDiscardable(ctx, cfg.LockTTL); err != nil {
				sweepLogger.Error().Err(err).Msg("discard sweep failed")
			} else if n > 0 {
				sweepLogger.Info().Int64("discarded", n).Msg("discard sweep completed")
			}

			if n, err := invitationService.SweepExpired(ctx, cfg.LockTTL); err != nil {
				sweepLogger.Error().Err(err).Msg("invitation sweep failed")
			} else if n > 0 {
				sweepLogger.Info().Int64("expired", n).Msg("invitation sweep completed")
			}
		}
	}
}

// setupLogger builds the root logger from config.
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var out *os.File
	switch cfg.Output {
	case "stderr":
		out = os.Stderr
	default:
		out = os.Stdout
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat
	if cfg.Format == "console" {
		return zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}).
			Level(level).With().Timestamp().Logger()
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
