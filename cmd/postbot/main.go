// Package main wires together the poster service binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/amzdeals/postbot/internal/clock/system"
	"github.com/amzdeals/postbot/internal/config"
	amazonfetcher "github.com/amzdeals/postbot/internal/fetcher/amazon"
	"github.com/amzdeals/postbot/internal/id/uuid"
	"github.com/amzdeals/postbot/internal/logging"
	"github.com/amzdeals/postbot/internal/notifier/telegram"
	"github.com/amzdeals/postbot/internal/ops"
	"github.com/amzdeals/postbot/internal/poster"
	csvstore "github.com/amzdeals/postbot/internal/store/csv"
	sqlitestore "github.com/amzdeals/postbot/internal/store/sqlite"
	"github.com/amzdeals/postbot/internal/worker"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	initWorklist := flag.Bool("init-worklist", false, "Create a starter worklist and exit")
	flag.Parse()

	// Credentials commonly live in a .env next to the binary.
	_ = godotenv.Load()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *initWorklist {
		if err := seedWorklist(ctx, cfg); err != nil {
			logger.Error("init worklist failed", zap.Error(err))
			os.Exit(1)
		}
		logger.Info("worklist created",
			zap.String("backend", cfg.Store.Backend),
			zap.String("path", cfg.Store.Path),
		)
		return
	}

	if err := run(ctx, cfg, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("poster stopped", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	store, closeStore, err := buildStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer closeStore()

	if err := store.Reload(ctx); err != nil {
		return fmt.Errorf("initial worklist load: %w", err)
	}

	fetcher := amazonfetcher.New(amazonfetcher.Config{
		Origin:       cfg.Site.Origin,
		UserAgent:    cfg.Site.UserAgent,
		Timeout:      cfg.HTTPTimeout(),
		RateLimitRPS: cfg.HTTP.RateLimitRPS,
	})
	defer fetcher.Close()

	// Missing credentials surface here, before the first attempt.
	notifier, err := telegram.New(telegram.Config{
		Token:   cfg.Telegram.Token,
		ChatID:  cfg.Telegram.ChatID,
		APIBase: cfg.Telegram.APIBase,
		Timeout: cfg.HTTPTimeout(),
	})
	if err != nil {
		return fmt.Errorf("init notifier: %w", err)
	}

	if cfg.Ops.Enabled {
		srv := ops.NewServer(cfg.Ops.Port, logger)
		go func() {
			if err := srv.Start(ctx); err != nil {
				logger.Error("ops server failed", zap.Error(err))
			}
		}()
	}

	engine := worker.New(
		store,
		fetcher,
		notifier,
		system.New(),
		uuid.New(),
		worker.Config{
			Origin:       cfg.Site.Origin,
			MaxAttempts:  cfg.Engine.MaxAttempts,
			RetryBackoff: cfg.RetryBackoff(),
			ItemDelay:    cfg.ItemDelay(),
			IdleDelay:    cfg.IdleDelay(),
		},
		logger,
	)
	return engine.Run(ctx)
}

func buildStore(cfg config.Config, logger *zap.Logger) (poster.Store, func(), error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		s, err := sqlitestore.Open(cfg.Store.Path, cfg.Site.Origin, logger)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				logger.Warn("close store failed", zap.Error(err))
			}
		}, nil
	default:
		s := csvstore.New(cfg.Store.Path, cfg.Site.Origin, logger)
		return s, func() {}, nil
	}
}

func seedWorklist(ctx context.Context, cfg config.Config) error {
	if cfg.Store.Backend == config.BackendSQLite {
		s, err := sqlitestore.Open(cfg.Store.Path, cfg.Site.Origin, zap.NewNop())
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.Insert(ctx, poster.DefaultOrigin+"/dp/B001EXAMPLE", "https://amzn.to/example1"); err != nil {
			return err
		}
		return s.Insert(ctx, poster.DefaultOrigin+"/dp/B002EXAMPLE", "https://amzn.to/example2")
	}
	return csvstore.Seed(cfg.Store.Path)
}
