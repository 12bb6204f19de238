package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tgdispatch/internal/config"
	"tgdispatch/internal/constants"
	"tgdispatch/internal/database"
	"tgdispatch/internal/retry"
	"tgdispatch/internal/service"
	"tgdispatch/internal/tracing"
	"tgdispatch/pkg/telegram"

	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("tgdispatch %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting tgdispatch")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			logger.SetLevel(logrus.InfoLevel)
		} else {
			logger.SetLevel(level)
		}
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}

	tracingManager := tracing.NewManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// Open the database with retries; sqlite may briefly hold the file
	// locked when the previous process is still shutting down.
	var db *database.Database
	backoff := retry.NewBackoff(retry.BackoffConfig{
		BaseDelay:   time.Duration(constants.DefaultRetryBackoffMs) * time.Millisecond,
		MaxDelay:    time.Duration(constants.DefaultMaxBackoffMs) * time.Millisecond,
		MaxAttempts: constants.DefaultDatabaseRetryAttempts,
	})
	err = backoff.Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	defer db.Close()

	client := telegram.NewClient(cfg.Telegram.APIBaseURL, config.BotToken(), logger)

	if _, err := client.CheckConnectivity(ctx); err != nil {
		logger.Warnf("Provider connectivity check failed: %v. Dispatches will fail until the provider is reachable.", err)
	}

	ledger := service.NewLedger(db, cfg.Dispatch.LedgerPageSize)
	dispatcher := service.NewDispatcher(db, ledger, client, service.DispatcherConfig{
		BatchSize:      cfg.Dispatch.BatchSize,
		BatchPause:     time.Duration(cfg.Dispatch.BatchPauseSec) * time.Second,
		MaxAttempts:    cfg.Dispatch.MaxAttempts,
		RetryBaseDelay: time.Duration(cfg.Dispatch.RetryBaseDelaySec) * time.Second,
		RetryMaxDelay:  time.Duration(cfg.Dispatch.RetryMaxDelaySec) * time.Second,
	}, logger)
	directory := service.NewDirectory(db, client, logger)
	directory.SetPageLimit(cfg.Telegram.UpdatesLimit)
	templates := service.NewTemplates(db)
	dispatcher.SetTemplateExpander(templates)

	if cfg.Retention.Enabled {
		scheduler := service.NewScheduler(db, cfg.Retention.Days, cfg.Retention.IntervalHours, logger)
		go scheduler.Start(ctx)
		defer scheduler.Stop()
	} else {
		logger.Info("Ledger retention pruning is disabled")
	}

	server := NewServer(cfg.Server, db, client, dispatcher, ledger, directory, templates, logger)
	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	logger.Info("Server shutdown completed")
	return nil
}
