package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"spendtrack/internal/amqp"
	"spendtrack/internal/config"
	"spendtrack/internal/currency"
	applog "spendtrack/internal/log"
	"spendtrack/internal/services"
	"spendtrack/internal/store/sqlite"
	"spendtrack/internal/worker"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New(applog.Config{Level: slog.LevelInfo, Component: applog.ComponentWorker})
	applog.SetDefault(logger)

	logger.Info("Starting summary-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the summary worker")
		os.Exit(1)
	}

	repo, err := sqlite.New(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open SQLite store", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to connect to AMQP", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	rates := currency.NewConverter(currency.Config{
		BaseURL: cfg.ExchangeRateBaseURL,
		APIKey:  cfg.ExchangeRateAPIKey,
		Timeout: cfg.ExchangeRateTimeout,
	})
	reports := services.NewReportsService(repo, rates, nil)
	summaryWorker := worker.NewSummaryWorker(reports)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return amqpClient.ConsumeLedgerEvents(ctx, func(msg *amqp.LedgerEventMessage) error {
			handleCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			return summaryWorker.HandleLedgerEvent(handleCtx, msg)
		})
	})

	g.Go(func() error {
		return summaryWorker.RunPeriodicRefresh(ctx, cfg.RefreshInterval, repo.ListUserIDs)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Worker stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully")
}
