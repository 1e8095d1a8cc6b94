// Command worker runs the pool described in spec.md section 4.4:
// N cooperative workers consuming payment_queue, dispatching to whichever
// processor the health oracle currently prefers, and persisting results
// to the ledger.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/rinha-intermediary/payment-intermediary/internal/appinit"
	"github.com/rinha-intermediary/payment-intermediary/internal/config"
	"github.com/rinha-intermediary/payment-intermediary/internal/health"
	"github.com/rinha-intermediary/payment-intermediary/internal/health/redisstore"
	"github.com/rinha-intermediary/payment-intermediary/internal/processor"
	"github.com/rinha-intermediary/payment-intermediary/internal/queue/redisqueue"
	"github.com/rinha-intermediary/payment-intermediary/internal/signing"
	"github.com/rinha-intermediary/payment-intermediary/internal/worker"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "worker: configuration error:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogFormat)
	logger.Info("worker: starting", "concurrency", cfg.WorkerConcurrency)

	redisClient, err := appinit.NewRedisClient(cfg)
	if err != nil {
		logger.Error("worker: redis client init failed", "error", err)
		os.Exit(1)
	}

	ledgerStore, closeLedger, err := appinit.NewLedger(cfg)
	if err != nil {
		logger.Error("worker: ledger init failed", "error", err)
		os.Exit(1)
	}
	defer closeLedger()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	consumer := "worker-" + uuid.NewString()
	queueAdapter, err := redisqueue.New(ctx, redisClient, "payment_queue", "payment_workers", consumer)
	if err != nil {
		logger.Error("worker: queue init failed", "error", err)
		os.Exit(1)
	}

	healthStore := redisstore.New(redisClient)
	oracle := health.NewOracle(healthStore)

	var signer *signing.Signer
	if keyPath := os.Getenv("SIGNING_KEYS_PATH"); keyPath != "" {
		keyStore, err := signing.LoadKeysFromFile(keyPath)
		if err != nil {
			logger.Error("worker: signing key load failed", "error", err)
			os.Exit(1)
		}
		signer = signing.NewSigner(keyStore)
	}

	client := processor.New(cfg.HTTPTimeout, cfg.DefaultProcessorURL, cfg.FallbackProcessorURL, signer)

	pool := worker.NewPool(worker.Config{
		Concurrency:       cfg.WorkerConcurrency,
		VisibilityTimeout: cfg.VisibilityTimeout,
		PollSleep:         cfg.PollSleep,
		ErrorSleep:        cfg.ErrorSleep,
	}, queueAdapter, oracle, client, ledgerStore, logger)

	logger.Info("worker: running")
	pool.Run(ctx)
	logger.Info("worker: stopped")
}

func newLogger(format string) *slog.Logger {
	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, nil)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	}
	return slog.New(handler)
}
