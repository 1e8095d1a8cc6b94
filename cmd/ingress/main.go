// Command ingress runs the HTTP surface of spec.md section 4.1: accepts
// payments, hands them to the queue, and serves the summary and health
// endpoints.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/rinha-intermediary/payment-intermediary/internal/appinit"
	"github.com/rinha-intermediary/payment-intermediary/internal/config"
	"github.com/rinha-intermediary/payment-intermediary/internal/ingress"
	"github.com/rinha-intermediary/payment-intermediary/internal/queue/redisqueue"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "ingress: configuration error:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogFormat)
	logger.Info("ingress: starting",
		"redis_url", cfg.RedisURL,
		"database_url", cfg.RedactedDatabaseURL(),
		"default_processor_url", cfg.DefaultProcessorURL,
		"fallback_processor_url", cfg.FallbackProcessorURL,
	)

	redisClient, err := appinit.NewRedisClient(cfg)
	if err != nil {
		logger.Error("ingress: redis client init failed", "error", err)
		os.Exit(1)
	}

	ledgerStore, closeLedger, err := appinit.NewLedger(cfg)
	if err != nil {
		logger.Error("ingress: ledger init failed", "error", err)
		os.Exit(1)
	}
	defer closeLedger()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	consumer := "ingress-" + uuid.NewString()
	queueAdapter, err := redisqueue.New(ctx, redisClient, "payment_queue", "payment_workers", consumer)
	if err != nil {
		logger.Error("ingress: queue init failed", "error", err)
		os.Exit(1)
	}

	handler := ingress.NewHandler(queueAdapter, ledgerStore, logger)
	router := mux.NewRouter()
	handler.Register(router)

	server := &http.Server{
		Addr:         ":9999",
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("ingress: graceful shutdown failed", "error", err)
		}
	}()

	logger.Info("ingress: listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("ingress: server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("ingress: stopped")
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
