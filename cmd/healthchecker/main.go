// Command healthchecker runs the background refresh loop of spec.md
// section 4.3: probing each processor's health endpoint in turn and
// writing verdicts to the shared store the ingress/worker binaries read
// through the Health Oracle.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/rinha-intermediary/payment-intermediary/internal/appinit"
	"github.com/rinha-intermediary/payment-intermediary/internal/config"
	"github.com/rinha-intermediary/payment-intermediary/internal/health"
	"github.com/rinha-intermediary/payment-intermediary/internal/health/redisstore"
	"github.com/rinha-intermediary/payment-intermediary/internal/processor"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, "healthchecker: configuration error:", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogFormat)
	logger.Info("healthchecker: starting",
		"cycle_interval", cfg.HealthCheckCycleInterval,
		"inter_check_delay", cfg.InterCheckDelay,
	)

	redisClient, err := appinit.NewRedisClient(cfg)
	if err != nil {
		logger.Error("healthchecker: redis client init failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	healthStore := redisstore.New(redisClient)
	client := processor.New(cfg.HTTPTimeout, cfg.DefaultProcessorURL, cfg.FallbackProcessorURL, nil)

	refresher := health.NewRefresher(healthStore, client, logger, health.RefresherConfig{
		HealthStatusTTL:    cfg.HealthStatusTTL,
		RateLimitTTL:       cfg.RateLimitTTL,
		InterCheckDelay:    cfg.InterCheckDelay,
		CycleInterval:      cfg.HealthCheckCycleInterval,
		FailedResponseTime: cfg.FailedResponseTime,
	})

	logger.Info("healthchecker: running")
	refresher.Run(ctx)
	logger.Info("healthchecker: stopped")
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
