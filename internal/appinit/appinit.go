// Package appinit holds the small amount of wiring shared by the three
// entry points (cmd/ingress, cmd/healthchecker, cmd/worker): constructing
// the Redis client and selecting a Ledger backend from Config.
package appinit

import (
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/rinha-intermediary/payment-intermediary/internal/config"
	"github.com/rinha-intermediary/payment-intermediary/internal/ledger"
	"github.com/rinha-intermediary/payment-intermediary/internal/ledger/embedded"
	"github.com/rinha-intermediary/payment-intermediary/internal/ledger/postgres"
)

// NewRedisClient builds a *redis.Client from Config.RedisURL, accepting
// both a full "redis://" connection string and the bare "host:port" form
// spec.md section 6 documents as the default.
func NewRedisClient(cfg config.Config) (*redis.Client, error) {
	if strings.Contains(cfg.RedisURL, "://") {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("appinit: parse REDIS_URL: %w", err)
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: cfg.RedisURL}), nil
}

// NewLedger opens the Postgres-backed Ledger when Config.DatabaseURL is
// set, falling back to the embedded bbolt Ledger for local/dev runs that
// have no Postgres instance available (SPEC_FULL.md section D).
func NewLedger(cfg config.Config) (ledger.Ledger, func() error, error) {
	if cfg.DatabaseURL != "" {
		l, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("appinit: open postgres ledger: %w", err)
		}
		return l, l.Close, nil
	}
	l, err := embedded.Open("payment-intermediary.db")
	if err != nil {
		return nil, nil, fmt.Errorf("appinit: open embedded ledger: %w", err)
	}
	return l, l.Close, nil
}
