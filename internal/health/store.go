// Package health implements the health oracle (spec.md section 4.3): the
// shared, TTL-bounded verdict cache that drives processor selection, and
// the background refresher that keeps it populated within the processor
// health-check rate limit.
package health

import (
	"context"
	"time"

	"github.com/rinha-intermediary/payment-intermediary/internal/domain"
)

// Store is the shared keyed cache backing the health oracle: per-processor
// verdicts (TTL HEALTH_STATUS_TTL) and per-processor rate-limit tokens
// (TTL RATE_LIMIT_TTL), as named in spec.md section 6
// ("health:{name}", "rate_limit:{name}"). Any number of readers and
// writers may use a Store concurrently; writes to a given key must be
// linearized by the store itself (spec.md section 4.3, "Concurrency").
type Store interface {
	// GetHealth returns the cached verdict for p, or nil if absent or
	// expired. Absence is a distinct state from Failing=true.
	GetHealth(ctx context.Context, p domain.Processor) (*domain.ProcessorHealth, error)

	// SetHealth writes the verdict for p with the given TTL.
	SetHealth(ctx context.Context, p domain.Processor, health domain.ProcessorHealth, ttl time.Duration) error

	// TryAcquireRateLimit atomically sets the rate-limit token for p with
	// the given TTL if (and only if) it is not already set, returning
	// whether it acquired the token. While the token is present, probes
	// for p must be suppressed (spec.md section 4.3, "Refresh
	// scheduling").
	TryAcquireRateLimit(ctx context.Context, p domain.Processor, ttl time.Duration) (bool, error)
}
