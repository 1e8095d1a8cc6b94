package health

import (
	"context"
	"log/slog"
	"time"

	"github.com/joeycumines/go-catrate"

	"github.com/rinha-intermediary/payment-intermediary/internal/domain"
)

// Prober issues the outbound health-check GET against a processor.
type Prober interface {
	Probe(ctx context.Context, p domain.Processor) (failing bool, minResponseTime time.Duration, err error)
}

// Refresher runs the background loop described in spec.md section 4.3:
// for each processor in order, claim its rate-limit token and probe it,
// sleeping InterCheckDelay between processors and CycleInterval after a
// full pass. It is a single-writer component; only one Refresher should
// run per process against a given Store.
type Refresher struct {
	store  Store
	prober Prober
	logger *slog.Logger

	healthTTL       time.Duration
	rateLimitTTL    time.Duration
	interCheckDelay time.Duration
	cycleInterval   time.Duration
	failedRespTime  time.Duration

	// local catrate guard: a fast-path reducer of Store round-trips in
	// front of the authoritative rate-limit token held in Store, mirroring
	// the local TTL cache Oracle keeps in front of Store reads.
	limiter *catrate.Limiter
}

// RefresherConfig bundles the tunables named in spec.md section 6 that
// govern refresh scheduling.
type RefresherConfig struct {
	HealthStatusTTL    time.Duration
	RateLimitTTL       time.Duration
	InterCheckDelay    time.Duration
	CycleInterval      time.Duration
	FailedResponseTime time.Duration
}

// NewRefresher constructs a Refresher. prober performs the actual HTTP
// call; store is the shared verdict/rate-limit cache.
func NewRefresher(store Store, prober Prober, logger *slog.Logger, cfg RefresherConfig) *Refresher {
	return &Refresher{
		store:           store,
		prober:          prober,
		logger:          logger,
		healthTTL:       cfg.HealthStatusTTL,
		rateLimitTTL:    cfg.RateLimitTTL,
		interCheckDelay: cfg.InterCheckDelay,
		cycleInterval:   cfg.CycleInterval,
		failedRespTime:  cfg.FailedResponseTime,
		limiter: catrate.NewLimiter(map[time.Duration]int{
			cfg.RateLimitTTL: 1,
		}),
	}
}

// Run loops until ctx is cancelled, refreshing domain.Default and
// domain.Fallback in order each cycle.
func (r *Refresher) Run(ctx context.Context) {
	processors := []domain.Processor{domain.Default, domain.Fallback}
	for {
		for _, p := range processors {
			if ctx.Err() != nil {
				return
			}
			r.refresh(ctx, p)
			if !sleepCtx(ctx, r.interCheckDelay) {
				return
			}
		}
		if !sleepCtx(ctx, r.cycleInterval) {
			return
		}
	}
}

// refresh implements the single-processor probe step of spec.md section
// 4.3, including the local fast-path guard and the authoritative
// Store-backed rate-limit token, which is acquired before the HTTP call
// so a slow probe cannot cause the next cycle to silently skip.
func (r *Refresher) refresh(ctx context.Context, p domain.Processor) {
	if _, ok := r.limiter.Allow(p); !ok {
		return
	}

	acquired, err := r.store.TryAcquireRateLimit(ctx, p, r.rateLimitTTL)
	if err != nil {
		r.logger.Error("health refresh: rate limit check failed", "processor", p, "error", err)
		return
	}
	if !acquired {
		return
	}

	failing, minResponseTime, err := r.prober.Probe(ctx, p)
	verdict := domain.ProcessorHealth{ObservedAt: time.Now()}
	if err != nil {
		verdict.Failing = true
		verdict.MinResponseTime = r.failedRespTime
		r.logger.Warn("health probe failed", "processor", p, "error", err)
	} else {
		verdict.Failing = failing
		verdict.MinResponseTime = minResponseTime
	}

	if err := r.store.SetHealth(ctx, p, verdict, r.healthTTL); err != nil {
		r.logger.Error("health refresh: store write failed", "processor", p, "error", err)
	}
}

// sleepCtx sleeps for d or until ctx is cancelled, returning false in the
// latter case.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
