package health

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rinha-intermediary/payment-intermediary/internal/domain"
)

type fakeProber struct {
	mu    sync.Mutex
	calls map[domain.Processor][]time.Time
	fail  map[domain.Processor]bool
}

func newFakeProber() *fakeProber {
	return &fakeProber{calls: make(map[domain.Processor][]time.Time), fail: make(map[domain.Processor]bool)}
}

func (f *fakeProber) Probe(_ context.Context, p domain.Processor) (bool, time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[p] = append(f.calls[p], time.Now())
	if f.fail[p] {
		return false, 0, errors.New("probe failed")
	}
	return false, 50 * time.Millisecond, nil
}

func (f *fakeProber) callCount(p domain.Processor) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls[p])
}

func silentLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRefresherWritesHealthyVerdict(t *testing.T) {
	store := NewMemoryStore()
	prober := newFakeProber()
	r := NewRefresher(store, prober, silentLogger(), RefresherConfig{
		HealthStatusTTL:    time.Minute,
		RateLimitTTL:       time.Minute,
		InterCheckDelay:    time.Millisecond,
		CycleInterval:      time.Hour,
		FailedResponseTime: 24 * time.Hour,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	h, err := store.GetHealth(context.Background(), domain.Default)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.False(t, h.Failing)
	assert.Equal(t, 50*time.Millisecond, h.MinResponseTime)
}

func TestRefresherRecordsFailingSentinelOnProbeError(t *testing.T) {
	store := NewMemoryStore()
	prober := newFakeProber()
	prober.fail[domain.Default] = true
	r := NewRefresher(store, prober, silentLogger(), RefresherConfig{
		HealthStatusTTL:    time.Minute,
		RateLimitTTL:       time.Minute,
		InterCheckDelay:    time.Millisecond,
		CycleInterval:      time.Hour,
		FailedResponseTime: 24 * time.Hour,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	h, err := store.GetHealth(context.Background(), domain.Default)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.True(t, h.Failing)
	assert.Equal(t, 24*time.Hour, h.MinResponseTime)
}

func TestRefresherRespectsRateLimitAcrossCycles(t *testing.T) {
	store := NewMemoryStore()
	prober := newFakeProber()
	r := NewRefresher(store, prober, silentLogger(), RefresherConfig{
		HealthStatusTTL:    time.Minute,
		RateLimitTTL:       200 * time.Millisecond,
		InterCheckDelay:    time.Millisecond,
		CycleInterval:      5 * time.Millisecond,
		FailedResponseTime: 24 * time.Hour,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()
	r.Run(ctx)

	// Many cycles could have elapsed in 120ms given a 5ms cycle interval,
	// but the 200ms rate-limit token must cap Default probes at one.
	assert.Equal(t, 1, prober.callCount(domain.Default))
}
