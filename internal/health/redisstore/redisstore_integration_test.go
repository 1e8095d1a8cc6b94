//go:build integration

package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rinha-intermediary/payment-intermediary/internal/domain"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_URL")
	if addr == "" {
		t.Skip("REDIS_URL not set")
	}
	return redis.NewClient(&redis.Options{Addr: addr})
}

func TestStoreSetThenGetHealth(t *testing.T) {
	ctx := context.Background()
	s := New(newTestClient(t))

	require.NoError(t, s.SetHealth(ctx, domain.Default, domain.ProcessorHealth{Failing: false, MinResponseTime: 120 * time.Millisecond}, time.Minute))

	h, err := s.GetHealth(ctx, domain.Default)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.False(t, h.Failing)
	assert.Equal(t, 120*time.Millisecond, h.MinResponseTime)
}

func TestStoreTryAcquireRateLimitOnce(t *testing.T) {
	ctx := context.Background()
	s := New(newTestClient(t))

	first, err := s.TryAcquireRateLimit(ctx, domain.Fallback, time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := s.TryAcquireRateLimit(ctx, domain.Fallback, time.Minute)
	require.NoError(t, err)
	assert.False(t, second)
}
