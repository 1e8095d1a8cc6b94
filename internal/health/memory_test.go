package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rinha-intermediary/payment-intermediary/internal/domain"
)

func TestMemoryStoreGetHealthAbsentIsNil(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	h, err := s.GetHealth(ctx, domain.Default)
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestMemoryStoreSetThenGetHealth(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.SetHealth(ctx, domain.Default, domain.ProcessorHealth{Failing: true, MinResponseTime: 42 * time.Millisecond}, time.Minute))

	h, err := s.GetHealth(ctx, domain.Default)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.True(t, h.Failing)
	assert.Equal(t, 42*time.Millisecond, h.MinResponseTime)
}

func TestMemoryStoreHealthExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.SetHealth(ctx, domain.Default, domain.ProcessorHealth{Failing: false}, 10*time.Millisecond))

	time.Sleep(30 * time.Millisecond)

	h, err := s.GetHealth(ctx, domain.Default)
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestMemoryStoreTryAcquireRateLimitOnlyOnceWithinTTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	first, err := s.TryAcquireRateLimit(ctx, domain.Default, 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := s.TryAcquireRateLimit(ctx, domain.Default, 50*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, second)

	time.Sleep(70 * time.Millisecond)

	third, err := s.TryAcquireRateLimit(ctx, domain.Default, 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, third)
}
