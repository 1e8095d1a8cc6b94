package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rinha-intermediary/payment-intermediary/internal/domain"
)

func TestBestProcessorNeitherPresentDefaultsOptimistically(t *testing.T) {
	o := NewOracle(NewMemoryStore())
	assert.Equal(t, domain.Default, o.BestProcessor(context.Background()))
}

func TestBestProcessorBothHealthyPrefersDefault(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.SetHealth(ctx, domain.Default, domain.ProcessorHealth{Failing: false, MinResponseTime: 100 * time.Millisecond}, time.Minute))
	require.NoError(t, store.SetHealth(ctx, domain.Fallback, domain.ProcessorHealth{Failing: false, MinResponseTime: 100 * time.Millisecond}, time.Minute))

	o := NewOracle(store)
	assert.Equal(t, domain.Default, o.BestProcessor(ctx))
}

func TestBestProcessorFallbackDramaticallyFaster(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.SetHealth(ctx, domain.Default, domain.ProcessorHealth{Failing: false, MinResponseTime: 300 * time.Millisecond}, time.Minute))
	require.NoError(t, store.SetHealth(ctx, domain.Fallback, domain.ProcessorHealth{Failing: false, MinResponseTime: 100 * time.Millisecond}, time.Minute))

	o := NewOracle(store)
	assert.Equal(t, domain.Fallback, o.BestProcessor(ctx))
}

func TestBestProcessorFallbackNotQuiteFastEnoughStaysDefault(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.SetHealth(ctx, domain.Default, domain.ProcessorHealth{Failing: false, MinResponseTime: 199 * time.Millisecond}, time.Minute))
	require.NoError(t, store.SetHealth(ctx, domain.Fallback, domain.ProcessorHealth{Failing: false, MinResponseTime: 100 * time.Millisecond}, time.Minute))

	o := NewOracle(store)
	assert.Equal(t, domain.Default, o.BestProcessor(ctx))
}

func TestBestProcessorOnlyDefaultHealthy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.SetHealth(ctx, domain.Default, domain.ProcessorHealth{Failing: false, MinResponseTime: 500 * time.Millisecond}, time.Minute))
	require.NoError(t, store.SetHealth(ctx, domain.Fallback, domain.ProcessorHealth{Failing: true, MinResponseTime: 9999 * time.Millisecond}, time.Minute))

	o := NewOracle(store)
	assert.Equal(t, domain.Default, o.BestProcessor(ctx))
}

func TestBestProcessorOnlyFallbackHealthy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.SetHealth(ctx, domain.Default, domain.ProcessorHealth{Failing: true, MinResponseTime: 9999 * time.Millisecond}, time.Minute))
	require.NoError(t, store.SetHealth(ctx, domain.Fallback, domain.ProcessorHealth{Failing: false, MinResponseTime: 250 * time.Millisecond}, time.Minute))

	o := NewOracle(store)
	assert.Equal(t, domain.Fallback, o.BestProcessor(ctx))
}

func TestBestProcessorBothFailingPicksLeastBad(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.SetHealth(ctx, domain.Default, domain.ProcessorHealth{Failing: true, MinResponseTime: 500 * time.Millisecond}, time.Minute))
	require.NoError(t, store.SetHealth(ctx, domain.Fallback, domain.ProcessorHealth{Failing: true, MinResponseTime: 200 * time.Millisecond}, time.Minute))

	o := NewOracle(store)
	assert.Equal(t, domain.Fallback, o.BestProcessor(ctx))
}

func TestBestProcessorOnlyOnePresentHealthyWins(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.SetHealth(ctx, domain.Fallback, domain.ProcessorHealth{Failing: false, MinResponseTime: 100 * time.Millisecond}, time.Minute))

	o := NewOracle(store)
	assert.Equal(t, domain.Fallback, o.BestProcessor(ctx))
}

func TestBestProcessorOnlyOnePresentFailingFallsBackToOther(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.SetHealth(ctx, domain.Default, domain.ProcessorHealth{Failing: true, MinResponseTime: 9999 * time.Millisecond}, time.Minute))

	o := NewOracle(store)
	assert.Equal(t, domain.Fallback, o.BestProcessor(ctx))
}

func TestBestProcessorLocalCacheAvoidsRepeatedStoreReads(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{MemoryStore: NewMemoryStore()}
	require.NoError(t, store.SetHealth(ctx, domain.Default, domain.ProcessorHealth{Failing: false, MinResponseTime: 100 * time.Millisecond}, time.Minute))

	o := NewOracle(store)
	o.BestProcessor(ctx)
	o.BestProcessor(ctx)
	o.BestProcessor(ctx)

	// Three calls to BestProcessor each touch two processors, but the
	// local cache should serve all but the first lookup per processor.
	assert.Equal(t, 2, store.gets)
}

type countingStore struct {
	*MemoryStore
	gets int
}

func (c *countingStore) GetHealth(ctx context.Context, p domain.Processor) (*domain.ProcessorHealth, error) {
	c.gets++
	return c.MemoryStore.GetHealth(ctx, p)
}
