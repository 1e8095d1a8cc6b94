package health

import (
	"context"
	"sync"
	"time"

	"github.com/rinha-intermediary/payment-intermediary/internal/domain"
)

type memoryEntry struct {
	health   domain.ProcessorHealth
	expireAt time.Time
}

// MemoryStore is an in-process Store used by tests, with the same TTL
// semantics as redisstore: entries past their expiry read back as absent.
type MemoryStore struct {
	mu        sync.Mutex
	health    map[domain.Processor]memoryEntry
	rateLimit map[domain.Processor]time.Time
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		health:    make(map[domain.Processor]memoryEntry),
		rateLimit: make(map[domain.Processor]time.Time),
	}
}

func (m *MemoryStore) GetHealth(_ context.Context, p domain.Processor) (*domain.ProcessorHealth, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.health[p]
	if !ok || time.Now().After(entry.expireAt) {
		return nil, nil
	}
	h := entry.health
	return &h, nil
}

func (m *MemoryStore) SetHealth(_ context.Context, p domain.Processor, h domain.ProcessorHealth, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.health[p] = memoryEntry{health: h, expireAt: time.Now().Add(ttl)}
	return nil
}

func (m *MemoryStore) TryAcquireRateLimit(_ context.Context, p domain.Processor, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	if expireAt, ok := m.rateLimit[p]; ok && now.Before(expireAt) {
		return false, nil
	}
	m.rateLimit[p] = now.Add(ttl)
	return true, nil
}

var _ Store = (*MemoryStore)(nil)
