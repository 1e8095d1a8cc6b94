// Package redisstore implements health.Store on Redis, using the exact
// key layout spec.md section 6 specifies: "health:{name}" (JSON
// {failing, min_response_time}, TTL HEALTH_STATUS_TTL) and
// "rate_limit:{name}" (any value, TTL RATE_LIMIT_TTL).
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rinha-intermediary/payment-intermediary/internal/domain"
	"github.com/rinha-intermediary/payment-intermediary/internal/health"
)

// Store is a Redis-backed health.Store.
type Store struct {
	client *redis.Client
}

// New wraps an existing *redis.Client. The client is shared by reference
// across the health oracle, rate limiter, and (separately) the queue
// adapter, consistent with spec.md section 6 listing REDIS_URL once for
// all three concerns.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

type verdictJSON struct {
	Failing         bool  `json:"failing"`
	MinResponseTime int64 `json:"min_response_time"`
}

func healthKey(p domain.Processor) string    { return "health:" + string(p) }
func rateLimitKey(p domain.Processor) string { return "rate_limit:" + string(p) }

func (s *Store) GetHealth(ctx context.Context, p domain.Processor) (*domain.ProcessorHealth, error) {
	raw, err := s.client.Get(ctx, healthKey(p)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("health/redisstore: get: %w", err)
	}
	var v verdictJSON
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("health/redisstore: unmarshal: %w", err)
	}
	return &domain.ProcessorHealth{
		Failing:         v.Failing,
		MinResponseTime: time.Duration(v.MinResponseTime) * time.Millisecond,
		ObservedAt:      time.Now(),
	}, nil
}

func (s *Store) SetHealth(ctx context.Context, p domain.Processor, h domain.ProcessorHealth, ttl time.Duration) error {
	raw, err := json.Marshal(verdictJSON{
		Failing:         h.Failing,
		MinResponseTime: h.MinResponseTime.Milliseconds(),
	})
	if err != nil {
		return fmt.Errorf("health/redisstore: marshal: %w", err)
	}
	if err := s.client.Set(ctx, healthKey(p), raw, ttl).Err(); err != nil {
		return fmt.Errorf("health/redisstore: set: %w", err)
	}
	return nil
}

func (s *Store) TryAcquireRateLimit(ctx context.Context, p domain.Processor, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, rateLimitKey(p), 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("health/redisstore: setnx: %w", err)
	}
	return ok, nil
}

var _ health.Store = (*Store)(nil)
