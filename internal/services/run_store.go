package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/go-redis/redis/v8"
)

const lastRunKey = "gymledger:reminders:last_run"

// RunStore keeps the result of the most recent reminder dispatch.
type RunStore interface {
	Save(ctx context.Context, result *DispatchResult) error
	Last(ctx context.Context) (*DispatchResult, error)
}

// RedisRunStore shares the last run across processes.
type RedisRunStore struct {
	client *redis.Client
}

func NewRedisRunStore(client *redis.Client) *RedisRunStore {
	return &RedisRunStore{client: client}
}

func (s *RedisRunStore) Save(ctx context.Context, result *DispatchResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, lastRunKey, payload, 0).Err()
}

// Last returns nil when no run has been stored.
func (s *RedisRunStore) Last(ctx context.Context) (*DispatchResult, error) {
	payload, err := s.client.Get(ctx, lastRunKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var result DispatchResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// MemoryRunStore is used when Redis is not available.
type MemoryRunStore struct {
	mu   sync.RWMutex
	last *DispatchResult
}

func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{}
}

func (s *MemoryRunStore) Save(_ context.Context, result *DispatchResult) error {
	copied := *result
	s.mu.Lock()
	s.last = &copied
	s.mu.Unlock()
	return nil
}

func (s *MemoryRunStore) Last(_ context.Context) (*DispatchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil, nil
	}
	copied := *s.last
	return &copied, nil
}
