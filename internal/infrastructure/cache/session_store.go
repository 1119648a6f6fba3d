package cache

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/erp/deposits/internal/domain/deposit"
	"github.com/redis/go-redis/v9"
)

const (
	defaultSessionPrefix = "deposits:session:"
	// DefaultSessionTTL matches a typical storefront session lifetime
	DefaultSessionTTL = 48 * time.Hour
)

// RedisSessionStore keeps checkout session state in a Redis hash per session
type RedisSessionStore struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisSessionStore creates a session store on an existing client
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisSessionStore{client: client, keyPrefix: defaultSessionPrefix, ttl: ttl}
}

// Load returns the session state; an unknown session is empty
func (s *RedisSessionStore) Load(ctx context.Context, sessionID string) (deposit.MapSession, error) {
	values, err := s.client.HGetAll(ctx, s.keyPrefix+sessionID).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return deposit.MapSession(values), nil
}

// Save replaces the session state and refreshes its expiry
func (s *RedisSessionStore) Save(ctx context.Context, sessionID string, state deposit.MapSession) error {
	key := s.keyPrefix + sessionID
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(state) > 0 {
			values := make(map[string]any, len(state))
			for k, v := range state {
				values[k] = v
			}
			pipe.HSet(ctx, key, values)
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// InMemorySessionStore keeps session state in process memory
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]deposit.MapSession
}

// NewInMemorySessionStore creates an empty in-memory session store
func NewInMemorySessionStore() *InMemorySessionStore {
	return &InMemorySessionStore{sessions: make(map[string]deposit.MapSession)}
}

// Load returns a copy of the session state
func (s *InMemorySessionStore) Load(_ context.Context, sessionID string) (deposit.MapSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := deposit.MapSession{}
	maps.Copy(out, s.sessions[sessionID])
	return out, nil
}

// Save stores a copy of the session state
func (s *InMemorySessionStore) Save(_ context.Context, sessionID string, state deposit.MapSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make(deposit.MapSession, len(state))
	maps.Copy(stored, state)
	s.sessions[sessionID] = stored
	return nil
}

var (
	_ deposit.SessionStore = (*RedisSessionStore)(nil)
	_ deposit.SessionStore = (*InMemorySessionStore)(nil)
)
