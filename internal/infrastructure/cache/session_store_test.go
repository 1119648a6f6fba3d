package cache

import (
	"context"
	"os"
	"testing"

	"github.com/erp/deposits/internal/domain/deposit"
	"github.com/erp/deposits/internal/infrastructure/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// redisTestClient connects to DEPOSITS_TEST_REDIS_ADDR or skips the test
func redisTestClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("DEPOSITS_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("DEPOSITS_TEST_REDIS_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// ==================== InMemorySessionStore Tests ====================

func TestInMemorySessionStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemorySessionStore()

	empty, err := store.Load(ctx, "unknown")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	state := deposit.MapSession{deposit.SessionKeyDepositOption: "full"}
	require.NoError(t, store.Save(ctx, "sess-1", state))

	// Stored state is a copy
	state[deposit.SessionKeyDepositOption] = "deposit"
	loaded, err := store.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "full", loaded[deposit.SessionKeyDepositOption])

	loaded.Set(deposit.SessionKeySelectedPlan, "p")
	again, _ := store.Load(ctx, "sess-1")
	_, ok := again.Get(deposit.SessionKeySelectedPlan)
	assert.False(t, ok)
}

// ==================== Redis Store Tests ====================

func TestRedisSessionStore(t *testing.T) {
	client := redisTestClient(t)
	ctx := context.Background()
	store := NewRedisSessionStore(client, 0)
	sessionID := uuid.NewString()
	t.Cleanup(func() { client.Del(ctx, defaultSessionPrefix+sessionID) })

	empty, err := store.Load(ctx, sessionID)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, store.Save(ctx, sessionID, deposit.MapSession{
		deposit.SessionKeyDepositOption: "deposit",
		deposit.SessionKeySelectedPlan:  "plan-1",
	}))
	loaded, err := store.Load(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, "deposit", loaded[deposit.SessionKeyDepositOption])

	require.NoError(t, store.Save(ctx, sessionID, deposit.MapSession{deposit.SessionKeyDepositOption: "full"}))
	loaded, err = store.Load(ctx, sessionID)
	require.NoError(t, err)
	assert.Equal(t, deposit.MapSession{deposit.SessionKeyDepositOption: "full"}, loaded)

	ttl, err := client.TTL(ctx, defaultSessionPrefix+sessionID).Result()
	require.NoError(t, err)
	assert.Positive(t, ttl)
}

func TestRedisIdempotencyStore(t *testing.T) {
	client := redisTestClient(t)
	ctx := context.Background()
	store := NewRedisIdempotencyStore(client, "deposits:test:")
	key := uuid.NewString()
	t.Cleanup(func() { client.Del(ctx, "deposits:test:"+key) })

	isNew, err := store.MarkProcessed(ctx, key, DefaultSessionTTL)
	require.NoError(t, err)
	assert.True(t, isNew)

	isNew, err = store.MarkProcessed(ctx, key, DefaultSessionTTL)
	require.NoError(t, err)
	assert.False(t, isNew)

	processed, err := store.IsProcessed(ctx, key)
	require.NoError(t, err)
	assert.True(t, processed)
	assert.NoError(t, store.Close())
}

// ==================== StoreFactory Tests ====================

func TestStoreFactory(t *testing.T) {
	t.Run("without redis host uses memory", func(t *testing.T) {
		stores, err := NewStoreFactory(config.RedisConfig{}, WithLogger(zap.NewNop())).Create()
		require.NoError(t, err)
		defer stores.Close()
		assert.False(t, stores.Shared())
		assert.IsType(t, &InMemorySessionStore{}, stores.Sessions)
		assert.IsType(t, &InMemoryIdempotencyStore{}, stores.Idempotency)
	})

	t.Run("unreachable redis falls back", func(t *testing.T) {
		cfg := config.RedisConfig{Host: "127.0.0.1", Port: 1}
		stores, err := NewStoreFactory(cfg).Create()
		require.NoError(t, err)
		defer stores.Close()
		assert.False(t, stores.Shared())
	})

	t.Run("unreachable redis without fallback fails", func(t *testing.T) {
		cfg := config.RedisConfig{Host: "127.0.0.1", Port: 1}
		_, err := NewStoreFactory(cfg, WithInMemoryFallback(false)).Create()
		assert.Error(t, err)
	})
}
