package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/schema"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/defi-rag-assistant/server/internal/agent/model"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisMemoryStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisMemoryStore(rdb, ttl), mr
}

func newSQLiteStore(t *testing.T, ttl time.Duration) *SQLiteMemoryStore {
	t.Helper()
	s, err := NewSQLiteMemoryStore(context.Background(), filepath.Join(t.TempDir(), "mem", "memory.db"), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func stores(t *testing.T) map[string]model.MemoryStore {
	redisStore, _ := newRedisStore(t, time.Hour)
	return map[string]model.MemoryStore{
		"redis":    redisStore,
		"sqlite":   newSQLiteStore(t, time.Hour),
		"inmemory": NewInMemoryStore(),
	}
}

func TestMemoryStoreContract(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			empty, err := store.Load(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, "s1", empty.SessionID)
			assert.Empty(t, empty.Messages)

			require.NoError(t, store.Record(ctx, "s1", "What is Aave's TVL?", "Protocol: aave\nTVL: $1\nChain: Multiple\n\n"))
			require.NoError(t, store.Record(ctx, "s1", "And Compound?", "No specific DeFi data found for the query."))
			require.NoError(t, store.Record(ctx, "s2", "other session", "ctx"))

			h, err := store.Load(ctx, "s1")
			require.NoError(t, err)
			require.Len(t, h.Messages, 4)
			assert.Equal(t, schema.User, h.Messages[0].Role)
			assert.Equal(t, "What is Aave's TVL?", h.Messages[0].Content)
			assert.Equal(t, schema.Assistant, h.Messages[1].Role)
			assert.Equal(t, "Protocol: aave\nTVL: $1\nChain: Multiple\n\n", h.Messages[1].Content)
			assert.Equal(t, "And Compound?", h.Messages[2].Content)

			n, err := store.Count(ctx, "s1")
			require.NoError(t, err)
			assert.Equal(t, 4, n)

			require.NoError(t, store.Clear(ctx, "s1"))
			n, err = store.Count(ctx, "s1")
			require.NoError(t, err)
			assert.Zero(t, n)

			n, err = store.Count(ctx, "s2")
			require.NoError(t, err)
			assert.Equal(t, 2, n)
		})
	}
}

func TestMemoryStoreConcurrentRecords(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			var wg sync.WaitGroup
			for i := 0; i < 10; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					assert.NoError(t, store.Record(ctx, "shared", fmt.Sprintf("q%d", i), fmt.Sprintf("c%d", i)))
				}(i)
			}
			wg.Wait()

			h, err := store.Load(ctx, "shared")
			require.NoError(t, err)
			require.Len(t, h.Messages, 20)
			// pairs are never interleaved
			for i := 0; i < len(h.Messages); i += 2 {
				assert.Equal(t, "q"+h.Messages[i+1].Content[1:], h.Messages[i].Content)
			}
		})
	}
}

func TestRedisMemoryStoreTTL(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, "s1", "q", "c"))
	assert.Equal(t, time.Minute, mr.TTL("memory:s1:messages"))

	mr.FastForward(2 * time.Minute)
	n, err := store.Count(ctx, "s1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRedisMemoryStoreWrapsErrors(t *testing.T) {
	store, mr := newRedisStore(t, 0)
	mr.Close()

	err := store.Record(context.Background(), "s1", "q", "c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis operation failed")
}

func TestSQLiteMemoryStoreTTL(t *testing.T) {
	store := newSQLiteStore(t, time.Minute)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, "s1", "old", "old ctx"))
	now = now.Add(2 * time.Minute)
	require.NoError(t, store.Record(ctx, "s1", "new", "new ctx"))

	h, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, h.Messages, 2)
	assert.Equal(t, "new", h.Messages[0].Content)

	var stored int
	require.NoError(t, store.db.QueryRow(`SELECT COUNT(*) FROM memory_messages`).Scan(&stored))
	assert.Equal(t, 2, stored)
}

func TestInMemoryStoreLoadReturnsCopies(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Record(ctx, "s1", "q", "c"))

	h, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	h.Messages[0].Content = "mutated"

	again, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "q", again.Messages[0].Content)
}
