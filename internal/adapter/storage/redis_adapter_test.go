package storage

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GokhanAsilturk/microservice-restaurant/internal/core/domain"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisAdapter_CreateGetDelete(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	name := testItemName("redis-create")
	item, err := adapter.Create(ctx, domain.Item{Name: name, PriceCents: 7000, Quantity: 15})
	require.NoError(t, err)

	got, err := adapter.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, name, got.Name)
	assert.Equal(t, int64(7000), got.PriceCents)
	assert.Equal(t, 15, got.Quantity)

	_, err = adapter.Create(ctx, domain.Item{Name: name, PriceCents: 1, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrDuplicateName)

	items, err := adapter.List(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, items)

	require.NoError(t, adapter.Delete(ctx, item.ID))
	assert.ErrorIs(t, adapter.Delete(ctx, item.ID), domain.ErrNotFound)

	exists, err := adapter.Exists(ctx, item.ID)
	require.NoError(t, err)
	assert.False(t, exists)

	// name released with the item
	again, err := adapter.Create(ctx, domain.Item{Name: name, PriceCents: 1, Quantity: 1})
	require.NoError(t, err)
	adapter.Delete(ctx, again.ID)
}

func TestRedisAdapter_Replace(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	a, err := adapter.Create(ctx, domain.Item{Name: testItemName("redis-a"), PriceCents: 100, Quantity: 1})
	require.NoError(t, err)
	defer adapter.Delete(ctx, a.ID)
	b, err := adapter.Create(ctx, domain.Item{Name: testItemName("redis-b"), PriceCents: 100, Quantity: 1})
	require.NoError(t, err)
	defer adapter.Delete(ctx, b.ID)

	_, err = adapter.Replace(ctx, b.ID, domain.Item{Name: a.Name, PriceCents: 100, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrDuplicateName)

	updated, err := adapter.Replace(ctx, a.ID, domain.Item{Name: a.Name, PriceCents: 250, Quantity: 9})
	require.NoError(t, err)
	assert.Equal(t, int64(250), updated.PriceCents)
	assert.Equal(t, 9, updated.Quantity)
	assert.Equal(t, 1, updated.Version)

	_, err = adapter.Replace(ctx, -1, domain.Item{Name: testItemName("ghost"), PriceCents: 1, Quantity: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRedisAdapter_CompareAndSetQuantity_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	item, err := adapter.Create(ctx, domain.Item{Name: testItemName("redis-cas"), PriceCents: 100, Quantity: 20})
	require.NoError(t, err)
	defer adapter.Delete(ctx, item.ID)

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := adapter.CompareAndSetQuantity(ctx, item.ID, 20, 19)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), successCount.Load())

	got, _ := adapter.Get(ctx, item.ID)
	assert.Equal(t, 19, got.Quantity)
}

func TestRedisIdempotency_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	ctx := context.Background()
	idem := NewRedisIdempotency(client, time.Minute)

	key := testItemName("idem")
	defer idem.Release(ctx, key)

	var successCount atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := idem.Acquire(ctx, key)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				successCount.Add(1)
			}
		}()
	}
	wg.Wait()

	// Only one should succeed
	assert.Equal(t, int32(1), successCount.Load())

	require.NoError(t, idem.Release(ctx, key))
	ok, err := idem.Acquire(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
}
