package services

import (
	"context"
	"strconv"
	"testing"
	"time"

	"belgian-housing-api/config"
	"belgian-housing-api/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *CacheService) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache := NewCacheServiceFromClient(client, zap.NewNop())
	t.Cleanup(func() { _ = cache.Close() })
	return mr, cache
}

func TestCacheGetSet(t *testing.T) {
	mr, cache := setupTestRedis(t)
	ctx := context.Background()

	var stats models.Stats
	found, err := cache.Get(ctx, StatsKey("ds1", 1), &stats)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Set(ctx, StatsKey("ds1", 1), models.Stats{SnapshotVersion: 1, TotalMunicipalities: 20}, time.Minute))
	assert.True(t, mr.Exists("housing:stats:ds1:v1"))

	found, err = cache.Get(ctx, StatsKey("ds1", 1), &stats)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 20, stats.TotalMunicipalities)

	mr.FastForward(2 * time.Minute)
	found, _ = cache.Get(ctx, StatsKey("ds1", 1), &stats)
	assert.False(t, found)
}

func TestCacheGetMalformed(t *testing.T) {
	mr, cache := setupTestRedis(t)
	require.NoError(t, mr.Set(StatsKey("ds1", 3), "{not json"))

	var stats models.Stats
	_, err := cache.Get(context.Background(), StatsKey("ds1", 3), &stats)
	assert.Error(t, err)
}

func TestCacheDelete(t *testing.T) {
	mr, cache := setupTestRedis(t)
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "a", 1, 0))
	require.NoError(t, cache.Set(ctx, "b", 2, 0))

	require.NoError(t, cache.Delete(ctx, "a", "b"))
	assert.False(t, mr.Exists("a"))
	assert.False(t, mr.Exists("b"))
}

func TestCacheWithoutRedis(t *testing.T) {
	cache, err := NewCacheService(config.RedisConfig{Enabled: false}, zap.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	assert.False(t, cache.Available())
	assert.NoError(t, cache.Set(ctx, "k", 1, time.Minute))
	found, err := cache.Get(ctx, "k", new(int))
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, cache.Publish(ctx, RefreshChannel, "x"))
	assert.Nil(t, cache.Subscribe(ctx, RefreshChannel))
	assert.NoError(t, cache.Ping(ctx))
	assert.NoError(t, cache.Close())
}

func TestNewCacheServiceConnects(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)

	cache, err := NewCacheService(config.RedisConfig{Host: mr.Host(), Port: port, Enabled: true}, zap.NewNop())
	require.NoError(t, err)
	defer cache.Close()
	assert.True(t, cache.Available())
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "housing:stats:ds1:v12", StatsKey("ds1", 12))
	assert.Equal(t, "housing:list:ds1:v3:population:20:40", ListKey("ds1", 3, OrderByPopulation, 20, 40))
	assert.NotEqual(t, StatsKey("ds1", 12), StatsKey("ds2", 12), "equal revisions of different databases")
}

func TestEventBusSkipsOwnEvents(t *testing.T) {
	_, cache := setupTestRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	api := NewEventBus(cache, zap.NewNop())
	loader := NewEventBus(cache, zap.NewNop())
	assert.NotEqual(t, api.InstanceID(), loader.InstanceID())

	sub, err := api.SubscribeRefresh(ctx, false)
	require.NoError(t, err)
	require.NotNil(t, sub)
	defer sub.Close()

	got := make(chan models.RefreshEvent, 4)
	go sub.Run(ctx, func(e models.RefreshEvent) { got <- e })

	require.NoError(t, api.PublishRefresh(ctx, 4, 20, "seed"))
	require.NoError(t, loader.PublishRefresh(ctx, 5, 21, "statbel.csv"))

	select {
	case e := <-got:
		assert.Equal(t, loader.InstanceID(), e.InstanceID)
		assert.Equal(t, uint64(5), e.Version)
		assert.Equal(t, 21, e.Count)
		assert.Equal(t, "statbel.csv", e.Source)
	case <-ctx.Done():
		t.Fatal("no refresh event received")
	}

	select {
	case e := <-got:
		t.Fatalf("unexpected second event %+v", e)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestEventBusWithoutRedis(t *testing.T) {
	cache, err := NewCacheService(config.RedisConfig{}, zap.NewNop())
	require.NoError(t, err)
	bus := NewEventBus(cache, zap.NewNop())

	sub, err := bus.SubscribeRefresh(context.Background(), true)
	assert.NoError(t, err)
	assert.Nil(t, sub)
	assert.NoError(t, bus.PublishRefresh(context.Background(), 1, 1, "seed"))
}
