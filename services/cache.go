package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"belgian-housing-api/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const pingAttempts = 5

// CacheService wraps Redis. With a nil client every call is a no-op and Get
// always misses, so the API keeps working without Redis.
type CacheService struct {
	client *redis.Client
	log    *zap.Logger
}

func NewCacheService(cfg config.RedisConfig, log *zap.Logger) (*CacheService, error) {
	if !cfg.Enabled {
		log.Info("redis disabled")
		return &CacheService{log: log}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	var lastErr error
	for i := 0; i < pingAttempts; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		lastErr = client.Ping(ctx).Err()
		cancel()
		if lastErr == nil {
			return &CacheService{client: client, log: log}, nil
		}
		log.Warn("redis ping failed", zap.Int("attempt", i+1), zap.Int("max_attempts", pingAttempts), zap.Error(lastErr))
		if i < pingAttempts-1 {
			time.Sleep(time.Second)
		}
	}

	_ = client.Close()
	return &CacheService{log: log}, fmt.Errorf("redis ping failed after %d attempts: %w", pingAttempts, lastErr)
}

// NewCacheServiceFromClient wraps an existing client.
func NewCacheServiceFromClient(client *redis.Client, log *zap.Logger) *CacheService {
	return &CacheService{client: client, log: log}
}

func (s *CacheService) Available() bool {
	return s.client != nil
}

// Get decodes the value at key into dest and reports whether it was found.
func (s *CacheService) Get(ctx context.Context, key string, dest any) (bool, error) {
	if s.client == nil {
		return false, nil
	}
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, fmt.Errorf("failed to decode cached %s: %w", key, err)
	}
	return true, nil
}

func (s *CacheService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if s.client == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	if s.client == nil || len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *CacheService) Publish(ctx context.Context, channel string, message any) error {
	if s.client == nil {
		return nil
	}
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, channel, data).Err()
}

func (s *CacheService) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	if s.client == nil {
		return nil
	}
	return s.client.Subscribe(ctx, channel)
}

func (s *CacheService) Ping(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	return s.client.Ping(ctx).Err()
}

func (s *CacheService) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Cache keys embed the dataset id and the snapshot version, so a refresh
// never serves stale data and instances backed by different databases never
// read each other's entries.
func StatsKey(dataset string, version uint64) string {
	return fmt.Sprintf("housing:stats:%s:v%d", dataset, version)
}

func ListKey(dataset string, version uint64, order ListOrder, limit, offset int) string {
	return fmt.Sprintf("housing:list:%s:v%d:%s:%d:%d", dataset, version, order, limit, offset)
}
