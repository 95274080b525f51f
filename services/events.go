package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"belgian-housing-api/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RefreshChannel carries a models.RefreshEvent after every dataset write.
const RefreshChannel = "housing:dataset:refreshed"

// EventBus publishes and receives refresh events on behalf of one process.
type EventBus struct {
	cache      *CacheService
	instanceID string
	log        *zap.Logger
}

func NewEventBus(cache *CacheService, log *zap.Logger) *EventBus {
	return &EventBus{cache: cache, instanceID: uuid.NewString(), log: log}
}

func (b *EventBus) InstanceID() string { return b.instanceID }

func (b *EventBus) PublishRefresh(ctx context.Context, version uint64, count int, source string) error {
	return b.cache.Publish(ctx, RefreshChannel, models.RefreshEvent{
		InstanceID: b.instanceID,
		Version:    version,
		Count:      count,
		Source:     source,
		At:         time.Now().UTC(),
	})
}

// RefreshSubscription delivers refresh events to one consumer.
type RefreshSubscription struct {
	ps         *redis.PubSub
	bus        *EventBus
	includeOwn bool
}

// SubscribeRefresh returns once Redis confirmed the subscription. Without
// Redis it returns nil and no error. With includeOwn false, events published
// by this bus are skipped.
func (b *EventBus) SubscribeRefresh(ctx context.Context, includeOwn bool) (*RefreshSubscription, error) {
	ps := b.cache.Subscribe(ctx, RefreshChannel)
	if ps == nil {
		return nil, nil
	}
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", RefreshChannel, err)
	}
	return &RefreshSubscription{ps: ps, bus: b, includeOwn: includeOwn}, nil
}

// Run calls fn for every event until ctx is done or the subscription closes.
func (s *RefreshSubscription) Run(ctx context.Context, fn func(models.RefreshEvent)) {
	ch := s.ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var event models.RefreshEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				s.bus.log.Warn("ignoring malformed refresh event", zap.Error(err))
				continue
			}
			if !s.includeOwn && event.InstanceID == s.bus.instanceID {
				continue
			}
			fn(event)
		}
	}
}

func (s *RefreshSubscription) Close() error {
	return s.ps.Close()
}
