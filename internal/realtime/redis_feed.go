package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"logitrack/internal/store"
	"logitrack/pkg/log"
	"logitrack/pkg/redis"
)

const redisChannelPrefix = "logitrack:changes:"

// RedisFeed carries changes over Redis pub/sub, one channel per table. It is
// both the ChangeFeed read by the bus and the Publisher behind store.Announcing.
type RedisFeed struct {
	client *redis.Client
	logger zerolog.Logger
}

func NewRedisFeed(client *redis.Client) *RedisFeed {
	return &RedisFeed{client: client, logger: log.WithComponent("redis-feed")}
}

func redisChannel(table string) string {
	return redisChannelPrefix + table
}

func (f *RedisFeed) Publish(ctx context.Context, c store.Change) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode change: %w", err)
	}
	if err := f.client.GetClient().Publish(ctx, redisChannel(c.Table), payload).Err(); err != nil {
		return fmt.Errorf("publish change on %s: %w", c.Table, err)
	}
	return nil
}

func (f *RedisFeed) Subscribe(ctx context.Context, scope store.Scope, fn func(store.Change)) (func(), error) {
	ps := f.client.GetClient().Subscribe(ctx, redisChannel(scope.Table))
	// wait for the subscription to be confirmed so no publish is missed after return
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", scope.Key(), err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range ps.Channel() {
			var c store.Change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				f.logger.Warn().Err(err).Str("channel", msg.Channel).Msg("Dropping undecodable change")
				continue
			}
			if scope.Matches(c) {
				fn(c)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ps.Close()
			<-done
		})
	}, nil
}
