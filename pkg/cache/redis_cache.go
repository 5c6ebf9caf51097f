package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	redisClient "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"logitrack/pkg/log"
	"logitrack/pkg/redis"
)

// RedisCacheManager implements SharedStore on Redis. Each tag owns a set of the
// keys written under it, and each key owns the set of its tags.
type RedisCacheManager struct {
	client *redis.Client
	config CacheConfig
	logger zerolog.Logger

	hits          atomic.Int64
	misses        atomic.Int64
	evictionCount atomic.Int64
}

// SharedStats provides shared tier performance metrics
type SharedStats struct {
	HitRate       float64 `json:"hitRate"`
	MissRate      float64 `json:"missRate"`
	MemoryUsage   int64   `json:"memoryUsage"`
	KeyCount      int     `json:"keyCount"`
	EvictionCount int64   `json:"evictionCount"`
	TotalHits     int64   `json:"totalHits"`
	TotalMisses   int64   `json:"totalMisses"`
}

func NewRedisCacheManager(client *redis.Client, config CacheConfig) *RedisCacheManager {
	return &RedisCacheManager{
		client: client,
		config: config,
		logger: log.WithComponent("shared-cache"),
	}
}

func (r *RedisCacheManager) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.GetClient().Get(ctx, r.buildKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redisClient.Nil) {
			r.misses.Add(1)
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get %s from shared cache: %w", key, err)
	}
	r.hits.Add(1)
	return data, true, nil
}

func (r *RedisCacheManager) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	cacheKey := r.buildKey(key)
	if err := r.client.GetClient().Set(ctx, cacheKey, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s in shared cache: %w", key, err)
	}
	if len(tags) == 0 {
		return nil
	}
	if err := r.TagKey(ctx, cacheKey, ttl, tags...); err != nil {
		// the value is still readable; only peer invalidation degrades
		r.logger.Warn().Err(err).Str("key", cacheKey).Msg("Failed to tag shared cache key")
	}
	return nil
}

// TagKey associates tags with a cache key. Tag sets outlive the data so an
// invalidation never misses a key that is still readable.
func (r *RedisCacheManager) TagKey(ctx context.Context, cacheKey string, ttl time.Duration, tags ...string) error {
	pipe := r.client.GetClient().Pipeline()

	keyTagsKey := r.buildTagKey("key_tags", cacheKey)
	members := make([]interface{}, len(tags))
	for i, tag := range tags {
		members[i] = tag
	}
	pipe.SAdd(ctx, keyTagsKey, members...)
	if ttl > 0 {
		pipe.Expire(ctx, keyTagsKey, ttl*2)
	}

	for _, tag := range tags {
		tagKeysKey := r.buildTagKey("tag_keys", tag)
		pipe.SAdd(ctx, tagKeysKey, cacheKey)
		if ttl > 0 {
			pipe.Expire(ctx, tagKeysKey, ttl*2)
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}

// InvalidateByTag removes all keys associated with a tag
func (r *RedisCacheManager) InvalidateByTag(ctx context.Context, tag string) (int, error) {
	tagKeysKey := r.buildTagKey("tag_keys", tag)

	keys, err := r.client.GetClient().SMembers(ctx, tagKeysKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get keys for tag %s: %w", tag, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	pipe := r.client.GetClient().Pipeline()
	for _, key := range keys {
		pipe.Del(ctx, key)
		pipe.Del(ctx, r.buildTagKey("key_tags", key))
	}
	pipe.Del(ctx, tagKeysKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to invalidate keys for tag %s: %w", tag, err)
	}

	r.evictionCount.Add(int64(len(keys)))
	return len(keys), nil
}

// GetCacheStats returns shared tier statistics
func (r *RedisCacheManager) GetCacheStats(ctx context.Context) SharedStats {
	totalHits := r.hits.Load()
	totalMisses := r.misses.Load()

	total := totalHits + totalMisses
	var hitRate, missRate float64
	if total > 0 {
		hitRate = float64(totalHits) / float64(total)
		missRate = float64(totalMisses) / float64(total)
	}

	var memoryUsage int64
	if info, err := r.client.GetClient().Info(ctx, "memory").Result(); err == nil {
		for _, line := range strings.Split(info, "\n") {
			if strings.HasPrefix(line, "used_memory:") {
				if val, err := strconv.ParseInt(strings.TrimSpace(strings.TrimPrefix(line, "used_memory:")), 10, 64); err == nil {
					memoryUsage = val
				}
			}
		}
	}

	keyCount := 0
	iter := r.client.GetClient().Scan(ctx, 0, r.config.KeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keyCount++
	}

	return SharedStats{
		HitRate:       hitRate,
		MissRate:      missRate,
		MemoryUsage:   memoryUsage,
		KeyCount:      keyCount,
		EvictionCount: r.evictionCount.Load(),
		TotalHits:     totalHits,
		TotalMisses:   totalMisses,
	}
}

func (r *RedisCacheManager) HealthCheck(ctx context.Context) error {
	return r.client.GetClient().Ping(ctx).Err()
}

func (r *RedisCacheManager) Close() error {
	return r.client.Close()
}

func (r *RedisCacheManager) buildKey(key string) string {
	return r.config.KeyPrefix + key
}

func (r *RedisCacheManager) buildTagKey(keyType, identifier string) string {
	return fmt.Sprintf("%s%s:%s", r.config.TagPrefix, keyType, identifier)
}
