package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/constants"
	"github.com/aman-zulfiqar/solana-tipjar-indexer/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// FeedKey builds the cache key for a donation feed. Feeds are keyed by owner
// AND endpoint: the same jar has different histories on different clusters.
func FeedKey(owner, endpoint string) string {
	return endpoint + ":" + owner
}

// RedisCache caches reconciled donation feeds with a freshness TTL and a
// per-key generation counter. The generation guard keeps a superseded query
// from overwriting fresher state: each query claims a generation up front and
// PutFeed discards writes whose generation is no longer the newest written.
type RedisCache struct {
	client *redis.Client
	logger *logrus.Logger
}

// NewRedisCache creates a RedisCache from an address.
func NewRedisCache(addr string, logger *logrus.Logger) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   0,
	})
	return NewRedisCacheFromClient(client, logger)
}

// NewRedisCacheFromClient wraps an existing redis client.
func NewRedisCacheFromClient(client *redis.Client, logger *logrus.Logger) *RedisCache {
	if logger == nil {
		logger = logrus.New()
	}
	return &RedisCache{client: client, logger: logger}
}

// NextGeneration claims the next query generation for key.
func (r *RedisCache) NextGeneration(ctx context.Context, key string) (uint64, error) {
	gen, err := r.client.Incr(ctx, constants.RedisKeyGenPrefix+key).Result()
	if err != nil {
		return 0, fmt.Errorf("claim generation: %w", err)
	}
	return uint64(gen), nil
}

// PutFeed stores feed under key unless a newer generation already wrote.
func (r *RedisCache) PutFeed(ctx context.Context, key string, generation uint64, feed *models.DonationFeed) error {
	wgenKey := constants.RedisKeyGenPrefix + "written:" + key

	written, err := r.client.Get(ctx, wgenKey).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("read written generation: %w", err)
	}
	if err == nil {
		if w, perr := strconv.ParseUint(written, 10, 64); perr == nil && w >= generation {
			r.logger.WithFields(logrus.Fields{
				"key":        key,
				"generation": generation,
				"written":    w,
			}).Debug("discarding stale feed write")
			return nil
		}
	}

	b, err := json.Marshal(feed)
	if err != nil {
		return fmt.Errorf("marshal feed: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, constants.RedisKeyFeedPrefix+key, b, constants.FeedFreshness)
	pipe.Set(ctx, wgenKey, strconv.FormatUint(generation, 10), constants.FeedFreshness)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store feed: %w", err)
	}
	return nil
}

// GetFeed retrieves a cached feed; ok is false once the freshness TTL lapsed.
func (r *RedisCache) GetFeed(ctx context.Context, key string) (*models.DonationFeed, bool, error) {
	val, err := r.client.Get(ctx, constants.RedisKeyFeedPrefix+key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get feed: %w", err)
	}

	var feed models.DonationFeed
	if err := json.Unmarshal([]byte(val), &feed); err != nil {
		return nil, false, fmt.Errorf("unmarshal feed: %w", err)
	}
	return &feed, true, nil
}

// Ping checks if the cache is reachable
func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the cache connection
func (r *RedisCache) Close() error {
	return r.client.Close()
}
