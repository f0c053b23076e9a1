package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"DubFlow/config"
	"DubFlow/logger"
	"DubFlow/model"
)

const (
	resultKeyPrefix = "dubbing:result:"
	// StatusChannel carries a JSON DubbingResult snapshot on every transition.
	StatusChannel = "dubbing:status"
)

// ResultCache keeps the latest DubbingResult per request in Redis and publishes
// every change on StatusChannel.
type ResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisClient 初始化Redis连接并测试
func NewRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewResultCache wraps an existing client. ttl <= 0 keeps entries forever.
func NewResultCache(client *redis.Client, ttl time.Duration) *ResultCache {
	if ttl < 0 {
		ttl = 0
	}
	return &ResultCache{client: client, ttl: ttl}
}

func resultKey(requestID string) string {
	return resultKeyPrefix + requestID
}

// Get returns (nil, nil) on a cache miss.
func (c *ResultCache) Get(ctx context.Context, requestID string) (*model.DubbingResult, error) {
	data, err := c.client.Get(ctx, resultKey(requestID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached result %s: %w", requestID, err)
	}
	var res model.DubbingResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("failed to decode cached result %s: %w", requestID, err)
	}
	return &res, nil
}

// Set stores the snapshot and publishes it.
func (c *ResultCache) Set(ctx context.Context, res *model.DubbingResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode result %s: %w", res.RequestID, err)
	}
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, resultKey(res.RequestID), data, c.ttl)
	pipe.Publish(ctx, StatusChannel, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache result %s: %w", res.RequestID, err)
	}
	return nil
}

// Fill stores res only if no snapshot is cached yet, so a backfill from the
// store never replaces a newer status written by a transition. It does not publish.
func (c *ResultCache) Fill(ctx context.Context, res *model.DubbingResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("failed to encode result %s: %w", res.RequestID, err)
	}
	if err := c.client.SetNX(ctx, resultKey(res.RequestID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to backfill cached result %s: %w", res.RequestID, err)
	}
	return nil
}

// Delete drops the cached snapshot.
func (c *ResultCache) Delete(ctx context.Context, requestID string) error {
	if err := c.client.Del(ctx, resultKey(requestID)).Err(); err != nil {
		return fmt.Errorf("failed to delete cached result %s: %w", requestID, err)
	}
	return nil
}

// Subscribe delivers published snapshots until ctx is done.
func (c *ResultCache) Subscribe(ctx context.Context) <-chan *model.DubbingResult {
	out := make(chan *model.DubbingResult)
	sub := c.client.Subscribe(ctx, StatusChannel)
	go func() {
		defer close(out)
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var res model.DubbingResult
				if err := json.Unmarshal([]byte(msg.Payload), &res); err != nil {
					logger.Warn("Dropping malformed status message", logger.ErrorField(err))
					continue
				}
				select {
				case out <- &res:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Check 测试Redis基本读写操作
func (c *ResultCache) Check(ctx context.Context) error {
	const key = "dubbing:healthcheck"
	const want = "Redis connection successful!"
	if err := c.client.Set(ctx, key, want, time.Minute).Err(); err != nil {
		return fmt.Errorf("failed to set Redis key: %w", err)
	}
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to get Redis key: %w", err)
	}
	if val != want {
		return fmt.Errorf("unexpected value from Redis: got %s", val)
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete Redis key: %w", err)
	}
	return nil
}

// Close 关闭Redis连接
func (c *ResultCache) Close() error {
	return c.client.Close()
}
