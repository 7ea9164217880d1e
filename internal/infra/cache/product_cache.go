package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"marketplace/internal/domain/model"
	repo "marketplace/internal/repository"

	"github.com/redis/go-redis/v9"
)

const productKeyPrefix = "product:"

// 商品詳細をredisに置く（表示用。在庫の判定はDBで行う）
type RedisProductCache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ repo.ProductCache = (*RedisProductCache)(nil)

func NewRedisProductCache(redisURL string, ttl time.Duration) (*RedisProductCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &RedisProductCache{client: client, ttl: ttl}, nil
}

func (c *RedisProductCache) Close() error {
	return c.client.Close()
}

func productKey(id int64) string {
	return productKeyPrefix + strconv.FormatInt(id, 10)
}

func (c *RedisProductCache) Get(ctx context.Context, productID int64) (model.Product, bool, error) {
	data, err := c.client.Get(ctx, productKey(productID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Product{}, false, nil
	}
	if err != nil {
		return model.Product{}, false, fmt.Errorf("failed to get product cache: %w", err)
	}

	var p model.Product
	if err := json.Unmarshal(data, &p); err != nil {
		// 壊れた値は無かったことにする
		return model.Product{}, false, nil
	}
	return p, true, nil
}

func (c *RedisProductCache) Set(ctx context.Context, p model.Product) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal product: %w", err)
	}
	return c.client.Set(ctx, productKey(p.ID), data, c.ttl).Err()
}

func (c *RedisProductCache) Invalidate(ctx context.Context, productIDs ...int64) error {
	if len(productIDs) == 0 {
		return nil
	}
	keys := make([]string, len(productIDs))
	for i, id := range productIDs {
		keys[i] = productKey(id)
	}
	return c.client.Del(ctx, keys...).Err()
}

// REDIS_URLが無いとき
type NoopProductCache struct{}

var _ repo.ProductCache = NoopProductCache{}

func (NoopProductCache) Get(context.Context, int64) (model.Product, bool, error) {
	return model.Product{}, false, nil
}

func (NoopProductCache) Set(context.Context, model.Product) error   { return nil }
func (NoopProductCache) Invalidate(context.Context, ...int64) error { return nil }
