package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/bsm/redislock"
	redis "github.com/redis/go-redis/v9"

	"tokobuning/backend/internal/domain"
)

const (
	barcodeKeyPrefix = "barcode:"
	lockKeyPrefix    = "lock:barcode:"
)

type RedisLookupCache struct {
	client *redis.Client
	locker *redislock.Client
}

func NewRedisLookupCache(addr string, password string, db int) *RedisLookupCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisLookupCache{client: client, locker: redislock.New(client)}
}

func (c *RedisLookupCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisLookupCache) Close() error {
	return c.client.Close()
}

func (c *RedisLookupCache) Get(ctx context.Context, code string) (*domain.BarcodeProduct, bool, error) {
	val, err := c.client.Get(ctx, barcodeKeyPrefix+code).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var product domain.BarcodeProduct
	if err := json.Unmarshal([]byte(val), &product); err != nil {
		return nil, false, err
	}
	return &product, true, nil
}

func (c *RedisLookupCache) Set(ctx context.Context, code string, value *domain.BarcodeProduct, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, barcodeKeyPrefix+code, payload, ttl).Err()
}

func (c *RedisLookupCache) Lock(ctx context.Context, code string, ttl time.Duration) (func(), bool, error) {
	lock, err := c.locker.Obtain(ctx, lockKeyPrefix+code, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return func() {}, false, nil
	}
	if err != nil {
		return func() {}, false, err
	}
	return func() {
		_ = lock.Release(context.Background())
	}, true, nil
}
