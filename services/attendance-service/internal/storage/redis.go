package storage

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

type RedisMedium struct {
	rdb redis.UniversalClient
}

func NewRedisMedium(rdb redis.UniversalClient) *RedisMedium {
	return &RedisMedium{rdb: rdb}
}

func (m *RedisMedium) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := m.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (m *RedisMedium) Set(ctx context.Context, key, value string) error {
	return m.rdb.Set(ctx, key, value, 0).Err()
}

func (m *RedisMedium) Delete(ctx context.Context, key string) error {
	return m.rdb.Del(ctx, key).Err()
}

func (m *RedisMedium) Ping(ctx context.Context) error {
	return m.rdb.Ping(ctx).Err()
}
