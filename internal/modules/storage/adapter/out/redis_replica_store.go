package out

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	storageout "tabtrail/internal/modules/storage/port/out"
	apperrors "tabtrail/internal/platform/errors"
)

const DefaultRedisPrefix = "tabtrail:"

// RedisReplicaStore holds the secondary sync record so other devices
// sharing the instance can pick it up.
type RedisReplicaStore struct {
	client *redis.Client
	prefix string
}

var _ storageout.BlobStore = (*RedisReplicaStore)(nil)

func NewRedisReplicaStore(ctx context.Context, redisURL, prefix string) (*RedisReplicaStore, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis url is required")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisReplicaStore{client: client, prefix: prefix}, nil
}

func (s *RedisReplicaStore) Put(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, data, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *RedisReplicaStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("replica %s: %w", key, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return data, nil
}

func (s *RedisReplicaStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *RedisReplicaStore) Close() error {
	return s.client.Close()
}
