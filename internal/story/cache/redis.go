package cache

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "narration:audio:"

// RedisStore keeps narration payloads in redis. A zero TTL keeps entries until redis
// evicts them itself.
type RedisStore struct {
	client *redis.Client
	config RedisConfig
}

func NewRedisStore(config RedisConfig) (*RedisStore, error) {
	if config.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}
	if config.Prefix == "" {
		config.Prefix = defaultRedisPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &RedisStore{client: client, config: config}, nil
}

func (s *RedisStore) key(key string) string {
	return s.config.Prefix + key
}

func (s *RedisStore) GetAudio(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return data, true, nil
}

func (s *RedisStore) SaveAudio(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, s.key(key), data, s.config.TTL).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *RedisStore) scan(ctx context.Context, fn func(key string) error) error {
	iter := s.client.Scan(ctx, 0, s.config.Prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := fn(iter.Val()); err != nil {
			return err
		}
	}
	return iter.Err()
}

func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{
		Backend:  string(StoreTypeRedis),
		Location: s.config.Addr + "/" + s.config.Prefix,
	}
	err := s.scan(ctx, func(key string) error {
		n, err := s.client.StrLen(ctx, key).Result()
		if err != nil {
			return err
		}
		stats.Entries++
		stats.Bytes += n
		return nil
	})
	return stats, err
}

func (s *RedisStore) Clear(ctx context.Context) error {
	return s.scan(ctx, func(key string) error {
		return s.client.Del(ctx, key).Err()
	})
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
