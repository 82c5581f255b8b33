package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each session as a redis hash so state survives restarts
// and can be shared across instances. Hashes expire after the retention
// window; any write refreshes the TTL.
type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisStore(ctx context.Context, addr, password string, db int, retention time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if retention <= 0 {
		retention = 12 * time.Hour
	}
	return &RedisStore{client: client, retention: retention}, nil
}

func sessionHashKey(sessionID string) string {
	return "spectra:session:" + sessionID
}

func (s *RedisStore) Get(ctx context.Context, sessionID, key string) (string, bool, error) {
	v, err := s.client.HGet(ctx, sessionHashKey(sessionID), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("session get: %w", err)
	}
	return v, true, nil
}

func (s *RedisStore) Set(ctx context.Context, sessionID, key, value string) error {
	hkey := sessionHashKey(sessionID)
	if err := s.client.HSet(ctx, hkey, key, value).Err(); err != nil {
		return fmt.Errorf("session set: %w", err)
	}
	if err := s.client.Expire(ctx, hkey, s.retention).Err(); err != nil {
		return fmt.Errorf("session expire: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, sessionID, key string) error {
	if err := s.client.HDel(ctx, sessionHashKey(sessionID), key).Err(); err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionHashKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("session clear: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
