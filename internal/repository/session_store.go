package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "booking_session:"

// RedisSessionStore persists booking sessions as Redis hashes, one field per
// session key, so every edit is an independent HSET. The whole hash shares
// one TTL which is refreshed on every write.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSessionStore creates a session store on an existing Redis client.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	return &RedisSessionStore{client: client, ttl: ttl}
}

// NewRedisClient connects to Redis from a URL and verifies the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func sessionKey(id uuid.UUID) string {
	return sessionKeyPrefix + id.String()
}

// SetFields writes the given fields for a session and refreshes its TTL.
func (s *RedisSessionStore) SetFields(ctx context.Context, id uuid.UUID, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	key := sessionKey(id)

	pipe := s.client.TxPipeline()
	args := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		args[k] = v
	}
	pipe.HSet(ctx, key, args)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write session fields: %w", err)
	}
	return nil
}

// Snapshot returns all stored fields for a session. An unknown session
// returns an empty map.
func (s *RedisSessionStore) Snapshot(ctx context.Context, id uuid.UUID) (map[string]string, error) {
	fields, err := s.client.HGetAll(ctx, sessionKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session fields: %w", err)
	}
	return fields, nil
}

// Clear removes every stored field for a session.
func (s *RedisSessionStore) Clear(ctx context.Context, id uuid.UUID) error {
	if err := s.client.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
