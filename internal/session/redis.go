package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "tictac:oauth:session:"

// RedisStore implements Store backed by Redis, for deployments running more
// than one server instance behind a load balancer. Expiry is enforced twice:
// Redis TTL on the key, plus the same lazy CreatedAt check as the memory
// backend.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore constructs a Redis-backed session store.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

// Create registers a new session with the store TTL.
func (s *RedisStore) Create(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("session: id cannot be empty")
	}

	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: marshal failed: %w", err)
	}

	ok, err := s.client.SetNX(ctx, redisKey(sess.ID), payload, TTL).Result()
	if err != nil {
		return fmt.Errorf("session: persist failed: %w", err)
	}
	if !ok {
		return fmt.Errorf("session: id %s already exists", sess.ID)
	}
	return nil
}

// Get retrieves a session, deleting it when expired.
func (s *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := s.client.Get(ctx, redisKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("session: load failed: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("session: decode failed: %w", err)
	}
	if sess.Expired() {
		_ = s.Delete(ctx, id)
		return nil, ErrNotFound
	}
	return &sess, nil
}

// Update replaces the stored session state, keeping the remaining TTL.
func (s *RedisStore) Update(ctx context.Context, sess *Session) error {
	if sess == nil || sess.ID == "" {
		return fmt.Errorf("session: id cannot be empty")
	}

	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: marshal failed: %w", err)
	}

	ok, err := s.client.SetXX(ctx, redisKey(sess.ID), payload, redis.KeepTTL).Result()
	if err != nil {
		return fmt.Errorf("session: persist failed: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

// Delete removes a session.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, redisKey(id)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("session: delete failed: %w", err)
	}
	return nil
}

// Cleanup is a no-op: Redis expires keys by TTL on its own.
func (s *RedisStore) Cleanup(context.Context) error { return nil }

// Close releases the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
