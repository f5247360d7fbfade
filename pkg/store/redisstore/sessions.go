// Package redisstore provides redis-backed store implementations shared
// across instances.
package redisstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/citymarket/gateward/pkg/auth"
)

// NewClient opens a redis client from a URL and verifies the connection
func NewClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// SessionStore keeps sessions in redis as JSON under a key per token.
// The redis TTL tracks the session's own expiry plus a grace period so
// the lazy-eviction write in the authenticator always finds the record
// it needs to flip.
type SessionStore struct {
	client *redis.Client
	prefix string
}

const expiryGrace = 24 * time.Hour

func NewSessionStore(client *redis.Client, prefix string) *SessionStore {
	if prefix == "" {
		prefix = "session"
	}
	return &SessionStore{client: client, prefix: prefix}
}

func (s *SessionStore) key(token string) string {
	return fmt.Sprintf("%s:%s", s.prefix, token)
}

// Create stores the session with a TTL past its expiry
func (s *SessionStore) Create(ctx context.Context, session *auth.Session) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	ttl := time.Until(session.ExpiresAt) + expiryGrace
	if err := s.client.Set(ctx, s.key(session.Token), data, ttl).Err(); err != nil {
		return fmt.Errorf("storing session: %w", err)
	}
	return nil
}

// FindByToken returns (nil, nil) on a cache miss
func (s *SessionStore) FindByToken(ctx context.Context, token string) (*auth.Session, error) {
	data, err := s.client.Get(ctx, s.key(token)).Result()
	if err == redis.Nil {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("session lookup failed: %w", err)
	}

	var session auth.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		// Corrupt record. Drop it rather than serve it.
		s.client.Del(ctx, s.key(token))
		return nil, fmt.Errorf("unmarshaling session: %w", err)
	}
	return &session, nil
}

// Deactivate flips the stored session inactive, keeping its TTL. A
// missing session is a no-op, which keeps the operation idempotent.
func (s *SessionStore) Deactivate(ctx context.Context, token string) error {
	data, err := s.client.Get(ctx, s.key(token)).Result()
	if err == redis.Nil {
		return nil
	} else if err != nil {
		return fmt.Errorf("session lookup failed: %w", err)
	}

	var session auth.Session
	if err := json.Unmarshal([]byte(data), &session); err != nil {
		return fmt.Errorf("unmarshaling session: %w", err)
	}
	if !session.IsActive {
		return nil
	}
	session.IsActive = false

	updated, err := json.Marshal(&session)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}
	if err := s.client.Set(ctx, s.key(token), updated, redis.KeepTTL).Err(); err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	return nil
}

// Ping verifies the redis connection for health checks
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
