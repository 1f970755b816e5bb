// Package session reads sessions minted by the external identity service.
// This API never creates or revokes sessions; it only resolves a bearer
// token to the voter it belongs to.
package session

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vinylclub/api/internal/rbac"
)

// ErrNoSession indicates the token does not map to an active session.
var ErrNoSession = errors.New("no active session")

// Session is the identity payload the auth service stores per token.
type Session struct {
	VoterID     string    `json:"voter_id"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// RedisStore resolves session tokens against the Redis instance the
// external auth service writes to.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &RedisStore{
		client: client,
		prefix: "session:",
	}, nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client.
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "session:",
	}
}

func (s *RedisStore) key(tokenHash string) string {
	return s.prefix + tokenHash
}

// Lookup resolves a raw bearer token to its session. The auth service
// stores sessions keyed by token hash with a TTL, so expiry is Redis's
// concern; a missing key means no active session.
func (s *RedisStore) Lookup(ctx context.Context, token string) (Session, error) {
	jsonData, err := s.client.Get(ctx, s.key(HashToken(token))).Result()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("lookup session: %w", err)
	}

	var session Session
	if err := json.Unmarshal([]byte(jsonData), &session); err != nil {
		return Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	if session.VoterID == "" {
		return Session{}, ErrNoSession
	}
	session.Role = string(rbac.Normalize(session.Role))
	return session, nil
}

// HashToken mirrors how the auth service derives Redis keys from tokens,
// so the raw token never appears as a key.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%x", sum)
}

// Close closes the Redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
