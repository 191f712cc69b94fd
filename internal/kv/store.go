// Package kv wraps the Redis key-value store used for dedup claims, provider
// credentials, and tag-import markers. Keys are short-lived scratch space
// scoped by workspace; the durable record of an imported link lives in the
// relational uniqueness constraint, never here.
package kv

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/northlink/link-importer/internal/logger"
)

// connectionTimeout is the timeout for verifying the Redis connection.
const connectionTimeout = 5 * time.Second

// ErrEmptyAddress is returned when the Redis address is not configured.
var ErrEmptyAddress = errors.New("redis address is required")

// ErrNotFound is returned when a key does not exist.
var ErrNotFound = errors.New("key not found")

// NewClient creates a new Redis client and verifies the connection.
func NewClient(addr, password string, db int) (*redis.Client, error) {
	if addr == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return client, nil
}

// Store provides the key-value operations the import pipeline needs.
type Store struct {
	client *redis.Client
	logger logger.Logger
}

// NewStore creates a Store backed by the given Redis client.
func NewStore(client *redis.Client, log logger.Logger) *Store {
	return &Store{client: client, logger: log}
}

// CredentialsKey returns the key under which the dashboard stores a
// workspace's provider credentials for the duration of an import.
func CredentialsKey(provider, workspaceID string) string {
	return fmt.Sprintf("import:%s:%s", provider, workspaceID)
}

// TagsImportedKey returns the marker key recording that a workspace's tag
// taxonomy has already been imported from the provider.
func TagsImportedKey(provider, workspaceID string) string {
	return fmt.Sprintf("import:%s:%s:tags", provider, workspaceID)
}

// ClaimKey returns the dedup claim key for a short-link slot.
func ClaimKey(domain, key string) string {
	return domain + ":" + key
}

// Get returns the value stored at key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return val, nil
}

// Set stores value at key with no expiry.
func (s *Store) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes keys. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete keys: %w", err)
	}
	return nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("exists %s: %w", key, err)
	}
	return n == 1, nil
}

// Claim writes value at key only if the key is absent. It returns true when
// this call claimed the slot and false when the slot was already claimed.
// Claims make retried invocations safe: the second firing simply no-ops.
func (s *Store) Claim(ctx context.Context, key, value string) (bool, error) {
	claimed, err := s.client.SetNX(ctx, key, value, 0).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	if !claimed {
		s.logger.Debug("Slot already claimed",
			logger.String("key", key),
		)
	}
	return claimed, nil
}
