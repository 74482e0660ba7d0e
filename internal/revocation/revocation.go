// Package revocation tracks bearer tokens that were explicitly invalidated
// before their natural expiry, typically by logout.
//
// Tokens are identified by the hex SHA-256 of the raw token; raw tokens are
// never stored.
package revocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/forgo/jobboard/internal/model"
	"github.com/forgo/jobboard/internal/repository"
)

// Store records and answers revocations
type Store interface {
	// Revoke marks token as invalid until expiresAt. Revoking twice is not
	// an error.
	Revoke(ctx context.Context, token string, expiresAt time.Time) error
	// IsRevoked reports whether token has been revoked
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// HashToken returns the storage key for a raw token
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ============================================================================
// Repository-backed store
// ============================================================================

// RepositoryStore keeps revocations in the invalid_token table
type RepositoryStore struct {
	repo repository.Repository[model.InvalidToken]
	now  func() time.Time
}

// NewRepositoryStore creates a store over repo
func NewRepositoryStore(repo repository.Repository[model.InvalidToken]) *RepositoryStore {
	return &RepositoryStore{repo: repo, now: time.Now}
}

func (s *RepositoryStore) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	entry := &model.InvalidToken{
		ID:        HashToken(token),
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Add(ctx, entry); err != nil && !errors.Is(err, repository.ErrDuplicate) {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *RepositoryStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	ok, err := s.repo.Exists(ctx, repository.Eq(model.InvalidTokenFieldID, HashToken(token)))
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return ok, nil
}

// PurgeExpired deletes revocations whose token has expired on its own and
// returns how many were removed.
func (s *RepositoryStore) PurgeExpired(ctx context.Context) (int, error) {
	expired, err := s.repo.Find(ctx, repository.Less(model.InvalidTokenFieldExpiresAt, s.now().UTC()))
	if err != nil {
		return 0, fmt.Errorf("find expired revocations: %w", err)
	}

	removed := 0
	for _, t := range expired {
		if err := s.repo.Remove(ctx, t.ID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				continue
			}
			return removed, fmt.Errorf("remove revocation: %w", err)
		}
		removed++
	}
	return removed, nil
}

// ============================================================================
// Redis-backed store
// ============================================================================

const redisKeyPrefix = "revoked:"

// RedisClient is the subset of redis.Cmdable the Redis store uses
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps one key per revoked token with a TTL matching the token's
// remaining lifetime, so Redis expires entries on its own.
type RedisStore struct {
	client RedisClient
	now    func() time.Time
}

// NewRedisStore creates a store over client (usually a *redis.Client)
func NewRedisStore(client RedisClient) *RedisStore {
	return &RedisStore{client: client, now: time.Now}
}

func (s *RedisStore) Revoke(ctx context.Context, token string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		// already expired; validation rejects it without help
		return nil
	}
	if err := s.client.Set(ctx, redisKeyPrefix+HashToken(token), 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (s *RedisStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Exists(ctx, redisKeyPrefix+HashToken(token)).Result()
	if err != nil {
		return false, fmt.Errorf("check revocation: %w", err)
	}
	return n > 0, nil
}
