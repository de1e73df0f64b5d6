package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ChallengeStore holds login challenges in Redis so every stateless
// instance sees the same nonce, and consumption is atomic: GETDEL makes a
// challenge usable exactly once.
type ChallengeStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewChallengeStore(client *redis.Client, ttl time.Duration) *ChallengeStore {
	return &ChallengeStore{client: client, ttl: ttl}
}

func challengeKey(address string) string {
	return "challenge:" + strings.ToLower(address)
}

func (s *ChallengeStore) Save(ctx context.Context, address, message string) error {
	if err := s.client.Set(ctx, challengeKey(address), message, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save challenge: %w", err)
	}
	return nil
}

// Consume returns the pending challenge for address and deletes it in the
// same operation. A second call for the same challenge gets ErrNotFound.
func (s *ChallengeStore) Consume(ctx context.Context, address string) (string, error) {
	message, err := s.client.GetDel(ctx, challengeKey(address)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", fmt.Errorf("no pending challenge for %s: %w", address, ErrNotFound)
		}
		return "", fmt.Errorf("failed to consume challenge: %w", err)
	}
	return message, nil
}
