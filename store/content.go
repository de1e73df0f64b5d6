package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

func contentRef(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// RedisContent is a content-addressed blob store over Redis. The ref is
// the hex sha256 of the bytes, so identical payloads share a key and a
// second Put is a no-op.
type RedisContent struct {
	client *redis.Client
}

func NewRedisContent(client *redis.Client) *RedisContent {
	return &RedisContent{client: client}
}

func contentKey(ref string) string {
	return "cas:" + ref
}

func (c *RedisContent) Put(ctx context.Context, data []byte) (string, error) {
	ref := contentRef(data)
	// SetNX: content under a ref never changes, so never overwrite.
	if err := c.client.SetNX(ctx, contentKey(ref), data, 0).Err(); err != nil {
		return "", fmt.Errorf("content store put failed: %w", err)
	}
	return ref, nil
}

func (c *RedisContent) Get(ctx context.Context, ref string) ([]byte, error) {
	data, err := c.client.Get(ctx, contentKey(ref)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("content %s: %w", ref, ErrNotFound)
		}
		return nil, fmt.Errorf("content store get failed: %w", err)
	}
	return data, nil
}

// MemoryContent is the in-process ContentStore used by tests and dev mode.
type MemoryContent struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryContent() *MemoryContent {
	return &MemoryContent{blobs: make(map[string][]byte)}
}

func (c *MemoryContent) Put(_ context.Context, data []byte) (string, error) {
	ref := contentRef(data)
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.blobs[ref]; !ok {
		buf := make([]byte, len(data))
		copy(buf, data)
		c.blobs[ref] = buf
	}
	return ref, nil
}

func (c *MemoryContent) Get(_ context.Context, ref string) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	data, ok := c.blobs[ref]
	if !ok {
		return nil, fmt.Errorf("content %s: %w", ref, ErrNotFound)
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Corrupt overwrites a stored blob in place. Test hook for exercising the
// integrity-mismatch path; a content-addressed backend cannot do this.
func (c *MemoryContent) Corrupt(ref string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.blobs[ref] = data
}
