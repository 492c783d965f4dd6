package identity

import (
	"context"
	"sync"
	"time"

	"mia/utils"

	"github.com/go-redis/redis/v8"
)

// TokenCache remembers the hash of the live token per user and client session.
// Get returns "" when nothing is cached.
type TokenCache interface {
	Get(ctx context.Context, userID, sessionID string) (string, error)
	Set(ctx context.Context, userID, sessionID, hash string, ttl time.Duration) error
	Del(ctx context.Context, userID, sessionID string) error
}

func cacheKey(userID, sessionID string) string {
	return utils.AuthCachePrefix + userID + ":" + sessionID
}

type RedisTokenCache struct {
	client *redis.Client
}

func NewRedisTokenCache(client *redis.Client) *RedisTokenCache {
	return &RedisTokenCache{client: client}
}

func (r *RedisTokenCache) Get(ctx context.Context, userID, sessionID string) (string, error) {
	hash, err := r.client.Get(ctx, cacheKey(userID, sessionID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return hash, err
}

func (r *RedisTokenCache) Set(ctx context.Context, userID, sessionID, hash string, ttl time.Duration) error {
	return r.client.Set(ctx, cacheKey(userID, sessionID), hash, ttl).Err()
}

func (r *RedisTokenCache) Del(ctx context.Context, userID, sessionID string) error {
	return r.client.Del(ctx, cacheKey(userID, sessionID)).Err()
}

// MemoryTokenCache ignores TTLs. Used for local runs and tests.
type MemoryTokenCache struct {
	mu     sync.Mutex
	hashes map[string]string
}

func NewMemoryTokenCache() *MemoryTokenCache {
	return &MemoryTokenCache{hashes: make(map[string]string)}
}

func (m *MemoryTokenCache) Get(_ context.Context, userID, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hashes[cacheKey(userID, sessionID)], nil
}

func (m *MemoryTokenCache) Set(_ context.Context, userID, sessionID, hash string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hashes[cacheKey(userID, sessionID)] = hash
	return nil
}

func (m *MemoryTokenCache) Del(_ context.Context, userID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.hashes, cacheKey(userID, sessionID))
	return nil
}
