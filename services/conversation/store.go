// File: services/conversation/store.go
package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"mia/models"

	"github.com/go-redis/redis/v8"
)

const chatContextPrefix = "chat:ctx:"

// MessageStore keeps the append-only message sequence of each client session.
type MessageStore interface {
	Load(ctx context.Context, sessionID string) ([]models.Message, error)
	Append(ctx context.Context, sessionID string, msgs ...models.Message) error
	Clear(ctx context.Context, sessionID string) error
}

// RedisMessageStore stores one Redis list per session.
type RedisMessageStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisMessageStore(client *redis.Client, ttl time.Duration) *RedisMessageStore {
	return &RedisMessageStore{client: client, ttl: ttl}
}

func (s *RedisMessageStore) Load(ctx context.Context, sessionID string) ([]models.Message, error) {
	items, err := s.client.LRange(ctx, chatContextPrefix+sessionID, 0, -1).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	msgs := make([]models.Message, 0, len(items))
	for _, item := range items {
		var m models.Message
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, fmt.Errorf("failed to parse message: %w", err)
		}
		msgs = append(msgs, m)
	}
	return msgs, nil
}

func (s *RedisMessageStore) Append(ctx context.Context, sessionID string, msgs ...models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}
		values = append(values, b)
	}

	key := chatContextPrefix + sessionID
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, values...)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append messages: %w", err)
	}
	return nil
}

func (s *RedisMessageStore) Clear(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, chatContextPrefix+sessionID).Err()
}

// MemoryMessageStore keeps conversations in process. Used for local runs and tests.
type MemoryMessageStore struct {
	mu    sync.RWMutex
	convs map[string][]models.Message
}

func NewMemoryMessageStore() *MemoryMessageStore {
	return &MemoryMessageStore{convs: make(map[string][]models.Message)}
}

func (m *MemoryMessageStore) Load(_ context.Context, sessionID string) ([]models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Message, len(m.convs[sessionID]))
	copy(out, m.convs[sessionID])
	return out, nil
}

func (m *MemoryMessageStore) Append(_ context.Context, sessionID string, msgs ...models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.convs[sessionID] = append(m.convs[sessionID], msgs...)
	return nil
}

func (m *MemoryMessageStore) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.convs, sessionID)
	return nil
}
