package conversation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const turnPrefix = "chat:turn:"

// TurnLock admits one in-flight turn per session. Acquire reports false when
// another turn holds the lock.
type TurnLock interface {
	Acquire(ctx context.Context, sessionID string) (release func(), ok bool, err error)
}

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`)

// RedisTurnLock is a SETNX lock with an expiry longer than any backend call.
type RedisTurnLock struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisTurnLock(client *redis.Client, ttl time.Duration) *RedisTurnLock {
	return &RedisTurnLock{client: client, ttl: ttl}
}

func (l *RedisTurnLock) Acquire(ctx context.Context, sessionID string) (func(), bool, error) {
	key := turnPrefix + sessionID
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire turn lock: %w", err)
	}
	if !ok {
		return nil, false, nil
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}, true, nil
}

// MemoryTurnLock is the in-process TurnLock.
type MemoryTurnLock struct {
	mu   sync.Mutex
	held map[string]bool
}

func NewMemoryTurnLock() *MemoryTurnLock {
	return &MemoryTurnLock{held: make(map[string]bool)}
}

func (l *MemoryTurnLock) Acquire(_ context.Context, sessionID string) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[sessionID] {
		return nil, false, nil
	}
	l.held[sessionID] = true
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, sessionID)
			l.mu.Unlock()
		})
	}, true, nil
}
