// File: services/booking/store.go
package booking

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"mia/models"

	"github.com/go-redis/redis/v8"
)

const (
	activePrefix       = "booking:active:"
	bookingOwnerPrefix = "booking:session:"
)

// StateStore keeps the active booking of each client session and the
// reverse link from a persisted booking to the session that drafted it.
// Get and SessionForBooking return zero values for unknown keys.
type StateStore interface {
	Get(ctx context.Context, sessionID string) (*models.ActiveBooking, error)
	Save(ctx context.Context, state *models.ActiveBooking) error
	Delete(ctx context.Context, sessionID string) error
	LinkBooking(ctx context.Context, bookingID, sessionID string) error
	UnlinkBooking(ctx context.Context, bookingID string) error
	SessionForBooking(ctx context.Context, bookingID string) (string, error)
}

type RedisStateStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStateStore(client *redis.Client, ttl time.Duration) *RedisStateStore {
	return &RedisStateStore{client: client, ttl: ttl}
}

func (r *RedisStateStore) Get(ctx context.Context, sessionID string) (*models.ActiveBooking, error) {
	data, err := r.client.Get(ctx, activePrefix+sessionID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load active booking %s: %w", sessionID, err)
	}
	var st models.ActiveBooking
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, fmt.Errorf("failed to parse active booking %s: %w", sessionID, err)
	}
	return &st, nil
}

func (r *RedisStateStore) Save(ctx context.Context, state *models.ActiveBooking) error {
	b, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal active booking: %w", err)
	}
	if err := r.client.Set(ctx, activePrefix+state.SessionID, b, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store active booking %s: %w", state.SessionID, err)
	}
	return nil
}

func (r *RedisStateStore) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, activePrefix+sessionID).Err(); err != nil {
		return fmt.Errorf("failed to clear active booking %s: %w", sessionID, err)
	}
	return nil
}

func (r *RedisStateStore) LinkBooking(ctx context.Context, bookingID, sessionID string) error {
	if err := r.client.Set(ctx, bookingOwnerPrefix+bookingID, sessionID, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to link booking %s: %w", bookingID, err)
	}
	return nil
}

func (r *RedisStateStore) UnlinkBooking(ctx context.Context, bookingID string) error {
	if err := r.client.Del(ctx, bookingOwnerPrefix+bookingID).Err(); err != nil {
		return fmt.Errorf("failed to unlink booking %s: %w", bookingID, err)
	}
	return nil
}

func (r *RedisStateStore) SessionForBooking(ctx context.Context, bookingID string) (string, error) {
	id, err := r.client.Get(ctx, bookingOwnerPrefix+bookingID).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve session of booking %s: %w", bookingID, err)
	}
	return id, nil
}

// MemoryStateStore keeps active bookings in process. Used for local runs and tests.
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]models.ActiveBooking
	links  map[string]string
}

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{
		states: make(map[string]models.ActiveBooking),
		links:  make(map[string]string),
	}
}

func (m *MemoryStateStore) Get(_ context.Context, sessionID string) (*models.ActiveBooking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[sessionID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (m *MemoryStateStore) Save(_ context.Context, state *models.ActiveBooking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[state.SessionID] = *state
	return nil
}

func (m *MemoryStateStore) Delete(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, sessionID)
	return nil
}

func (m *MemoryStateStore) LinkBooking(_ context.Context, bookingID, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[bookingID] = sessionID
	return nil
}

func (m *MemoryStateStore) UnlinkBooking(_ context.Context, bookingID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.links, bookingID)
	return nil
}

func (m *MemoryStateStore) SessionForBooking(_ context.Context, bookingID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.links[bookingID], nil
}
