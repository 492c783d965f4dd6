package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mia/models"
	"mia/utils"

	"go.uber.org/zap"
)

// Reason tells subscribers why a session changed.
type Reason string

const (
	ReasonSignedIn  Reason = "signed_in"
	ReasonSignedOut Reason = "signed_out"
	ReasonRefreshed Reason = "token_refreshed"
	ReasonPrompt    Reason = "prompt_recorded"
)

// Change is delivered to every subscriber after a session was stored.
type Change struct {
	Session models.Session
	Reason  Reason
}

// Handler runs synchronously on the goroutine that changed the session.
type Handler func(ctx context.Context, change Change)

// EventSource is the push side of the identity provider.
type EventSource interface {
	Subscribe(h func(ctx context.Context, evt models.IdentityEvent)) (unsubscribe func())
}

// Gate owns client session state and the anonymous prompt quota.
type Gate interface {
	GetCurrentSession(ctx context.Context, id string) (models.Session, error)
	OnSessionChange(h Handler) (unsubscribe func())
	RecordAnonymousPrompt(s models.Session) models.Session
	Admit(ctx context.Context, id string) (models.Session, error)
	Logout(ctx context.Context, id string) (models.Session, error)
	HandleIdentityEvent(ctx context.Context, evt models.IdentityEvent) error
	Bind(src EventSource) (unbind func())
}

type subscriber struct {
	id uint64
	h  Handler
}

// DefaultGate implements Gate on top of a Store.
type DefaultGate struct {
	store Store
	limit int
	locks *utils.KeyedMutex
	now   func() time.Time

	mu     sync.RWMutex
	subs   []subscriber
	nextID uint64
}

// NewGate returns a gate that admits `limit` anonymous prompts per session.
func NewGate(store Store, limit int) *DefaultGate {
	return &DefaultGate{
		store: store,
		limit: limit,
		locks: utils.NewKeyedMutex(),
		now:   time.Now,
	}
}

func (g *DefaultGate) load(ctx context.Context, id string) (models.Session, error) {
	if id == "" {
		return models.Session{}, ErrMissingSessionID
	}
	s, err := g.store.Get(ctx, id)
	if err != nil {
		return models.Session{}, err
	}
	if s == nil {
		now := g.now().UTC()
		return models.Session{ID: id, CreatedAt: now, UpdatedAt: now}, nil
	}
	return *s, nil
}

func (g *DefaultGate) save(ctx context.Context, s *models.Session) error {
	s.UpdatedAt = g.now().UTC()
	return g.store.Save(ctx, s)
}

// GetCurrentSession returns the stored session or the anonymous default for id.
func (g *DefaultGate) GetCurrentSession(ctx context.Context, id string) (models.Session, error) {
	return g.load(ctx, id)
}

func (g *DefaultGate) OnSessionChange(h Handler) func() {
	g.mu.Lock()
	g.nextID++
	id := g.nextID
	g.subs = append(g.subs, subscriber{id: id, h: h})
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			for i, s := range g.subs {
				if s.id == id {
					g.subs = append(g.subs[:i:i], g.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (g *DefaultGate) publish(ctx context.Context, change Change) {
	g.mu.RLock()
	subs := make([]subscriber, len(g.subs))
	copy(subs, g.subs)
	g.mu.RUnlock()

	for _, s := range subs {
		s.h(ctx, change)
	}
}

// RecordAnonymousPrompt counts one more anonymous message. Authenticated
// sessions are returned unchanged.
func (g *DefaultGate) RecordAnonymousPrompt(s models.Session) models.Session {
	if s.Authenticated() {
		return s
	}
	s.PromptCount++
	return s
}

// Admit enforces the anonymous quota and records the prompt before the
// caller contacts the conversational backend.
func (g *DefaultGate) Admit(ctx context.Context, id string) (models.Session, error) {
	unlock := g.locks.Lock(id)
	s, err := g.load(ctx, id)
	if err != nil {
		unlock()
		return models.Session{}, err
	}
	if s.Authenticated() {
		unlock()
		return s, nil
	}
	if s.PromptCount >= g.limit {
		unlock()
		return s, ErrPromptLimitExceeded
	}

	s = g.RecordAnonymousPrompt(s)
	if err := g.save(ctx, &s); err != nil {
		unlock()
		return models.Session{}, fmt.Errorf("failed to record prompt: %w", err)
	}
	unlock()

	g.publish(ctx, Change{Session: s, Reason: ReasonPrompt})
	return s, nil
}

// Logout drops identity and quota and bumps the epoch so in-flight work
// started before the logout can tell it is stale.
func (g *DefaultGate) Logout(ctx context.Context, id string) (models.Session, error) {
	unlock := g.locks.Lock(id)
	prev, err := g.load(ctx, id)
	if err != nil {
		unlock()
		return models.Session{}, err
	}
	cleared := models.Session{
		ID:        id,
		Epoch:     prev.Epoch + 1,
		CreatedAt: prev.CreatedAt,
	}
	if err := g.save(ctx, &cleared); err != nil {
		unlock()
		return models.Session{}, fmt.Errorf("failed to clear session: %w", err)
	}
	unlock()

	g.publish(ctx, Change{Session: cleared, Reason: ReasonSignedOut})
	return cleared, nil
}

// HandleIdentityEvent applies an identity provider push event to its client session.
func (g *DefaultGate) HandleIdentityEvent(ctx context.Context, evt models.IdentityEvent) error {
	if evt.Type == models.IdentitySignedOut || evt.Identity == nil {
		_, err := g.Logout(ctx, evt.ClientSessionID)
		return err
	}

	unlock := g.locks.Lock(evt.ClientSessionID)
	s, err := g.load(ctx, evt.ClientSessionID)
	if err != nil {
		unlock()
		return err
	}
	s.UserID = evt.Identity.UserID
	s.Email = evt.Identity.Email
	s.DisplayName = evt.Identity.DisplayName
	if err := g.save(ctx, &s); err != nil {
		unlock()
		return fmt.Errorf("failed to bind identity: %w", err)
	}
	unlock()

	reason := ReasonSignedIn
	if evt.Type == models.IdentityRefreshed {
		reason = ReasonRefreshed
	}
	g.publish(ctx, Change{Session: s, Reason: reason})
	return nil
}

// Bind subscribes the gate to identity provider push events.
func (g *DefaultGate) Bind(src EventSource) func() {
	return src.Subscribe(func(ctx context.Context, evt models.IdentityEvent) {
		if err := g.HandleIdentityEvent(ctx, evt); err != nil {
			utils.GetLogger().Error("Failed to apply identity event",
				zap.String("sessionID", evt.ClientSessionID),
				zap.String("event", string(evt.Type)),
				zap.Error(err))
		}
	})
}
