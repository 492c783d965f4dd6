package conversation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"mia/models"
	"mia/services/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu    sync.Mutex
	calls []Request
	reply func(ctx context.Context, req Request) (*Response, error)
}

func (f *fakeBackend) Reply(ctx context.Context, req Request) (*Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()
	return f.reply(ctx, req)
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type recordingSink struct {
	mu     sync.Mutex
	drafts map[string]models.BookingDraft
	err    error
}

func (r *recordingSink) ReceiveDraft(_ context.Context, sessionID string, draft models.BookingDraft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	if r.drafts == nil {
		r.drafts = make(map[string]models.BookingDraft)
	}
	r.drafts[sessionID] = draft
	return nil
}

func hotelXDraft() *models.BookingDraft {
	return &models.BookingDraft{
		ConfirmationCode: "MIA-001",
		Hotel:            models.DraftHotel{Name: "Hotel X"},
		Dates:            models.DraftDates{CheckIn: "2026-12-01", CheckOut: "2026-12-04"},
		Room:             models.DraftRoom{Type: models.RoomDouble, TotalPrice: 2500},
	}
}

func newTestEngine(backend Backend) (*Service, *session.DefaultGate, *recordingSink) {
	gate := session.NewGate(session.NewMemoryStore(), 2)
	sink := &recordingSink{}
	svc := NewService(gate, backend, NewMemoryMessageStore(), NewMemoryTurnLock(), sink, time.Second)
	return svc, gate, sink
}

func TestAnonymousConversationEndToEnd(t *testing.T) {
	ctx := context.Background()
	turn := 0
	backend := &fakeBackend{reply: func(_ context.Context, req Request) (*Response, error) {
		turn++
		if turn == 1 {
			return &Response{Output: "¿Para qué fechas?"}, nil
		}
		return &Response{Output: "Te encontré Hotel X", Draft: hotelXDraft()}, nil
	}}
	svc, _, sink := newTestEngine(backend)

	first, err := svc.Send(ctx, "tab", "Quiero un hotel en Cancún")
	require.NoError(t, err)
	assert.Nil(t, first.BookingDraft)
	assert.Len(t, first.Messages, 2)
	assert.True(t, first.Messages[0].IsUser)
	assert.False(t, first.Messages[1].IsUser)

	second, err := svc.Send(ctx, "tab", "Del 1 al 4 de diciembre, habitación doble")
	require.NoError(t, err)
	require.NotNil(t, second.BookingDraft)
	assert.Equal(t, "Hotel X", second.BookingDraft.Hotel.Name)
	assert.Equal(t, models.RoomDouble, second.BookingDraft.Room.Type)
	assert.Equal(t, 2500.0, second.BookingDraft.Room.TotalPrice)
	assert.Equal(t, "Hotel X", sink.drafts["tab"].Hotel.Name)

	_, err = svc.Send(ctx, "tab", "¿Y el desayuno?")
	assert.ErrorIs(t, err, session.ErrPromptLimitExceeded)
	assert.Equal(t, 2, backend.callCount(), "third send never reaches the backend")

	history, err := svc.History(ctx, "tab")
	require.NoError(t, err)
	assert.Len(t, history, 4)
}

func TestSendPassesUserIDWhenAuthenticated(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{reply: func(context.Context, Request) (*Response, error) {
		return &Response{Output: "hola"}, nil
	}}
	svc, gate, _ := newTestEngine(backend)
	require.NoError(t, gate.HandleIdentityEvent(ctx, models.IdentityEvent{
		Type: models.IdentitySignedIn, ClientSessionID: "tab", Identity: &models.Identity{UserID: "u1"},
	}))

	_, err := svc.Send(ctx, "tab", "hola")
	require.NoError(t, err)
	assert.Equal(t, "u1", backend.calls[0].UserID)
}

func TestBackendFailureAppendsFallback(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{reply: func(context.Context, Request) (*Response, error) {
		return nil, fmt.Errorf("%w: connection refused", ErrUpstreamUnavailable)
	}}
	svc, gate, _ := newTestEngine(backend)

	res, err := svc.Send(ctx, "tab", "hola")
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
	require.NotNil(t, res)
	assert.Equal(t, FallbackReply, res.Reply)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, FallbackReply, res.Messages[1].Content)

	s, err := gate.GetCurrentSession(ctx, "tab")
	require.NoError(t, err)
	assert.Equal(t, 1, s.PromptCount, "the prompt is counted even though the call failed")
}

func TestMalformedResponseIsNotRetryable(t *testing.T) {
	backend := &fakeBackend{reply: func(context.Context, Request) (*Response, error) {
		return ParseResponse([]byte(`<html>oops</html>`))
	}}
	svc, _, _ := newTestEngine(backend)

	res, err := svc.Send(context.Background(), "tab", "hola")
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.NotErrorIs(t, err, ErrUpstreamUnavailable)
	assert.Equal(t, FallbackReply, res.Reply)
}

func TestConcurrentSendIsRejected(t *testing.T) {
	ctx := context.Background()
	entered := make(chan struct{})
	unblock := make(chan struct{})
	backend := &fakeBackend{reply: func(context.Context, Request) (*Response, error) {
		close(entered)
		<-unblock
		return &Response{Output: "ok"}, nil
	}}
	svc, _, _ := newTestEngine(backend)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Send(ctx, "tab", "primero")
		done <- err
	}()
	<-entered

	_, err := svc.Send(ctx, "tab", "segundo")
	assert.ErrorIs(t, err, ErrTurnInProgress)

	close(unblock)
	require.NoError(t, <-done)
}

func TestLogoutDuringCallDiscardsReply(t *testing.T) {
	ctx := context.Background()
	var svc *Service
	var gate *session.DefaultGate
	backend := &fakeBackend{reply: func(context.Context, Request) (*Response, error) {
		_, err := gate.Logout(ctx, "tab")
		require.NoError(t, err)
		return &Response{Output: "tarde", Draft: hotelXDraft()}, nil
	}}
	var sink *recordingSink
	svc, gate, sink = newTestEngine(backend)
	unsubscribe := gate.OnSessionChange(svc.HandleSessionChange)
	defer unsubscribe()

	_, err := svc.Send(ctx, "tab", "hola")
	assert.ErrorIs(t, err, ErrSessionReset)

	history, err := svc.History(ctx, "tab")
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.Empty(t, sink.drafts)
}

// loadHookStore runs onLoad once, after admission and before the user message is stored.
type loadHookStore struct {
	MessageStore
	once   sync.Once
	onLoad func()
}

func (s *loadHookStore) Load(ctx context.Context, sessionID string) ([]models.Message, error) {
	s.once.Do(s.onLoad)
	return s.MessageStore.Load(ctx, sessionID)
}

func TestLogoutBeforeUserMessageIsStored(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{reply: func(context.Context, Request) (*Response, error) {
		return &Response{Output: "hola"}, nil
	}}
	gate := session.NewGate(session.NewMemoryStore(), 2)
	store := &loadHookStore{MessageStore: NewMemoryMessageStore()}
	store.onLoad = func() {
		_, err := gate.Logout(ctx, "tab")
		require.NoError(t, err)
	}
	svc := NewService(gate, backend, store, NewMemoryTurnLock(), &recordingSink{}, time.Second)
	unsubscribe := gate.OnSessionChange(svc.HandleSessionChange)
	defer unsubscribe()

	_, err := svc.Send(ctx, "tab", "hola")
	assert.ErrorIs(t, err, ErrSessionReset)
	assert.Zero(t, backend.callCount())

	history, err := svc.History(ctx, "tab")
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRejectedDraftIsNotReturned(t *testing.T) {
	backend := &fakeBackend{reply: func(context.Context, Request) (*Response, error) {
		return &Response{Output: "Te encontré Hotel X", Draft: hotelXDraft()}, nil
	}}
	svc, _, sink := newTestEngine(backend)
	sink.err = fmt.Errorf("state store down")

	res, err := svc.Send(context.Background(), "tab", "Del 1 al 4 de diciembre")
	require.NoError(t, err)
	assert.Nil(t, res.BookingDraft)
	assert.Equal(t, "Te encontré Hotel X", res.Reply)
	assert.Len(t, res.Messages, 2)
}

func TestEmptyMessage(t *testing.T) {
	backend := &fakeBackend{reply: func(context.Context, Request) (*Response, error) {
		return &Response{Output: "x"}, nil
	}}
	svc, gate, _ := newTestEngine(backend)

	_, err := svc.Send(context.Background(), "tab", "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	s, _ := gate.GetCurrentSession(context.Background(), "tab")
	assert.Zero(t, s.PromptCount)
}

func TestMessageIDsAreOrdered(t *testing.T) {
	backend := &fakeBackend{reply: func(context.Context, Request) (*Response, error) {
		return &Response{Output: "ok"}, nil
	}}
	svc, _, _ := newTestEngine(backend)

	res, err := svc.Send(context.Background(), "tab", "hola")
	require.NoError(t, err)
	require.Len(t, res.Messages, 2)
	assert.Less(t, res.Messages[0].ID, res.Messages[1].ID)
}
