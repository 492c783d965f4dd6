package identity

import (
	"context"
	"sync"
	"testing"
	"time"

	"mia/config"
	"mia/database"
	"mia/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*models.User)}
}

func (m *memUserRepo) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return database.ErrDuplicate
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *memUserRepo) SetFCMToken(_ context.Context, id, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return database.ErrNotFound
	}
	u.FCMToken = token
	return nil
}

func newTestService(t *testing.T) (*DefaultIdentityService, *memUserRepo) {
	t.Helper()
	config.AppConfig.JWTSecret = "identity-test-secret"
	t.Cleanup(func() { config.AppConfig.JWTSecret = "" })

	repo := newMemUserRepo()
	svc := NewIdentityService(repo, NewMemoryTokenCache(), time.Hour)
	svc.HashCost = bcrypt.MinCost
	return svc, repo
}

func TestSignUpThenGetSession(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	var events []models.IdentityEvent
	unsubscribe := svc.Subscribe(func(_ context.Context, evt models.IdentityEvent) {
		events = append(events, evt)
	})
	defer unsubscribe()

	ident, err := svc.SignUp(ctx, "tab-1", "Ana@Example.com", "secret1", "Ana")
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", ident.Email)
	assert.NotEmpty(t, ident.Token)

	got, err := svc.GetSession(ctx, ident.Token)
	require.NoError(t, err)
	assert.Equal(t, ident.UserID, got.UserID)
	assert.Equal(t, "Ana", got.DisplayName)

	require.Len(t, events, 1)
	assert.Equal(t, models.IdentitySignedIn, events[0].Type)
	assert.Equal(t, "tab-1", events[0].ClientSessionID)
}

func TestSignUpValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.SignUp(ctx, "tab", "not-an-email", "secret1", "Ana")
	assert.ErrorIs(t, err, ErrInvalidSignUp)
	_, err = svc.SignUp(ctx, "tab", "ana@example.com", "123", "Ana")
	assert.ErrorIs(t, err, ErrInvalidSignUp)

	_, err = svc.SignUp(ctx, "tab", "ana@example.com", "secret1", "Ana")
	require.NoError(t, err)
	_, err = svc.SignUp(ctx, "tab", "ana@example.com", "secret2", "Ana Two")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestSignInInvalidCredentials(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	_, err := svc.SignUp(ctx, "tab", "ana@example.com", "secret1", "Ana")
	require.NoError(t, err)

	_, err = svc.SignIn(ctx, "tab-2", "ana@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Equal(t, "Correo electrónico o contraseña incorrectos", ErrInvalidCredentials.Message)

	_, err = svc.SignIn(ctx, "tab-2", "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	ident, err := svc.SignIn(ctx, "tab-2", "ana@example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, ident.Token)
}

func TestSignOutRevokesToken(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	ident, err := svc.SignUp(ctx, "tab", "ana@example.com", "secret1", "Ana")
	require.NoError(t, err)

	var last models.IdentityEvent
	svc.Subscribe(func(_ context.Context, evt models.IdentityEvent) { last = evt })

	require.NoError(t, svc.SignOut(ctx, "tab", ident.Token))
	assert.Equal(t, models.IdentitySignedOut, last.Type)
	assert.Nil(t, last.Identity)

	_, err = svc.GetSession(ctx, ident.Token)
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestRefreshRequiresMatchingClientSession(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	ident, err := svc.SignUp(ctx, "tab", "ana@example.com", "secret1", "Ana")
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, "other-tab", ident.Token)
	assert.ErrorIs(t, err, ErrUnauthenticated)

	refreshed, err := svc.Refresh(ctx, "tab", ident.Token)
	require.NoError(t, err)
	_, err = svc.GetSession(ctx, refreshed.Token)
	assert.NoError(t, err)
}

func TestGetSessionRejectsGarbage(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.GetSession(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
	_, err = svc.GetSession(context.Background(), "not.a.jwt")
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestRegisterFCMToken(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t)
	ident, err := svc.SignUp(ctx, "tab", "ana@example.com", "secret1", "Ana")
	require.NoError(t, err)

	require.NoError(t, svc.RegisterFCMToken(ctx, ident.UserID, " fcm-token "))
	u, err := repo.GetByID(ctx, ident.UserID)
	require.NoError(t, err)
	assert.Equal(t, "fcm-token", u.FCMToken)

	assert.ErrorIs(t, svc.RegisterFCMToken(ctx, "", "x"), ErrUnauthenticated)
}
