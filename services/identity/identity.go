package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"mia/database"
	userRepo "mia/database/repository/user"
	"mia/models"
	"mia/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Service is the identity provider boundary.
type Service interface {
	GetSession(ctx context.Context, token string) (*models.Identity, error)
	SignIn(ctx context.Context, clientSessionID, email, password string) (*models.Identity, error)
	SignUp(ctx context.Context, clientSessionID, email, password, name string) (*models.Identity, error)
	SignOut(ctx context.Context, clientSessionID, token string) error
	Refresh(ctx context.Context, clientSessionID, token string) (*models.Identity, error)
	Subscribe(h func(ctx context.Context, evt models.IdentityEvent)) (unsubscribe func())
	RegisterFCMToken(ctx context.Context, userID, fcmToken string) error
}

type listener struct {
	id uint64
	h  func(ctx context.Context, evt models.IdentityEvent)
}

// DefaultIdentityService stores users in Mongo and live token hashes in the auth cache.
type DefaultIdentityService struct {
	Repo     userRepo.UserRepository
	Tokens   TokenCache
	TokenTTL time.Duration
	// HashCost is the bcrypt cost for new passwords.
	HashCost int

	mu        sync.RWMutex
	listeners []listener
	nextID    uint64
}

func NewIdentityService(repo userRepo.UserRepository, tokens TokenCache, tokenTTL time.Duration) *DefaultIdentityService {
	return &DefaultIdentityService{
		Repo:     repo,
		Tokens:   tokens,
		TokenTTL: tokenTTL,
		HashCost: bcrypt.DefaultCost,
	}
}

func (s *DefaultIdentityService) Subscribe(h func(ctx context.Context, evt models.IdentityEvent)) func() {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listener{id: id, h: h})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, l := range s.listeners {
				if l.id == id {
					s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *DefaultIdentityService) emit(ctx context.Context, evt models.IdentityEvent) {
	s.mu.RLock()
	ls := make([]listener, len(s.listeners))
	copy(ls, s.listeners)
	s.mu.RUnlock()

	for _, l := range ls {
		l.h(ctx, evt)
	}
}

// issue mints a token bound to the client session and caches its hash.
func (s *DefaultIdentityService) issue(ctx context.Context, user *models.User, clientSessionID string) (*models.Identity, error) {
	token, err := utils.GenerateToken(user.ID, user.Email, clientSessionID, s.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	if err := s.Tokens.Set(ctx, user.ID, clientSessionID, utils.HashToken(token), s.TokenTTL); err != nil {
		return nil, fmt.Errorf("failed to cache token: %w", err)
	}
	return &models.Identity{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.Name,
		Token:       token,
		ExpiresAt:   time.Now().Add(s.TokenTTL),
	}, nil
}

// GetSession validates token against its signature and the cached hash.
func (s *DefaultIdentityService) GetSession(ctx context.Context, token string) (*models.Identity, error) {
	if token == "" {
		return nil, ErrUnauthenticated
	}
	claims, err := utils.ParseClaims(token)
	if err != nil {
		return nil, ErrSessionExpired
	}

	cached, err := s.Tokens.Get(ctx, claims.Subject, claims.SessionID)
	if err != nil {
		utils.GetLogger().Warn("GetSession: auth cache unavailable", zap.Error(err))
		return nil, fmt.Errorf("failed to verify session: %w", err)
	}
	if cached == "" || cached != utils.HashToken(token) {
		return nil, ErrSessionExpired
	}

	user, err := s.Repo.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrSessionExpired
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &models.Identity{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.Name,
		Token:       token,
		ExpiresAt:   claims.ExpiresAt,
	}, nil
}

func (s *DefaultIdentityService) SignIn(ctx context.Context, clientSessionID, email, password string) (*models.Identity, error) {
	user, err := s.Repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		utils.GetLogger().Error("SignIn: Failed to fetch user", zap.Error(err))
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	ident, err := s.issue(ctx, user, clientSessionID)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, models.IdentityEvent{Type: models.IdentitySignedIn, ClientSessionID: clientSessionID, Identity: ident})
	return ident, nil
}

func (s *DefaultIdentityService) SignUp(ctx context.Context, clientSessionID, email, password, name string) (*models.Identity, error) {
	email = strings.TrimSpace(email)
	name = strings.TrimSpace(name)
	if !strings.Contains(email, "@") || name == "" || len(password) < 6 {
		return nil, ErrInvalidSignUp
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.HashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	user := &models.User{
		ID:           uuid.New().String(),
		Email:        strings.ToLower(email),
		Name:         name,
		PasswordHash: string(hash),
	}
	if err := s.Repo.Create(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	utils.GetLogger().Info("User registered", zap.String("userID", user.ID))

	ident, err := s.issue(ctx, user, clientSessionID)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, models.IdentityEvent{Type: models.IdentitySignedIn, ClientSessionID: clientSessionID, Identity: ident})
	return ident, nil
}

// SignOut revokes the token when one is given and always clears the client session.
func (s *DefaultIdentityService) SignOut(ctx context.Context, clientSessionID, token string) error {
	if token != "" {
		if claims, err := utils.ParseClaims(token); err == nil {
			if err := s.Tokens.Del(ctx, claims.Subject, claims.SessionID); err != nil {
				utils.GetLogger().Error("SignOut: Failed to revoke token", zap.Error(err))
			}
		}
	}
	s.emit(ctx, models.IdentityEvent{Type: models.IdentitySignedOut, ClientSessionID: clientSessionID})
	return nil
}

// Refresh swaps a still valid token for a new one.
func (s *DefaultIdentityService) Refresh(ctx context.Context, clientSessionID, token string) (*models.Identity, error) {
	current, err := s.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	claims, err := utils.ParseClaims(token)
	if err != nil {
		return nil, ErrSessionExpired
	}
	if claims.SessionID != clientSessionID {
		return nil, ErrUnauthenticated
	}

	user := &models.User{ID: current.UserID, Email: current.Email, Name: current.DisplayName}
	ident, err := s.issue(ctx, user, clientSessionID)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, models.IdentityEvent{Type: models.IdentityRefreshed, ClientSessionID: clientSessionID, Identity: ident})
	return ident, nil
}

func (s *DefaultIdentityService) RegisterFCMToken(ctx context.Context, userID, fcmToken string) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	if err := s.Repo.SetFCMToken(ctx, userID, strings.TrimSpace(fcmToken)); err != nil {
		return fmt.Errorf("failed to store fcm token: %w", err)
	}
	return nil
}
