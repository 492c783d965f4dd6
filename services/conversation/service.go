package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"mia/models"
	"mia/services/session"
	"mia/utils"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// DraftSink receives booking drafts produced by the backend.
type DraftSink interface {
	ReceiveDraft(ctx context.Context, sessionID string, draft models.BookingDraft) error
}

// SendResult is the outcome of one turn.
type SendResult struct {
	Reply        string               `json:"reply"`
	BookingDraft *models.BookingDraft `json:"bookingDraft,omitempty"`
	Messages     []models.Message     `json:"messages"`
}

// Engine is the conversation engine contract.
type Engine interface {
	Send(ctx context.Context, sessionID, utterance string) (*SendResult, error)
	History(ctx context.Context, sessionID string) ([]models.Message, error)
	Clear(ctx context.Context, sessionID string) error
}

type Service struct {
	gate    session.Gate
	backend Backend
	store   MessageStore
	turns   TurnLock
	drafts  DraftSink
	timeout time.Duration
	now     func() time.Time
}

func NewService(gate session.Gate, backend Backend, store MessageStore, turns TurnLock, drafts DraftSink, timeout time.Duration) *Service {
	return &Service{
		gate:    gate,
		backend: backend,
		store:   store,
		turns:   turns,
		drafts:  drafts,
		timeout: timeout,
		now:     time.Now,
	}
}

func (s *Service) message(content string, isUser bool) models.Message {
	return models.Message{
		ID:        ulid.Make().String(),
		Content:   content,
		Timestamp: s.now().UTC(),
		IsUser:    isUser,
	}
}

// Send runs one conversational turn. On a backend failure the fallback reply
// is appended and returned in the result together with the error.
func (s *Service) Send(ctx context.Context, sessionID, utterance string) (*SendResult, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		return nil, ErrEmptyMessage
	}
	logger := utils.GetLogger().With(zap.String("sessionID", sessionID))

	release, ok, err := s.turns.Acquire(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !ok {
		utils.ChatRequests.WithLabelValues("busy").Inc()
		return nil, ErrTurnInProgress
	}
	defer release()

	// The quota is consumed before dispatch so a slow or failed call cannot be retried for free.
	sess, err := s.gate.Admit(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrPromptLimitExceeded) {
			utils.ChatRequests.WithLabelValues("limited").Inc()
		}
		return nil, err
	}

	history, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	reset, err := s.resetSince(ctx, sessionID, sess.Epoch)
	if err != nil {
		return nil, err
	}
	if reset {
		utils.ChatRequests.WithLabelValues("discarded").Inc()
		return nil, ErrSessionReset
	}
	userMsg := s.message(utterance, true)
	if err := s.store.Append(ctx, sessionID, userMsg); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	started := time.Now()
	resp, callErr := s.backend.Reply(callCtx, Request{
		Message:   utterance,
		UserID:    sess.UserID,
		SessionID: sessionID,
		History:   history,
	})
	cancel()
	utils.ChatLatency.Observe(time.Since(started).Seconds())

	reset, err = s.resetSince(ctx, sessionID, sess.Epoch)
	if err != nil {
		return nil, err
	}
	if reset {
		logger.Info("Discarding reply for a session cleared mid-turn")
		utils.ChatRequests.WithLabelValues("discarded").Inc()
		// The logout may have cleared the store before the user message landed.
		if err := s.store.Clear(ctx, sessionID); err != nil {
			logger.Error("Failed to clear conversation after reset", zap.Error(err))
		}
		return nil, ErrSessionReset
	}

	if callErr != nil {
		logger.Error("Conversational backend failed", zap.Error(callErr))
		utils.ChatRequests.WithLabelValues("failed").Inc()
		fallback := s.message(FallbackReply, false)
		if err := s.store.Append(ctx, sessionID, fallback); err != nil {
			logger.Error("Failed to append fallback message", zap.Error(err))
		}
		msgs, _ := s.store.Load(ctx, sessionID)
		if !errors.Is(callErr, ErrMalformedResponse) && !errors.Is(callErr, ErrUpstreamUnavailable) {
			callErr = errors.Join(ErrUpstreamUnavailable, callErr)
		}
		return &SendResult{Reply: FallbackReply, Messages: msgs}, callErr
	}

	if err := s.store.Append(ctx, sessionID, s.message(resp.Output, false)); err != nil {
		return nil, err
	}
	draft := resp.Draft
	if draft != nil && s.drafts != nil {
		if err := s.drafts.ReceiveDraft(ctx, sessionID, *draft); err != nil {
			logger.Error("Failed to hand booking draft to orchestrator", zap.Error(err))
			draft = nil
		}
	}
	utils.ChatRequests.WithLabelValues("ok").Inc()

	msgs, err := s.store.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &SendResult{Reply: resp.Output, BookingDraft: draft, Messages: msgs}, nil
}

// resetSince reports whether the session was signed out after admission at epoch.
func (s *Service) resetSince(ctx context.Context, sessionID string, epoch int64) (bool, error) {
	current, err := s.gate.GetCurrentSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return current.Epoch != epoch, nil
}

func (s *Service) History(ctx context.Context, sessionID string) ([]models.Message, error) {
	return s.store.Load(ctx, sessionID)
}

func (s *Service) Clear(ctx context.Context, sessionID string) error {
	return s.store.Clear(ctx, sessionID)
}

// HandleSessionChange drops the conversation when its session signs out.
func (s *Service) HandleSessionChange(ctx context.Context, change session.Change) {
	if change.Reason != session.ReasonSignedOut {
		return
	}
	if err := s.store.Clear(ctx, change.Session.ID); err != nil {
		utils.GetLogger().Error("Failed to clear conversation on logout",
			zap.String("sessionID", change.Session.ID), zap.Error(err))
	}
}
