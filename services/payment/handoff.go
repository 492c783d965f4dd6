package payment

import (
	"context"
	"fmt"
	"strings"

	"mia/models"
	"mia/utils"

	"go.uber.org/zap"
)

// Processor is an external payment processor.
type Processor interface {
	// CreateSession mints a hosted checkout session for req.
	CreateSession(ctx context.Context, req models.CheckoutRequest) (*models.ProcessorSession, error)
	// RetrieveSession returns the normalized status of a session. It fails
	// with ErrUnknownSession or ErrReconciliationUnavailable.
	RetrieveSession(ctx context.Context, sessionID string) (*models.Settlement, error)
}

type Config struct {
	SuccessURL string
	CancelURL  string
	Currency   string
}

// Handoff builds checkout requests and talks to the configured processor.
type Handoff struct {
	processor Processor
	cfg       Config
}

func NewHandoff(processor Processor, cfg Config) *Handoff {
	if cfg.Currency == "" {
		cfg.Currency = "mxn"
	}
	cfg.Currency = strings.ToLower(cfg.Currency)
	return &Handoff{processor: processor, cfg: cfg}
}

// InitiateRedirect asks the processor for a session. The caller must send the
// user agent to the returned URL; nothing local is meaningful afterwards.
func (h *Handoff) InitiateRedirect(ctx context.Context, req models.CheckoutRequest) (*models.ProcessorSession, error) {
	ps, err := h.processor.CreateSession(ctx, req)
	if err != nil {
		utils.GetLogger().Error("Failed to create checkout session",
			zap.String("bookingID", req.Metadata["booking_id"]), zap.Error(err))
		return nil, err
	}
	if ps == nil || ps.URL == "" {
		return nil, fmt.Errorf("%w: processor returned no redirect url", ErrProcessorUnavailable)
	}
	return ps, nil
}

// Reconcile queries the processor for a session id taken from a return URL or webhook.
func (h *Handoff) Reconcile(ctx context.Context, sessionID string) (*models.Settlement, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" || sessionID == CheckoutSessionPlaceholder {
		return nil, ErrUnknownSession
	}
	st, err := h.processor.RetrieveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	st.SessionID = sessionID
	return st, nil
}
