package payment

import (
	"encoding/json"
	"fmt"

	"mia/models"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// WebhookEvent is a verified processor notification about a checkout session.
// Relevant is false for event types that do not affect bookings.
type WebhookEvent struct {
	ID         string
	Type       string
	SessionID  string
	Settlement *models.Settlement
	Relevant   bool
}

// ParseWebhook verifies the Stripe signature and extracts the checkout session.
func ParseWebhook(payload []byte, signature, secret string) (*WebhookEvent, error) {
	// Only stable checkout session fields are read, so older endpoint API versions are accepted.
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	out := &WebhookEvent{ID: event.ID, Type: string(event.Type)}
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded,
		stripe.EventTypeCheckoutSessionAsyncPaymentFailed,
		stripe.EventTypeCheckoutSessionExpired:
	default:
		return out, nil
	}

	if event.Data == nil {
		return nil, fmt.Errorf("%w: missing data", ErrInvalidWebhook)
	}
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}

	st := settlementFromSession(&cs)
	if event.Type == stripe.EventTypeCheckoutSessionAsyncPaymentFailed {
		st.Status = models.SettlementFailed
	}
	out.SessionID = cs.ID
	out.Settlement = st
	out.Relevant = true
	return out, nil
}
