package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"mia/models"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

// checkoutSessions is the subset of the Stripe checkout session client we use.
type checkoutSessions interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	Get(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeProcessor creates and retrieves Stripe checkout sessions directly.
type StripeProcessor struct {
	sessions checkoutSessions
}

func NewStripeProcessor(secretKey string) *StripeProcessor {
	return &StripeProcessor{sessions: client.New(secretKey, nil).CheckoutSessions}
}

func toStripeParams(req models.CheckoutRequest) *stripe.CheckoutSessionParams {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	for _, li := range req.LineItems {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(li.PriceData.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(li.PriceData.ProductData.Name),
					Description: stripe.String(li.PriceData.ProductData.Description),
				},
				UnitAmount: stripe.Int64(li.PriceData.UnitAmount),
			},
			Quantity: stripe.Int64(li.Quantity),
		})
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if id := req.Metadata["booking_id"]; id != "" {
		params.ClientReferenceID = stripe.String(id)
	}
	return params
}

func (s *StripeProcessor) CreateSession(_ context.Context, req models.CheckoutRequest) (*models.ProcessorSession, error) {
	cs, err := s.sessions.New(toStripeParams(req))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessorUnavailable, err)
	}
	return &models.ProcessorSession{ID: cs.ID, URL: cs.URL}, nil
}

func (s *StripeProcessor) RetrieveSession(_ context.Context, sessionID string) (*models.Settlement, error) {
	cs, err := s.sessions.Get(sessionID, nil)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) &&
			(stripeErr.Code == stripe.ErrorCodeResourceMissing || stripeErr.HTTPStatusCode == http.StatusNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
		}
		return nil, fmt.Errorf("%w: %v", ErrReconciliationUnavailable, err)
	}
	return settlementFromSession(cs), nil
}
