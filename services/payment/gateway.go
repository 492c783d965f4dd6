package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mia/models"

	"github.com/stripe/stripe-go/v76"
)

// GatewayProcessor talks to the hosted checkout gateway. The API key is
// attached server side and never reaches the browser.
type GatewayProcessor struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewGatewayProcessor(baseURL, apiKey string) *GatewayProcessor {
	return &GatewayProcessor{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type gatewayCreateRequest struct {
	PaymentData models.CheckoutRequest `json:"payment_data"`
}

// The gateway may answer with the redirect url alone; the session id is then
// learned from the return url.
type gatewayCreateResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (g *GatewayProcessor) do(ctx context.Context, method, path string, body io.Reader) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, g.BaseURL+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("x-api-key", g.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := g.Client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	return res.StatusCode, raw, err
}

func (g *GatewayProcessor) CreateSession(ctx context.Context, req models.CheckoutRequest) (*models.ProcessorSession, error) {
	body, err := json.Marshal(gatewayCreateRequest{PaymentData: req})
	if err != nil {
		return nil, fmt.Errorf("failed to encode checkout request: %w", err)
	}

	status, raw, err := g.do(ctx, http.MethodPost, "/create-checkout-session", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessorUnavailable, err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: gateway status %d", ErrProcessorUnavailable, status)
	}

	var out gatewayCreateResponse
	if err := json.Unmarshal(raw, &out); err != nil || out.URL == "" {
		return nil, fmt.Errorf("%w: unexpected gateway response", ErrProcessorUnavailable)
	}
	return &models.ProcessorSession{ID: out.ID, URL: out.URL}, nil
}

func (g *GatewayProcessor) RetrieveSession(ctx context.Context, sessionID string) (*models.Settlement, error) {
	path := "/get-checkout-session?id_checkout=" + url.QueryEscape(sessionID)
	status, raw, err := g.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReconciliationUnavailable, err)
	}
	switch {
	case status == http.StatusNotFound, status == http.StatusBadRequest:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	case status < 200 || status >= 300:
		return nil, fmt.Errorf("%w: gateway status %d", ErrReconciliationUnavailable, status)
	}

	// The gateway relays the processor's checkout session object.
	var cs stripe.CheckoutSession
	if err := json.Unmarshal(raw, &cs); err != nil {
		return nil, fmt.Errorf("%w: unreadable gateway payload", ErrReconciliationUnavailable)
	}
	if cs.Status == "" && cs.ID == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSession, sessionID)
	}
	if cs.ID == "" {
		cs.ID = sessionID
	}
	return settlementFromSession(&cs), nil
}
