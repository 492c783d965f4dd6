package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookBackend posts each turn to an HTTP workflow endpoint.
type WebhookBackend struct {
	URL    string
	Client *http.Client
}

func NewWebhookBackend(url string, timeout time.Duration) *WebhookBackend {
	return &WebhookBackend{URL: url, Client: &http.Client{Timeout: timeout}}
}

type webhookRequest struct {
	Message string `json:"message"`
	UserID  string `json:"userId,omitempty"`
}

func (w *WebhookBackend) Reply(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(webhookRequest{Message: req.Message, UserID: req.UserID})
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := w.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if res.StatusCode >= 500 || res.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, res.StatusCode)
	}
	if res.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrMalformedResponse, res.StatusCode)
	}

	return ParseResponse(raw)
}
