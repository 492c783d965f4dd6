package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"mia/models"
)

// Request is what a backend receives for one turn.
type Request struct {
	Message   string
	UserID    string
	SessionID string
	History   []models.Message
}

// Response is a backend answer. Draft is set when the backend produced a booking.
type Response struct {
	Output string
	Draft  *models.BookingDraft
}

// Backend turns an utterance into a reply. Implementations wrap failures in
// ErrUpstreamUnavailable or ErrMalformedResponse.
type Backend interface {
	Reply(ctx context.Context, req Request) (*Response, error)
}

// wireResponse is the JSON shape shared by every backend:
// {"output": "...", "data": {"bookingData": {...}}}.
type wireResponse struct {
	Output *string `json:"output"`
	Data   *struct {
		BookingData *models.BookingDraft `json:"bookingData"`
	} `json:"data"`
}

// ParseResponse decodes a backend payload.
func ParseResponse(raw []byte) (*Response, error) {
	var w wireResponse
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if w.Output == nil || strings.TrimSpace(*w.Output) == "" {
		return nil, fmt.Errorf("%w: missing output", ErrMalformedResponse)
	}

	resp := &Response{Output: *w.Output}
	if w.Data != nil && w.Data.BookingData != nil {
		resp.Draft = w.Data.BookingData
	}
	return resp, nil
}
