// File: services/conversation/gemini.go
package conversation

import (
	"context"
	"fmt"
	"strings"

	"mia/models"

	genai "github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const geminiInstruction = `Eres Mia, una asistente de viajes que ayuda a reservar hoteles en México.
Responde SIEMPRE con un objeto JSON con la forma:
{"output": "<tu respuesta al usuario>", "data": {"bookingData": <reserva>}}
Incluye "data" solo cuando el usuario haya elegido hotel, fechas y tipo de habitación.
<reserva> tiene la forma:
{"confirmationCode": "<código>", "hotel": {"name": "<hotel>"},
 "dates": {"checkIn": "YYYY-MM-DD", "checkOut": "YYYY-MM-DD"},
 "room": {"type": "single" | "double", "totalPrice": <número en MXN>}}`

// GeminiBackend answers turns with a Gemini model instructed to emit the webhook JSON shape.
type GeminiBackend struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiBackend(ctx context.Context, apiKey, modelName string) (*GeminiBackend, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(geminiInstruction)}}
	return &GeminiBackend{client: client, model: model}, nil
}

func (g *GeminiBackend) Close() error {
	return g.client.Close()
}

// historyContents maps stored messages to chat turns. The pending user message is excluded.
func historyContents(history []models.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := "model"
		if m.IsUser {
			role = "user"
		}
		contents = append(contents, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return contents
}

func (g *GeminiBackend) Reply(ctx context.Context, req Request) (*Response, error) {
	cs := g.model.StartChat()
	cs.History = historyContents(req.History)

	resp, err := cs.SendMessage(ctx, genai.Text(req.Message))
	if err != nil {
		return nil, fmt.Errorf("%w: gemini generate error: %v", ErrUpstreamUnavailable, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("%w: empty candidate list", ErrMalformedResponse)
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if textPart, ok := part.(genai.Text); ok {
			sb.WriteString(string(textPart))
		}
	}
	return ParseResponse([]byte(sb.String()))
}
