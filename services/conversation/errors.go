package conversation

import "errors"

var (
	// ErrUpstreamUnavailable is a transient backend or network failure.
	ErrUpstreamUnavailable = errors.New("conversational backend unavailable")
	// ErrMalformedResponse means the backend answered with an unusable payload.
	ErrMalformedResponse = errors.New("malformed conversational backend response")
	// ErrTurnInProgress rejects a second send while the previous one is running.
	ErrTurnInProgress = errors.New("a message is already being processed for this session")
	ErrEmptyMessage   = errors.New("message is empty")
	// ErrSessionReset means the session was cleared while the backend was answering.
	ErrSessionReset = errors.New("session was reset while the message was processed")
)

// FallbackReply is appended whenever the backend fails, so the conversation never stalls.
const FallbackReply = "Lo siento, hubo un error al procesar tu mensaje."
