package session

import "errors"

var (
	// ErrPromptLimitExceeded is the expected signal that an anonymous session
	// used its quota and must register before sending more messages.
	ErrPromptLimitExceeded = errors.New("anonymous prompt limit exceeded")
	// ErrMissingSessionID is returned when no client session id was supplied.
	ErrMissingSessionID = errors.New("missing client session id")
)
