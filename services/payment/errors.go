package payment

import "errors"

var (
	// ErrInvalidBookingForCheckout blocks the handoff before any network call.
	ErrInvalidBookingForCheckout = errors.New("booking cannot be sent to checkout")
	// ErrUnknownSession is returned when the processor does not recognize a session id. Not retryable.
	ErrUnknownSession = errors.New("unknown checkout session")
	// ErrReconciliationUnavailable is a transient failure while querying the processor. Retryable.
	ErrReconciliationUnavailable = errors.New("payment status temporarily unavailable")
	// ErrProcessorUnavailable is returned when a checkout session could not be created.
	ErrProcessorUnavailable = errors.New("payment processor unavailable")
	// ErrInvalidWebhook rejects webhook payloads that fail signature verification.
	ErrInvalidWebhook = errors.New("invalid payment webhook")
)
