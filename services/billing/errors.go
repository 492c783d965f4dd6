package billing

import "errors"

var (
	ErrUnauthenticated    = errors.New("authentication required")
	ErrNotOwner           = errors.New("booking belongs to another user")
	ErrBookingNotFound    = errors.New("booking not found")
	ErrBookingNotSettled  = errors.New("booking has not been paid")
	ErrInvalidAmount      = errors.New("invoice amount must be positive")
	ErrInvalidTax         = errors.New("tax percentage must be between 0 and 100")
	ErrUnknownInvoiceType = errors.New("unknown invoice type")
	ErrInvoiceNotFound    = errors.New("invoice not found")
	ErrInvalidTransition  = errors.New("invalid invoice status transition")
)
