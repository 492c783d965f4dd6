package booking

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated   = errors.New("authentication required")
	ErrIncompleteBooking = errors.New("booking draft is incomplete")
	ErrNoDraft           = errors.New("no booking draft for this session")
	ErrNotOwner          = errors.New("booking belongs to another user")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrInvalidFilter     = errors.New("invalid booking filter")
)

// TransitionError is returned when the current state does not allow the requested transition.
type TransitionError struct {
	Code    string
	Message string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewTransitionError(from, action string) error {
	return &TransitionError{
		Code:    "invalidTransition",
		Message: fmt.Sprintf("cannot %s from %s", action, from),
	}
}

// IsTransitionError reports whether err is a refused lifecycle transition.
func IsTransitionError(err error) bool {
	var te *TransitionError
	return errors.As(err, &te)
}
