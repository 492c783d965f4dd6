package handlers

import (
	"errors"
	"net/http"

	"mia/services/billing"
	"mia/services/booking"
	"mia/services/conversation"
	"mia/services/identity"
	"mia/services/payment"
	"mia/services/profile"
	"mia/services/session"
	"mia/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RegistrationPath is where clients send users who must sign in to continue.
const RegistrationPath = "/registration"

// apiError is the user safe rendering of a service error.
type apiError struct {
	Status   int
	Code     string
	Message  string
	Redirect string
}

var errorTable = []struct {
	target error
	resp   apiError
}{
	{session.ErrPromptLimitExceeded, apiError{http.StatusForbidden, "promptLimitExceeded", "Sign in to keep planning your trip", RegistrationPath}},
	{session.ErrMissingSessionID, apiError{http.StatusBadRequest, "missingSession", "A client session id is required", ""}},

	{conversation.ErrEmptyMessage, apiError{http.StatusBadRequest, "emptyMessage", "Message must not be empty", ""}},
	{conversation.ErrTurnInProgress, apiError{http.StatusConflict, "turnInProgress", "A reply is still being generated", ""}},
	{conversation.ErrSessionReset, apiError{http.StatusConflict, "sessionReset", "The session was reset while the reply was generated", ""}},
	{conversation.ErrUpstreamUnavailable, apiError{http.StatusServiceUnavailable, "upstreamUnavailable", conversation.FallbackReply, ""}},
	{conversation.ErrMalformedResponse, apiError{http.StatusUnprocessableEntity, "malformedResponse", conversation.FallbackReply, ""}},

	{booking.ErrUnauthenticated, apiError{http.StatusUnauthorized, "unauthenticated", "Sign in to book", RegistrationPath}},
	{booking.ErrNoDraft, apiError{http.StatusBadRequest, "noDraft", "There is no booking proposal for this session", ""}},
	{booking.ErrIncompleteBooking, apiError{http.StatusBadRequest, "incompleteBooking", "The booking proposal is incomplete", ""}},
	{booking.ErrNotOwner, apiError{http.StatusForbidden, "forbidden", "Booking belongs to another user", ""}},
	{booking.ErrBookingNotFound, apiError{http.StatusNotFound, "bookingNotFound", "Booking not found", ""}},
	{booking.ErrInvalidFilter, apiError{http.StatusBadRequest, "invalidFilter", "Unknown booking status filter", ""}},

	{payment.ErrInvalidBookingForCheckout, apiError{http.StatusBadRequest, "invalidBooking", "The booking cannot be paid as it is", ""}},
	{payment.ErrUnknownSession, apiError{http.StatusUnprocessableEntity, "unknownPaymentSession", "Payment session not recognized", ""}},
	{payment.ErrReconciliationUnavailable, apiError{http.StatusServiceUnavailable, "paymentStatusUnavailable", "Payment status is temporarily unavailable, please retry", ""}},
	{payment.ErrProcessorUnavailable, apiError{http.StatusServiceUnavailable, "processorUnavailable", "The payment provider is unavailable, please retry", ""}},
	{payment.ErrInvalidWebhook, apiError{http.StatusBadRequest, "invalidWebhook", "Invalid webhook", ""}},

	{billing.ErrUnauthenticated, apiError{http.StatusUnauthorized, "unauthenticated", "Insufficient authorization", ""}},
	{billing.ErrNotOwner, apiError{http.StatusForbidden, "forbidden", "Booking belongs to another user", ""}},
	{billing.ErrBookingNotFound, apiError{http.StatusNotFound, "bookingNotFound", "Booking not found", ""}},
	{billing.ErrBookingNotSettled, apiError{http.StatusConflict, "bookingNotSettled", "Only paid bookings can be invoiced", ""}},
	{billing.ErrInvalidAmount, apiError{http.StatusBadRequest, "invalidAmount", "Invoice amount must be positive", ""}},
	{billing.ErrInvalidTax, apiError{http.StatusBadRequest, "invalidTax", "Tax percentage must be between 0 and 100", ""}},
	{billing.ErrUnknownInvoiceType, apiError{http.StatusBadRequest, "unknownInvoiceType", "Unknown invoice type", ""}},
	{billing.ErrInvoiceNotFound, apiError{http.StatusNotFound, "invoiceNotFound", "Invoice not found", ""}},
	{billing.ErrInvalidTransition, apiError{http.StatusConflict, "invalidTransition", "Invoice status cannot change that way", ""}},

	{profile.ErrUnauthenticated, apiError{http.StatusUnauthorized, "unauthenticated", "Insufficient authorization", ""}},
}

// classify maps err onto a status and user safe message. Unknown errors are 500.
func classify(err error) apiError {
	var authErr *identity.AuthError
	if errors.As(err, &authErr) {
		switch authErr {
		case identity.ErrInvalidCredentials:
			return apiError{http.StatusUnauthorized, authErr.Code, authErr.Message, ""}
		case identity.ErrEmailTaken:
			return apiError{http.StatusConflict, authErr.Code, authErr.Message, ""}
		case identity.ErrInvalidSignUp:
			return apiError{http.StatusBadRequest, authErr.Code, authErr.Message, ""}
		default:
			return apiError{http.StatusUnauthorized, authErr.Code, "Insufficient authorization", ""}
		}
	}

	var te *booking.TransitionError
	if errors.As(err, &te) {
		return apiError{http.StatusConflict, te.Code, te.Message, ""}
	}

	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			return e.resp
		}
	}
	return apiError{http.StatusInternalServerError, "internal", "Internal Server Error", ""}
}

// respondError logs err and writes its classified response.
func respondError(c *gin.Context, err error) {
	resp := classify(err)
	if resp.Status >= http.StatusInternalServerError {
		getLogger(c).Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	utils.JSONErrorWithCode(c, resp.Status, resp.Code, resp.Message, resp.Redirect)
}

func badRequest(c *gin.Context, err error) {
	utils.JSONError(c, http.StatusBadRequest, "Invalid request", err.Error())
}
