package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"mia/services/booking"
	"mia/services/payment"
	"mia/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxWebhookBody = 64 << 10

// reconcile applies the processor status of sessionID and queues a retry on
// transient failures.
func (hb *HandlerBundle) reconcile(c *gin.Context, sessionID string) (*booking.Reconciliation, error) {
	res, err := hb.Bookings.ReconcilePayment(c.Request.Context(), sessionID)
	if err != nil && errors.Is(err, payment.ErrReconciliationUnavailable) && hb.Retries != nil {
		if qerr := hb.Retries.Schedule(strings.TrimSpace(sessionID)); qerr != nil {
			getLogger(c).Error("Failed to queue reconcile retry", zap.String("paymentSessionID", sessionID), zap.Error(qerr))
		}
	}
	return res, err
}

// PaymentReturnHandler reconciles the session id carried by the processor's success redirect.
func (hb *HandlerBundle) PaymentReturnHandler(c *gin.Context) {
	res, err := hb.reconcile(c, c.Query("session"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ReconcilePaymentHandler reconciles an explicitly supplied processor session id.
func (hb *HandlerBundle) ReconcilePaymentHandler(c *gin.Context) {
	var req struct {
		SessionID string `json:"sessionId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := hb.reconcile(c, req.SessionID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// PaymentWebhookHandler verifies a processor notification and reconciles its session.
// Events are acknowledged once applied or queued so the processor stops redelivering.
func (hb *HandlerBundle) PaymentWebhookHandler(c *gin.Context) {
	logger := getLogger(c)
	if hb.WebhookSecret == "" {
		utils.JSONError(c, http.StatusNotFound, "Webhooks are not enabled", "")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		badRequest(c, err)
		return
	}
	evt, err := payment.ParseWebhook(payload, c.GetHeader("Stripe-Signature"), hb.WebhookSecret)
	if err != nil {
		respondError(c, err)
		return
	}
	if !evt.Relevant {
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	// The signed event already carries the settlement; async payment failures
	// are only visible here, the retrieved session still reads as open.
	res, err := hb.Bookings.ReconcileSettlement(c.Request.Context(), evt.Settlement)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"received": true, "transitioned": res.Transitioned})
	case errors.Is(err, payment.ErrReconciliationUnavailable):
		if hb.Retries == nil {
			respondError(c, err)
			return
		}
		if qerr := hb.Retries.Schedule(evt.SessionID); qerr != nil {
			logger.Error("Failed to queue webhook reconcile", zap.String("eventID", evt.ID), zap.Error(qerr))
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"received": true, "queued": true})
	case errors.Is(err, payment.ErrUnknownSession), errors.Is(err, booking.ErrBookingNotFound):
		logger.Warn("Webhook for unknown checkout", zap.String("eventID", evt.ID), zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"received": true})
	default:
		respondError(c, err)
	}
}
