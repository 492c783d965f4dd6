package payment

import (
	"strings"

	"mia/models"

	"github.com/stripe/stripe-go/v76"
)

// normalizeStatus maps Stripe checkout status and payment status onto a settlement status.
// A completed session that is still unpaid is an async payment in flight and stays open.
func normalizeStatus(status stripe.CheckoutSessionStatus, paymentStatus stripe.CheckoutSessionPaymentStatus) models.SettlementStatus {
	switch status {
	case stripe.CheckoutSessionStatusComplete:
		switch paymentStatus {
		case stripe.CheckoutSessionPaymentStatusPaid, stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
			return models.SettlementPaid
		}
		return models.SettlementOpen
	case stripe.CheckoutSessionStatusExpired:
		return models.SettlementExpired
	case stripe.CheckoutSessionStatusOpen:
		return models.SettlementOpen
	}
	return models.SettlementOpen
}

func settlementFromSession(cs *stripe.CheckoutSession) *models.Settlement {
	st := &models.Settlement{
		SessionID:   cs.ID,
		Status:      normalizeStatus(cs.Status, cs.PaymentStatus),
		AmountTotal: cs.AmountTotal,
		Currency:    strings.ToLower(string(cs.Currency)),
	}
	if cs.Metadata != nil {
		st.BookingID = cs.Metadata["booking_id"]
		st.ConfirmationCode = cs.Metadata["confirmation_code"]
		st.UserID = cs.Metadata["user_id"]
	}
	if st.BookingID == "" {
		st.BookingID = cs.ClientReferenceID
	}
	return st
}
