package models

import "time"

// PaymentSession references the checkout session of the booking awaiting payment.
type PaymentSession struct {
	BookingID         string    `json:"bookingId"`
	ExternalSessionID string    `json:"externalSessionId"`
	LineItemAmount    int64     `json:"lineItemAmount"`
	SuccessURL        string    `json:"successUrl"`
	CancelURL         string    `json:"cancelUrl"`
	RedirectURL       string    `json:"redirectUrl"`
	CreatedAt         time.Time `json:"createdAt"`
}

// CheckoutRequest is the provider agnostic checkout payload.
type CheckoutRequest struct {
	LineItems  []LineItem        `json:"line_items"`
	Mode       string            `json:"mode"`
	SuccessURL string            `json:"success_url"`
	CancelURL  string            `json:"cancel_url"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

type LineItem struct {
	PriceData PriceData `json:"price_data"`
	Quantity  int64     `json:"quantity"`
}

type PriceData struct {
	Currency    string      `json:"currency"`
	ProductData ProductData `json:"product_data"`
	UnitAmount  int64       `json:"unit_amount"`
}

type ProductData struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Amount returns the total of the request in minor units.
func (r CheckoutRequest) Amount() int64 {
	var total int64
	for _, li := range r.LineItems {
		total += li.PriceData.UnitAmount * li.Quantity
	}
	return total
}

// ProcessorSession is what a payment processor returns when a checkout is created.
type ProcessorSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// SettlementStatus is the normalized processor status of a checkout session.
type SettlementStatus string

const (
	SettlementOpen    SettlementStatus = "open"
	SettlementPaid    SettlementStatus = "paid"
	SettlementFailed  SettlementStatus = "failed"
	SettlementExpired SettlementStatus = "expired"
)

// Settlement is the reconciled state of a checkout session.
type Settlement struct {
	SessionID        string           `json:"sessionId"`
	Status           SettlementStatus `json:"status"`
	BookingID        string           `json:"bookingId,omitempty"`
	ConfirmationCode string           `json:"confirmationCode,omitempty"`
	UserID           string           `json:"userId,omitempty"`
	AmountTotal      int64            `json:"amountTotal"`
	Currency         string           `json:"currency,omitempty"`
}

// PaymentRecord is written once per settled checkout session.
type PaymentRecord struct {
	ID                string    `bson:"id" json:"id"`
	UserID            string    `bson:"user_id" json:"user_id"`
	BookingID         string    `bson:"booking_id" json:"booking_id"`
	ExternalSessionID string    `bson:"external_session_id" json:"external_session_id"`
	Amount            float64   `bson:"amount" json:"amount"`
	Currency          string    `bson:"currency" json:"currency"`
	Status            string    `bson:"status" json:"status"`
	CreatedAt         time.Time `bson:"created_at" json:"created_at"`
}

// PaymentHistoryEntry is a payment record joined with its booking.
type PaymentHistoryEntry struct {
	PaymentRecord `bson:",inline"`
	Booking       *BookingSummary `bson:"booking,omitempty" json:"booking,omitempty"`
}

// ReconcilePayload is the queued reconciliation task body.
type ReconcilePayload struct {
	SessionID string `json:"sessionId"`
}
