package models

import "time"

type InvoiceStatus string

const (
	InvoicePending   InvoiceStatus = "pending"
	InvoiceIssued    InvoiceStatus = "issued"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// DefaultTaxPercentage is the IVA rate applied when none is given.
const DefaultTaxPercentage = 16.0

// Invoice is created from a completed booking. Only Status changes afterwards.
type Invoice struct {
	ID             string                 `bson:"id" json:"id"`
	BookingID      string                 `bson:"booking_id" json:"booking_id"`
	UserID         string                 `bson:"user_id" json:"user_id"`
	InvoiceType    string                 `bson:"invoice_type" json:"invoice_type"`
	Amount         float64                `bson:"amount" json:"amount"`
	TaxPercentage  float64                `bson:"tax_percentage" json:"tax_percentage"`
	BillingDetails map[string]interface{} `bson:"billing_details" json:"billing_details"`
	Status         InvoiceStatus          `bson:"status" json:"status"`
	CreatedAt      time.Time              `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time              `bson:"updated_at" json:"updated_at"`
}

// InvoiceWithBooking is an invoice joined with its booking summary.
type InvoiceWithBooking struct {
	Invoice `bson:",inline"`
	Booking *BookingSummary `bson:"booking,omitempty" json:"booking,omitempty"`
}
