package invoiceRepo

import (
	"context"

	"mia/models"
)

// InvoiceRepository defines methods for invoice data access.
type InvoiceRepository interface {
	Create(ctx context.Context, invoice *models.Invoice) error
	// GetByID returns database.ErrNotFound when the invoice does not exist.
	GetByID(ctx context.Context, id string) (*models.Invoice, error)
	// ListWithBooking returns the user's invoices joined with booking context, newest first.
	ListWithBooking(ctx context.Context, userID string) ([]models.InvoiceWithBooking, error)
	// TransitionStatus sets status to `to` only while it is still `from`.
	TransitionStatus(ctx context.Context, id string, from, to models.InvoiceStatus) (bool, error)
}
