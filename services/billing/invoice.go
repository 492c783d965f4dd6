package billing

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"mia/database"
	"mia/database/repository"
	"mia/models"
	"mia/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateInvoiceInput carries the user supplied invoice fields.
// A nil TaxPercentage means models.DefaultTaxPercentage.
type CreateInvoiceInput struct {
	BookingID      string                 `json:"booking_id" binding:"required"`
	InvoiceType    string                 `json:"invoice_type" binding:"required"`
	BillingDetails map[string]interface{} `json:"billing_details"`
	Amount         float64                `json:"amount"`
	TaxPercentage  *float64               `json:"tax_percentage,omitempty"`
}

// BillingService creates and lists invoices of settled bookings.
type BillingService interface {
	ListOptions(category *models.BillingCategory) []models.BillingOption
	CreateInvoice(ctx context.Context, userID string, in CreateInvoiceInput) (*models.Invoice, error)
	ListInvoices(ctx context.Context, userID string) ([]models.InvoiceWithBooking, error)
	TransitionInvoice(ctx context.Context, userID, invoiceID string, to models.InvoiceStatus) (*models.Invoice, error)
}

// DefaultBillingService implements BillingService. It reads bookings but never writes them.
type DefaultBillingService struct {
	Invoices repository.InvoiceRepository
	Bookings repository.BookingRepository
	now      func() time.Time
}

func NewBillingService(invoices repository.InvoiceRepository, bookings repository.BookingRepository) *DefaultBillingService {
	return &DefaultBillingService{Invoices: invoices, Bookings: bookings, now: time.Now}
}

func (s *DefaultBillingService) ListOptions(category *models.BillingCategory) []models.BillingOption {
	return ListOptions(category)
}

// allowed lists the invoice status transitions.
var allowed = map[models.InvoiceStatus][]models.InvoiceStatus{
	models.InvoicePending: {models.InvoiceIssued, models.InvoiceCancelled},
	models.InvoiceIssued:  {models.InvoiceCancelled},
}

func canTransition(from, to models.InvoiceStatus) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

func validateInput(in CreateInvoiceInput) (models.BillingOption, float64, error) {
	if math.IsNaN(in.Amount) || in.Amount <= 0 {
		return models.BillingOption{}, 0, ErrInvalidAmount
	}
	opt, ok := LookupOption(in.InvoiceType)
	if !ok {
		return models.BillingOption{}, 0, fmt.Errorf("%w: %q", ErrUnknownInvoiceType, in.InvoiceType)
	}

	tax := models.DefaultTaxPercentage
	if in.TaxPercentage != nil {
		tax = *in.TaxPercentage
	}
	if math.IsNaN(tax) || tax < 0 || tax > 100 {
		return models.BillingOption{}, 0, ErrInvalidTax
	}
	return opt, tax, nil
}

// billingDetails copies details, dropping comments for options that do not take them.
func billingDetails(opt models.BillingOption, details map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(details))
	for k, v := range details {
		if k == "comments" && !opt.AllowsComments {
			continue
		}
		if c, ok := v.(string); ok {
			v = strings.TrimSpace(c)
		}
		out[k] = v
	}
	return out
}

// CreateInvoice persists a pending invoice for a completed booking of userID.
func (s *DefaultBillingService) CreateInvoice(ctx context.Context, userID string, in CreateInvoiceInput) (*models.Invoice, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	opt, tax, err := validateInput(in)
	if err != nil {
		return nil, err
	}

	b, err := s.Bookings.GetByID(ctx, in.BookingID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load booking %s: %w", in.BookingID, err)
	}
	if b.UserID != userID {
		return nil, ErrNotOwner
	}
	if b.Status != models.BookingCompleted {
		return nil, ErrBookingNotSettled
	}

	now := s.now().UTC()
	inv := &models.Invoice{
		ID:             uuid.New().String(),
		BookingID:      b.ID,
		UserID:         userID,
		InvoiceType:    in.InvoiceType,
		Amount:         in.Amount,
		TaxPercentage:  tax,
		BillingDetails: billingDetails(opt, in.BillingDetails),
		Status:         models.InvoicePending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.Invoices.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}

	utils.GetLogger().Info("Invoice created",
		zap.String("invoiceID", inv.ID),
		zap.String("bookingID", b.ID),
		zap.String("invoiceType", inv.InvoiceType))
	return inv, nil
}

// ListInvoices returns the invoices of userID with booking context, newest first.
func (s *DefaultBillingService) ListInvoices(ctx context.Context, userID string) ([]models.InvoiceWithBooking, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	invoices, err := s.Invoices.ListWithBooking(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}

// TransitionInvoice moves an invoice of userID to status `to`.
func (s *DefaultBillingService) TransitionInvoice(ctx context.Context, userID, invoiceID string, to models.InvoiceStatus) (*models.Invoice, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	inv, err := s.Invoices.GetByID(ctx, invoiceID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice %s: %w", invoiceID, err)
	}
	if inv.UserID != userID {
		return nil, ErrNotOwner
	}
	if !canTransition(inv.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, inv.Status, to)
	}

	ok, err := s.Invoices.TransitionStatus(ctx, invoiceID, inv.Status, to)
	if err != nil {
		return nil, fmt.Errorf("failed to update invoice %s: %w", invoiceID, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: invoice changed concurrently", ErrInvalidTransition)
	}
	inv.Status = to
	inv.UpdatedAt = s.now().UTC()
	return inv, nil
}
