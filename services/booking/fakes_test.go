package booking

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"mia/database"
	"mia/models"
	"mia/services/payment"
)

type memBookingRepo struct {
	mu        sync.Mutex
	bookings  map[string]models.Booking
	createErr error
}

func newMemBookingRepo() *memBookingRepo {
	return &memBookingRepo{bookings: make(map[string]models.Booking)}
}

func (m *memBookingRepo) Create(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	if _, ok := m.bookings[b.ID]; ok {
		return database.ErrDuplicate
	}
	m.bookings[b.ID] = *b
	return nil
}

func (m *memBookingRepo) GetByID(_ context.Context, id string) (*models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &b, nil
}

func (m *memBookingRepo) ListByUser(_ context.Context, userID string, filter models.BookingFilter) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	search := strings.ToLower(filter.Search)
	out := []models.Booking{}
	for _, b := range m.bookings {
		if b.UserID != userID {
			continue
		}
		if filter.Status != "" && b.Status != filter.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(b.HotelName), search) &&
			!strings.Contains(strings.ToLower(b.ConfirmationCode), search) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memBookingRepo) TransitionStatus(_ context.Context, id string, from, to models.BookingStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Status != from {
		return false, nil
	}
	b.Status = to
	m.bookings[id] = b
	return true, nil
}

func (m *memBookingRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.bookings[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.bookings, id)
	return nil
}

func (m *memBookingRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.bookings)
}

type memPaymentRepo struct {
	mu      sync.Mutex
	records map[string]models.PaymentRecord
	err     error
}

func newMemPaymentRepo() *memPaymentRepo {
	return &memPaymentRepo{records: make(map[string]models.PaymentRecord)}
}

func (m *memPaymentRepo) Record(_ context.Context, rec *models.PaymentRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if _, ok := m.records[rec.ExternalSessionID]; ok {
		return false, nil
	}
	m.records[rec.ExternalSessionID] = *rec
	return true, nil
}

func (m *memPaymentRepo) ListWithBooking(_ context.Context, userID string) ([]models.PaymentHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.PaymentHistoryEntry{}
	for _, r := range m.records {
		if r.UserID == userID {
			out = append(out, models.PaymentHistoryEntry{PaymentRecord: r})
		}
	}
	return out, nil
}

// fakeProcessor mints sequential checkout sessions and reports whatever
// status the test sets for them.
type fakeProcessor struct {
	mu        sync.Mutex
	next      int
	requests  map[string]models.CheckoutRequest
	statuses  map[string]models.SettlementStatus
	createErr error
	getErr    error
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		requests: make(map[string]models.CheckoutRequest),
		statuses: make(map[string]models.SettlementStatus),
	}
}

func (f *fakeProcessor) CreateSession(_ context.Context, req models.CheckoutRequest) (*models.ProcessorSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.next++
	id := fmt.Sprintf("cs_%d", f.next)
	f.requests[id] = req
	f.statuses[id] = models.SettlementOpen
	return &models.ProcessorSession{ID: id, URL: "https://pay.example/" + id}, nil
}

func (f *fakeProcessor) RetrieveSession(_ context.Context, id string) (*models.Settlement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	status, ok := f.statuses[id]
	if !ok {
		return nil, payment.ErrUnknownSession
	}
	req := f.requests[id]
	return &models.Settlement{
		Status:           status,
		BookingID:        req.Metadata["booking_id"],
		ConfirmationCode: req.Metadata["confirmation_code"],
		UserID:           req.Metadata["user_id"],
		AmountTotal:      req.Amount(),
		Currency:         req.LineItems[0].PriceData.Currency,
	}, nil
}

func (f *fakeProcessor) set(id string, status models.SettlementStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
}

func (f *fakeProcessor) createdCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}
