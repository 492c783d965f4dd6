package routes

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"mia/database"
	"mia/models"
	"mia/services/conversation"
	"mia/services/payment"
	"mia/services/profile"
)

type memUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func (m *memUserRepo) Create(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return database.ErrDuplicate
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *memUserRepo) SetFCMToken(_ context.Context, id, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return database.ErrNotFound
	}
	u.FCMToken = token
	return nil
}

type memBookingRepo struct {
	mu       sync.Mutex
	bookings map[string]models.Booking
}

func (m *memBookingRepo) Create(_ context.Context, b *models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
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
	out := []models.Booking{}
	for _, b := range m.bookings {
		if b.UserID != userID || (filter.Status != "" && b.Status != filter.Status) {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(b.HotelName), strings.ToLower(filter.Search)) {
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

func (m *memBookingRepo) only() models.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.bookings {
		return b
	}
	return models.Booking{}
}

type memPaymentRepo struct {
	mu      sync.Mutex
	records map[string]models.PaymentRecord
}

func (m *memPaymentRepo) Record(_ context.Context, rec *models.PaymentRecord) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
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

type memInvoiceRepo struct {
	mu       sync.Mutex
	invoices map[string]models.Invoice
}

func (m *memInvoiceRepo) Create(_ context.Context, inv *models.Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoices[inv.ID] = *inv
	return nil
}

func (m *memInvoiceRepo) GetByID(_ context.Context, id string) (*models.Invoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &inv, nil
}

func (m *memInvoiceRepo) ListWithBooking(_ context.Context, userID string) ([]models.InvoiceWithBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.InvoiceWithBooking{}
	for _, inv := range m.invoices {
		if inv.UserID == userID {
			out = append(out, models.InvoiceWithBooking{Invoice: inv})
		}
	}
	return out, nil
}

func (m *memInvoiceRepo) TransitionStatus(_ context.Context, id string, from, to models.InvoiceStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.invoices[id]
	if !ok || inv.Status != from {
		return false, nil
	}
	inv.Status = to
	m.invoices[id] = inv
	return true, nil
}

type fakeProcessor struct {
	mu       sync.Mutex
	next     int
	requests map[string]models.CheckoutRequest
	statuses map[string]models.SettlementStatus
	getErr   error
}

func (f *fakeProcessor) CreateSession(_ context.Context, req models.CheckoutRequest) (*models.ProcessorSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	id := fmt.Sprintf("cs_test_%d", f.next)
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
		Status:      status,
		BookingID:   req.Metadata["booking_id"],
		UserID:      req.Metadata["user_id"],
		AmountTotal: req.Amount(),
		Currency:    req.LineItems[0].PriceData.Currency,
	}, nil
}

func (f *fakeProcessor) set(id string, status models.SettlementStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[id] = status
}

// scriptedBackend replies with a draft once the user mentions dates.
type scriptedBackend struct{}

func (scriptedBackend) Reply(_ context.Context, req conversation.Request) (*conversation.Response, error) {
	if !strings.Contains(req.Message, "diciembre") {
		return &conversation.Response{Output: "¿Para qué fechas?"}, nil
	}
	return &conversation.Response{
		Output: "Te encontré Hotel X",
		Draft: &models.BookingDraft{
			Hotel: models.DraftHotel{Name: "Hotel X"},
			Dates: models.DraftDates{CheckIn: "2026-12-01", CheckOut: "2026-12-04"},
			Room:  models.DraftRoom{Type: models.RoomDouble, TotalPrice: 2500},
		},
	}, nil
}

type fakeScheduler struct {
	mu        sync.Mutex
	scheduled []string
}

func (f *fakeScheduler) Schedule(sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scheduled = append(f.scheduled, sessionID)
	return nil
}

type fakeProfiles struct {
	saved map[string]profile.PreferencesInput
}

func (f *fakeProfiles) GetProfile(_ context.Context, userID string) (*models.Profile, error) {
	if userID == "" {
		return nil, profile.ErrUnauthenticated
	}
	return &models.Profile{UserID: userID}, nil
}

func (f *fakeProfiles) SavePreferences(_ context.Context, userID string, in profile.PreferencesInput) (*models.UserPreferences, error) {
	if userID == "" {
		return nil, profile.ErrUnauthenticated
	}
	f.saved[userID] = in
	return &models.UserPreferences{UserID: userID, PreferredHotel: in.PreferredHotel}, nil
}
