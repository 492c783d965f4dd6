package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"mia/database"
	"mia/database/repository"
	"mia/models"
	"mia/services/session"
	"mia/utils"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// Checkout is the payment handoff used by the orchestrator.
type Checkout interface {
	BuildCheckoutRequest(b models.Booking, cancelURL string) (models.CheckoutRequest, error)
	InitiateRedirect(ctx context.Context, req models.CheckoutRequest) (*models.ProcessorSession, error)
	Reconcile(ctx context.Context, sessionID string) (*models.Settlement, error)
}

// Event is delivered to subscribers after the active booking of a session
// changed or a persisted booking changed status. SessionID is empty when
// the booking is no longer linked to a client session.
type Event struct {
	SessionID string
	From      models.BookingState
	To        models.BookingState
	Active    models.ActiveBooking
	Booking   *models.Booking
}

type Handler func(ctx context.Context, evt Event)

// Reconciliation is the outcome of applying a processor status to a booking.
// Transitioned and InvoiceEligible are true only for the call that completed it.
type Reconciliation struct {
	Settlement      *models.Settlement `json:"settlement"`
	Booking         *models.Booking    `json:"booking,omitempty"`
	Transitioned    bool               `json:"transitioned"`
	InvoiceEligible bool               `json:"invoiceEligible"`
}

// Orchestrator owns the booking lifecycle of every client session.
type Orchestrator interface {
	ReceiveDraft(ctx context.Context, sessionID string, draft models.BookingDraft) error
	RequestPayment(ctx context.Context, sessionID, userID, cancelURL string) (*models.PaymentSession, error)
	AbandonPayment(ctx context.Context, sessionID string) (models.ActiveBooking, error)
	ReconcilePayment(ctx context.Context, externalSessionID string) (*Reconciliation, error)
	ReconcileSettlement(ctx context.Context, st *models.Settlement) (*Reconciliation, error)
	DeleteBooking(ctx context.Context, userID, bookingID string) error
	CancelBooking(ctx context.Context, userID, bookingID string) (*models.Booking, error)
	ListBookings(ctx context.Context, userID string, filter models.BookingFilter) ([]models.Booking, error)
	Snapshot(ctx context.Context, sessionID string) (models.ActiveBooking, error)
	Subscribe(h Handler) (unsubscribe func())
	HandleSessionChange(ctx context.Context, change session.Change)
}

type subscriber struct {
	id uint64
	h  Handler
}

// DefaultOrchestrator implements Orchestrator.
type DefaultOrchestrator struct {
	Bookings repository.BookingRepository
	Payments repository.PaymentRepository
	States   StateStore
	Checkout Checkout

	locks *utils.KeyedMutex
	now   func() time.Time

	mu     sync.RWMutex
	subs   []subscriber
	nextID uint64
}

func NewOrchestrator(bookings repository.BookingRepository, payments repository.PaymentRepository, states StateStore, checkout Checkout) *DefaultOrchestrator {
	return &DefaultOrchestrator{
		Bookings: bookings,
		Payments: payments,
		States:   states,
		Checkout: checkout,
		locks:    utils.NewKeyedMutex(),
		now:      time.Now,
	}
}

func sessionKey(id string) string { return "session:" + id }
func bookingKey(id string) string { return "booking:" + id }

func (o *DefaultOrchestrator) Subscribe(h Handler) func() {
	o.mu.Lock()
	o.nextID++
	id := o.nextID
	o.subs = append(o.subs, subscriber{id: id, h: h})
	o.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			o.mu.Lock()
			defer o.mu.Unlock()
			for i, s := range o.subs {
				if s.id == id {
					o.subs = append(o.subs[:i:i], o.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (o *DefaultOrchestrator) publish(ctx context.Context, evt Event) {
	if evt.From != evt.To {
		utils.BookingTransitions.WithLabelValues(string(evt.From), string(evt.To)).Inc()
	}

	o.mu.RLock()
	subs := make([]subscriber, len(o.subs))
	copy(subs, o.subs)
	o.mu.RUnlock()

	for _, s := range subs {
		s.h(ctx, evt)
	}
}

func (o *DefaultOrchestrator) load(ctx context.Context, sessionID string) (models.ActiveBooking, error) {
	st, err := o.States.Get(ctx, sessionID)
	if err != nil {
		return models.ActiveBooking{}, err
	}
	if st == nil {
		return models.ActiveBooking{SessionID: sessionID, State: models.StateNoBooking}, nil
	}
	return *st, nil
}

func (o *DefaultOrchestrator) save(ctx context.Context, st *models.ActiveBooking) error {
	st.UpdatedAt = o.now().UTC()
	return o.States.Save(ctx, st)
}

// Snapshot returns the active booking of sessionID, NoBooking when there is none.
func (o *DefaultOrchestrator) Snapshot(ctx context.Context, sessionID string) (models.ActiveBooking, error) {
	if sessionID == "" {
		return models.ActiveBooking{}, session.ErrMissingSessionID
	}
	return o.load(ctx, sessionID)
}

// ReceiveDraft replaces the session's draft and drops any pending payment
// reference. Redelivery of the current draft leaves the state untouched.
func (o *DefaultOrchestrator) ReceiveDraft(ctx context.Context, sessionID string, draft models.BookingDraft) error {
	if sessionID == "" {
		return session.ErrMissingSessionID
	}
	unlock := o.locks.Lock(sessionKey(sessionID))
	prev, err := o.load(ctx, sessionID)
	if err != nil {
		unlock()
		return err
	}
	if prev.Draft != nil && *prev.Draft == draft && prev.State != models.StateDeleted {
		unlock()
		return nil
	}

	next := models.ActiveBooking{
		SessionID: sessionID,
		State:     models.StateDrafted,
		Draft:     &draft,
	}
	if err := o.save(ctx, &next); err != nil {
		unlock()
		return fmt.Errorf("failed to store draft: %w", err)
	}
	unlock()

	o.publish(ctx, Event{SessionID: sessionID, From: prev.State, To: next.State, Active: next})
	return nil
}

// ValidateDraft reports whether d is complete and priced.
func ValidateDraft(d *models.BookingDraft) error {
	switch {
	case d == nil:
		return ErrNoDraft
	case strings.TrimSpace(d.Hotel.Name) == "":
		return fmt.Errorf("%w: missing hotel name", ErrIncompleteBooking)
	case strings.TrimSpace(d.Dates.CheckIn) == "" || strings.TrimSpace(d.Dates.CheckOut) == "":
		return fmt.Errorf("%w: missing dates", ErrIncompleteBooking)
	case !d.Room.Type.Valid():
		return fmt.Errorf("%w: unknown room type %q", ErrIncompleteBooking, d.Room.Type)
	case d.Room.TotalPrice <= 0:
		return fmt.Errorf("%w: total price must be positive", ErrIncompleteBooking)
	}
	return nil
}

func newConfirmationCode() string {
	id := ulid.Make().String()
	return "MIA-" + id[len(id)-8:]
}

// pendingBooking re-fetches the booking already persisted for this draft and
// reuses it while it is still payable by userID. Otherwise a new pending
// booking is created and created is true.
func (o *DefaultOrchestrator) pendingBooking(ctx context.Context, st models.ActiveBooking, userID string) (b *models.Booking, created bool, err error) {
	if st.BookingID != "" {
		existing, err := o.Bookings.GetByID(ctx, st.BookingID)
		switch {
		case err == nil && existing.UserID == userID && existing.Status == models.BookingPending:
			return existing, false, nil
		case err != nil && !errors.Is(err, database.ErrNotFound):
			return nil, false, err
		}
	}

	d := st.Draft
	now := o.now().UTC()
	b = &models.Booking{
		ID:               uuid.New().String(),
		ConfirmationCode: strings.TrimSpace(d.ConfirmationCode),
		HotelName:        strings.TrimSpace(d.Hotel.Name),
		CheckIn:          d.Dates.CheckIn,
		CheckOut:         d.Dates.CheckOut,
		RoomType:         d.Room.Type,
		TotalPrice:       d.Room.TotalPrice,
		Status:           models.BookingPending,
		UserID:           userID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if b.ConfirmationCode == "" {
		b.ConfirmationCode = newConfirmationCode()
	}
	if err := o.Bookings.Create(ctx, b); err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// RequestPayment persists the draft as a pending booking, opens a checkout
// session and moves the session to AwaitingPayment. A failure at any step
// leaves the session and the store as they were.
func (o *DefaultOrchestrator) RequestPayment(ctx context.Context, sessionID, userID, cancelURL string) (*models.PaymentSession, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if sessionID == "" {
		return nil, session.ErrMissingSessionID
	}

	unlock := o.locks.Lock(sessionKey(sessionID))
	defer unlock()

	prev, err := o.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if prev.State != models.StateDrafted && prev.State != models.StateAwaitingPayment {
		return nil, NewTransitionError(string(prev.State), "request payment")
	}
	if err := ValidateDraft(prev.Draft); err != nil {
		return nil, err
	}

	ps, b, err := o.openCheckout(ctx, prev, userID, cancelURL)
	if err != nil {
		return nil, err
	}

	next := prev
	next.State = models.StateAwaitingPayment
	next.BookingID = b.ID
	next.Payment = ps
	if err := o.save(ctx, &next); err != nil {
		return nil, fmt.Errorf("failed to store payment reference: %w", err)
	}
	if err := o.States.LinkBooking(ctx, b.ID, sessionID); err != nil {
		utils.GetLogger().Warn("Failed to link booking to session",
			zap.String("bookingID", b.ID), zap.String("sessionID", sessionID), zap.Error(err))
	}

	utils.GetLogger().Info("Checkout session opened",
		zap.String("bookingID", b.ID),
		zap.String("checkoutSession", ps.ExternalSessionID),
		zap.Int64("amount", ps.LineItemAmount))

	o.publish(ctx, Event{SessionID: sessionID, From: prev.State, To: next.State, Active: next, Booking: b})
	return ps, nil
}

func (o *DefaultOrchestrator) openCheckout(ctx context.Context, st models.ActiveBooking, userID, cancelURL string) (*models.PaymentSession, *models.Booking, error) {
	// Reconciliation of an earlier checkout may be completing the same booking.
	if st.BookingID != "" {
		unlockBooking := o.locks.Lock(bookingKey(st.BookingID))
		defer unlockBooking()
	}

	b, created, err := o.pendingBooking(ctx, st, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to persist booking: %w", err)
	}
	rollback := func() {
		if !created {
			return
		}
		if err := o.Bookings.Delete(context.WithoutCancel(ctx), b.ID); err != nil {
			utils.GetLogger().Error("Failed to roll back pending booking", zap.String("bookingID", b.ID), zap.Error(err))
		}
	}

	req, err := o.Checkout.BuildCheckoutRequest(*b, cancelURL)
	if err != nil {
		rollback()
		return nil, nil, err
	}
	redirect, err := o.Checkout.InitiateRedirect(ctx, req)
	if err != nil {
		rollback()
		return nil, nil, err
	}

	return &models.PaymentSession{
		BookingID:         b.ID,
		ExternalSessionID: redirect.ID,
		LineItemAmount:    req.Amount(),
		SuccessURL:        req.SuccessURL,
		CancelURL:         req.CancelURL,
		RedirectURL:       redirect.URL,
		CreatedAt:         o.now().UTC(),
	}, b, nil
}

// AbandonPayment returns a session awaiting payment to Drafted. The pending
// booking stays payable.
func (o *DefaultOrchestrator) AbandonPayment(ctx context.Context, sessionID string) (models.ActiveBooking, error) {
	if sessionID == "" {
		return models.ActiveBooking{}, session.ErrMissingSessionID
	}
	unlock := o.locks.Lock(sessionKey(sessionID))
	prev, err := o.load(ctx, sessionID)
	if err != nil {
		unlock()
		return models.ActiveBooking{}, err
	}
	if prev.State != models.StateAwaitingPayment {
		unlock()
		return prev, NewTransitionError(string(prev.State), "abandon payment")
	}

	next := prev
	next.State = models.StateDrafted
	next.Payment = nil
	if err := o.save(ctx, &next); err != nil {
		unlock()
		return prev, fmt.Errorf("failed to store active booking: %w", err)
	}
	unlock()

	o.publish(ctx, Event{SessionID: sessionID, From: prev.State, To: next.State, Active: next})
	return next, nil
}

// HandleSessionChange clears the active booking when the session signs out.
func (o *DefaultOrchestrator) HandleSessionChange(ctx context.Context, change session.Change) {
	if change.Reason != session.ReasonSignedOut {
		return
	}
	id := change.Session.ID
	unlock := o.locks.Lock(sessionKey(id))
	prev, err := o.load(ctx, id)
	if err == nil && prev.State != models.StateNoBooking {
		err = o.States.Delete(ctx, id)
	}
	unlock()
	if err != nil {
		utils.GetLogger().Error("Failed to clear active booking on sign out", zap.String("sessionID", id), zap.Error(err))
		return
	}
	if prev.State != models.StateNoBooking {
		o.publish(ctx, Event{
			SessionID: id,
			From:      prev.State,
			To:        models.StateNoBooking,
			Active:    models.ActiveBooking{SessionID: id, State: models.StateNoBooking},
		})
	}
}
