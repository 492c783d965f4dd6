package booking

import (
	"context"
	"errors"
	"fmt"

	"mia/database"
	"mia/models"
	"mia/services/payment"
	"mia/utils"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ReconcilePayment applies the processor status of a checkout session to its
// booking. Paid sessions record one payment and complete the booking once;
// failed or expired sessions return the session to Drafted with the booking
// still payable. Repeated calls are harmless.
func (o *DefaultOrchestrator) ReconcilePayment(ctx context.Context, externalSessionID string) (*Reconciliation, error) {
	st, err := o.Checkout.Reconcile(ctx, externalSessionID)
	if err != nil {
		utils.Reconciliations.WithLabelValues(reconcileErrorLabel(err)).Inc()
		return nil, err
	}
	return o.ReconcileSettlement(ctx, st)
}

// ReconcileSettlement applies a settlement that was already obtained from the
// processor, such as one carried by a verified webhook.
func (o *DefaultOrchestrator) ReconcileSettlement(ctx context.Context, st *models.Settlement) (*Reconciliation, error) {
	if st == nil || st.SessionID == "" {
		utils.Reconciliations.WithLabelValues("unknown_session").Inc()
		return nil, payment.ErrUnknownSession
	}
	if st.BookingID == "" {
		utils.Reconciliations.WithLabelValues("unknown_booking").Inc()
		return nil, fmt.Errorf("%w: checkout session %s carries no booking", payment.ErrUnknownSession, st.SessionID)
	}

	res, err := o.settleBooking(ctx, st)
	if err != nil {
		utils.Reconciliations.WithLabelValues("error").Inc()
		return nil, err
	}

	switch {
	case res.Transitioned:
		utils.Reconciliations.WithLabelValues("completed").Inc()
	case st.Status == models.SettlementPaid:
		utils.Reconciliations.WithLabelValues("duplicate").Inc()
	default:
		utils.Reconciliations.WithLabelValues(string(st.Status)).Inc()
	}

	o.applyToSession(ctx, st, res)
	return res, nil
}

func reconcileErrorLabel(err error) string {
	switch {
	case errors.Is(err, payment.ErrUnknownSession):
		return "unknown_session"
	case errors.Is(err, payment.ErrReconciliationUnavailable):
		return "unavailable"
	}
	return "error"
}

// settleBooking updates the persisted booking under its lock. The payment
// record is written before the status flips so a failure in between is
// repaired by the next reconciliation instead of losing the payment.
func (o *DefaultOrchestrator) settleBooking(ctx context.Context, st *models.Settlement) (*Reconciliation, error) {
	unlock := o.locks.Lock(bookingKey(st.BookingID))
	defer unlock()

	b, err := o.Bookings.GetByID(ctx, st.BookingID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrBookingNotFound, st.BookingID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load booking %s: %w", st.BookingID, err)
	}
	res := &Reconciliation{Settlement: st, Booking: b}
	if st.Status != models.SettlementPaid {
		return res, nil
	}

	logger := utils.GetLogger().With(zap.String("bookingID", b.ID), zap.String("checkoutSession", st.SessionID))
	if want, err := payment.MinorUnits(b.TotalPrice); err == nil && st.AmountTotal != 0 && st.AmountTotal != want {
		logger.Warn("Settled amount differs from booking price",
			zap.Int64("settled", st.AmountTotal), zap.Int64("expected", want))
	}

	rec := &models.PaymentRecord{
		ID:                uuid.New().String(),
		UserID:            b.UserID,
		BookingID:         b.ID,
		ExternalSessionID: st.SessionID,
		Amount:            b.TotalPrice,
		Currency:          st.Currency,
		Status:            string(models.SettlementPaid),
		CreatedAt:         o.now().UTC(),
	}
	if st.AmountTotal > 0 {
		rec.Amount = float64(st.AmountTotal) / 100
	}
	if _, err := o.Payments.Record(ctx, rec); err != nil {
		return nil, err
	}

	if b.Status != models.BookingPending {
		if b.Status == models.BookingCancelled {
			logger.Warn("Payment settled for a cancelled booking")
		}
		return res, nil
	}
	ok, err := o.Bookings.TransitionStatus(ctx, b.ID, models.BookingPending, models.BookingCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to complete booking %s: %w", b.ID, err)
	}
	if ok {
		b.Status = models.BookingCompleted
		b.UpdatedAt = o.now().UTC()
		res.Transitioned = true
		res.InvoiceEligible = true
		logger.Info("Booking completed")
		return res, nil
	}

	// Another writer changed the status first.
	if fresh, err := o.Bookings.GetByID(ctx, b.ID); err == nil {
		res.Booking = fresh
	}
	return res, nil
}

// applyToSession moves the linked client session after a reconciliation.
func (o *DefaultOrchestrator) applyToSession(ctx context.Context, st *models.Settlement, res *Reconciliation) {
	logger := utils.GetLogger()
	sessionID, err := o.States.SessionForBooking(ctx, st.BookingID)
	if err != nil {
		logger.Warn("Failed to resolve session of booking", zap.String("bookingID", st.BookingID), zap.Error(err))
	}

	var evt *Event
	if sessionID != "" {
		evt, err = o.moveSession(ctx, sessionID, st)
		if err != nil {
			logger.Error("Failed to update active booking after reconciliation",
				zap.String("sessionID", sessionID), zap.String("bookingID", st.BookingID), zap.Error(err))
		}
	}

	if res.Transitioned {
		if evt == nil {
			evt = &Event{From: models.StateAwaitingPayment, To: models.StateCompleted}
		}
		evt.Booking = res.Booking
	}
	if evt != nil {
		o.publish(ctx, *evt)
	}
}

func (o *DefaultOrchestrator) moveSession(ctx context.Context, sessionID string, st *models.Settlement) (*Event, error) {
	unlock := o.locks.Lock(sessionKey(sessionID))
	defer unlock()

	prev, err := o.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if prev.BookingID != st.BookingID {
		return nil, nil
	}

	next := prev
	// Gateways that only return a redirect url leave the pending checkout
	// without an id; the first reconciled session of the booking claims it.
	pending := prev.State == models.StateAwaitingPayment && prev.Payment != nil
	unclaimed := pending && prev.Payment.ExternalSessionID == ""
	switch st.Status {
	case models.SettlementPaid:
		if prev.State == models.StateCompleted || prev.State == models.StateDeleted {
			return nil, nil
		}
		next.State = models.StateCompleted
	case models.SettlementFailed, models.SettlementExpired:
		// Only the checkout the session is waiting on can send it back.
		if !pending || (!unclaimed && prev.Payment.ExternalSessionID != st.SessionID) {
			return nil, nil
		}
		next.State = models.StateDrafted
		next.Payment = nil
	default:
		if !unclaimed {
			return nil, nil
		}
		claimed := *prev.Payment
		claimed.ExternalSessionID = st.SessionID
		next.Payment = &claimed
		if err := o.save(ctx, &next); err != nil {
			return nil, err
		}
		return nil, nil
	}

	if err := o.save(ctx, &next); err != nil {
		return nil, err
	}
	return &Event{SessionID: sessionID, From: prev.State, To: next.State, Active: next}, nil
}
