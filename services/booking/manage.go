package booking

import (
	"context"
	"errors"
	"fmt"

	"mia/database"
	"mia/models"
	"mia/utils"

	"go.uber.org/zap"
)

// ownedBooking loads bookingID and checks that userID owns it.
func (o *DefaultOrchestrator) ownedBooking(ctx context.Context, userID, bookingID string) (*models.Booking, error) {
	b, err := o.Bookings.GetByID(ctx, bookingID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load booking %s: %w", bookingID, err)
	}
	if b.UserID != userID {
		return nil, ErrNotOwner
	}
	return b, nil
}

// DeleteBooking hard deletes a booking of userID in any status.
func (o *DefaultOrchestrator) DeleteBooking(ctx context.Context, userID, bookingID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}

	unlock := o.locks.Lock(bookingKey(bookingID))
	b, err := o.ownedBooking(ctx, userID, bookingID)
	if err != nil {
		unlock()
		return err
	}
	if err := o.Bookings.Delete(ctx, bookingID); err != nil {
		unlock()
		if errors.Is(err, database.ErrNotFound) {
			return ErrBookingNotFound
		}
		return fmt.Errorf("failed to delete booking %s: %w", bookingID, err)
	}
	unlock()

	utils.GetLogger().Info("Booking deleted", zap.String("bookingID", bookingID), zap.String("userID", userID))
	o.detach(ctx, b, func(next *models.ActiveBooking) {
		next.State = models.StateDeleted
		next.Draft = nil
		next.BookingID = ""
		next.Payment = nil
	})
	return nil
}

// CancelBooking cancels a pending booking of userID. The session keeps its
// draft; paying again creates a fresh booking.
func (o *DefaultOrchestrator) CancelBooking(ctx context.Context, userID, bookingID string) (*models.Booking, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	unlock := o.locks.Lock(bookingKey(bookingID))
	b, err := o.ownedBooking(ctx, userID, bookingID)
	if err != nil {
		unlock()
		return nil, err
	}
	if b.Status != models.BookingPending {
		unlock()
		return nil, NewTransitionError(string(b.Status), "cancel booking")
	}
	ok, err := o.Bookings.TransitionStatus(ctx, bookingID, models.BookingPending, models.BookingCancelled)
	if err != nil {
		unlock()
		return nil, fmt.Errorf("failed to cancel booking %s: %w", bookingID, err)
	}
	if !ok {
		unlock()
		return nil, NewTransitionError("changed", "cancel booking")
	}
	unlock()

	b.Status = models.BookingCancelled
	b.UpdatedAt = o.now().UTC()
	utils.GetLogger().Info("Booking cancelled", zap.String("bookingID", bookingID), zap.String("userID", userID))

	o.detach(ctx, b, func(next *models.ActiveBooking) {
		if next.State == models.StateAwaitingPayment {
			next.State = models.StateDrafted
		}
		next.BookingID = ""
		next.Payment = nil
	})
	return b, nil
}

// detach applies mutate to the session that references b, if any, and
// drops the link.
func (o *DefaultOrchestrator) detach(ctx context.Context, b *models.Booking, mutate func(next *models.ActiveBooking)) {
	logger := utils.GetLogger().With(zap.String("bookingID", b.ID))
	sessionID, err := o.States.SessionForBooking(ctx, b.ID)
	if err != nil {
		logger.Warn("Failed to resolve session of booking", zap.Error(err))
		return
	}
	if sessionID == "" {
		return
	}
	if err := o.States.UnlinkBooking(ctx, b.ID); err != nil {
		logger.Warn("Failed to unlink booking", zap.Error(err))
	}

	unlock := o.locks.Lock(sessionKey(sessionID))
	prev, err := o.load(ctx, sessionID)
	if err != nil || prev.BookingID != b.ID {
		unlock()
		if err != nil {
			logger.Error("Failed to load active booking", zap.String("sessionID", sessionID), zap.Error(err))
		}
		return
	}
	next := prev
	mutate(&next)
	if err := o.save(ctx, &next); err != nil {
		unlock()
		logger.Error("Failed to store active booking", zap.String("sessionID", sessionID), zap.Error(err))
		return
	}
	unlock()

	o.publish(ctx, Event{SessionID: sessionID, From: prev.State, To: next.State, Active: next, Booking: b})
}

// ListBookings returns the bookings of userID newest first.
func (o *DefaultOrchestrator) ListBookings(ctx context.Context, userID string, filter models.BookingFilter) ([]models.Booking, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidFilter, filter.Status)
	}
	bookings, err := o.Bookings.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}
