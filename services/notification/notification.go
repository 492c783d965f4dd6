package notification

import (
	"context"
	"errors"
	"fmt"

	"mia/database"
	"mia/database/repository"
	"mia/models"
	"mia/services/booking"
	"mia/utils"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
)

// Sender is the part of the FCM client used here. *messaging.Client implements it.
type Sender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Notifier pushes booking updates to the user's device.
type Notifier interface {
	NotifyBookingCompleted(ctx context.Context, b *models.Booking) error
}

// DefaultNotificationService sends FCM pushes to the token stored on the user.
type DefaultNotificationService struct {
	Users  repository.UserRepository
	sender Sender
}

func NewDefaultNotificationService(users repository.UserRepository, sender Sender) (*DefaultNotificationService, error) {
	if users == nil || sender == nil {
		return nil, fmt.Errorf("notification service initialization error: user repository or sender is nil")
	}
	return &DefaultNotificationService{Users: users, sender: sender}, nil
}

func (s *DefaultNotificationService) NotifyBookingCompleted(ctx context.Context, b *models.Booking) error {
	u, err := s.Users.GetByID(ctx, b.UserID)
	if errors.Is(err, database.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("NotifyBookingCompleted: could not find user %s: %w", b.UserID, err)
	}
	if u.FCMToken == "" {
		return nil
	}

	msg := &messaging.Message{
		Token: u.FCMToken,
		Notification: &messaging.Notification{
			Title: "Reservación confirmada",
			Body:  fmt.Sprintf("Tu pago para %s fue confirmado. Código: %s", b.HotelName, b.ConfirmationCode),
		},
		Data: map[string]string{
			"type":              "booking_completed",
			"booking_id":        b.ID,
			"confirmation_code": b.ConfirmationCode,
		},
	}
	id, err := s.sender.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("NotifyBookingCompleted: failed to send FCM message: %w", err)
	}
	utils.GetLogger().Debug("Push notification sent", zap.String("bookingID", b.ID), zap.String("messageID", id))
	return nil
}

// NoopNotifier is used when Firebase is not configured.
type NoopNotifier struct{}

func (NoopNotifier) NotifyBookingCompleted(context.Context, *models.Booking) error { return nil }

// BookingHandler adapts n to the orchestrator's subscriber hook.
func BookingHandler(n Notifier) booking.Handler {
	return func(ctx context.Context, evt booking.Event) {
		if evt.Booking == nil || evt.Booking.Status != models.BookingCompleted || evt.To != models.StateCompleted {
			return
		}
		if err := n.NotifyBookingCompleted(ctx, evt.Booking); err != nil {
			utils.GetLogger().Warn("Failed to notify booking completion",
				zap.String("bookingID", evt.Booking.ID), zap.Error(err))
		}
	}
}
