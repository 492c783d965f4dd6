package bookingRepo

import (
	"context"

	"mia/models"
)

// BookingRepository defines methods for booking data access.
// Every read and write is scoped by the caller; ownership checks live in services.
type BookingRepository interface {
	// Create inserts a new booking.
	Create(ctx context.Context, booking *models.Booking) error
	// GetByID returns database.ErrNotFound when the booking does not exist.
	GetByID(ctx context.Context, id string) (*models.Booking, error)
	// ListByUser returns the user's bookings newest first.
	ListByUser(ctx context.Context, userID string, filter models.BookingFilter) ([]models.Booking, error)
	// TransitionStatus sets status to `to` only while it is still `from`.
	// It reports whether this call performed the change.
	TransitionStatus(ctx context.Context, id string, from, to models.BookingStatus) (bool, error)
	// Delete hard deletes the booking.
	Delete(ctx context.Context, id string) error
}
