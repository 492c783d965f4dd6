package userRepo

import (
	"context"

	"mia/models"
)

// UserRepository defines methods for user data access.
type UserRepository interface {
	// Create inserts a new user; database.ErrDuplicate when the email is taken.
	Create(ctx context.Context, user *models.User) error
	// GetByID returns database.ErrNotFound when the user does not exist.
	GetByID(ctx context.Context, id string) (*models.User, error)
	// GetByEmail returns database.ErrNotFound when the user does not exist.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// SetFCMToken stores the device token used for push notifications.
	SetFCMToken(ctx context.Context, id, token string) error
}
