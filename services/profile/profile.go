package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mia/database"
	"mia/database/repository"
	"mia/models"

	"github.com/google/uuid"
)

var ErrUnauthenticated = errors.New("authentication required")

// PreferencesInput is the editable part of the user's preferences.
type PreferencesInput struct {
	PreferredHotel  string `json:"preferred_hotel"`
	FrequentChanges bool   `json:"frequent_changes"`
	AvoidLocations  string `json:"avoid_locations"`
}

type ProfileService interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	SavePreferences(ctx context.Context, userID string, in PreferencesInput) (*models.UserPreferences, error)
}

type DefaultProfileService struct {
	Profiles repository.ProfileRepository
	Payments repository.PaymentRepository
	now      func() time.Time
}

func NewProfileService(profiles repository.ProfileRepository, payments repository.PaymentRepository) *DefaultProfileService {
	return &DefaultProfileService{Profiles: profiles, Payments: payments, now: time.Now}
}

// GetProfile gathers company, preferences and payment history. Missing
// company or preferences are left nil.
func (s *DefaultProfileService) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	p := &models.Profile{UserID: userID}

	company, err := s.Profiles.GetCompany(ctx, userID)
	switch {
	case err == nil:
		p.Company = company
	case !errors.Is(err, database.ErrNotFound):
		return nil, err
	}

	prefs, err := s.Profiles.GetPreferences(ctx, userID)
	switch {
	case err == nil:
		p.Preferences = prefs
	case !errors.Is(err, database.ErrNotFound):
		return nil, err
	}

	payments, err := s.Payments.ListWithBooking(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment history: %w", err)
	}
	p.Payments = payments
	return p, nil
}

// SavePreferences creates or replaces the preferences of userID.
func (s *DefaultProfileService) SavePreferences(ctx context.Context, userID string, in PreferencesInput) (*models.UserPreferences, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	prefs := &models.UserPreferences{
		ID:              uuid.New().String(),
		UserID:          userID,
		PreferredHotel:  strings.TrimSpace(in.PreferredHotel),
		FrequentChanges: in.FrequentChanges,
		AvoidLocations:  strings.TrimSpace(in.AvoidLocations),
		UpdatedAt:       s.now().UTC(),
	}
	if err := s.Profiles.UpsertPreferences(ctx, prefs); err != nil {
		return nil, err
	}

	// The stored id survives upserts; read it back.
	saved, err := s.Profiles.GetPreferences(ctx, userID)
	if err != nil {
		return prefs, nil
	}
	return saved, nil
}
