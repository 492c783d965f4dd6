package profile

import (
	"context"
	"errors"
	"testing"

	"mia/database"
	"mia/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memProfiles struct {
	prefs     map[string]models.UserPreferences
	companies map[string]models.CompanyProfile
	err       error
}

func (m *memProfiles) GetPreferences(_ context.Context, userID string) (*models.UserPreferences, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.prefs[userID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &p, nil
}

func (m *memProfiles) UpsertPreferences(_ context.Context, p *models.UserPreferences) error {
	if existing, ok := m.prefs[p.UserID]; ok {
		p.ID = existing.ID
	}
	m.prefs[p.UserID] = *p
	return nil
}

func (m *memProfiles) GetCompany(_ context.Context, userID string) (*models.CompanyProfile, error) {
	c, ok := m.companies[userID]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &c, nil
}

type memPayments struct {
	entries []models.PaymentHistoryEntry
}

func (m *memPayments) Record(context.Context, *models.PaymentRecord) (bool, error) { return true, nil }

func (m *memPayments) ListWithBooking(_ context.Context, userID string) ([]models.PaymentHistoryEntry, error) {
	out := []models.PaymentHistoryEntry{}
	for _, e := range m.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func newTestService() (*DefaultProfileService, *memProfiles) {
	profiles := &memProfiles{
		prefs:     map[string]models.UserPreferences{},
		companies: map[string]models.CompanyProfile{"u-1": {UserID: "u-1", CompanyName: "Noktos", RFC: "NOK010101AAA"}},
	}
	payments := &memPayments{entries: []models.PaymentHistoryEntry{{
		PaymentRecord: models.PaymentRecord{ID: "p-1", UserID: "u-1", BookingID: "b-1", Amount: 2500},
		Booking:       &models.BookingSummary{HotelName: "Hotel X"},
	}}}
	return NewProfileService(profiles, payments), profiles
}

func TestGetProfile(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	p, err := svc.GetProfile(ctx, "u-1")
	require.NoError(t, err)
	require.NotNil(t, p.Company)
	assert.Equal(t, "Noktos", p.Company.CompanyName)
	assert.Nil(t, p.Preferences)
	require.Len(t, p.Payments, 1)
	assert.Equal(t, "Hotel X", p.Payments[0].Booking.HotelName)

	empty, err := svc.GetProfile(ctx, "u-2")
	require.NoError(t, err)
	assert.Nil(t, empty.Company)
	assert.Empty(t, empty.Payments)

	_, err = svc.GetProfile(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestGetProfileStoreFailure(t *testing.T) {
	svc, profiles := newTestService()
	profiles.err = errors.New("mongo down")
	_, err := svc.GetProfile(context.Background(), "u-1")
	assert.Error(t, err)
}

func TestSavePreferencesUpserts(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, err := svc.SavePreferences(ctx, "u-1", PreferencesInput{PreferredHotel: " Hotel X ", AvoidLocations: "Centro"})
	require.NoError(t, err)
	assert.Equal(t, "Hotel X", first.PreferredHotel)

	second, err := svc.SavePreferences(ctx, "u-1", PreferencesInput{PreferredHotel: "Casa Azul", FrequentChanges: true})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, second.FrequentChanges)
	assert.Empty(t, second.AvoidLocations)

	p, err := svc.GetProfile(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "Casa Azul", p.Preferences.PreferredHotel)

	_, err = svc.SavePreferences(ctx, "", PreferencesInput{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
