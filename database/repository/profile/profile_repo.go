package profileRepo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"mia/database"
	"mia/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ProfileRepository covers user_preferences and company_profiles.
type ProfileRepository interface {
	// GetPreferences returns database.ErrNotFound when none were saved.
	GetPreferences(ctx context.Context, userID string) (*models.UserPreferences, error)
	// UpsertPreferences creates or replaces the user's preferences.
	UpsertPreferences(ctx context.Context, prefs *models.UserPreferences) error
	// GetCompany returns database.ErrNotFound when the user has no company profile.
	GetCompany(ctx context.Context, userID string) (*models.CompanyProfile, error)
}

type mongoProfileRepo struct {
	prefs     *mongo.Collection
	companies *mongo.Collection
}

func NewMongoProfileRepo() ProfileRepository {
	db := database.DB()
	repo := &mongoProfileRepo{
		prefs:     db.Collection("user_preferences"),
		companies: db.Collection("company_profiles"),
	}
	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("failed to create profile indexes: %v\n", err)
	}
	return repo
}

func (r *mongoProfileRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	unique := mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)}
	if _, err := r.prefs.Indexes().CreateOne(ctx, unique); err != nil {
		return fmt.Errorf("failed to create preferences index: %w", err)
	}
	if _, err := r.companies.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "user_id", Value: 1}}}); err != nil {
		return fmt.Errorf("failed to create company index: %w", err)
	}
	return nil
}

func (r *mongoProfileRepo) GetPreferences(ctx context.Context, userID string) (*models.UserPreferences, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var prefs models.UserPreferences
	if err := r.prefs.FindOne(ctx, bson.M{"user_id": userID}).Decode(&prefs); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, database.ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch preferences for user %s: %w", userID, err)
	}
	return &prefs, nil
}

func (r *mongoProfileRepo) UpsertPreferences(ctx context.Context, prefs *models.UserPreferences) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	update := bson.M{
		"$set": bson.M{
			"preferred_hotel":  prefs.PreferredHotel,
			"frequent_changes": prefs.FrequentChanges,
			"avoid_locations":  prefs.AvoidLocations,
			"updated_at":       prefs.UpdatedAt,
		},
		"$setOnInsert": bson.M{"id": prefs.ID, "user_id": prefs.UserID},
	}
	_, err := r.prefs.UpdateOne(ctx, bson.M{"user_id": prefs.UserID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save preferences for user %s: %w", prefs.UserID, err)
	}
	return nil
}

func (r *mongoProfileRepo) GetCompany(ctx context.Context, userID string) (*models.CompanyProfile, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var company models.CompanyProfile
	if err := r.companies.FindOne(ctx, bson.M{"user_id": userID}).Decode(&company); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, database.ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch company for user %s: %w", userID, err)
	}
	return &company, nil
}
