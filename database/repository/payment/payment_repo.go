package paymentRepo

import (
	"context"
	"fmt"
	"time"

	"mia/database"
	bookingRepo "mia/database/repository/booking"
	"mia/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PaymentRepository stores one record per settled checkout session.
type PaymentRepository interface {
	// Record inserts rec unless a record for the same external session exists.
	// It reports whether this call created the record.
	Record(ctx context.Context, rec *models.PaymentRecord) (bool, error)
	// ListWithBooking returns the user's payments joined with booking context, newest first.
	ListWithBooking(ctx context.Context, userID string) ([]models.PaymentHistoryEntry, error)
}

type mongoPaymentRepo struct {
	coll *mongo.Collection
}

// NewMongoPaymentRepo returns a PaymentRepository backed by the "payments" collection.
func NewMongoPaymentRepo() PaymentRepository {
	repo := &mongoPaymentRepo{coll: database.DB().Collection("payments")}
	if err := repo.ensureIndexes(); err != nil {
		fmt.Printf("failed to create payment indexes: %v\n", err)
	}
	return repo
}

func (r *mongoPaymentRepo) ensureIndexes() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "external_session_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (r *mongoPaymentRepo) Record(ctx context.Context, rec *models.PaymentRecord) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"external_session_id": rec.ExternalSessionID}
	update := bson.M{"$setOnInsert": rec}
	result, err := r.coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		// Two concurrent upserts can both miss the filter; the loser hits the unique index.
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to record payment for session %s: %w", rec.ExternalSessionID, err)
	}
	return result.UpsertedCount == 1, nil
}

func (r *mongoPaymentRepo) ListWithBooking(ctx context.Context, userID string) ([]models.PaymentHistoryEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"user_id": userID}}},
		{{Key: "$sort", Value: bson.D{{Key: "created_at", Value: -1}}}},
	}
	pipeline = append(pipeline, bookingRepo.SummaryLookup("booking_id")...)

	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer cursor.Close(ctx)

	entries := []models.PaymentHistoryEntry{}
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode payments: %w", err)
	}
	return entries, nil
}
