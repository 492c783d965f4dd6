package bookingRepo

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// SummaryLookup joins the booking referenced by localField under "booking",
// keeping only the fields of models.BookingSummary.
func SummaryLookup(localField string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$lookup", Value: bson.M{
			"from": CollectionName,
			"let":  bson.M{"bid": "$" + localField},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$eq": bson.A{"$id", "$$bid"}}}},
				bson.M{"$project": bson.M{
					"_id":               0,
					"confirmation_code": 1,
					"hotel_name":        1,
					"check_in":          1,
					"check_out":         1,
				}},
			},
			"as": "booking",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$booking", "preserveNullAndEmptyArrays": true}}},
		{{Key: "$project", Value: bson.M{"_id": 0}}},
	}
}
