package sequences

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"clinreg-service/internal/pkg/exceptions"
)

// Next atomically increments and returns the named counter. Entities keep the
// small integer ids previously stored data refers to, so ids come from a
// counters collection instead of ObjectIDs.
func Next(ctx context.Context, counters *mongo.Collection, name string) (int64, error) {
	var counter struct {
		Sequence int64 `bson:"sequence"`
	}
	err := counters.FindOneAndUpdate(ctx,
		bson.M{"_id": name},
		bson.M{"$inc": bson.M{"sequence": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, exceptions.ErrMongoDBUpdateDocument(err)
	}
	return counter.Sequence, nil
}
