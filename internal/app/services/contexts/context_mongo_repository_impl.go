package contexts

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"clinreg-service/internal/app/contracts"
	"clinreg-service/internal/app/models"
	"clinreg-service/internal/app/services/shared/sequences"
	"clinreg-service/internal/pkg/constvars"
	"clinreg-service/internal/pkg/exceptions"
)

type ContextMongoRepository struct {
	ContextCollection *mongo.Collection
	CounterCollection *mongo.Collection
}

func NewContextMongoRepository(db *mongo.Client, dbName string) contracts.ContextRepository {
	database := db.Database(dbName)
	return &ContextMongoRepository{
		ContextCollection: database.Collection(constvars.MongoCollectionContexts),
		CounterCollection: database.Collection(constvars.MongoCollectionCounters),
	}
}

func (r *ContextMongoRepository) FindByID(ctx context.Context, contextID int64) (*models.ClinicalContext, error) {
	var clinicalContext models.ClinicalContext
	err := r.ContextCollection.FindOne(ctx, bson.M{"_id": contextID}).Decode(&clinicalContext)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, exceptions.ErrMongoDBFindDocument(err)
	}
	return &clinicalContext, nil
}

// FindDefault returns the owner's oldest non-grouped context for a registry.
func (r *ContextMongoRepository) FindDefault(ctx context.Context, owner models.OwnerRef, registryCode string) (*models.ClinicalContext, error) {
	filter := bson.M{
		"owner.django_id":       owner.ID,
		"owner.django_model":    string(owner.Kind),
		"registry_code":         registryCode,
		"context_form_group_id": int64(0),
	}
	var clinicalContext models.ClinicalContext
	err := r.ContextCollection.FindOne(ctx, filter).Decode(&clinicalContext)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, exceptions.ErrMongoDBFindDocument(err)
	}
	return &clinicalContext, nil
}

func (r *ContextMongoRepository) Insert(ctx context.Context, clinicalContext *models.ClinicalContext) (int64, error) {
	id, err := sequences.Next(ctx, r.CounterCollection, constvars.MongoCollectionContexts)
	if err != nil {
		return 0, err
	}
	clinicalContext.ID = id
	if _, err := r.ContextCollection.InsertOne(ctx, clinicalContext); err != nil {
		return 0, exceptions.ErrMongoDBInsertDocument(err)
	}
	return id, nil
}
