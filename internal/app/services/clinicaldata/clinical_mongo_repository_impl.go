package clinicaldata

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"clinreg-service/internal/app/contracts"
	"clinreg-service/internal/app/models"
	"clinreg-service/internal/pkg/constvars"
	"clinreg-service/internal/pkg/exceptions"
)

// ClinicalMongoRepository stores schemaless clinical documents, one mongo
// collection per (registry, kind) pair, e.g. "fh_cdes", "fh_history".
type ClinicalMongoRepository struct {
	Database *mongo.Database
}

func NewClinicalMongoRepository(db *mongo.Client, dbName string) contracts.ClinicalRepository {
	return &ClinicalMongoRepository{Database: db.Database(dbName)}
}

func (r *ClinicalMongoRepository) collection(registryCode, kind string) *mongo.Collection {
	return r.Database.Collection(fmt.Sprintf("%s_%s", registryCode, kind))
}

func keyFilter(owner models.OwnerRef, contextID int64) bson.M {
	return bson.M{
		constvars.DocumentFieldDjangoID:    owner.ID,
		constvars.DocumentFieldDjangoModel: string(owner.Kind),
		constvars.DocumentFieldContextID:   contextID,
	}
}

func (r *ClinicalMongoRepository) Collection(ctx context.Context, registryCode, kind string) ([]map[string]interface{}, error) {
	return r.findAll(ctx, registryCode, kind, bson.M{})
}

func (r *ClinicalMongoRepository) Find(ctx context.Context, registryCode, kind string, owner *models.OwnerRef, contextID int64, filters map[string]interface{}) ([]map[string]interface{}, error) {
	filter := bson.M{}
	if owner != nil {
		filter[constvars.DocumentFieldDjangoID] = owner.ID
		filter[constvars.DocumentFieldDjangoModel] = string(owner.Kind)
	}
	if contextID != 0 {
		filter[constvars.DocumentFieldContextID] = contextID
	}
	for path, value := range filters {
		filter[path] = value
	}
	return r.findAll(ctx, registryCode, kind, filter)
}

// findAll keeps the _id sort so callers see documents in insertion order;
// the history collapser relies on that for its tie-break.
func (r *ClinicalMongoRepository) findAll(ctx context.Context, registryCode, kind string, filter bson.M) ([]map[string]interface{}, error) {
	cursor, err := r.collection(registryCode, kind).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, exceptions.ErrMongoDBFindDocument(err)
	}
	defer cursor.Close(ctx)

	var documents []map[string]interface{}
	if err := cursor.All(ctx, &documents); err != nil {
		return nil, exceptions.ErrMongoDBCursor(err)
	}
	return documents, nil
}

func (r *ClinicalMongoRepository) FindOne(ctx context.Context, registryCode, kind string, owner models.OwnerRef, contextID int64) (map[string]interface{}, error) {
	var document map[string]interface{}
	err := r.collection(registryCode, kind).FindOne(ctx, keyFilter(owner, contextID)).Decode(&document)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, exceptions.ErrMongoDBFindDocument(err)
	}
	return document, nil
}

func (r *ClinicalMongoRepository) Upsert(ctx context.Context, registryCode, kind string, owner models.OwnerRef, contextID int64, document map[string]interface{}) error {
	delete(document, "_id")
	_, err := r.collection(registryCode, kind).ReplaceOne(ctx, keyFilter(owner, contextID), document, options.Replace().SetUpsert(true))
	if err != nil {
		return exceptions.ErrMongoDBUpdateDocument(err)
	}
	return nil
}

func (r *ClinicalMongoRepository) Insert(ctx context.Context, registryCode, kind string, document map[string]interface{}) (string, error) {
	result, err := r.collection(registryCode, kind).InsertOne(ctx, document)
	if err != nil {
		return "", exceptions.ErrMongoDBInsertDocument(err)
	}
	if oid, ok := result.InsertedID.(interface{ Hex() string }); ok {
		return oid.Hex(), nil
	}
	return fmt.Sprintf("%v", result.InsertedID), nil
}

func (r *ClinicalMongoRepository) DeleteOne(ctx context.Context, registryCode, kind string, owner models.OwnerRef, contextID int64) error {
	_, err := r.collection(registryCode, kind).DeleteOne(ctx, keyFilter(owner, contextID))
	if err != nil {
		return exceptions.ErrMongoDBDeleteDocument(err)
	}
	return nil
}

func (r *ClinicalMongoRepository) Exists(ctx context.Context, registryCode, kind string, owner models.OwnerRef, contextID int64) (bool, error) {
	count, err := r.collection(registryCode, kind).CountDocuments(ctx, keyFilter(owner, contextID), options.Count().SetLimit(1))
	if err != nil {
		return false, exceptions.ErrMongoDBCountDocuments(err)
	}
	return count > 0, nil
}
