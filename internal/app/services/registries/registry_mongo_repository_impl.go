package registries

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"clinreg-service/internal/app/contracts"
	"clinreg-service/internal/app/models"
	"clinreg-service/internal/pkg/constvars"
	"clinreg-service/internal/pkg/exceptions"
)

type RegistryMongoRepository struct {
	RegistryCollection *mongo.Collection
	SectionCollection  *mongo.Collection
	CdeCollection      *mongo.Collection
}

func NewRegistryMongoRepository(db *mongo.Client, dbName string) contracts.RegistryRepository {
	database := db.Database(dbName)
	return &RegistryMongoRepository{
		RegistryCollection: database.Collection(constvars.MongoCollectionRegistries),
		SectionCollection:  database.Collection(constvars.MongoCollectionSections),
		CdeCollection:      database.Collection(constvars.MongoCollectionCDEs),
	}
}

func (r *RegistryMongoRepository) FindByCode(ctx context.Context, registryCode string) (*models.Registry, error) {
	var registry models.Registry
	err := r.RegistryCollection.FindOne(ctx, bson.M{"code": registryCode}).Decode(&registry)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, exceptions.ErrMongoDBFindDocument(err)
	}
	return &registry, nil
}

func (r *RegistryMongoRepository) FindAllCodes(ctx context.Context) ([]string, error) {
	cursor, err := r.RegistryCollection.Find(ctx, bson.M{}, options.Find().SetProjection(bson.M{"code": 1}))
	if err != nil {
		return nil, exceptions.ErrMongoDBFindDocument(err)
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Code string `bson:"code"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, exceptions.ErrMongoDBCursor(err)
	}
	codes := make([]string, len(rows))
	for i, row := range rows {
		codes[i] = row.Code
	}
	return codes, nil
}

func (r *RegistryMongoRepository) Upsert(ctx context.Context, registry *models.Registry) error {
	filter := bson.M{"code": registry.Code}
	update := bson.M{"$set": registry}
	_, err := r.RegistryCollection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return exceptions.ErrMongoDBUpdateDocument(err)
	}
	return nil
}

func (r *RegistryMongoRepository) FindSection(ctx context.Context, sectionCode string) (*models.Section, error) {
	var section models.Section
	err := r.SectionCollection.FindOne(ctx, bson.M{"code": sectionCode}).Decode(&section)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, exceptions.ErrMongoDBFindDocument(err)
	}
	return &section, nil
}

func (r *RegistryMongoRepository) UpsertSection(ctx context.Context, section *models.Section) error {
	filter := bson.M{"code": section.Code}
	update := bson.M{"$set": section}
	_, err := r.SectionCollection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return exceptions.ErrMongoDBUpdateDocument(err)
	}
	return nil
}

func (r *RegistryMongoRepository) FindCde(ctx context.Context, cdeCode string) (*models.CommonDataElement, error) {
	var cde models.CommonDataElement
	err := r.CdeCollection.FindOne(ctx, bson.M{"code": cdeCode}).Decode(&cde)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, exceptions.ErrMongoDBFindDocument(err)
	}
	return &cde, nil
}

func (r *RegistryMongoRepository) FindCdes(ctx context.Context, cdeCodes []string) ([]models.CommonDataElement, error) {
	cursor, err := r.CdeCollection.Find(ctx, bson.M{"code": bson.M{"$in": cdeCodes}})
	if err != nil {
		return nil, exceptions.ErrMongoDBFindDocument(err)
	}
	defer cursor.Close(ctx)

	var cdes []models.CommonDataElement
	if err := cursor.All(ctx, &cdes); err != nil {
		return nil, exceptions.ErrMongoDBCursor(err)
	}
	return cdes, nil
}

func (r *RegistryMongoRepository) UpsertCde(ctx context.Context, cde *models.CommonDataElement) error {
	filter := bson.M{"code": cde.Code}
	update := bson.M{"$set": cde}
	_, err := r.CdeCollection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return exceptions.ErrMongoDBUpdateDocument(err)
	}
	return nil
}
