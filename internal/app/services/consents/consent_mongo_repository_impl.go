package consents

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

type ConsentMongoRepository struct {
	ConsentCollection *mongo.Collection
}

func NewConsentMongoRepository(db *mongo.Client, dbName string) contracts.ConsentRepository {
	return &ConsentMongoRepository{
		ConsentCollection: db.Database(dbName).Collection(constvars.MongoCollectionConsents),
	}
}

func consentFilter(owner models.OwnerRef, registryCode, sectionCode, questionCode string) bson.M {
	return bson.M{
		"owner.django_id":    owner.ID,
		"owner.django_model": string(owner.Kind),
		"registry_code":      registryCode,
		"section_code":       sectionCode,
		"question_code":      questionCode,
	}
}

func (r *ConsentMongoRepository) Find(ctx context.Context, owner models.OwnerRef, registryCode, sectionCode, questionCode string) (*models.ConsentAnswer, error) {
	var answer models.ConsentAnswer
	err := r.ConsentCollection.FindOne(ctx, consentFilter(owner, registryCode, sectionCode, questionCode)).Decode(&answer)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, exceptions.ErrMongoDBFindDocument(err)
	}
	return &answer, nil
}

func (r *ConsentMongoRepository) Upsert(ctx context.Context, answer *models.ConsentAnswer) error {
	filter := consentFilter(answer.Owner, answer.RegistryCode, answer.SectionCode, answer.QuestionCode)
	_, err := r.ConsentCollection.UpdateOne(ctx, filter, bson.M{"$set": answer}, options.Update().SetUpsert(true))
	if err != nil {
		return exceptions.ErrMongoDBUpdateDocument(err)
	}
	return nil
}
