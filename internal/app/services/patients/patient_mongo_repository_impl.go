package patients

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

type PatientMongoRepository struct {
	PatientCollection *mongo.Collection
	CounterCollection *mongo.Collection
}

func NewPatientMongoRepository(db *mongo.Client, dbName string) contracts.PatientRepository {
	database := db.Database(dbName)
	return &PatientMongoRepository{
		PatientCollection: database.Collection(constvars.MongoCollectionPatients),
		CounterCollection: database.Collection(constvars.MongoCollectionCounters),
	}
}

func (r *PatientMongoRepository) FindByID(ctx context.Context, patientID int64) (*models.Patient, error) {
	var patient models.Patient
	err := r.PatientCollection.FindOne(ctx, bson.M{"_id": patientID}).Decode(&patient)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, exceptions.ErrMongoDBFindDocument(err)
	}
	return &patient, nil
}

func (r *PatientMongoRepository) Insert(ctx context.Context, patient *models.Patient) (int64, error) {
	if patient.ID == 0 {
		id, err := r.NextID(ctx)
		if err != nil {
			return 0, err
		}
		patient.ID = id
	}
	if _, err := r.PatientCollection.InsertOne(ctx, patient); err != nil {
		return 0, exceptions.ErrMongoDBInsertDocument(err)
	}
	return patient.ID, nil
}

func (r *PatientMongoRepository) Update(ctx context.Context, patient *models.Patient) error {
	result, err := r.PatientCollection.ReplaceOne(ctx, bson.M{"_id": patient.ID}, patient)
	if err != nil {
		return exceptions.ErrMongoDBUpdateDocument(err)
	}
	if result.MatchedCount == 0 {
		return exceptions.ErrPatientNotFound(nil)
	}
	return nil
}

func (r *PatientMongoRepository) NextID(ctx context.Context) (int64, error) {
	return sequences.Next(ctx, r.CounterCollection, constvars.MongoCollectionPatients)
}
