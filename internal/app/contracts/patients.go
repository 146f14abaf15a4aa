package contracts

import (
	"context"

	"clinreg-service/internal/app/models"
	"clinreg-service/internal/pkg/dto/requests"
)

// FieldOwner is an owning entity whose plain fields are addressable by field
// expressions.
type FieldOwner interface {
	Ref() models.OwnerRef
	GetField(name string) (interface{}, bool)
	SetField(name string, value interface{}) bool
}

// OwnerLoader resolves one owning-entity kind to a live entity.
type OwnerLoader func(ctx context.Context, id int64) (FieldOwner, error)

// OwnerRegistry maps the closed enum of owner kinds to loaders. Kinds without
// a registered loader cannot be addressed by plain-field expressions.
type OwnerRegistry interface {
	Register(kind models.OwnerKind, loader OwnerLoader)
	Load(ctx context.Context, ref models.OwnerRef) (FieldOwner, error)
}

type PatientUsecase interface {
	CreatePatient(ctx context.Context, request *requests.CreatePatient) (*models.Patient, error)
	GetPatient(ctx context.Context, patientID int64) (*models.Patient, error)
	SavePatient(ctx context.Context, patient *models.Patient) error
}

type PatientRepository interface {
	FindByID(ctx context.Context, patientID int64) (*models.Patient, error)
	Insert(ctx context.Context, patient *models.Patient) (int64, error)
	Update(ctx context.Context, patient *models.Patient) error
	NextID(ctx context.Context) (int64, error)
}
