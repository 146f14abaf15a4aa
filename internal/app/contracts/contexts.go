package contracts

import (
	"context"

	"clinreg-service/internal/app/models"
)

// ContextService owns clinical-context lifecycle. The dynamic-data wrapper
// only ever consumes context ids, except for the documented create-on-save
// path which calls CreateContext after upstream validation succeeded.
type ContextService interface {
	GetOrCreateDefaultContext(ctx context.Context, owner models.OwnerRef, registryCode string) (int64, error)
	GetContext(ctx context.Context, contextID int64, owner models.OwnerRef) (*models.ClinicalContext, error)
	CreateContext(ctx context.Context, owner models.OwnerRef, registryCode string, formGroupID int64) (*models.ClinicalContext, error)
}

type ContextRepository interface {
	FindByID(ctx context.Context, contextID int64) (*models.ClinicalContext, error)
	FindDefault(ctx context.Context, owner models.OwnerRef, registryCode string) (*models.ClinicalContext, error)
	Insert(ctx context.Context, clinicalContext *models.ClinicalContext) (int64, error)
}
