package contexts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"clinreg-service/internal/app/contracts"
	"clinreg-service/internal/app/models"
	"clinreg-service/internal/pkg/constvars"
	"clinreg-service/internal/pkg/exceptions"
)

type contextUsecase struct {
	ContextRepository contracts.ContextRepository
	Log               *zap.Logger
}

var (
	contextUsecaseInstance contracts.ContextService
	onceContextUsecase     sync.Once
)

func NewContextUsecase(contextRepository contracts.ContextRepository, logger *zap.Logger) contracts.ContextService {
	onceContextUsecase.Do(func() {
		contextUsecaseInstance = &contextUsecase{
			ContextRepository: contextRepository,
			Log:               logger,
		}
	})
	return contextUsecaseInstance
}

// GetOrCreateDefaultContext returns the owner's default context for a
// registry, creating it on first use. Every registry has a default context
// even when it never declares context support.
func (uc *contextUsecase) GetOrCreateDefaultContext(ctx context.Context, owner models.OwnerRef, registryCode string) (int64, error) {
	existing, err := uc.ContextRepository.FindDefault(ctx, owner, registryCode)
	if err != nil {
		return 0, err
	}
	if existing != nil {
		return existing.ID, nil
	}
	created, err := uc.CreateContext(ctx, owner, registryCode, 0)
	if err != nil {
		return 0, err
	}
	uc.Log.Info("Created default clinical context",
		zap.String(constvars.LoggingRegistryCodeKey, registryCode),
		zap.Int64(constvars.LoggingContextIDKey, created.ID),
	)
	return created.ID, nil
}

// GetContext loads one context and checks it belongs to the owner; a context
// of another owner is reported as not found, not as forbidden.
func (uc *contextUsecase) GetContext(ctx context.Context, contextID int64, owner models.OwnerRef) (*models.ClinicalContext, error) {
	clinicalContext, err := uc.ContextRepository.FindByID(ctx, contextID)
	if err != nil {
		return nil, err
	}
	if clinicalContext == nil || clinicalContext.Owner != owner {
		return nil, exceptions.ErrContextNotFound(nil)
	}
	return clinicalContext, nil
}

func (uc *contextUsecase) CreateContext(ctx context.Context, owner models.OwnerRef, registryCode string, formGroupID int64) (*models.ClinicalContext, error) {
	clinicalContext := &models.ClinicalContext{
		RegistryCode:       registryCode,
		Owner:              owner,
		DisplayName:        defaultDisplayName(formGroupID),
		ContextFormGroupID: formGroupID,
		CreatedAt:          time.Now().UTC(),
	}
	id, err := uc.ContextRepository.Insert(ctx, clinicalContext)
	if err != nil {
		return nil, err
	}
	clinicalContext.ID = id
	return clinicalContext, nil
}

func defaultDisplayName(formGroupID int64) string {
	if formGroupID == 0 {
		return "default"
	}
	return fmt.Sprintf("group-%d", formGroupID)
}
