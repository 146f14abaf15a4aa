package patients

import (
	"context"
	"fmt"
	"sync"

	"clinreg-service/internal/app/contracts"
	"clinreg-service/internal/app/models"
	"clinreg-service/internal/pkg/constvars"
	"clinreg-service/internal/pkg/exceptions"
)

// ownerRegistry maps the closed enum of owner kinds to loaders. Kinds without
// a registered loader can still own clinical documents; they just cannot be
// addressed by plain-field expressions.
type ownerRegistry struct {
	mu      sync.RWMutex
	loaders map[models.OwnerKind]contracts.OwnerLoader
}

func NewOwnerRegistry(patientUsecase contracts.PatientUsecase) contracts.OwnerRegistry {
	registry := &ownerRegistry{loaders: map[models.OwnerKind]contracts.OwnerLoader{}}
	registry.Register(models.OwnerKindPatient, func(ctx context.Context, id int64) (contracts.FieldOwner, error) {
		return patientUsecase.GetPatient(ctx, id)
	})
	return registry
}

func (r *ownerRegistry) Register(kind models.OwnerKind, loader contracts.OwnerLoader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[kind] = loader
}

func (r *ownerRegistry) Load(ctx context.Context, ref models.OwnerRef) (contracts.FieldOwner, error) {
	if !ref.Kind.Valid() {
		return nil, exceptions.WrapWithoutError(constvars.StatusBadRequest, constvars.ErrClientCannotProcessRequest, fmt.Sprintf("unknown owner kind %q", ref.Kind))
	}
	r.mu.RLock()
	loader, ok := r.loaders[ref.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, &exceptions.FieldExpressionError{Expression: ref.String(), Reason: "no loader registered for owner kind " + string(ref.Kind)}
	}
	return loader(ctx, ref.ID)
}
