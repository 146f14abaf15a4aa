package contracts

import (
	"context"

	"clinreg-service/internal/app/models"
)

// ConsentService is the narrow collaborator behind Consents/... field
// expressions.
type ConsentService interface {
	GetAnswer(ctx context.Context, owner models.OwnerRef, registryCode, sectionCode, questionCode string) (*models.ConsentAnswer, error)
	SetAnswer(ctx context.Context, owner models.OwnerRef, registryCode, sectionCode, questionCode string, answer bool) error
}

type ConsentRepository interface {
	Find(ctx context.Context, owner models.OwnerRef, registryCode, sectionCode, questionCode string) (*models.ConsentAnswer, error)
	Upsert(ctx context.Context, answer *models.ConsentAnswer) error
}
