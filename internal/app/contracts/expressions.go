package contracts

import (
	"context"

	"clinreg-service/internal/app/models"
)

// ExpressionValue is one (expression, value) pair in a bulk update.
type ExpressionValue struct {
	Expression string      `json:"expression"`
	Value      interface{} `json:"value"`
}

// ExpressionUsecase resolves generalised field expressions against either the
// owning entity's plain fields or a loaded clinical document. SetValue never
// persists; UpdateFieldExpressions persists once after the whole batch.
type ExpressionUsecase interface {
	Evaluate(ctx context.Context, registryCode, expression string, owner models.OwnerRef, contextID int64) (interface{}, error)
	SetValue(ctx context.Context, registryCode, expression string, owner FieldOwner, document *models.ClinicalDocument, value interface{}, contextID int64) (FieldOwner, *models.ClinicalDocument, error)
	UpdateFieldExpressions(ctx context.Context, registryCode string, owner models.OwnerRef, pairs []ExpressionValue, contextID int64) ([]string, error)
}

// ReportFunction is a registered, read-only computed column over an owning
// entity, addressed as "@name".
type ReportFunction func(ctx context.Context, owner FieldOwner) (interface{}, error)
