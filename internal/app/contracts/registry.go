package contracts

import (
	"context"

	"clinreg-service/internal/app/models"
	"clinreg-service/internal/pkg/dto/requests"
)

// SchemaProvider resolves fully assembled registry definitions: ordered
// forms, each form's sections with CDE models attached. The document codec
// resolves delimited form keys against this.
type SchemaProvider interface {
	GetRegistryDefinition(ctx context.Context, registryCode string) (*models.Registry, error)
}

type RegistryUsecase interface {
	SchemaProvider
	CreateRegistry(ctx context.Context, request *requests.CreateRegistry) (*models.Registry, error)
	UpsertForm(ctx context.Context, registryCode string, request *requests.UpsertForm) error
	UpsertSection(ctx context.Context, request *requests.UpsertSection) error
	UpsertCde(ctx context.Context, request *requests.UpsertCde) error
}

type RegistryRepository interface {
	FindByCode(ctx context.Context, registryCode string) (*models.Registry, error)
	FindAllCodes(ctx context.Context) ([]string, error)
	Upsert(ctx context.Context, registry *models.Registry) error
	FindSection(ctx context.Context, sectionCode string) (*models.Section, error)
	UpsertSection(ctx context.Context, section *models.Section) error
	FindCde(ctx context.Context, cdeCode string) (*models.CommonDataElement, error)
	FindCdes(ctx context.Context, cdeCodes []string) ([]models.CommonDataElement, error)
	UpsertCde(ctx context.Context, cde *models.CommonDataElement) error
}
