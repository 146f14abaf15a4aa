package registries

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"clinreg-service/internal/app/config"
	"clinreg-service/internal/app/contracts"
	"clinreg-service/internal/app/models"
	"clinreg-service/internal/pkg/constvars"
	"clinreg-service/internal/pkg/dto/requests"
	"clinreg-service/internal/pkg/exceptions"
)

const registryCacheKeyFormat = "registry_definition:%s"

type registryUsecase struct {
	RegistryRepository contracts.RegistryRepository
	RedisRepository    contracts.RedisRepository
	InternalConfig     *config.InternalConfig
	Log                *zap.Logger
}

var (
	registryUsecaseInstance contracts.RegistryUsecase
	onceRegistryUsecase     sync.Once
)

func NewRegistryUsecase(
	registryRepository contracts.RegistryRepository,
	redisRepository contracts.RedisRepository,
	internalConfig *config.InternalConfig,
	logger *zap.Logger,
) contracts.RegistryUsecase {
	onceRegistryUsecase.Do(func() {
		registryUsecaseInstance = &registryUsecase{
			RegistryRepository: registryRepository,
			RedisRepository:    redisRepository,
			InternalConfig:     internalConfig,
			Log:                logger,
		}
	})
	return registryUsecaseInstance
}

// GetRegistryDefinition returns the fully assembled definition: every form
// with its section models attached, every section with its CDE models.
// Assembled definitions are cached in redis and invalidated on schema writes.
func (uc *registryUsecase) GetRegistryDefinition(ctx context.Context, registryCode string) (*models.Registry, error) {
	cacheKey := fmt.Sprintf(registryCacheKeyFormat, registryCode)
	cached, err := uc.RedisRepository.Get(ctx, cacheKey)
	if err == nil && cached != "" {
		var registry models.Registry
		if err := json.Unmarshal([]byte(cached), &registry); err == nil {
			return &registry, nil
		}
		// Unreadable cache entries are treated as misses.
		uc.RedisRepository.Delete(ctx, cacheKey)
	}

	registry, err := uc.RegistryRepository.FindByCode(ctx, registryCode)
	if err != nil {
		return nil, err
	}
	if registry == nil {
		return nil, exceptions.ErrRegistryNotFound(nil, registryCode)
	}

	if err := uc.assembleDefinition(ctx, registry); err != nil {
		return nil, err
	}

	ttl := time.Duration(uc.InternalConfig.Cache.RegistryDefinitionTTLInMinutes) * time.Minute
	if err := uc.RedisRepository.Set(ctx, cacheKey, registry, ttl); err != nil {
		uc.Log.Warn("Failed to cache registry definition",
			zap.String(constvars.LoggingRegistryCodeKey, registryCode),
			zap.Error(err),
		)
	}
	return registry, nil
}

func (uc *registryUsecase) assembleDefinition(ctx context.Context, registry *models.Registry) error {
	for i := range registry.Forms {
		form := &registry.Forms[i]
		form.SectionModels = form.SectionModels[:0]
		for _, sectionCode := range form.SectionCodeList() {
			section, err := uc.RegistryRepository.FindSection(ctx, sectionCode)
			if err != nil {
				return err
			}
			if section == nil {
				return &exceptions.KeyValueMissing{Key: sectionCode}
			}
			cdes, err := uc.RegistryRepository.FindCdes(ctx, section.ElementCodeList())
			if err != nil {
				return err
			}
			byCode := make(map[string]models.CommonDataElement, len(cdes))
			for _, cde := range cdes {
				byCode[cde.Code] = cde
			}
			section.CdeModels = section.CdeModels[:0]
			for _, code := range section.ElementCodeList() {
				if cde, ok := byCode[code]; ok {
					section.CdeModels = append(section.CdeModels, cde)
				}
			}
			form.SectionModels = append(form.SectionModels, *section)
		}
	}
	return nil
}

func (uc *registryUsecase) CreateRegistry(ctx context.Context, request *requests.CreateRegistry) (*models.Registry, error) {
	registry := &models.Registry{
		Code:     request.Code,
		Name:     request.Name,
		Metadata: request.Metadata,
	}
	if err := uc.RegistryRepository.Upsert(ctx, registry); err != nil {
		return nil, err
	}
	uc.invalidate(ctx, registry.Code)
	return registry, nil
}

func (uc *registryUsecase) UpsertForm(ctx context.Context, registryCode string, request *requests.UpsertForm) error {
	registry, err := uc.RegistryRepository.FindByCode(ctx, registryCode)
	if err != nil {
		return err
	}
	if registry == nil {
		return exceptions.ErrRegistryNotFound(nil, registryCode)
	}

	form := models.RegistryForm{
		Name:               request.Name,
		SectionCodes:       request.Sections,
		IsQuestionnaire:    request.IsQuestionnaire,
		CompletionCdeCodes: request.CompletionCdeCodes,
	}
	replaced := false
	for i := range registry.Forms {
		if registry.Forms[i].Name == form.Name {
			registry.Forms[i] = form
			replaced = true
			break
		}
	}
	if !replaced {
		registry.Forms = append(registry.Forms, form)
	}

	if err := uc.RegistryRepository.Upsert(ctx, registry); err != nil {
		return err
	}
	uc.invalidate(ctx, registryCode)
	return nil
}

func (uc *registryUsecase) UpsertSection(ctx context.Context, request *requests.UpsertSection) error {
	section := &models.Section{
		Code:          request.Code,
		DisplayName:   request.DisplayName,
		ElementCodes:  request.Elements,
		AllowMultiple: request.AllowMultiple,
	}
	if !section.ValidateCode() {
		return exceptions.WrapWithoutError(constvars.StatusBadRequest, constvars.ErrClientInvalidSectionCode, "section code contains forbidden characters")
	}

	// Every referenced element must already exist as a CDE definition.
	for _, code := range section.ElementCodeList() {
		cde, err := uc.RegistryRepository.FindCde(ctx, code)
		if err != nil {
			return err
		}
		if cde == nil {
			return &exceptions.KeyValueMissing{Key: code}
		}
	}

	if err := uc.RegistryRepository.UpsertSection(ctx, section); err != nil {
		return err
	}
	uc.invalidateAll(ctx)
	return nil
}

func (uc *registryUsecase) UpsertCde(ctx context.Context, request *requests.UpsertCde) error {
	cde := &models.CommonDataElement{
		Code:                 request.Code,
		Name:                 request.Name,
		DataType:             models.CdeDataType(request.DataType),
		PermittedValueGroup:  request.PermittedValueGroup,
		AllowMultiple:        request.AllowMultiple,
		MaxLength:            request.MaxLength,
		MinValue:             request.MinValue,
		MaxValue:             request.MaxValue,
		Pattern:              request.Pattern,
		AbnormalityCondition: request.AbnormalityCondition,
	}

	// Conditions are parsed once here so a bad definition is rejected at
	// authoring time, not on first evaluation.
	if err := cde.CompileAbnormality(); err != nil {
		return exceptions.BuildNewCustomError(err, constvars.StatusBadRequest, constvars.ErrClientCannotProcessRequest, "abnormality condition rejected")
	}

	if err := uc.RegistryRepository.UpsertCde(ctx, cde); err != nil {
		return err
	}
	uc.invalidateAll(ctx)
	return nil
}

func (uc *registryUsecase) invalidate(ctx context.Context, registryCode string) {
	if err := uc.RedisRepository.Delete(ctx, fmt.Sprintf(registryCacheKeyFormat, registryCode)); err != nil {
		uc.Log.Warn("Failed to invalidate registry definition cache",
			zap.String(constvars.LoggingRegistryCodeKey, registryCode),
			zap.Error(err),
		)
	}
}

// invalidateAll drops every cached definition. Sections and CDEs are shared
// across registries, so one change can affect any of them.
func (uc *registryUsecase) invalidateAll(ctx context.Context) {
	codes, err := uc.RegistryRepository.FindAllCodes(ctx)
	if err != nil {
		uc.Log.Warn("Failed to list registries for cache invalidation", zap.Error(err))
		return
	}
	for _, code := range codes {
		uc.invalidate(ctx, code)
	}
}
