package consents

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"clinreg-service/internal/app/contracts"
	"clinreg-service/internal/app/models"
)

type consentUsecase struct {
	ConsentRepository contracts.ConsentRepository
	Log               *zap.Logger
}

var (
	consentUsecaseInstance contracts.ConsentService
	onceConsentUsecase     sync.Once
)

func NewConsentUsecase(consentRepository contracts.ConsentRepository, logger *zap.Logger) contracts.ConsentService {
	onceConsentUsecase.Do(func() {
		consentUsecaseInstance = &consentUsecase{
			ConsentRepository: consentRepository,
			Log:               logger,
		}
	})
	return consentUsecaseInstance
}

func (uc *consentUsecase) GetAnswer(ctx context.Context, owner models.OwnerRef, registryCode, sectionCode, questionCode string) (*models.ConsentAnswer, error) {
	return uc.ConsentRepository.Find(ctx, owner, registryCode, sectionCode, questionCode)
}

// SetAnswer records one answer. FirstSave is set once and then immutable;
// LastUpdate moves on every write.
func (uc *consentUsecase) SetAnswer(ctx context.Context, owner models.OwnerRef, registryCode, sectionCode, questionCode string, answer bool) error {
	now := time.Now().UTC()
	existing, err := uc.ConsentRepository.Find(ctx, owner, registryCode, sectionCode, questionCode)
	if err != nil {
		return err
	}

	record := &models.ConsentAnswer{
		Owner:        owner,
		RegistryCode: registryCode,
		SectionCode:  sectionCode,
		QuestionCode: questionCode,
		Answer:       answer,
		FirstSave:    now,
		LastUpdate:   now,
	}
	if existing != nil {
		record.FirstSave = existing.FirstSave
	}
	return uc.ConsentRepository.Upsert(ctx, record)
}
