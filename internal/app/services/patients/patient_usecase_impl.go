package patients

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"clinreg-service/internal/app/contracts"
	"clinreg-service/internal/app/models"
	"clinreg-service/internal/pkg/dto/requests"
	"clinreg-service/internal/pkg/exceptions"
	"clinreg-service/internal/pkg/utils"
)

type patientUsecase struct {
	PatientRepository contracts.PatientRepository
	Log               *zap.Logger
}

var (
	patientUsecaseInstance contracts.PatientUsecase
	oncePatientUsecase     sync.Once
)

func NewPatientUsecase(patientRepository contracts.PatientRepository, logger *zap.Logger) contracts.PatientUsecase {
	oncePatientUsecase.Do(func() {
		patientUsecaseInstance = &patientUsecase{
			PatientRepository: patientRepository,
			Log:               logger,
		}
	})
	return patientUsecaseInstance
}

func (uc *patientUsecase) CreatePatient(ctx context.Context, request *requests.CreatePatient) (*models.Patient, error) {
	dateOfBirth, err := time.Parse(utils.DateLayout, request.DateOfBirth)
	if err != nil {
		return nil, exceptions.ErrInputValidation(err)
	}
	patient := &models.Patient{
		FamilyName:    request.FamilyName,
		GivenNames:    request.GivenNames,
		DateOfBirth:   dateOfBirth.UTC(),
		Sex:           request.Sex,
		Email:         request.Email,
		Active:        true,
		RegistryCodes: request.RegistryCodes,
	}
	if _, err := uc.PatientRepository.Insert(ctx, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

func (uc *patientUsecase) GetPatient(ctx context.Context, patientID int64) (*models.Patient, error) {
	patient, err := uc.PatientRepository.FindByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if patient == nil {
		return nil, exceptions.ErrPatientNotFound(nil)
	}
	return patient, nil
}

func (uc *patientUsecase) SavePatient(ctx context.Context, patient *models.Patient) error {
	return uc.PatientRepository.Update(ctx, patient)
}
