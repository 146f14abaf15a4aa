package controllers

import (
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"clinreg-service/internal/app/contracts"
	"clinreg-service/internal/pkg/constvars"
	"clinreg-service/internal/pkg/dto/requests"
	"clinreg-service/internal/pkg/exceptions"
	"clinreg-service/internal/pkg/utils"
)

type RegistryController struct {
	Log             *zap.Logger
	RegistryUsecase contracts.RegistryUsecase
}

var (
	registryControllerInstance *RegistryController
	onceRegistryController     sync.Once
)

func NewRegistryController(logger *zap.Logger, registryUsecase contracts.RegistryUsecase) *RegistryController {
	onceRegistryController.Do(func() {
		registryControllerInstance = &RegistryController{
			Log:             logger,
			RegistryUsecase: registryUsecase,
		}
	})
	return registryControllerInstance
}

func (ctrl *RegistryController) CreateRegistry(w http.ResponseWriter, r *http.Request) {
	request := new(requests.CreateRegistry)
	if err := json.NewDecoder(r.Body).Decode(request); err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, exceptions.ErrCannotParseJSON(err))
		return
	}
	if err := utils.ValidateStruct(request); err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, exceptions.ErrInputValidation(err))
		return
	}

	registry, err := ctrl.RegistryUsecase.CreateRegistry(r.Context(), request)
	if err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, err)
		return
	}
	ctrl.Log.Info("Registry created",
		zap.String(constvars.LoggingRegistryCodeKey, registry.Code),
	)
	utils.BuildSuccessResponse(w, constvars.StatusCreated, constvars.RegistryCreatedMessage, registry)
}

func (ctrl *RegistryController) GetRegistryDefinition(w http.ResponseWriter, r *http.Request) {
	registryCode := chi.URLParam(r, "registryCode")
	registry, err := ctrl.RegistryUsecase.GetRegistryDefinition(r.Context(), registryCode)
	if err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, err)
		return
	}
	utils.BuildSuccessResponse(w, constvars.StatusOK, constvars.RegistryFetchedMessage, registry)
}

func (ctrl *RegistryController) UpsertForm(w http.ResponseWriter, r *http.Request) {
	registryCode := chi.URLParam(r, "registryCode")
	request := new(requests.UpsertForm)
	if err := json.NewDecoder(r.Body).Decode(request); err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, exceptions.ErrCannotParseJSON(err))
		return
	}
	if err := utils.ValidateStruct(request); err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, exceptions.ErrInputValidation(err))
		return
	}

	if err := ctrl.RegistryUsecase.UpsertForm(r.Context(), registryCode, request); err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, err)
		return
	}
	ctrl.Log.Info("Form upserted",
		zap.String(constvars.LoggingRegistryCodeKey, registryCode),
		zap.String(constvars.LoggingFormNameKey, request.Name),
	)
	utils.BuildSuccessResponse(w, constvars.StatusOK, constvars.RegistryUpdatedMessage, nil)
}

func (ctrl *RegistryController) UpsertSection(w http.ResponseWriter, r *http.Request) {
	request := new(requests.UpsertSection)
	if err := json.NewDecoder(r.Body).Decode(request); err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, exceptions.ErrCannotParseJSON(err))
		return
	}
	if err := utils.ValidateStruct(request); err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, exceptions.ErrInputValidation(err))
		return
	}

	if err := ctrl.RegistryUsecase.UpsertSection(r.Context(), request); err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, err)
		return
	}
	utils.BuildSuccessResponse(w, constvars.StatusOK, constvars.RegistryUpdatedMessage, nil)
}

func (ctrl *RegistryController) UpsertCde(w http.ResponseWriter, r *http.Request) {
	request := new(requests.UpsertCde)
	if err := json.NewDecoder(r.Body).Decode(request); err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, exceptions.ErrCannotParseJSON(err))
		return
	}
	if err := utils.ValidateStruct(request); err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, exceptions.ErrInputValidation(err))
		return
	}

	if err := ctrl.RegistryUsecase.UpsertCde(r.Context(), request); err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, err)
		return
	}
	utils.BuildSuccessResponse(w, constvars.StatusOK, constvars.RegistryUpdatedMessage, nil)
}
