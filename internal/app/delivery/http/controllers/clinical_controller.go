package controllers

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"clinreg-service/internal/app/contracts"
	"clinreg-service/internal/app/models"
	"clinreg-service/internal/app/services/clinicaldata"
	"clinreg-service/internal/pkg/constvars"
	"clinreg-service/internal/pkg/dto/requests"
	"clinreg-service/internal/pkg/dto/responses"
	"clinreg-service/internal/pkg/exceptions"
	"clinreg-service/internal/pkg/utils"
)

type ClinicalController struct {
	Log                *zap.Logger
	DynamicDataService contracts.DynamicDataService
}

var (
	clinicalControllerInstance *ClinicalController
	onceClinicalController     sync.Once
)

func NewClinicalController(logger *zap.Logger, dynamicDataService contracts.DynamicDataService) *ClinicalController {
	onceClinicalController.Do(func() {
		clinicalControllerInstance = &ClinicalController{
			Log:                logger,
			DynamicDataService: dynamicDataService,
		}
	})
	return clinicalControllerInstance
}

// ownerFromRequest resolves the owning patient from the route. Other owner
// kinds are only reachable programmatically, not through this API.
func ownerFromRequest(r *http.Request) (models.OwnerRef, error) {
	patientID, err := strconv.ParseInt(chi.URLParam(r, "patientID"), 10, 64)
	if err != nil {
		return models.OwnerRef{}, exceptions.ErrURLParamValidation(err, "patientID")
	}
	return models.OwnerRef{Kind: models.OwnerKindPatient, ID: patientID}, nil
}

// contextRefFromRequest parses the {contextID} segment: a numeric id, the
// "add" sentinel deferring creation to the first save, or "default".
func contextRefFromRequest(r *http.Request) (contracts.ContextRef, error) {
	segment := chi.URLParam(r, "contextID")
	switch segment {
	case constvars.ContextAddSentinel:
		formGroupID, _ := strconv.ParseInt(r.URL.Query().Get("form_group"), 10, 64)
		return contracts.AddContext(formGroupID), nil
	case "", "default":
		return contracts.DefaultContext(), nil
	}
	contextID, err := strconv.ParseInt(segment, 10, 64)
	if err != nil {
		return contracts.ContextRef{}, exceptions.ErrURLParamValidation(err, "contextID")
	}
	return contracts.FixedContext(contextID), nil
}

func (ctrl *ClinicalController) LoadFormData(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, err)
		return
	}
	contextRef, err := contextRefFromRequest(r)
	if err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, err)
		return
	}
	registryCode := chi.URLParam(r, "registryCode")
	flattened := r.URL.Query().Get("nested") != "true"

	session := ctrl.DynamicDataService.Session(owner, contextRef)
	data, err := session.LoadDynamicData(r.Context(), registryCode, constvars.CollectionCDEs, flattened)
	if err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, err)
		return
	}
	utils.BuildSuccessResponse(w, constvars.StatusOK, constvars.FormDataFetchedMessage, responses.FormData{
		RegistryCode: registryCode,
		ContextID:    session.ContextID(),
		Data:         data,
	})
}

func (ctrl *ClinicalController) SaveFormData(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, err)
		return
	}
	contextRef, err := contextRefFromRequest(r)
	if err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, err)
		return
	}
	registryCode := chi.URLParam(r, "registryCode")
	formName := chi.URLParam(r, "formName")

	request := new(requests.SaveFormData)
	if err := json.NewDecoder(r.Body).Decode(request); err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, exceptions.ErrCannotParseJSON(err))
		return
	}
	if err := utils.ValidateStruct(request); err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, exceptions.ErrInputValidation(err))
		return
	}

	opts := contracts.SaveOptions{
		FormName:       formName,
		Multisection:   request.Multisection,
		SectionCode:    request.SectionCode,
		ParseAllForms:  request.ParseAllForms,
		AdditionalData: request.AdditionalData,
	}
	formData := request.FormData
	if request.Multisection {
		if items, ok := formData[request.SectionCode].([]interface{}); ok {
			rawItems := make([]map[string]interface{}, 0, len(items))
			for _, item := range items {
				if m, ok := item.(map[string]interface{}); ok {
					rawItems = append(rawItems, m)
				}
			}
			kept, indexMap := clinicaldata.StripDeletedItems(rawItems)
			keptList := make([]interface{}, len(kept))
			for i, item := range kept {
				keptList[i] = item
			}
			formData[request.SectionCode] = keptList
			opts.IndexMap = indexMap
		}
	}

	session := ctrl.DynamicDataService.Session(owner, contextRef)
	if err := session.SaveDynamicData(r.Context(), registryCode, constvars.CollectionCDEs, formData, opts); err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, err)
		return
	}
	session.SaveSnapshot(r.Context(), registryCode, constvars.CollectionCDEs)

	ctrl.Log.Info("Clinical form data saved",
		zap.String(constvars.LoggingRegistryCodeKey, registryCode),
		zap.String(constvars.LoggingFormNameKey, formName),
		zap.Int64(constvars.LoggingOwnerIDKey, owner.ID),
		zap.Int64(constvars.LoggingContextIDKey, session.ContextID()),
	)
	utils.BuildSuccessResponse(w, constvars.StatusOK, constvars.FormDataSavedMessage, responses.FormData{
		RegistryCode: registryCode,
		ContextID:    session.ContextID(),
	})
}

func (ctrl *ClinicalController) GetCdeHistory(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, err)
		return
	}
	registryCode := chi.URLParam(r, "registryCode")
	formName := chi.URLParam(r, "formName")
	sectionCode := chi.URLParam(r, "sectionCode")
	cdeCode := chi.URLParam(r, "cdeCode")

	session := ctrl.DynamicDataService.Session(owner, contracts.DefaultContext())
	entries, err := session.GetCdeHistory(r.Context(), registryCode, formName, sectionCode, cdeCode)
	if err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, err)
		return
	}
	utils.BuildSuccessResponse(w, constvars.StatusOK, constvars.CdeHistoryFetchedMessage, responses.CdeHistory{
		FormName:    formName,
		SectionCode: sectionCode,
		CdeCode:     cdeCode,
		Entries:     entries,
	})
}

func (ctrl *ClinicalController) DeletePatientRecord(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, err)
		return
	}
	registryCode := chi.URLParam(r, "registryCode")
	contextID, err := strconv.ParseInt(chi.URLParam(r, "contextID"), 10, 64)
	if err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, exceptions.ErrURLParamValidation(err, "contextID"))
		return
	}

	session := ctrl.DynamicDataService.Session(owner, contracts.FixedContext(contextID))
	if err := session.DeletePatientRecord(r.Context(), registryCode, contextID); err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, err)
		return
	}
	w.WriteHeader(constvars.StatusNoContent)
}
