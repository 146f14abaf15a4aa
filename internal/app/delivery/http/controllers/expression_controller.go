package controllers

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"clinreg-service/internal/app/contracts"
	"clinreg-service/internal/pkg/constvars"
	"clinreg-service/internal/pkg/dto/requests"
	"clinreg-service/internal/pkg/dto/responses"
	"clinreg-service/internal/pkg/exceptions"
	"clinreg-service/internal/pkg/utils"
)

type ExpressionController struct {
	Log               *zap.Logger
	ExpressionUsecase contracts.ExpressionUsecase
}

var (
	expressionControllerInstance *ExpressionController
	onceExpressionController     sync.Once
)

func NewExpressionController(logger *zap.Logger, expressionUsecase contracts.ExpressionUsecase) *ExpressionController {
	onceExpressionController.Do(func() {
		expressionControllerInstance = &ExpressionController{
			Log:               logger,
			ExpressionUsecase: expressionUsecase,
		}
	})
	return expressionControllerInstance
}

func (ctrl *ExpressionController) Evaluate(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, err)
		return
	}
	registryCode := chi.URLParam(r, "registryCode")
	expression := r.URL.Query().Get("expression")
	if expression == "" {
		utils.BuildErrorResponse(ctrl.Log, w, exceptions.ErrURLParamValidation(nil, "expression"))
		return
	}
	contextID, _ := strconv.ParseInt(r.URL.Query().Get("context_id"), 10, 64)

	value, err := ctrl.ExpressionUsecase.Evaluate(r.Context(), registryCode, expression, owner, contextID)
	if err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, err)
		return
	}
	utils.BuildSuccessResponse(w, constvars.StatusOK, constvars.FieldExpressionsApplied, map[string]interface{}{
		"expression": expression,
		"value":      value,
	})
}

// UpdateFieldExpressions applies a batch best effort: per-pair failures come
// back as strings in the response, not as a request failure.
func (ctrl *ExpressionController) UpdateFieldExpressions(w http.ResponseWriter, r *http.Request) {
	owner, err := ownerFromRequest(r)
	if err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, err)
		return
	}
	registryCode := chi.URLParam(r, "registryCode")
	contextID, _ := strconv.ParseInt(r.URL.Query().Get("context_id"), 10, 64)

	request := new(requests.UpdateFieldExpressions)
	if err := json.NewDecoder(r.Body).Decode(request); err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, exceptions.ErrCannotParseJSON(err))
		return
	}
	if err := utils.ValidateStruct(request); err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, exceptions.ErrInputValidation(err))
		return
	}

	pairs := make([]contracts.ExpressionValue, len(request.Pairs))
	for i, pair := range request.Pairs {
		pairs[i] = contracts.ExpressionValue{Expression: pair.Expression, Value: pair.Value}
	}

	errorMessages, err := ctrl.ExpressionUsecase.UpdateFieldExpressions(r.Context(), registryCode, owner, pairs, contextID)
	if err != nil {
		utils.BuildErrorResponse(ctrl.Log, w, err)
		return
	}
	utils.BuildSuccessResponse(w, constvars.StatusOK, constvars.FieldExpressionsApplied, responses.FieldExpressionResult{
		Applied: len(pairs) - len(errorMessages),
		Errors:  errorMessages,
	})
}
