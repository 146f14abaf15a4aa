package utils

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"clinreg-service/internal/pkg/constvars"
	"clinreg-service/internal/pkg/dto/responses"
	"clinreg-service/internal/pkg/exceptions"
)

func BuildSuccessResponse(w http.ResponseWriter, code int, message string, data interface{}) {
	response := responses.ResponseDTO{
		Success: true,
		Message: message,
		Data:    data,
	}
	w.Header().Set(constvars.HeaderContentType, constvars.MIMEApplicationJSON)
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)
}

func BuildErrorResponse(log *zap.Logger, w http.ResponseWriter, err error) {
	code := constvars.StatusInternalServerError
	clientMessage := constvars.ErrClientSomethingWrongWithApplication

	var customErr *exceptions.CustomError
	var badKey *exceptions.BadKeyError
	var parsing *exceptions.FormParsingError
	var missing *exceptions.KeyValueMissing
	var expression *exceptions.FieldExpressionError
	var condition *exceptions.ConditionParseError
	switch {
	case errors.As(err, &customErr):
		code = customErr.StatusCode
		clientMessage = customErr.ClientMessage
		log.Error(customErr.DevMessage,
			zap.String("file", customErr.Location.File),
			zap.Int("line", customErr.Location.Line),
			zap.String("function_name", customErr.Location.FunctionName),
		)
	case errors.As(err, &badKey), errors.As(err, &missing):
		code = constvars.StatusBadRequest
		clientMessage = err.Error()
		log.Warn(err.Error())
	case errors.As(err, &parsing), errors.As(err, &expression), errors.As(err, &condition):
		code = constvars.StatusUnprocessableEntity
		clientMessage = err.Error()
		log.Warn(err.Error())
	default:
		log.Error(err.Error())
	}

	response := responses.ResponseDTO{
		Success: false,
		Message: clientMessage,
	}
	w.Header().Set(constvars.HeaderContentType, constvars.MIMEApplicationJSON)
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)
}
