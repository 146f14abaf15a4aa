package utils

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validatorInstance *validator.Validate
	onceValidator     sync.Once
)

// NewValidator returns the shared validator with the custom tags the schema
// DTOs rely on.
func NewValidator() *validator.Validate {
	onceValidator.Do(func() {
		v := validator.New()
		v.RegisterValidation("section_code", func(fl validator.FieldLevel) bool {
			code := fl.Field().String()
			return code != "" && !strings.ContainsAny(code, " &")
		})
		validatorInstance = v
	})
	return validatorInstance
}

func ValidateStruct(s interface{}) error {
	return NewValidator().Struct(s)
}
