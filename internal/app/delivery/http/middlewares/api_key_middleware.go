package middlewares

import (
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"clinreg-service/internal/app/config"
	"clinreg-service/internal/pkg/constvars"
	"clinreg-service/internal/pkg/exceptions"
	"clinreg-service/internal/pkg/utils"
)

// AdminAPIKey guards the schema-admin endpoints. The configured value is a
// bcrypt hash, never the key itself.
func AdminAPIKey(internalConfig *config.InternalConfig, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(constvars.HeaderAPIKey)
			if key == "" || internalConfig.App.AdminAPIKeyHash == "" {
				utils.BuildErrorResponse(log, w, exceptions.ErrInvalidAPIKey(nil))
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(internalConfig.App.AdminAPIKeyHash), []byte(key)); err != nil {
				utils.BuildErrorResponse(log, w, exceptions.ErrInvalidAPIKey(err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
