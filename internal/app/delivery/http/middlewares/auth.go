package middlewares

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
	"go.uber.org/zap"

	"clinreg-service/internal/app/config"
	"clinreg-service/internal/pkg/constvars"
	"clinreg-service/internal/pkg/exceptions"
	"clinreg-service/internal/pkg/utils"
)

const bearerPrefix = "Bearer "

// Authenticate validates the bearer token and stores the subject on the
// request context.
func Authenticate(internalConfig *config.InternalConfig, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(constvars.HeaderAuthorization)
			if !strings.HasPrefix(header, bearerPrefix) {
				utils.BuildErrorResponse(log, w, exceptions.ErrTokenMissing(nil))
				return
			}
			tokenString := strings.TrimPrefix(header, bearerPrefix)

			claims := jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(internalConfig.JWT.Secret), nil
			})
			if err != nil || !token.Valid {
				utils.BuildErrorResponse(log, w, exceptions.ErrTokenInvalidOrExpired(err))
				return
			}

			ctx := context.WithValue(r.Context(), constvars.ContextUserID, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
