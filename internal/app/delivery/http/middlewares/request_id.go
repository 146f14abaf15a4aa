package middlewares

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"clinreg-service/internal/pkg/constvars"
)

const requestIDHeader = "X-Request-Id"

// RequestID attaches a request id to the context and echoes it on the
// response. Incoming ids from trusted proxies are kept.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), constvars.ContextRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
