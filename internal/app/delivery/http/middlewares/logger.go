package middlewares

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"clinreg-service/internal/pkg/constvars"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestLogger logs one line per request with method, path, status and
// duration.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w, status: constvars.StatusOK}
			next.ServeHTTP(recorder, r)

			requestID, _ := r.Context().Value(constvars.ContextRequestID).(string)
			log.Info("Request handled",
				zap.String(constvars.LoggingRequestIDKey, requestID),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", recorder.status),
				zap.Duration(constvars.LoggingDurationKey, time.Since(start)),
			)
		})
	}
}
