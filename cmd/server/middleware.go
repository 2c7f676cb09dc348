package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/liamcoop/eligibility/internal/logger"
)

// requestLogger logs every request and feeds the HTTP counters.
// slow <= 0 disables slow-request tracking.
func requestLogger(slow time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				duration := time.Since(start)
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}

				args := []any{
					"method", r.Method,
					"path", r.URL.Path,
					"status", status,
					"bytes", ww.BytesWritten(),
					"duration_ms", duration.Milliseconds(),
					"request_id", middleware.GetReqID(r.Context()),
				}

				switch {
				case status >= 500:
					logger.ErrorHttp5xx()
					logger.Logger.Error("Request failed", args...)
				case status >= 400:
					logger.WarnHttp4xx(status)
					logger.Debug("Request rejected", args...)
				default:
					logger.Debug("Request completed", args...)
				}

				if slow > 0 && duration > slow {
					logger.WarnSlowRequest()
					logger.Logger.Warn("Slow request", args...)
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
