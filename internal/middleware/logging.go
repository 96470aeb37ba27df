package middleware

import (
	"net/http"
	"time"

	"github.com/2beens/fitcoach/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// LogRequest traces every request and its outcome. Server errors are logged as warnings.
func LogRequest() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			begin := time.Now()
			clientIP, _ := pkg.ReadUserIP(r)
			entry := log.WithFields(log.Fields{
				"method": r.Method,
				"path":   r.URL.Path,
				"ip":     clientIP,
				"ua":     r.Header.Get("User-Agent"),
			})
			if spanCtx := trace.SpanContextFromContext(r.Context()); spanCtx.HasTraceID() {
				entry = entry.WithField("trace_id", spanCtx.TraceID().String())
			}
			entry.Trace(" ====> request")

			resp := &responseWriter{w, http.StatusOK}
			next.ServeHTTP(resp, r)

			entry = entry.WithFields(log.Fields{
				"status":   resp.statusCode,
				"duration": time.Since(begin).String(),
			})
			if resp.statusCode >= http.StatusInternalServerError {
				entry.Warn(" <==== response")
				return
			}
			entry.Trace(" <==== response")
		})
	}
}
