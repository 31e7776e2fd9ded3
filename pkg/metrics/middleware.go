package metrics

import (
	"net/http"
	"time"
)

/*************** Metrics middleware ***************/
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Middleware counts and times every request except scrapes of /metrics.
func Middleware(service string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			statusLabel := "FAILED"
			if rec.status >= 200 && rec.status < 400 {
				statusLabel = "SUCCESS"
			}
			IncRequest(service, statusLabel, r.Method)
			ObserveDuration(service, statusLabel, time.Since(start).Seconds())
		})
	}
}
