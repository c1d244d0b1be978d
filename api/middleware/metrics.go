package middleware

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/parcelgrid/wallet-backend/pkg/metrics"
)

// Operations records outcome and latency per API operation. The label is the
// chi route pattern, not the concrete path, so wallet ids do not blow up
// label cardinality.
func Operations(m *metrics.OperationMetrics) func(http.Handler) http.Handler {
	var serverError = errors.New("server error")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}

			operation := r.Method
			if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
				operation += " " + rc.RoutePattern()
			} else {
				operation += " " + r.URL.Path
			}

			var err error
			if rec.status >= http.StatusInternalServerError {
				err = serverError
			}
			m.Observe(operation, err, time.Since(start))
		})
	}
}
