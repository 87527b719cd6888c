package routes

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/abiiranathan/pdfmatch/metrics"
)

func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := metrics.NewStatusWriter(w)
			next.ServeHTTP(ww, r)

			took := time.Since(start).String()
			logger.Info("", "latency", took, "method", r.Method, "path", r.URL.Path, "status", ww.Status())
		})
	}
}
