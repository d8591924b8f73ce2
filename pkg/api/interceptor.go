package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/windflowlabs/windflow/pkg/metrics"
)

// RequestLogger logs one line per request and feeds the API metrics.
func RequestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			timer := metrics.NewTimer()

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				// Hijacked connections (WebSocket upgrades) never write
				// a status through the wrapper.
				status = http.StatusSwitchingProtocols
			}
			metrics.APIRequestsTotal.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
			timer.ObserveDurationVec(metrics.APIRequestDuration, r.Method)

			logger.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Dur("duration", timer.Duration()).
				Str("remote", r.RemoteAddr).
				Msg("request")
		})
	}
}

// ReadOnly rejects every mutating request. Used for the Unix socket
// listener so the local CLI can inspect but not change state.
func ReadOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead:
			next.ServeHTTP(w, r)
		default:
			http.Error(w, "write operations not allowed on the local socket", http.StatusForbidden)
		}
	})
}
