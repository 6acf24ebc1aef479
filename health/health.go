// Package health exposes the engine's operational surface: liveness,
// Prometheus metrics, and a snapshot of the rate limiter state.
package health

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"mailpump/ratelimit"
)

// NewRouter builds the HTTP surface. limiter may be nil, in which case
// /stats reports an empty snapshot.
func NewRouter(limiter *ratelimit.Limiter) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK\n"))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		var stats ratelimit.Stats
		if limiter != nil {
			stats = limiter.Stats()
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	return r
}

// Serve runs the health server until it fails. Meant to be launched in a
// goroutine next to the drain loop; a failure is logged, not fatal.
func Serve(port string, limiter *ratelimit.Limiter, log zerolog.Logger) {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           NewRouter(limiter),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log.Info().Str("addr", srv.Addr).Msg("health server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("health server stopped")
	}
}
