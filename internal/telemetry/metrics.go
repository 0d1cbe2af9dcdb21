// Package telemetry provides Prometheus metrics and the /metrics HTTP endpoint.
package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	EffectsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soundboard_effects_ingested_total",
		Help: "Soundboard effect notifications processed, by result",
	}, []string{"result"})

	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "soundboard_ingest_duration_seconds",
		Help:    "Time from effect receipt to committed counter update",
		Buckets: prometheus.DefBuckets,
	})

	CatalogRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soundboard_catalog_refresh_total",
		Help: "Catalog fetches against the REST API, by result",
	}, []string{"result"})

	PresenceTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "soundboard_presence_transitions_total",
		Help: "Voice presence state transitions, by target state",
	}, []string{"state"})

	StaleLeaveChecks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "soundboard_presence_stale_checks_total",
		Help: "Debounced leave checks discarded because the epoch moved on",
	})
)

// Observe records the time elapsed since start on obs.
func Observe(obs prometheus.Observer, start time.Time) {
	obs.Observe(time.Since(start).Seconds())
}

// Serve exposes the default registry on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
