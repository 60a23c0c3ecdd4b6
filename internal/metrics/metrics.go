package metrics

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Lookup outcomes used as the result label.
const (
	ResultInUse = "in_use"
	ResultFree  = "free"
	ResultError = "error"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	lookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portcheck",
			Subsystem: "lookup",
			Name:      "total",
			Help:      "Number of port lookups by backend and outcome.",
		}, []string{"backend", "result"},
	)
	lookupDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "portcheck",
			Subsystem: "lookup",
			Name:      "duration_seconds",
			Help:      "Wall time of one lookup including enrichment.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"backend"},
	)
	records = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "portcheck",
			Subsystem: "lookup",
			Name:      "records_total",
			Help:      "Number of listening process records returned.",
		},
	)
	enrichFields = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "portcheck",
			Subsystem: "enrich",
			Name:      "fields_total",
			Help:      "Enrichment attempts per field, split by whether a value was found.",
		}, []string{"field", "resolved"},
	)
	elevations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "portcheck",
			Subsystem: "lookup",
			Name:      "elevations_total",
			Help:      "Number of probes re-run with elevated privileges.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{lookups, lookupDuration, records, enrichFields, elevations}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// WriteTextfile dumps everything g gathers to path in the node-exporter
// textfile format. The file is replaced atomically.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// The helpers below no-op until Register has succeeded.

func ObserveLookup(backend, result string, d time.Duration) {
	if regOK.Load() {
		lookups.WithLabelValues(backend, result).Inc()
		lookupDuration.WithLabelValues(backend).Observe(d.Seconds())
	}
}

func AddRecords(n int) {
	if regOK.Load() && n > 0 {
		records.Add(float64(n))
	}
}

func RecordEnrichField(field string, resolved bool) {
	if regOK.Load() {
		v := "false"
		if resolved {
			v = "true"
		}
		enrichFields.WithLabelValues(field, v).Inc()
	}
}

func IncElevation() {
	if regOK.Load() {
		elevations.Inc()
	}
}
