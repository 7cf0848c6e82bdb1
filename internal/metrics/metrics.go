package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	checksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "upgradr",
			Subsystem: "update",
			Name:      "checks_total",
			Help:      "Number of update checks run, by trigger source.",
		}, []string{"source"},
	)
	checkOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "upgradr",
			Subsystem: "update",
			Name:      "check_outcomes_total",
			Help:      "Number of completed checks per classified outcome.",
		}, []string{"outcome"},
	)
	checkDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "upgradr",
			Subsystem: "update",
			Name:      "check_duration_seconds",
			Help:      "Wall time of one updater check subprocess.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "upgradr",
			Subsystem: "update",
			Name:      "decisions_total",
			Help:      "Number of offer decisions (install, skip, dismiss).",
		}, []string{"decision"},
	)
	installsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "upgradr",
			Subsystem: "update",
			Name:      "installs_total",
			Help:      "Number of installer launches.",
		},
	)
	coordinatorStates = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "upgradr",
			Subsystem: "update",
			Name:      "coordinator_state",
			Help:      "Current coordinator state (1 = active state, 0 = inactive).",
		}, []string{"state"},
	)
	lastCheckTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "upgradr",
			Subsystem: "update",
			Name:      "last_check_timestamp_seconds",
			Help:      "Unix time of the most recently completed check.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{checksTotal, checkOutcomes, checkDuration, decisionsTotal, installsTotal, coordinatorStates, lastCheckTimestamp}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				_ = are // keep existing
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
// The caller is responsible for starting an HTTP server and wiring the route.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncCheck(source string) {
	if regOK.Load() {
		checksTotal.WithLabelValues(source).Inc()
	}
}
func IncOutcome(outcome string) {
	if regOK.Load() {
		checkOutcomes.WithLabelValues(outcome).Inc()
	}
}
func ObserveCheckDuration(seconds float64) {
	if regOK.Load() {
		checkDuration.Observe(seconds)
	}
}
func IncDecision(decision string) {
	if regOK.Load() {
		decisionsTotal.WithLabelValues(decision).Inc()
	}
}
func IncInstall() {
	if regOK.Load() {
		installsTotal.Inc()
	}
}

func SetCoordinatorState(state string, active bool) {
	if regOK.Load() {
		var value float64 = 0
		if active {
			value = 1
		}
		coordinatorStates.WithLabelValues(state).Set(value)
	}
}

func SetLastCheckTimestamp(unixSeconds float64) {
	if regOK.Load() {
		lastCheckTimestamp.Set(unixSeconds)
	}
}
