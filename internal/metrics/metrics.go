// SPDX-License-Identifier: MIT

// Package metrics exposes the Prometheus instrumentation of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream metrics
	reactionsFetched = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "metatree_reactions_fetched",
		Help: "Number of reactions fetched per package (last refresh)",
	}, []string{"package"})

	fetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metatree_fetch_errors_total",
		Help: "Total number of upstream fetch failures per package",
	}, []string{"package"})

	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "metatree_circuit_breaker_state",
		Help: "Circuit breaker state per upstream (0=closed, 1=half-open, 2=open)",
	}, []string{"upstream"})

	// Pipeline metrics
	templateExtractionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metatree_template_extractions_total",
		Help: "Template extraction attempts by outcome",
	}, []string{"outcome"}) // outcome=success|failure|skipped

	blueprintsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "metatree_blueprints_total",
		Help: "Number of blueprints produced in the last refresh",
	})

	refreshFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metatree_refresh_failures_total",
		Help: "Total number of refresh failures by stage",
	}, []string{"stage"}) // stage=config|fetch|normalize|templates|blueprints|persist

	refreshDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "metatree_refresh_duration_seconds",
		Help:    "Wall time of complete refresh runs",
		Buckets: prometheus.DefBuckets,
	})

	// Search metrics
	searchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metatree_search_requests_total",
		Help: "Substructure search requests by outcome",
	}, []string{"outcome"}) // outcome=hit|miss|cached|error

	searchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "metatree_search_duration_seconds",
		Help:    "Time spent answering substructure searches",
		Buckets: prometheus.DefBuckets,
	})

	// Catalog metrics
	catalogReactions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "metatree_catalog_reactions",
		Help: "Number of reactions in the catalog",
	})
)

func RecordReactionsFetched(pkg string, n int) {
	reactionsFetched.WithLabelValues(pkg).Set(float64(n))
}

func IncFetchError(pkg string) { fetchErrorsTotal.WithLabelValues(pkg).Inc() }

func IncTemplateExtraction(outcome string) {
	templateExtractionsTotal.WithLabelValues(outcome).Inc()
}

func RecordBlueprintCount(n int) { blueprintsTotal.Set(float64(n)) }

func IncRefreshFailure(stage string) { refreshFailuresTotal.WithLabelValues(stage).Inc() }

func ObserveRefreshDuration(sec float64) { refreshDurationSeconds.Observe(sec) }

func IncSearchRequest(outcome string) { searchRequestsTotal.WithLabelValues(outcome).Inc() }

func ObserveSearchDuration(sec float64) { searchDurationSeconds.Observe(sec) }

func RecordCatalogReactions(n int) { catalogReactions.Set(float64(n)) }

// SetCircuitBreakerState records the state transition of an upstream breaker.
func SetCircuitBreakerState(upstream, state string) {
	v := 0.0
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	circuitBreakerState.WithLabelValues(upstream).Set(v)
}
