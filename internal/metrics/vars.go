package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	QuoterErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dexagg_quoter_errors_total",
		Help: "Number of isolated per-venue quote failures",
	})

	QuoteLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dexagg_quote_latency_seconds",
		Help:    "Time to obtain a single venue quote",
		Buckets: prometheus.DefBuckets,
	})

	SwapsExecuted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dexagg_swaps_executed_total",
		Help: "Number of settled swaps",
	})

	SwapsRolledBack = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dexagg_swaps_rolled_back_total",
		Help: "Number of swaps unwound after a post-custody failure",
	})

	PoolUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dexagg_pool_updates_total",
		Help: "Number of accepted pool data updates",
	})

	ActiveVenues = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dexagg_active_venues",
		Help: "Venues currently marked active",
	})
)

func init() {
	prometheus.MustRegister(
		QuoterErrors,
		QuoteLatency,
		SwapsExecuted,
		SwapsRolledBack,
		PoolUpdates,
		ActiveVenues,
	)
}
