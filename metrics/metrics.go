// Package metrics exposes the gateway's prometheus surface: latency
// verdicts, connectivity transitions, handshake cache outcomes and order
// command counts, each split by venue (latency also by symbol). Adapted from the
// teacher's promauto-per-concern layout, trimmed to the series the
// gateway domain actually produces.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LatencySeconds buckets order acknowledgement latency, the
	// time-to-first-Working transition measured once per order.
	LatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gw_latency_seconds",
			Help:    "Order acknowledgement latency, time to first Working transition.",
			Buckets: []float64{.05, .1, .2, .3, .5, .7, 1, 2, 5},
		},
		[]string{"venue", "symbol"},
	)

	// ConnectivityTransitionsTotal counts Connected/Disconnected flips
	// reported by a venue adapter.
	ConnectivityTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gw_connectivity_transitions_total",
			Help: "Connectivity transitions reported by a venue adapter.",
		},
		[]string{"venue", "state"},
	)

	// HandshakeCacheTotal splits handshake resolutions by whether the
	// on-disk cache was fresh enough to reuse.
	HandshakeCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gw_handshake_cache_total",
			Help: "Handshake resolutions, split by cache hit or miss.",
		},
		[]string{"venue", "result"},
	)

	// OrdersTotal counts order commands sent to a venue, by kind.
	OrdersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gw_orders_total",
			Help: "Order commands sent to a venue.",
		},
		[]string{"venue", "command"},
	)
)

// RecordLatency observes a single order's ack latency in seconds.
func RecordLatency(venue, symbol string, seconds float64) {
	LatencySeconds.WithLabelValues(venue, symbol).Observe(seconds)
}

// RecordConnectivity increments the transition counter for a venue
// entering the given state ("connected" or "disconnected").
func RecordConnectivity(venue, state string) {
	ConnectivityTransitionsTotal.WithLabelValues(venue, state).Inc()
}

// RecordHandshakeCache increments the cache-hit/cache-miss counter.
func RecordHandshakeCache(venue string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	HandshakeCacheTotal.WithLabelValues(venue, result).Inc()
}

// RecordOrderCommand increments the per-command-kind counter ("place",
// "replace", "cancel", "cancelAll").
func RecordOrderCommand(venue, command string) {
	OrdersTotal.WithLabelValues(venue, command).Inc()
}
