// Package metrics exposes prometheus counters for the fetch and extraction
// pipeline. All methods are safe on a nil *Metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lmdcrawl"

// Metrics holds the crawler counters.
type Metrics struct {
	NetworkFetches prometheus.Counter
	CacheHits      prometheus.Counter
	Retries        prometheus.Counter
	FetchFailures  *prometheus.CounterVec
	TruncatedZips  *prometheus.CounterVec
	DroppedItems   *prometheus.CounterVec
	// EmptySearches counts result pages that had neither the no-results
	// marker nor any teaser.
	EmptySearches prometheus.Counter
}

// New creates the counters and registers them on reg. A nil reg leaves them
// unregistered, which is what tests and library callers without a metrics
// endpoint want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		NetworkFetches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "network_fetches_total",
			Help:      "Requests sent to the transport, retries included.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Page fetches served from the page cache.",
		}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Fetch attempts retried after a transient failure.",
		}),
		FetchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Fetches that ended in an error, by class.",
		}, []string{"class"}),
		TruncatedZips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "truncated_zips_total",
			Help:      "Listing pages whose parallel item columns had unequal lengths.",
		}, []string{"kind"}),
		DroppedItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_items_total",
			Help:      "Listing items dropped because a field was empty.",
		}, []string{"kind"}),
		EmptySearches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_search_pages_total",
			Help:      "Search result pages with no marker and no teasers.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.NetworkFetches,
			m.CacheHits,
			m.Retries,
			m.FetchFailures,
			m.TruncatedZips,
			m.DroppedItems,
			m.EmptySearches,
		)
	}

	return m
}

// NetworkFetch counts one transport request.
func (m *Metrics) NetworkFetch() {
	if m == nil {
		return
	}
	m.NetworkFetches.Inc()
}

// CacheHit counts one cached page served.
func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

// Retry counts one retried attempt.
func (m *Metrics) Retry() {
	if m == nil {
		return
	}
	m.Retries.Inc()
}

// FetchFailure counts one failed fetch. class is "transient", "fatal" or
// "canceled".
func (m *Metrics) FetchFailure(class string) {
	if m == nil {
		return
	}
	m.FetchFailures.WithLabelValues(class).Inc()
}

// TruncatedZip counts one listing page with mismatched column lengths.
func (m *Metrics) TruncatedZip(kind string) {
	if m == nil {
		return
	}
	m.TruncatedZips.WithLabelValues(kind).Inc()
}

// DroppedItem counts one malformed listing item.
func (m *Metrics) DroppedItem(kind string) {
	if m == nil {
		return
	}
	m.DroppedItems.WithLabelValues(kind).Inc()
}

// EmptySearch counts one unmarked search page without teasers.
func (m *Metrics) EmptySearch() {
	if m == nil {
		return
	}
	m.EmptySearches.Inc()
}
