package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNew_RegistersCounters verifies counters land on the registry
func TestNew_RegistersCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.NetworkFetch()
	m.NetworkFetch()
	m.CacheHit()
	m.TruncatedZip("comments")
	m.EmptySearch()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.NetworkFetches))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TruncatedZips.WithLabelValues("comments")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmptySearches))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "lmdcrawl_network_fetches_total")
	assert.Contains(t, names, "lmdcrawl_truncated_zips_total")
	assert.Contains(t, names, "lmdcrawl_empty_search_pages_total")
}

// TestNilMetrics verifies a nil collector is a no-op
func TestNilMetrics(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.NetworkFetch()
		m.CacheHit()
		m.Retry()
		m.FetchFailure("fatal")
		m.TruncatedZip("search")
		m.DroppedItem("search")
		m.EmptySearch()
	})
}

// TestNew_NilRegisterer verifies counters work without registration
func TestNew_NilRegisterer(t *testing.T) {
	m := New(nil)
	m.Retry()
	m.FetchFailure("transient")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Retries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchFailures.WithLabelValues("transient")))
}
