package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	return NewCollector("", prometheus.NewRegistry(), nil)
}

func TestCollectorCounters(t *testing.T) {
	c := newTestCollector(t)

	c.RecordTurn("validation")
	c.RecordTurn("validation")
	c.RecordTransition("validation", "competency_discovery")
	c.RecordClaims(3)
	c.RecordExtractionFailure()
	c.RecordResolution(OutcomeMapped)
	c.RecordResolution(OutcomeFailed)
	c.RecordResolution(OutcomeMapped)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.turnsTotal.WithLabelValues("validation")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.transitionsTotal.WithLabelValues("validation", "competency_discovery")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.claimsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.extractionFailures))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.resolutionsTotal.WithLabelValues(OutcomeMapped)))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.resolutionsTotal.WithLabelValues(OutcomeUnmapped)))
}

func TestCollectorObservers(t *testing.T) {
	c := newTestCollector(t)

	c.ObserveModel("gemini/flash", "", 200*time.Millisecond, nil)
	c.ObserveModel("gemini/flash", "skill_id", time.Second, errors.New("quota"))
	c.ObserveTaxonomy("ESCO", 50*time.Millisecond, nil)
	c.CacheObserver("ESCO", true)
	c.CacheObserver("ESCO", false)
	c.CacheObserver("ESCO", false)

	assert.Equal(t, 2, testutil.CollectAndCount(c.modelDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.modelErrors.WithLabelValues("gemini/flash")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.taxonomyDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cacheLookupsTotal.WithLabelValues("ESCO", "hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.cacheLookupsTotal.WithLabelValues("ESCO", "miss")))
}

func TestCollectorHandler(t *testing.T) {
	c := NewCollector("test_ns", prometheus.NewRegistry(), nil)
	c.RecordTurn("mapping")

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.True(t, strings.Contains(string(body), `test_ns_turns_total{state="mapping"} 1`))
}
