package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAreLabelled(t *testing.T) {
	before := testutil.ToFloat64(RecordsEmitted.WithLabelValues("metrics_test"))
	RecordsEmitted.WithLabelValues("metrics_test").Add(3)
	assert.Equal(t, before+3, testutil.ToFloat64(RecordsEmitted.WithLabelValues("metrics_test")))

	RecordsDropped.WithLabelValues("metrics_test", "null_key").Inc()
	assert.Equal(t, float64(1), testutil.ToFloat64(RecordsDropped.WithLabelValues("metrics_test", "null_key")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	ContextsSkipped.WithLabelValues("handler_test").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "tap_taboola_contexts_skipped_total"))
}

func TestTimer(t *testing.T) {
	timer := NewTimer("unit")
	time.Sleep(5 * time.Millisecond)

	assert.Equal(t, "unit", timer.Name())
	assert.GreaterOrEqual(t, timer.Stop(), 5*time.Millisecond)
}
