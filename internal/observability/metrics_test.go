package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	m := NewMetrics("tasktracker")

	m.ObserveExtraction("ok", 2, 3, 4*time.Second)
	m.ObserveExtraction("timeout", 5, 0, time.Minute)
	m.ObserveResolution("prioritized")
	m.ObserveResolution("prioritized")
	m.ObserveLedgerError("append")
	m.ObserveDowngrade()
	m.ObservePass(time.Second, 1)
	m.ObserveIngested()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExtractionCalls.WithLabelValues("ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TasksExtracted))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Resolutions.WithLabelValues("prioritized")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerErrors.WithLabelValues("append")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CapacityDowngrades))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChatFailures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesIngested))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveExtraction("ok", 1, 1, time.Second)
		m.ObserveResolution("deleted")
		m.ObserveLedgerError("append")
		m.ObserveDowngrade()
		m.ObservePass(time.Second, 0)
		m.ObserveIngested()
	})
}

func TestHandlerExposesNamespace(t *testing.T) {
	m := NewMetrics("tasktracker")
	m.ObserveIngested()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "tasktracker_messages_ingested_total 1")
}
