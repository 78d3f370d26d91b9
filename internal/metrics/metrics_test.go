package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.Counter.GetValue()
}

func TestObserveOp_CountsAndErrors(t *testing.T) {
	LedgerOpsTotal.Reset()
	LedgerOpErrors.Reset()

	ObserveOp("spend")(nil)
	ObserveOp("spend")(errors.New("boom"))

	assert.Equal(t, 2.0, counterValue(t, LedgerOpsTotal.WithLabelValues("spend")))
	assert.Equal(t, 1.0, counterValue(t, LedgerOpErrors.WithLabelValues("spend")))
}

func TestObserveOp_ObservesHistogram(t *testing.T) {
	LedgerOpDuration.Reset()

	ObserveOp("hist_test")(nil)

	ch := make(chan prometheus.Metric, 10)
	LedgerOpDuration.Collect(ch)
	close(ch)

	found := false
	for metric := range ch {
		m := &dto.Metric{}
		_ = metric.Write(m)
		if m.Histogram != nil && m.Histogram.GetSampleCount() == 1 {
			found = true
		}
	}
	assert.True(t, found, "expected histogram with 1 sample")
}

func TestHandler_ExposesRegisteredMetrics(t *testing.T) {
	InvalidFxRateTotal.Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "spend_ledger_invalid_fx_rate_draws_total"))
}
