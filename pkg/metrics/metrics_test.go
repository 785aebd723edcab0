package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveAnalysis(t *testing.T) {
	before := testutil.ToFloat64(analysisRuns.WithLabelValues("backtest", "success"))

	ObserveAnalysis("backtest", "success", 2*time.Second)

	after := testutil.ToFloat64(analysisRuns.WithLabelValues("backtest", "success"))
	assert.Equal(t, before+1, after)
}

func TestAnalysisStarted(t *testing.T) {
	base := testutil.ToFloat64(analysisInFlight)

	done := AnalysisStarted()
	assert.Equal(t, base+1, testutil.ToFloat64(analysisInFlight))

	done()
	assert.Equal(t, base, testutil.ToFloat64(analysisInFlight))
}

func TestSkippedLinesIgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(analysisSkippedLines.WithLabelValues("malformed"))

	SkippedLines("malformed", 0)
	SkippedLines("malformed", 3)

	assert.Equal(t, before+3, testutil.ToFloat64(analysisSkippedLines.WithLabelValues("malformed")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	ObserveHTTP("POST", "/api/analysis/run", 200)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "hedgefund_http_requests_total"))
}
