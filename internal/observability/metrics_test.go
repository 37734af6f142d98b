package observability

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHelpers(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.FillsTotal.WithLabelValues(ModeBacktest, "BUY"))
	RecordFill(ModeBacktest, "BUY")
	RecordFill(ModeBacktest, "BUY")
	if got := testutil.ToFloat64(DefaultMetrics.FillsTotal.WithLabelValues(ModeBacktest, "BUY")); got != before+2 {
		t.Errorf("fills_total = %v, want %v", got, before+2)
	}

	UpdateRisk(ModeLive, 98000, 0.02, 1)
	if got := testutil.ToFloat64(DefaultMetrics.Equity.WithLabelValues(ModeLive)); got != 98000 {
		t.Errorf("equity = %v, want 98000", got)
	}
	if got := testutil.ToFloat64(DefaultMetrics.RiskLevel.WithLabelValues(ModeLive)); got != 1 {
		t.Errorf("risk_level = %v, want 1", got)
	}

	errBefore := testutil.ToFloat64(DefaultMetrics.DBQueryErrors.WithLabelValues("postgres", "insert_run"))
	RecordDBQuery("postgres", "insert_run", 0.01, nil)
	RecordDBQuery("postgres", "insert_run", 0.01, errors.New("boom"))
	if got := testutil.ToFloat64(DefaultMetrics.DBQueryErrors.WithLabelValues("postgres", "insert_run")); got != errBefore+1 {
		t.Errorf("query_errors_total = %v, want %v", got, errBefore+1)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordFeedDropped("out_of_order")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "regime_trader_feed_messages_dropped_total") {
		t.Error("dropped counter missing from /metrics output")
	}
}
