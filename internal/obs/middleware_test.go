package obs_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/lumberlens/backend-lumber/internal/obs"
)

func newMetricsHandler(t *testing.T, status int) (*obs.HTTPMetrics, http.Handler) {
	t.Helper()
	metrics := obs.NewHTTPMetrics("lumberlens", []float64{1, 10}, prometheus.NewRegistry())
	handler := obs.HTTPObs{Metrics: metrics}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	return metrics, handler
}

func TestHTTPMetricsUsesRoutePatternLabel(t *testing.T) {
	metrics, handler := newMetricsHandler(t, http.StatusNoContent)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/vendors/42", nil)
	req = req.WithContext(obs.WithRoutePattern(req.Context(), "/api/v1/vendors/{id}"))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 got %d", rr.Code)
	}
	total := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/api/v1/vendors/{id}", "204"))
	if total != 1 {
		t.Fatalf("expected counter 1 for route pattern label, got %v", total)
	}
	if samples := testutil.CollectAndCount(metrics.ReqDur); samples == 0 {
		t.Fatal("expected histogram sample")
	}
	if metrics.InFlight != nil {
		if val := testutil.ToFloat64(metrics.InFlight); val != 0 {
			t.Fatalf("expected no in-flight requests, got %v", val)
		}
	}
}

func TestHTTPMetricsLabelsUnmatchedRoutes(t *testing.T) {
	metrics, handler := newMetricsHandler(t, http.StatusOK)

	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	// Requests that never matched a route share one label to keep the
	// cardinality of the counter bounded.
	total := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "unknown", "200"))
	if total != 1 {
		t.Fatalf("expected counter 1 for unmatched route label, got %v", total)
	}
}

func TestStatusRecorderDefaultsTo200(t *testing.T) {
	rr := httptest.NewRecorder()
	rec := obs.NewStatusRecorder(rr)
	if _, err := rec.Write([]byte("ok")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if rec.Status() != http.StatusOK {
		t.Fatalf("expected default 200, got %d", rec.Status())
	}
	if rec.BytesWritten() != 2 {
		t.Fatalf("expected 2 bytes recorded, got %d", rec.BytesWritten())
	}
}
