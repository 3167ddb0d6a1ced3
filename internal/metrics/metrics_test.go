package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jonesrussell/north-cloud/ocds-portal/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNew_IndependentRegistries(t *testing.T) {
	t.Parallel()

	// Two instances must not collide on registration.
	a := metrics.New()
	b := metrics.New()

	a.CacheLookup("hit")
	if got := testutil.CollectAndCount(b.Registry(), "ocds_portal_cache_lookups_total"); got != 0 {
		t.Errorf("second registry has %d cache series, want 0", got)
	}
}

func TestHandler_ExposesRecordedSeries(t *testing.T) {
	t.Parallel()

	m := metrics.New()
	m.ObserveHTTP(http.MethodGet, "/api/v1/buscador", http.StatusOK, 20*time.Millisecond)
	m.ObserveSearch("search", 15*time.Millisecond, "")
	m.ObserveSearch("search", 5*time.Millisecond, "unavailable")
	m.SetBreakerState(1)
	m.AddExportRows("procesos", "csv", 42)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	body, _ := io.ReadAll(rec.Body)
	out := string(body)
	for _, want := range []string{
		`ocds_portal_http_requests_total{method="GET",route="/api/v1/buscador",status="200"} 1`,
		`ocds_portal_elasticsearch_errors_total{kind="unavailable",operation="search"} 1`,
		`ocds_portal_elasticsearch_circuit_breaker_state 1`,
		`ocds_portal_export_rows_total{format="csv",kind="procesos"} 42`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestNilMetrics_IsSafe(t *testing.T) {
	t.Parallel()

	var m *metrics.Metrics
	m.ObserveHTTP(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	m.ObserveSearch("count", time.Millisecond, "internal")
	m.CacheLookup("miss")
	m.SetBreakerState(0)
	m.AddExportRows("contratos", "xlsx", 1)
}
