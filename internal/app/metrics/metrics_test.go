package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                    "/",
		"/":                   "/",
		"/healthz":            "/healthz",
		"/api/boxes/abc":      "/api/boxes",
		"/uploads/x/y.png":    "/uploads",
		"/api/admin/users/42": "/api/admin",
	}
	for in, want := range cases {
		if got := canonicalPath(in); got != want {
			t.Fatalf("canonicalPath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInstrumentHandlerUsesRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(InstrumentHandler)
	router.HandleFunc("/api/boxes/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/boxes/{id}", "418"))
	req := httptest.NewRequest(http.MethodGet, "/api/boxes/123", nil)
	router.ServeHTTP(httptest.NewRecorder(), req)
	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/boxes/{id}", "418"))
	if after-before != 1 {
		t.Fatalf("expected one request recorded, got %v", after-before)
	}
}

func TestDomainCounters(t *testing.T) {
	before := testutil.ToFloat64(draws.WithLabelValues("hidden"))
	RecordOpen("success", "hidden")
	RecordOpen("failure", "hidden")
	if got := testutil.ToFloat64(draws.WithLabelValues("hidden")) - before; got != 1 {
		t.Fatalf("expected one hidden draw, got %v", got)
	}

	soldBefore := testutil.ToFloat64(boxesSold)
	RecordPurchase("success", 3, 5970)
	RecordPurchase("insufficient_stock", 2, 0)
	if got := testutil.ToFloat64(boxesSold) - soldBefore; got != 3 {
		t.Fatalf("expected 3 boxes sold, got %v", got)
	}
}

func TestHandlerExposesNamespace(t *testing.T) {
	RecordJobRun("prune", 0, true)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "curiobox_maintenance_job_runs_total") {
		t.Fatalf("metrics output missing job counter")
	}
}
