package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewServerMetrics(reg, "test")

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/"+id, nil))
	}

	if got := testutil.ToFloat64(m.Requests.WithLabelValues("/orders/{id}", "404")); got != 2 {
		t.Fatalf("requests = %v, want 2", got)
	}
}

func TestHandlerExposesDomainCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewServerMetrics(reg, "test")
	m.OrdersCancelled.Inc()
	m.StockRestored.Add(3)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "storefront_test_orders_cancelled_total 1") {
		t.Fatalf("missing cancelled counter:\n%s", body)
	}
	if !strings.Contains(body, "storefront_test_stock_restored_units_total 3") {
		t.Fatalf("missing restored counter:\n%s", body)
	}
}
