package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Get("/v1/runs/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	ok := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "200"))
	missing := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "404"))

	for _, path := range []string{"/healthz", "/v1/runs/a", "/v1/runs/b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "200")); got != ok+1 {
		t.Errorf("expected one more 200, got %f -> %f", ok, got)
	}
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "404")); got != missing+2 {
		t.Errorf("expected two more 404s, got %f -> %f", missing, got)
	}
	// Both /v1/runs requests share one series.
	if got := testutil.CollectAndCount(httpRequestDurationSeconds); got < 2 {
		t.Errorf("expected route series for /healthz and /v1/runs/{id}, got %d", got)
	}
}

func TestThrottleAndPersistCounters(t *testing.T) {
	Init()
	before := testutil.ToFloat64(categoryPersistFailuresTotal)
	ObservePersistFailure()
	if got := testutil.ToFloat64(categoryPersistFailuresTotal); got != before+1 {
		t.Errorf("expected persist failures to grow by 1, got %f -> %f", before, got)
	}

	ObserveRateLimitDelay("throttle.test", 150*time.Millisecond)
	if got := testutil.CollectAndCount(rateLimitDelaysSeconds); got < 1 {
		t.Errorf("expected a rate limit delay series, got %d", got)
	}
}
