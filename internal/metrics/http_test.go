package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func testMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/query/stream", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	})
	mux.HandleFunc("GET /api/resources", func(w http.ResponseWriter, r *http.Request) {})
	return mux
}

func TestRouteLabel(t *testing.T) {
	mux := testMux()
	tests := []struct {
		name   string
		method string
		path   string
		want   string
	}{
		{"registered route", http.MethodPost, "/api/query/stream", "/api/query/stream"},
		{"query string ignored", http.MethodGet, "/api/resources?q=asbestos", "/api/resources"},
		{"unknown path", http.MethodGet, "/wp-login.php", unmatchedRoute},
		{"wrong method", http.MethodGet, "/api/query/stream", unmatchedRoute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, routeLabel(mux, httptest.NewRequest(tt.method, tt.path, nil)))
		})
	}
}

func TestMiddleware_RecordsStatusByRoute(t *testing.T) {
	mux := testMux()
	h := Middleware(mux)(mux)

	counter := HTTPRequestsTotal.WithLabelValues(http.MethodPost, "/api/query/stream", "402")
	before := testutil.ToFloat64(counter)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/query/stream", nil))

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

func TestMiddleware_UnknownPathsShareOneLabel(t *testing.T) {
	mux := testMux()
	h := Middleware(mux)(mux)

	counter := HTTPRequestsTotal.WithLabelValues(http.MethodGet, unmatchedRoute, "404")
	before := testutil.ToFloat64(counter)

	for _, path := range []string{"/.env", "/admin", "/api/v2/query"} {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, before+3, testutil.ToFloat64(counter))
}

func TestMiddleware_PreservesFlusher(t *testing.T) {
	var flushed bool
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/query/stream", func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		if assert.True(t, ok) {
			f.Flush()
			flushed = true
		}
	})

	rec := httptest.NewRecorder()
	Middleware(mux)(mux).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/query/stream", nil))

	assert.True(t, flushed)
	assert.True(t, rec.Flushed)
}

func TestQuotaRejected_DefaultsReason(t *testing.T) {
	counter := QuotaRejectionsTotal.WithLabelValues("unknown")
	before := testutil.ToFloat64(counter)

	QuotaRejected("")

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}
