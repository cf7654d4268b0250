package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func echoRequestID(w http.ResponseWriter, r *http.Request) {
	io.WriteString(w, RequestIDFromContext(r.Context()))
}

func TestRequestLogger_AssignsID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := NewRequestLogger(zap.New(core)).Handler(http.HandlerFunc(echoRequestID))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))

	id := rec.Header().Get(RequestIDHeader)
	assert.Len(t, id, 36)
	assert.Equal(t, id, rec.Body.String())

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, id, entry.ContextMap()["request_id"])
	assert.Equal(t, int64(http.StatusOK), entry.ContextMap()["status"])
}

func TestRequestLogger_KeepsClientID(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := NewRequestLogger(zap.New(core)).Handler(http.HandlerFunc(echoRequestID))

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	assert.Equal(t, 1, logs.Len())
}

func TestSecurityHeaders(t *testing.T) {
	h := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get("Strict-Transport-Security"))
}

func TestHTTPSRedirect(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	rec := httptest.NewRecorder()
	HTTPSRedirect(true)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://example.com/health", nil))
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "https://example.com/health", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	HTTPSRedirect(false)(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://example.com/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGzipCompression(t *testing.T) {
	h := GzipCompression(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"result":"success"}`)
	}))

	req := httptest.NewRequest(http.MethodPost, "/get_user_chat_log", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, `{"result":"success"}`, string(body))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/get_user_chat_log", nil))
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, `{"result":"success"}`, rec.Body.String())
}

func TestMetrics_UsesRouteTemplate(t *testing.T) {
	r := mux.NewRouter()
	r.Use(Metrics)
	r.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}).Methods(http.MethodPost)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	assert.GreaterOrEqual(t, testutil.ToFloat64(httpRequests.WithLabelValues("/login", http.MethodPost, "401")), 1.0)
}
