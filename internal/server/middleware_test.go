package server

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestStatusRecorder(t *testing.T) {
	t.Run("captures status code", func(t *testing.T) {
		rec := newStatusRecorder(httptest.NewRecorder())
		rec.WriteHeader(http.StatusNotFound)
		rec.WriteHeader(http.StatusOK)
		assert.Equal(t, http.StatusNotFound, rec.statusCode)
	})

	t.Run("defaults to 200", func(t *testing.T) {
		rec := newStatusRecorder(httptest.NewRecorder())
		_, _ = rec.Write([]byte("x"))
		assert.Equal(t, http.StatusOK, rec.statusCode)
	})

	t.Run("passes write header to underlying writer", func(t *testing.T) {
		underlying := httptest.NewRecorder()
		rec := newStatusRecorder(underlying)
		rec.WriteHeader(http.StatusCreated)
		assert.Equal(t, http.StatusCreated, underlying.Code)
	})
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog(logger, nil))
	r.Get("/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/items/42", nil)
	req.Header.Set(RequestIDHeader, "req-7")
	r.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, "level=WARN")
	assert.Contains(t, out, "msg=http_request")
	assert.Contains(t, out, "path=/items/42")
	assert.Contains(t, out, "route=/items/{id}")
	assert.Contains(t, out, "status=418")
	assert.Contains(t, out, "request_id=req-7")
	assert.NotContains(t, out, "trace_id=")
}

func TestAccessLog_TraceID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	tp := sdktrace.NewTracerProvider()
	defer func() { _ = tp.Shutdown(context.Background()) }()

	h := accessLog(logger, nil)(okHandler())

	ctx, span := tp.Tracer("test").Start(context.Background(), "inbound")
	defer span.End()
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx))

	assert.Contains(t, buf.String(), "trace_id="+span.SpanContext().TraceID().String())
}

func TestRequestID_RejectsOversizedHeader(t *testing.T) {
	var got string
	h := requestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = RequestIDFrom(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, strings.Repeat("a", maxRequestIDLength+1))
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Len(t, got, 36)
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	securityHeaders(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}
