package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func applyChain(h http.Handler) http.Handler {
	chain := MiddlewareChain()
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}

func TestRequestIDPropagation(t *testing.T) {
	var captured string
	h := applyChain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = chiMiddleware.GetReqID(r.Context())
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if captured == "" {
		t.Fatalf("missing request id in context")
	}
	if got := rr.Header().Get("X-Request-ID"); got != captured {
		t.Fatalf("X-Request-ID header %q, context id %q", got, captured)
	}
}

func TestRecovererReturns500(t *testing.T) {
	h := applyChain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "internal server error") {
		t.Fatalf("body: %s", rr.Body.String())
	}
}

func TestLoggingWriterForwardsFlush(t *testing.T) {
	rr := httptest.NewRecorder()
	lw := &loggingResponseWriter{ResponseWriter: rr, status: http.StatusOK}
	if _, err := lw.Write([]byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	lw.Flush()
	if !rr.Flushed {
		t.Fatalf("flush not forwarded to underlying writer")
	}
}
