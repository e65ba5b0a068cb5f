package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestObserveRecordsPanicAsServerError(t *testing.T) {
	m := NewMetrics()
	h := chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}), requestIDMiddleware, observeMiddleware(m), recoveryMiddleware)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/books", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	if code := decodeError(t, w).Code; code != ErrCodeInternal {
		t.Errorf("error code = %q, want %q", code, ErrCodeInternal)
	}
	snap := m.Snapshot()
	if snap.Requests != 1 || snap.ServerErrors != 1 || snap.ClientErrors != 0 {
		t.Errorf("metrics = %+v", snap)
	}
}

func TestObserveCountsClientErrors(t *testing.T) {
	m := NewMetrics()
	h := chain(http.NotFoundHandler(), observeMiddleware(m))

	for range 3 {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/nope", nil))
	}
	if snap := m.Snapshot(); snap.Requests != 3 || snap.ClientErrors != 3 {
		t.Errorf("metrics = %+v", snap)
	}
}

func TestResponseRecorderCountsBytes(t *testing.T) {
	rec := &responseRecorder{ResponseWriter: httptest.NewRecorder(), status: http.StatusOK}
	rec.Write([]byte("hello"))
	rec.Write([]byte(" world"))
	if rec.bytes != 11 || rec.status != http.StatusOK {
		t.Errorf("recorder = %d bytes, status %d", rec.bytes, rec.status)
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mw("outer"), mw("inner"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if len(order) != 3 || order[0] != "outer" || order[1] != "inner" || order[2] != "handler" {
		t.Errorf("order = %v", order)
	}
}
