package connectivity

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestProbeOnlineOn2xx(t *testing.T) {
	var mu sync.Mutex
	var method, path string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		method, path = r.Method, r.URL.Path
		mu.Unlock()
	}))
	defer ts.Close()

	p := NewProbe(ts.URL)
	if !p.IsOnline(context.Background()) {
		t.Fatal("IsOnline = false, want true")
	}
	mu.Lock()
	defer mu.Unlock()
	if method != http.MethodHead || path != "/books" {
		t.Errorf("probe sent %s %s, want HEAD /books", method, path)
	}
}

func TestProbeFailsClosed(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusBadGateway) }},
		{"not found", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(tt.handler)
			defer ts.Close()
			if NewProbe(ts.URL).IsOnline(context.Background()) {
				t.Error("IsOnline = true, want false")
			}
		})
	}

	t.Run("unreachable", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		url := ts.URL
		ts.Close()
		if NewProbe(url).IsOnline(context.Background()) {
			t.Error("IsOnline = true, want false")
		}
	})

	t.Run("no network", func(t *testing.T) {
		var hits atomic.Int32
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits.Add(1) }))
		defer ts.Close()
		p := NewProbe(ts.URL)
		p.NetworkUp = func() bool { return false }
		if p.IsOnline(context.Background()) {
			t.Error("IsOnline = true, want false")
		}
		if hits.Load() != 0 {
			t.Error("probe should not reach the server when the device is offline")
		}
	})
}

func TestProbeTimeout(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer ts.Close()
	defer close(release)

	p := NewProbe(ts.URL)
	p.Timeout = 50 * time.Millisecond
	start := time.Now()
	if p.IsOnline(context.Background()) {
		t.Fatal("IsOnline = true, want false")
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("probe took %v, want ~50ms", elapsed)
	}
}

func TestNewProbeSkipsInterfaceCheckForLoopback(t *testing.T) {
	if NewProbe("http://localhost:3000").NetworkUp != nil {
		t.Error("localhost probe should not check interfaces")
	}
	if NewProbe("http://127.0.0.1:3000").NetworkUp != nil {
		t.Error("127.0.0.1 probe should not check interfaces")
	}
	if NewProbe("https://books.example.com").NetworkUp == nil {
		t.Error("remote probe should check interfaces")
	}
}

type flipProber struct {
	mu      sync.Mutex
	answers []bool
}

func (f *flipProber) IsOnline(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.answers) == 1 {
		return f.answers[0]
	}
	a := f.answers[0]
	f.answers = f.answers[1:]
	return a
}

func TestWatchReportsFirstResultAndChanges(t *testing.T) {
	p := &flipProber{answers: []bool{false, false, true, true, false}}
	ctx, cancel := context.WithCancel(context.Background())

	var mu sync.Mutex
	var seen []bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		Watch(ctx, p, time.Millisecond, func(online bool) {
			mu.Lock()
			seen = append(seen, online)
			n := len(seen)
			mu.Unlock()
			if n == 3 {
				cancel()
			}
		})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("Watch did not report three states")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []bool{false, true, false}
	if len(seen) != len(want) {
		t.Fatalf("seen = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("seen = %v, want %v", seen, want)
		}
	}
}

func TestFixed(t *testing.T) {
	if !Fixed(true).IsOnline(context.Background()) || Fixed(false).IsOnline(context.Background()) {
		t.Error("Fixed should return its value")
	}
}

func TestProbeLogsThroughItsLogger(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	var buf bytes.Buffer
	p := NewProbe(ts.URL)
	p.Log = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	if p.IsOnline(context.Background()) {
		t.Fatal("IsOnline = true on 503, want false")
	}
	if !strings.Contains(buf.String(), "probe rejected") || !strings.Contains(buf.String(), "status=503") {
		t.Errorf("log = %q, want the rejection", buf.String())
	}

	// A bare Probe falls back to the default logger.
	bare := &Probe{URL: ts.URL}
	if bare.IsOnline(context.Background()) {
		t.Error("IsOnline = true on 503, want false")
	}
}
