// Package api implements shelf-server, the HTTP catalog API that shelf
// clients reconcile against.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/marcus/shelf/internal/serverdb"
)

// Server is the HTTP API server for the book catalog.
type Server struct {
	config      Config
	http        *http.Server
	store       *serverdb.ServerDB
	metrics     *Metrics
	rateLimiter *RateLimiter
	cancel      context.CancelFunc
}

// NewServer creates a new Server with the given config and store.
func NewServer(cfg Config, store *serverdb.ServerDB) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("nil store")
	}
	s := &Server{
		config:      cfg,
		store:       store,
		metrics:     NewMetrics(),
		rateLimiter: NewRateLimiter(),
	}

	s.http = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      s.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s, nil
}

// Start begins listening for HTTP requests (non-blocking).
// It returns the bound address, which differs from the configured one for ":0".
func (s *Server) Start() (string, error) {
	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		return "", fmt.Errorf("listen: %w", err)
	}

	go func() {
		if err := s.http.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("http server", "err", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.housekeeping(ctx)

	return ln.Addr().String(), nil
}

// housekeeping drops idle rate limit buckets and expired rate limit events.
func (s *Server) housekeeping(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("cleanup panic", "panic", r)
		}
	}()
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.rateLimiter.cleanup()
			if s.config.RateLimitEventRetention <= 0 {
				continue
			}
			n, err := s.store.CleanupRateLimitEvents(s.config.RateLimitEventRetention)
			if err != nil {
				slog.Error("cleanup rate limit events", "err", err)
			} else if n > 0 {
				slog.Info("cleaned up rate limit events", "count", n)
			}
		}
	}
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	return s.http.Shutdown(ctx)
}

// routes builds the HTTP handler with all routes and middleware.
func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health & metrics
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /metricz", s.handleMetrics)

	// Books
	mux.HandleFunc("HEAD /books", s.handleHeadBooks)
	mux.HandleFunc("GET /books", s.handleListBooks)
	mux.HandleFunc("POST /books", s.handleCreateBook)
	mux.HandleFunc("GET /books/{id}", s.handleGetBook)
	mux.HandleFunc("PUT /books/{id}", s.handleUpdateBook)
	mux.HandleFunc("DELETE /books/{id}", s.handleDeleteBook)

	return chain(mux,
		requestIDMiddleware,
		observeMiddleware(s.metrics),
		recoveryMiddleware,
		s.CORSMiddleware,
		maxBytesMiddleware(1<<20),
		s.withRateLimit,
	)
}

// handleHealth returns a health check response, pinging the server DB.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "detail": "db unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleMetrics returns a snapshot of server metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap := s.metrics.Snapshot()
	if n, err := s.store.CountBooks(); err == nil {
		snap.BooksStored = n
	} else {
		logFor(r.Context()).Warn("count books", "err", err)
	}
	writeJSON(w, http.StatusOK, snap)
}
