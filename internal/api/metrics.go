package api

import (
	"sync/atomic"
	"time"
)

// Metrics collects in-memory server metrics using atomic counters.
type Metrics struct {
	startTime    time.Time
	requests     atomic.Int64
	serverErrors atomic.Int64
	clientErrors atomic.Int64
	rateLimited  atomic.Int64
	created      atomic.Int64
	updated      atomic.Int64
	deleted      atomic.Int64
}

// MetricsSnapshot is a point-in-time view of server metrics.
type MetricsSnapshot struct {
	UptimeSeconds float64 `json:"uptime_seconds"`
	Requests      int64   `json:"requests"`
	ServerErrors  int64   `json:"server_errors"`
	ClientErrors  int64   `json:"client_errors"`
	RateLimited   int64   `json:"rate_limited"`
	BooksCreated  int64   `json:"books_created"`
	BooksUpdated  int64   `json:"books_updated"`
	BooksDeleted  int64   `json:"books_deleted"`
	BooksStored   int     `json:"books_stored"`
}

// NewMetrics creates a new Metrics instance with the current time as start.
func NewMetrics() *Metrics {
	return &Metrics{startTime: time.Now()}
}

// RecordRequest increments the total request counter.
func (m *Metrics) RecordRequest() {
	m.requests.Add(1)
}

// RecordError increments the server error (5xx) counter.
func (m *Metrics) RecordError() {
	m.serverErrors.Add(1)
}

// RecordClientError increments the client error (4xx) counter.
func (m *Metrics) RecordClientError() {
	m.clientErrors.Add(1)
}

// RecordRateLimited increments the rejected request counter.
func (m *Metrics) RecordRateLimited() {
	m.rateLimited.Add(1)
}

func (m *Metrics) RecordCreate() { m.created.Add(1) }
func (m *Metrics) RecordUpdate() { m.updated.Add(1) }
func (m *Metrics) RecordDelete() { m.deleted.Add(1) }

// Snapshot returns a point-in-time copy of the metrics.
// BooksStored is filled in by the handler.
func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		UptimeSeconds: time.Since(m.startTime).Seconds(),
		Requests:      m.requests.Load(),
		ServerErrors:  m.serverErrors.Load(),
		ClientErrors:  m.clientErrors.Load(),
		RateLimited:   m.rateLimited.Load(),
		BooksCreated:  m.created.Load(),
		BooksUpdated:  m.updated.Load(),
		BooksDeleted:  m.deleted.Load(),
	}
}
