package serverdb

import (
	"fmt"
	"time"
)

// RateLimitEvent represents a rejected request.
type RateLimitEvent struct {
	ID            int64
	IP            string
	EndpointClass string // read, write
	CreatedAt     string
}

// InsertRateLimitEvent records a rate limit violation.
func (db *ServerDB) InsertRateLimitEvent(ip, endpointClass string) error {
	_, err := db.conn.Exec(
		`INSERT INTO rate_limit_events (ip, endpoint_class) VALUES (?, ?)`,
		ip, endpointClass,
	)
	if err != nil {
		return fmt.Errorf("insert rate limit event: %w", err)
	}
	return nil
}

// ListRateLimitEvents returns the newest events first, optionally filtered by ip.
func (db *ServerDB) ListRateLimitEvents(ip string, limit int) ([]RateLimitEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := "SELECT id, ip, endpoint_class, created_at FROM rate_limit_events"
	var args []any
	if ip != "" {
		query += " WHERE ip = ?"
		args = append(args, ip)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rate limit events: %w", err)
	}
	defer rows.Close()

	var events []RateLimitEvent
	for rows.Next() {
		var e RateLimitEvent
		if err := rows.Scan(&e.ID, &e.IP, &e.EndpointClass, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rate limit event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CleanupRateLimitEvents deletes events older than the given duration.
// Returns the number of rows deleted.
func (db *ServerDB) CleanupRateLimitEvents(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format("2006-01-02 15:04:05")
	res, err := db.conn.Exec(
		`DELETE FROM rate_limit_events WHERE created_at < ?`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("cleanup rate limit events: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
