package api

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the server configuration, loaded from environment variables.
type Config struct {
	ListenAddr      string
	DBPath          string
	ShutdownTimeout time.Duration
	LogFormat       string // "json" (default) or "text"
	LogLevel        string // "debug", "info" (default), "warn", "error"

	RateLimitRead  int // GET/HEAD per IP per minute (default: 600)
	RateLimitWrite int // POST/PUT/DELETE per IP per minute (default: 120)

	CORSAllowedOrigins []string // allowed browser origins; empty = disabled

	RateLimitEventRetention time.Duration // retention period for rate limit events (default: 30 days)
}

// LoadConfig reads configuration from environment variables with sensible defaults.
func LoadConfig() Config {
	cfg := Config{
		ListenAddr:      ":3000",
		DBPath:          "./data/shelf.db",
		ShutdownTimeout: 30 * time.Second,
		LogFormat:       "json",
		LogLevel:        "info",

		RateLimitRead:  600,
		RateLimitWrite: 120,

		RateLimitEventRetention: 30 * 24 * time.Hour,
	}

	if v := os.Getenv("SHELF_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("SHELF_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("SHELF_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ShutdownTimeout = d
		}
	}
	if v := os.Getenv("SHELF_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("SHELF_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	// SHELF_RATE_LIMIT sets both tiers; the specific variables win.
	if n := positiveInt(os.Getenv("SHELF_RATE_LIMIT")); n > 0 {
		cfg.RateLimitRead = n
		cfg.RateLimitWrite = n
	}
	if n := positiveInt(os.Getenv("SHELF_RATE_LIMIT_READ")); n > 0 {
		cfg.RateLimitRead = n
	}
	if n := positiveInt(os.Getenv("SHELF_RATE_LIMIT_WRITE")); n > 0 {
		cfg.RateLimitWrite = n
	}

	if v := os.Getenv("SHELF_RATE_LIMIT_EVENT_RETENTION"); v != "" {
		if d := parseDaysDuration(v); d > 0 {
			cfg.RateLimitEventRetention = d
		}
	}

	if v := os.Getenv("SHELF_CORS_ALLOWED_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, o)
			}
		}
	}

	return cfg
}

func positiveInt(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// parseDaysDuration parses a string like "90d", "30d" into a time.Duration.
// Falls back to time.ParseDuration for standard Go durations.
func parseDaysDuration(s string) time.Duration {
	s = strings.TrimSpace(s)
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		if n, err := strconv.Atoi(numStr); err == nil && n > 0 {
			return time.Duration(n) * 24 * time.Hour
		}
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	return 0
}
