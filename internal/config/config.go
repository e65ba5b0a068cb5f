// Package config reads and writes the client settings in .shelf/config.json.
// Environment variables override the file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/marcus/shelf/internal/models"
)

const configFile = ".shelf/config.json"
const lockFile = ".shelf/config.json.lock"

// Defaults
const (
	DefaultServerURL      = "http://localhost:3000"
	DefaultRequestTimeout = 10 * time.Second
	DefaultProbeTimeout   = 2 * time.Second
)

// Load reads the config from disk
func Load(baseDir string) (*models.Config, error) {
	configPath := filepath.Join(baseDir, configFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &models.Config{}, nil
		}
		return nil, err
	}

	var cfg models.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", configPath, err)
	}

	return &cfg, nil
}

// Save writes the config to disk using atomic write (temp file + rename)
func Save(baseDir string, cfg *models.Config) error {
	configPath := filepath.Join(baseDir, configFile)

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "config-*.json.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, configPath)
}

// update runs a locked read-modify-write of the config file.
func update(baseDir string, fn func(*models.Config) error) error {
	return withConfigLock(baseDir, func() error {
		cfg, err := Load(baseDir)
		if err != nil {
			return err
		}
		if err := fn(cfg); err != nil {
			return err
		}
		return Save(baseDir, cfg)
	})
}

// key describes one settable config entry.
type key struct {
	get      func(*models.Config) string
	set      func(*models.Config, string) error
	describe string
}

var keys = map[string]key{
	"server_url": {
		get: func(c *models.Config) string { return c.ServerURL },
		set: func(c *models.Config, v string) error {
			if v != "" && !strings.HasPrefix(v, "http://") && !strings.HasPrefix(v, "https://") {
				return fmt.Errorf("server_url must start with http:// or https://")
			}
			c.ServerURL = strings.TrimRight(v, "/")
			return nil
		},
		describe: "catalog API base URL (default " + DefaultServerURL + ")",
	},
	"request_timeout": {
		get: func(c *models.Config) string { return c.RequestTimeout },
		set: func(c *models.Config, v string) error {
			if err := checkDuration(v); err != nil {
				return err
			}
			c.RequestTimeout = v
			return nil
		},
		describe: "remote request timeout (default 10s)",
	},
	"probe_timeout": {
		get: func(c *models.Config) string { return c.ProbeTimeout },
		set: func(c *models.Config, v string) error {
			if err := checkDuration(v); err != nil {
				return err
			}
			c.ProbeTimeout = v
			return nil
		},
		describe: "connectivity probe timeout (default 2s)",
	},
	"offline": {
		get: func(c *models.Config) string { return strconv.FormatBool(c.Offline) },
		set: func(c *models.Config, v string) error {
			if v == "" {
				c.Offline = false
				return nil
			}
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("offline must be true or false")
			}
			c.Offline = b
			return nil
		},
		describe: "always use the local store",
	},
}

func checkDuration(v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid duration %q", v)
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive")
	}
	return nil
}

// Keys returns the settable keys in sorted order.
func Keys() []string {
	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Describe returns a one-line description of a key.
func Describe(name string) string {
	return keys[name].describe
}

// Get returns the raw file value of a key (env overrides not applied).
func Get(baseDir, name string) (string, error) {
	k, ok := keys[name]
	if !ok {
		return "", fmt.Errorf("unknown config key %q (valid: %s)", name, strings.Join(Keys(), ", "))
	}
	cfg, err := Load(baseDir)
	if err != nil {
		return "", err
	}
	return k.get(cfg), nil
}

// Set validates and stores a key. An empty value resets it to the default.
func Set(baseDir, name, value string) error {
	k, ok := keys[name]
	if !ok {
		return fmt.Errorf("unknown config key %q (valid: %s)", name, strings.Join(Keys(), ", "))
	}
	return update(baseDir, func(cfg *models.Config) error {
		return k.set(cfg, value)
	})
}

// GetServerURL returns SHELF_SERVER_URL, the configured URL, or the default.
func GetServerURL(baseDir string) string {
	if v := os.Getenv("SHELF_SERVER_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	cfg, err := Load(baseDir)
	if err == nil && cfg.ServerURL != "" {
		return cfg.ServerURL
	}
	return DefaultServerURL
}

// GetOffline reports whether the local store is forced (SHELF_OFFLINE or config).
func GetOffline(baseDir string) bool {
	if v := parseBoolEnv("SHELF_OFFLINE"); v != nil {
		return *v
	}
	cfg, err := Load(baseDir)
	return err == nil && cfg.Offline
}

// GetRequestTimeout returns the configured remote timeout or the default.
func GetRequestTimeout(baseDir string) time.Duration {
	cfg, err := Load(baseDir)
	if err == nil {
		return durationOr(cfg.RequestTimeout, DefaultRequestTimeout)
	}
	return DefaultRequestTimeout
}

// GetProbeTimeout returns the configured probe timeout or the default.
func GetProbeTimeout(baseDir string) time.Duration {
	cfg, err := Load(baseDir)
	if err == nil {
		return durationOr(cfg.ProbeTimeout, DefaultProbeTimeout)
	}
	return DefaultProbeTimeout
}

func durationOr(v string, def time.Duration) time.Duration {
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		return d
	}
	return def
}

func parseBoolEnv(envKey string) *bool {
	v := strings.ToLower(os.Getenv(envKey))
	if v == "" {
		return nil
	}
	if v == "1" || v == "true" {
		b := true
		return &b
	}
	if v == "0" || v == "false" {
		b := false
		return &b
	}
	return nil
}
