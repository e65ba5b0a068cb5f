package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marcus/shelf/internal/models"
)

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ServerURL != "" || cfg.Offline {
		t.Errorf("missing file should load empty config, got %+v", cfg)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := &models.Config{ServerURL: "http://books:3000", RequestTimeout: "5s", Offline: true}
	if err := Save(dir, in); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	out, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if *out != *in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(filepath.Join(dir, ".shelf"))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestLoadCorruptFile(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, ".shelf"), 0755)
	os.WriteFile(filepath.Join(dir, configFile), []byte("{nope"), 0644)

	if _, err := Load(dir); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSetAndGet(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		key, value, want string
		wantErr          bool
	}{
		{"server_url", "https://api.example.com/", "https://api.example.com", false},
		{"server_url", "ftp://nope", "", true},
		{"request_timeout", "3s", "3s", false},
		{"request_timeout", "soon", "", true},
		{"probe_timeout", "-1s", "", true},
		{"offline", "true", "true", false},
		{"offline", "maybe", "", true},
		{"colour", "blue", "", true},
	}
	for _, tt := range tests {
		err := Set(dir, tt.key, tt.value)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Set(%s, %s) succeeded, want error", tt.key, tt.value)
			}
			continue
		}
		if err != nil {
			t.Fatalf("Set(%s, %s) failed: %v", tt.key, tt.value, err)
		}
		got, err := Get(dir, tt.key)
		if err != nil {
			t.Fatalf("Get(%s) failed: %v", tt.key, err)
		}
		if got != tt.want {
			t.Errorf("Get(%s) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestServerURLPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SHELF_SERVER_URL", "")

	if got := GetServerURL(dir); got != DefaultServerURL {
		t.Errorf("default = %q, want %q", got, DefaultServerURL)
	}

	Set(dir, "server_url", "http://file:1")
	if got := GetServerURL(dir); got != "http://file:1" {
		t.Errorf("from file = %q", got)
	}

	t.Setenv("SHELF_SERVER_URL", "http://env:2/")
	if got := GetServerURL(dir); got != "http://env:2" {
		t.Errorf("env override = %q", got)
	}
}

func TestOfflinePrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SHELF_OFFLINE", "")

	if GetOffline(dir) {
		t.Error("default should be online")
	}
	Set(dir, "offline", "true")
	if !GetOffline(dir) {
		t.Error("config offline=true ignored")
	}
	t.Setenv("SHELF_OFFLINE", "0")
	if GetOffline(dir) {
		t.Error("SHELF_OFFLINE=0 should override config")
	}
}

func TestTimeoutsFallBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	if got := GetRequestTimeout(dir); got != DefaultRequestTimeout {
		t.Errorf("request timeout = %v", got)
	}
	Save(dir, &models.Config{RequestTimeout: "garbage", ProbeTimeout: "500ms"})
	if got := GetRequestTimeout(dir); got != DefaultRequestTimeout {
		t.Errorf("invalid request timeout = %v, want default", got)
	}
	if got := GetProbeTimeout(dir); got != 500*time.Millisecond {
		t.Errorf("probe timeout = %v, want 500ms", got)
	}
}
