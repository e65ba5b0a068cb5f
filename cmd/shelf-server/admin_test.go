package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marcus/shelf/internal/serverdb"
)

func TestParseSeedLayouts(t *testing.T) {
	tests := []struct {
		name string
		data string
		want int
	}{
		{"json-server", `{"books":[{"id":1,"title":"A","price":1},{"title":"B","price":"2.50"}]}`, 2},
		{"array", `[{"title":"A","price":1}]`, 1},
		{"empty", `{"books":[]}`, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			books, err := parseSeed([]byte(tc.data))
			if err != nil {
				t.Fatalf("parseSeed: %v", err)
			}
			if len(books) != tc.want {
				t.Fatalf("expected %d books, got %d", tc.want, len(books))
			}
		})
	}

	if _, err := parseSeed([]byte(`{"books":[{"price":"x"}]}`)); err == nil {
		t.Fatal("expected error for bad price")
	}
}

func TestAdminSeed(t *testing.T) {
	dir := t.TempDir()
	seed := filepath.Join(dir, "db.json")
	dbPath := filepath.Join(dir, "shelf.db")
	os.WriteFile(seed, []byte(`{"books":[
		{"id":3,"title":"Kept","price":4.5},
		{"title":"","price":1},
		{"title":"Next","price":2}
	]}`), 0644)

	var out bytes.Buffer
	if err := runAdminSeed([]string{"--file", seed, "--db", dbPath}, &out); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !strings.Contains(out.String(), "seeded 2 books (1 skipped)") {
		t.Fatalf("unexpected output %q", out.String())
	}

	// Re-seeding skips the taken id.
	out.Reset()
	if err := runAdminSeed([]string{"--file", seed, "--db", dbPath}, &out); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	if !strings.Contains(out.String(), "skip #3: already exists") {
		t.Fatalf("expected conflict skip, got %q", out.String())
	}

	store, err := serverdb.Open(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	b, _ := store.GetBook(3)
	if b == nil || b.Title != "Kept" {
		t.Fatalf("expected book 3 kept, got %+v", b)
	}
}

func TestAdminSeedRequiresFile(t *testing.T) {
	if err := runAdminSeed(nil, &bytes.Buffer{}); err == nil {
		t.Fatal("expected error without --file")
	}
}

func TestAdminRateLimitsEmpty(t *testing.T) {
	var out bytes.Buffer
	dbPath := filepath.Join(t.TempDir(), "shelf.db")
	if err := runAdminRateLimits([]string{"--db", dbPath}, &out); err != nil {
		t.Fatalf("rate-limits: %v", err)
	}
	if !strings.Contains(out.String(), "no rate limit events") {
		t.Fatalf("unexpected output %q", out.String())
	}
}
