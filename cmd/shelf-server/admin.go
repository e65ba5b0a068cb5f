package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/marcus/shelf/internal/api"
	"github.com/marcus/shelf/internal/serverdb"
)

func runAdmin(args []string) {
	if len(args) == 0 {
		printAdminUsage()
		os.Exit(1)
	}

	var err error
	switch args[0] {
	case "seed":
		err = runAdminSeed(args[1:], os.Stdout)
	case "rate-limits":
		err = runAdminRateLimits(args[1:], os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "unknown admin command: %s\n", args[0])
		printAdminUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printAdminUsage() {
	fmt.Fprintln(os.Stderr, `Usage: shelf-server admin <command> [flags]

Commands:
  seed         Load books from a JSON file ({"books": [...]} or a bare array)
  rate-limits  List recent rate limit rejections`)
}

func openDB(dbPath string) (*serverdb.ServerDB, error) {
	if dbPath == "" {
		dbPath = api.LoadConfig().DBPath
	}
	store, err := serverdb.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return store, nil
}

// seedFile accepts both the json-server layout and a plain array.
type seedFile struct {
	Books []json.RawMessage `json:"books"`
}

func runAdminSeed(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("admin seed", flag.ContinueOnError)
	file := fs.String("file", "", "path to the seed JSON file")
	dbPath := fs.String("db", "", "path to the catalog db (default: from SHELF_DB_PATH or ./data/shelf.db)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *file == "" {
		return errors.New("--file is required")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		return err
	}
	books, err := parseSeed(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", *file, err)
	}

	store, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	var created, skipped int
	for _, b := range books {
		if err := b.Fields().Validate(); err != nil {
			fmt.Fprintf(out, "skip %q: %v\n", b.Title, err)
			skipped++
			continue
		}
		if _, err := store.CreateBook(b); err != nil {
			if errors.Is(err, serverdb.ErrConflict) {
				fmt.Fprintf(out, "skip #%d: already exists\n", b.ID)
				skipped++
				continue
			}
			return err
		}
		created++
	}
	fmt.Fprintf(out, "seeded %d books (%d skipped)\n", created, skipped)
	return nil
}

func runAdminRateLimits(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("admin rate-limits", flag.ContinueOnError)
	ip := fs.String("ip", "", "only show events for this client IP")
	limit := fs.Int("limit", 50, "maximum number of events")
	dbPath := fs.String("db", "", "path to the catalog db (default: from SHELF_DB_PATH or ./data/shelf.db)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := openDB(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	events, err := store.ListRateLimitEvents(*ip, *limit)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		fmt.Fprintln(out, "no rate limit events")
		return nil
	}
	for _, e := range events {
		fmt.Fprintf(out, "%s  %-15s  %s\n", e.CreatedAt, e.IP, e.EndpointClass)
	}
	return nil
}
