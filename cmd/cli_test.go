package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marcus/shelf/internal/api"
	"github.com/marcus/shelf/internal/cart"
	"github.com/marcus/shelf/internal/db"
	"github.com/marcus/shelf/internal/models"
	"github.com/marcus/shelf/internal/serverdb"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resetFlags puts every flag of c and its children back to its default.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, child := range c.Commands() {
		resetFlags(child)
	}
}

// runCLI executes the root command in dir and returns what it printed on stdout.
func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()

	oldOverride, oldLog := baseDirOverride, logOutput
	baseDirOverride = &dir
	logOutput = io.Discard
	resetFlags(rootCmd)
	t.Cleanup(func() {
		baseDirOverride, logOutput = oldOverride, oldLog
		resetFlags(rootCmd)
	})

	oldOut := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w

	done := make(chan string)
	go func() {
		var buf bytes.Buffer
		buf.ReadFrom(r)
		done <- buf.String()
	}()

	rootCmd.SetArgs(args)
	runErr := rootCmd.ExecuteContext(context.Background())

	w.Close()
	os.Stdout = oldOut
	return <-done, runErr
}

func mustRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, dir, args...)
	if err != nil {
		t.Fatalf("shelf %s: %v\noutput: %s", strings.Join(args, " "), err, out)
	}
	return out
}

func listJSON(t *testing.T, dir string, args ...string) []models.Book {
	t.Helper()
	out := mustRun(t, dir, append([]string{"list", "--json"}, args...)...)
	var books []models.Book
	if err := json.Unmarshal([]byte(out), &books); err != nil {
		t.Fatalf("parse list output %q: %v", out, err)
	}
	return books
}

// startServer runs a real catalog API on a loopback port.
func startServer(t *testing.T) (string, *serverdb.ServerDB) {
	t.Helper()
	store, err := serverdb.Open(filepath.Join(t.TempDir(), "server.db"))
	if err != nil {
		t.Fatalf("open server db: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv, err := api.NewServer(api.Config{
		ListenAddr:     "127.0.0.1:0",
		RateLimitRead:  100000,
		RateLimitWrite: 100000,
	}, store)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	addr, err := srv.Start()
	if err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})
	return "http://" + addr, store
}

func TestAddListShowOffline(t *testing.T) {
	dir := t.TempDir()

	out := mustRun(t, dir, "add", "--offline", "--title", "Dune", "--price", "9.99", "-d", "Desert planet")
	if !strings.Contains(out, "CREATED #1") {
		t.Errorf("add output = %q", out)
	}

	books := listJSON(t, dir, "--offline")
	if len(books) != 1 {
		t.Fatalf("got %d books, want 1", len(books))
	}
	if books[0].ID != 1 || books[0].Title != "Dune" || !books[0].Price.Equal(decimal.RequireFromString("9.99")) {
		t.Errorf("listed %+v", books[0])
	}

	out = mustRun(t, dir, "show", "1", "--offline")
	if !strings.Contains(out, "Dune") || !strings.Contains(out, "$9.99") {
		t.Errorf("show output = %q", out)
	}

	if _, err := os.Stat(db.Path(dir)); err != nil {
		t.Errorf("local database not created: %v", err)
	}
}

func TestListEmpty(t *testing.T) {
	out := mustRun(t, t.TempDir(), "list", "--offline")
	if !strings.Contains(out, "No books") {
		t.Errorf("list output = %q", out)
	}
}

func TestAddValidation(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
	}{
		{"missing title", []string{"add", "--offline", "--price", "3"}},
		{"missing price", []string{"add", "--offline", "--title", "Free"}},
		{"negative price", []string{"add", "--offline", "--title", "Owed", "--price", "-1"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := runCLI(t, dir, tc.args...)
			if !errors.Is(err, models.ErrValidation) {
				t.Errorf("err = %v, want validation error", err)
			}
		})
	}

	if _, err := runCLI(t, dir, "add", "--offline", "--title", "X", "--price", "cheap"); err == nil {
		t.Error("non-numeric --price should fail flag parsing")
	}
	if books := listJSON(t, dir, "--offline"); len(books) != 0 {
		t.Errorf("rejected adds stored %d books", len(books))
	}
}

func TestEditAppliesOnlyChangedFlags(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "add", "--offline", "--title", "Dune", "--price", "9.99", "--image", "https://img/dune.png")

	mustRun(t, dir, "edit", "1", "--offline", "--price", "12.50")

	out := mustRun(t, dir, "show", "1", "--offline", "--json")
	var got models.Book
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("parse show: %v", err)
	}
	if got.Title != "Dune" || got.Image != "https://img/dune.png" {
		t.Errorf("unchanged fields were touched: %+v", got)
	}
	if !got.Price.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("price = %s, want 12.5", got.Price)
	}

	if _, err := runCLI(t, dir, "edit", "1", "--offline"); !errors.Is(err, models.ErrValidation) {
		t.Errorf("edit without flags: err = %v, want validation error", err)
	}
	if _, err := runCLI(t, dir, "edit", "42", "--offline", "--title", "Ghost"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("edit missing: err = %v, want not found", err)
	}
}

func TestDeleteCommand(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "add", "--offline", "--title", "A", "--price", "1")
	mustRun(t, dir, "add", "--offline", "--title", "B", "--price", "2")

	out, err := runCLI(t, dir, "delete", "1", "99", "--offline")
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("err = %v, want not found for #99", err)
	}
	if !strings.Contains(out, "DELETED #1") {
		t.Errorf("delete output = %q", out)
	}

	books := listJSON(t, dir, "--offline")
	if len(books) != 1 || books[0].ID != 2 {
		t.Errorf("remaining books = %+v, want only #2", books)
	}

	if _, err := runCLI(t, dir, "delete", "abc", "--offline"); !errors.Is(err, models.ErrValidation) {
		t.Errorf("bad id: err = %v, want validation error", err)
	}
}

func TestOfflineAndOnlineAreExclusive(t *testing.T) {
	if _, err := runCLI(t, t.TempDir(), "list", "--offline", "--online"); err == nil {
		t.Error("expected error for --offline with --online")
	}
}

func TestSyncOfflineFails(t *testing.T) {
	_, err := runCLI(t, t.TempDir(), "sync", "--offline")
	if !errors.Is(err, models.ErrNetwork) {
		t.Errorf("err = %v, want network error", err)
	}
}

func TestSyncAndPullAgainstServer(t *testing.T) {
	dir := t.TempDir()
	url, store := startServer(t)

	mustRun(t, dir, "add", "--offline", "--title", "Dune", "--price", "9.99")
	mustRun(t, dir, "add", "--offline", "--title", "Emma", "--price", "4.50")

	out := mustRun(t, dir, "sync", "--server", url)
	if !strings.Contains(out, "2 created") {
		t.Errorf("sync output = %q", out)
	}

	remote, err := store.ListBooks()
	if err != nil {
		t.Fatalf("list server books: %v", err)
	}
	if len(remote) != 2 || remote[0].Title != "Dune" || remote[1].ID != 2 {
		t.Fatalf("server books = %+v", remote)
	}

	// A second sync has nothing to write.
	out = mustRun(t, dir, "sync", "--server", url, "--json")
	var res map[string]any
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("parse sync json %q: %v", out, err)
	}
	if res["ok"] != true || res["created"] != float64(0) || res["unchanged"] != float64(2) {
		t.Errorf("second sync = %v", res)
	}

	if _, err := store.CreateBook(models.Book{Title: "Ulysses", Price: decimal.NewFromInt(15)}); err != nil {
		t.Fatalf("seed server: %v", err)
	}
	out = mustRun(t, dir, "pull", "--server", url)
	if !strings.Contains(out, "1 stored") {
		t.Errorf("pull output = %q", out)
	}
	if books := listJSON(t, dir, "--offline"); len(books) != 3 || books[2].Title != "Ulysses" {
		t.Errorf("local books after pull = %+v", books)
	}
}

func TestFullSyncAndOnlineDelete(t *testing.T) {
	dir := t.TempDir()
	url, store := startServer(t)

	if _, err := store.CreateBook(models.Book{Title: "Ulysses", Price: decimal.NewFromInt(15)}); err != nil {
		t.Fatalf("seed server: %v", err)
	}
	mustRun(t, dir, "add", "--offline", "--title", "Dune", "--price", "9.99")

	out := mustRun(t, dir, "sync", "--full", "--server", url, "--json")
	var res struct {
		OK     bool           `json:"ok"`
		Upload map[string]any `json:"upload"`
		Pull   map[string]any `json:"pull"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("parse sync json %q: %v", out, err)
	}
	if !res.OK || res.Upload["created"] != float64(1) || res.Upload["rekeyed"] != float64(1) || res.Pull["stored"] != float64(1) {
		t.Fatalf("full sync = %+v", res)
	}
	local := listJSON(t, dir, "--offline")
	if len(local) != 2 {
		t.Fatalf("local books = %+v, want both", local)
	}

	// Deleting online removes the local copy too, so sync cannot bring it back.
	mustRun(t, dir, "delete", "2", "--server", url)
	mustRun(t, dir, "sync", "--server", url)
	if b, err := store.GetBook(2); err != nil || b != nil {
		t.Errorf("server book 2 after sync = %+v, %v, want deleted", b, err)
	}
	if books := listJSON(t, dir, "--offline"); len(books) != 1 || books[0].Title != "Ulysses" {
		t.Errorf("local books = %+v, want only Ulysses", books)
	}
}

func TestOnlineUpdateReachesServer(t *testing.T) {
	dir := t.TempDir()
	url, store := startServer(t)

	if _, err := store.CreateBook(models.Book{Title: "Dune", Price: decimal.RequireFromString("9.99")}); err != nil {
		t.Fatalf("seed server: %v", err)
	}
	mustRun(t, dir, "edit", "1", "--server", url, "--price", "11")

	b, err := store.GetBook(1)
	if err != nil || b == nil {
		t.Fatalf("get server book: %v", err)
	}
	if !b.Price.Equal(decimal.NewFromInt(11)) {
		t.Errorf("server price = %s, want 11", b.Price)
	}

	out := mustRun(t, dir, "show", "1", "--server", url, "--json")
	var got models.Book
	json.Unmarshal([]byte(out), &got)
	if !got.Price.Equal(decimal.NewFromInt(11)) {
		t.Errorf("online show price = %s, want 11", got.Price)
	}
}

func TestUnreachableServerFallsBackToLocal(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "add", "--offline", "--title", "Local", "--price", "2")

	// --online skips the probe, so the remote call fails and the local store answers.
	books := listJSON(t, dir, "--online", "--server", "http://127.0.0.1:1")
	if len(books) != 1 || books[0].Title != "Local" {
		t.Errorf("fallback list = %+v", books)
	}
}

func TestCartCommands(t *testing.T) {
	dir := t.TempDir()
	mustRun(t, dir, "add", "--offline", "--title", "Dune", "--price", "9.99")
	mustRun(t, dir, "add", "--offline", "--title", "Emma", "--price", "5")

	mustRun(t, dir, "cart", "add", "1", "--offline", "--qty", "2")
	mustRun(t, dir, "cart", "add", "2", "--offline")
	mustRun(t, dir, "cart", "inc", "2")
	mustRun(t, dir, "cart", "dec", "1")

	c, err := cart.Load(filepath.Join(dir, cartFile))
	if err != nil {
		t.Fatalf("load cart: %v", err)
	}
	if c.Count() != 3 {
		t.Errorf("cart count = %d, want 3", c.Count())
	}
	if want := decimal.RequireFromString("19.99"); !c.Total().Equal(want) {
		t.Errorf("cart total = %s, want %s", c.Total(), want)
	}

	out := mustRun(t, dir, "cart", "show")
	if !strings.Contains(out, "Total: $19.99") {
		t.Errorf("cart show = %q", out)
	}

	mustRun(t, dir, "cart", "qty", "1", "4")
	mustRun(t, dir, "cart", "remove", "2")
	out = mustRun(t, dir, "cart", "--json")
	var shown struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("parse cart json %q: %v", out, err)
	}
	if shown.Count != 4 {
		t.Errorf("cart count = %d, want 4", shown.Count)
	}

	if _, err := runCLI(t, dir, "cart", "remove", "2"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("remove absent entry: err = %v, want not found", err)
	}
	if _, err := runCLI(t, dir, "cart", "qty", "1", "0"); !errors.Is(err, models.ErrValidation) {
		t.Errorf("qty 0: err = %v, want validation error", err)
	}
	if _, err := runCLI(t, dir, "cart", "add", "7", "--offline"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("add missing book: err = %v, want not found", err)
	}

	mustRun(t, dir, "cart", "clear")
	if out := mustRun(t, dir, "cart", "show"); !strings.Contains(out, "empty") {
		t.Errorf("cleared cart = %q", out)
	}
}

func TestConfigCommands(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SHELF_SERVER_URL", "")

	mustRun(t, dir, "config", "set", "server_url", "http://books.test:3000/")
	if out := mustRun(t, dir, "config", "get", "server_url"); strings.TrimSpace(out) != "http://books.test:3000" {
		t.Errorf("config get = %q", out)
	}

	if _, err := runCLI(t, dir, "config", "set", "colour", "blue"); err == nil {
		t.Error("unknown key should fail")
	}

	out := mustRun(t, dir, "config", "list", "--json")
	var entries []struct {
		Key       string `json:"key"`
		Effective string `json:"effective"`
	}
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("parse config list %q: %v", out, err)
	}
	found := false
	for _, e := range entries {
		if e.Key == "request_timeout" && e.Effective != "10s" {
			t.Errorf("request_timeout effective = %q, want 10s", e.Effective)
		}
		if e.Key == "server_url" {
			found = e.Effective == "http://books.test:3000"
		}
	}
	if !found {
		t.Errorf("server_url missing from config list: %s", out)
	}
}

func TestConfigOfflineForcesLocal(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SHELF_OFFLINE", "")
	mustRun(t, dir, "config", "set", "offline", "true")

	out := mustRun(t, dir, "status", "--json", "--server", "http://127.0.0.1:1")
	var st map[string]any
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("parse status %q: %v", out, err)
	}
	if st["online"] != false || st["local_books"] != float64(0) {
		t.Errorf("status = %v", st)
	}
}

func TestPriceFlag(t *testing.T) {
	var p priceFlag
	if p.Type() != "decimal" || p.String() != "" {
		t.Errorf("zero flag: type %q value %q", p.Type(), p.String())
	}
	if err := p.Set("9.90"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !p.set || p.String() != "9.9" {
		t.Errorf("after Set: %+v %q", p, p.String())
	}
	if err := p.Set("nine"); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Set(nine) = %v, want validation error", err)
	}
	if err := p.Set(""); err != nil || p.set {
		t.Errorf("Set(\"\") should clear: %v %+v", err, p)
	}
}

func TestParseID(t *testing.T) {
	for _, s := range []string{"0", "-3", "x", ""} {
		if _, err := parseID(s); !errors.Is(err, models.ErrValidation) {
			t.Errorf("parseID(%q) err = %v", s, err)
		}
	}
	if id, err := parseID("12"); err != nil || id != 12 {
		t.Errorf("parseID(12) = %d, %v", id, err)
	}
}

func TestUnknownFlagHints(t *testing.T) {
	dir := t.TempDir()

	_, err := runCLI(t, dir, "add", "--offline", "--cost", "3")
	if err == nil || !strings.Contains(err.Error(), "--price") {
		t.Errorf("--cost error = %v, want hint for --price", err)
	}

	_, err = runCLI(t, dir, "add", "--offline", "--titel", "x")
	if err == nil || !strings.Contains(err.Error(), "did you mean --title") {
		t.Errorf("--titel error = %v, want suggestion", err)
	}

	_, err = runCLI(t, dir, "config", "get", "server_ur")
	if err == nil || !strings.Contains(err.Error(), "did you mean server_url") {
		t.Errorf("config key error = %v, want suggestion", err)
	}
}
