package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"

	"github.com/marcus/shelf/internal/connectivity"
	"github.com/marcus/shelf/internal/db"
	"github.com/marcus/shelf/internal/models"
	"github.com/shopspring/decimal"
)

var errDown = fmt.Errorf("dial tcp: connection refused: %w", models.ErrNetwork)

// fakeRemote is an in-memory catalog API that counts calls.
type fakeRemote struct {
	mu     sync.Mutex
	books  map[int64]models.Book
	nextID int64
	calls  map[string]int

	down       bool            // every call fails with a network error
	failCreate map[string]bool // titles whose create fails
	failUpdate map[int64]bool  // ids whose update fails
	reassign   bool            // ignore client ids on create
	hardErr    error           // non-network error returned by every call
}

func newFakeRemote(books ...models.Book) *fakeRemote {
	r := &fakeRemote{
		books:      map[int64]models.Book{},
		nextID:     1,
		calls:      map[string]int{},
		failCreate: map[string]bool{},
		failUpdate: map[int64]bool{},
	}
	for _, b := range books {
		r.books[b.ID] = b
		if b.ID >= r.nextID {
			r.nextID = b.ID + 1
		}
	}
	return r
}

func (r *fakeRemote) enter(op string) error {
	r.mu.Lock()
	r.calls[op]++
	r.mu.Unlock()
	if r.hardErr != nil {
		return r.hardErr
	}
	if r.down {
		return errDown
	}
	return nil
}

func (r *fakeRemote) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		n += c
	}
	return n
}

func (r *fakeRemote) count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[op]
}

func (r *fakeRemote) ListBooks(ctx context.Context) ([]models.Book, error) {
	if err := r.enter("list"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Book, 0, len(r.books))
	for _, b := range r.books {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRemote) GetBook(ctx context.Context, id int64) (models.Book, error) {
	if err := r.enter("get"); err != nil {
		return models.Book{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[id]
	if !ok {
		return models.Book{}, fmt.Errorf("GET /books/%d: HTTP 404: %w: %w", id, models.ErrNetwork, models.ErrNotFound)
	}
	return b, nil
}

func (r *fakeRemote) CreateBook(ctx context.Context, b models.Book) (models.Book, error) {
	if err := r.enter("create"); err != nil {
		return models.Book{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreate[b.Title] {
		return models.Book{}, fmt.Errorf("POST /books: HTTP 500: %w", models.ErrNetwork)
	}
	if _, taken := r.books[b.ID]; b.ID == 0 || taken || r.reassign {
		b.ID = r.nextID
	}
	if b.ID >= r.nextID {
		r.nextID = b.ID + 1
	}
	r.books[b.ID] = b
	return b, nil
}

func (r *fakeRemote) UpdateBook(ctx context.Context, id int64, f models.BookFields) (models.Book, error) {
	if err := r.enter("update"); err != nil {
		return models.Book{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failUpdate[id] {
		return models.Book{}, fmt.Errorf("PUT /books/%d: HTTP 500: %w", id, models.ErrNetwork)
	}
	if _, ok := r.books[id]; !ok {
		return models.Book{}, fmt.Errorf("PUT /books/%d: HTTP 404: %w: %w", id, models.ErrNetwork, models.ErrNotFound)
	}
	r.books[id] = f.WithID(id)
	return r.books[id], nil
}

func (r *fakeRemote) DeleteBook(ctx context.Context, id int64) error {
	if err := r.enter("delete"); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[id]; !ok {
		return fmt.Errorf("DELETE /books/%d: HTTP 404: %w: %w", id, models.ErrNetwork, models.ErrNotFound)
	}
	delete(r.books, id)
	return nil
}

// brokenLocal fails every read and write with a storage error.
type brokenLocal struct{ LocalStore }

var errDisk = fmt.Errorf("list books: %w: disk I/O error", models.ErrStorage)

func (brokenLocal) ListBooks(context.Context) ([]models.Book, error) { return nil, errDisk }
func (brokenLocal) GetBook(context.Context, int64) (models.Book, error) {
	return models.Book{}, errDisk
}
func (brokenLocal) CreateBook(context.Context, models.BookFields) (models.Book, error) {
	return models.Book{}, errDisk
}

// togglingProber answers with a value the test can flip.
type togglingProber struct {
	mu     sync.Mutex
	online bool
	calls  int
}

func (p *togglingProber) IsOnline(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.online
}

func (p *togglingProber) set(online bool) {
	p.mu.Lock()
	p.online = online
	p.mu.Unlock()
}

func openLocal(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open local store: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newService(local LocalStore, remote RemoteStore, online bool) *Service {
	return New(local, remote, connectivity.Fixed(online), WithLogger(quietLogger()))
}

func book(id int64, title, price string) models.Book {
	return models.Book{ID: id, Title: title, Price: decimal.RequireFromString(price)}
}

func fieldsOf(title, desc, price string) models.BookFields {
	return models.BookFields{Title: title, Description: desc, Price: decimal.RequireFromString(price)}
}

func mustErrIs(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("err = %v, want %v", err, target)
	}
}

// rekeyFails is a working local store whose re-keys always fail.
type rekeyFails struct{ *db.DB }

func (rekeyFails) RekeyBook(context.Context, int64, int64) error { return errDisk }

// putModified stores b as a cached remote record edited locally.
func putModified(t *testing.T, local *db.DB, b models.Book) {
	t.Helper()
	ctx := context.Background()
	if err := local.PutBook(ctx, b); err != nil {
		t.Fatalf("PutBook: %v", err)
	}
	if _, err := local.UpdateBook(ctx, b.ID, b.Fields()); err != nil {
		t.Fatalf("UpdateBook: %v", err)
	}
}

func pendingOf(t *testing.T, local *db.DB) map[int64]models.Change {
	t.Helper()
	pending, err := local.PendingChanges(context.Background())
	if err != nil {
		t.Fatalf("PendingChanges: %v", err)
	}
	return pending
}
