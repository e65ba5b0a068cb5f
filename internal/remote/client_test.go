package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/marcus/shelf/internal/models"
	"github.com/shopspring/decimal"
)

func TestListBooksDecodesNumberPrices(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/books" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		io.WriteString(w, `[{"id":1,"title":"Dune","description":"","price":9.99,"image":""}]`)
	}))
	defer ts.Close()

	books, err := New(ts.URL).ListBooks(context.Background())
	if err != nil {
		t.Fatalf("ListBooks failed: %v", err)
	}
	if len(books) != 1 || books[0].ID != 1 || !books[0].Price.Equal(decimal.RequireFromString("9.99")) {
		t.Errorf("ListBooks = %+v", books)
	}
}

func TestCreateBookSendsIDAndBody(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":12,"title":"A","description":"","price":3,"image":""}`)
	}))
	defer ts.Close()

	b := models.Book{ID: 5, Title: "A", Price: decimal.NewFromInt(3)}
	created, err := New(ts.URL).CreateBook(context.Background(), b)
	if err != nil {
		t.Fatalf("CreateBook failed: %v", err)
	}
	if created.ID != 12 {
		t.Errorf("created id = %d, want server id 12", created.ID)
	}
	if got["id"] != float64(5) || got["title"] != "A" {
		t.Errorf("request body = %v", got)
	}
}

func TestNon2xxIsNetworkError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":{"code":"internal","message":"boom"}}`)
	}))
	defer ts.Close()

	err := New(ts.URL).DeleteBook(context.Background(), 1)
	if !errors.Is(err, models.ErrNetwork) {
		t.Fatalf("DeleteBook = %v, want ErrNetwork", err)
	}
	if errors.Is(err, models.ErrNotFound) {
		t.Error("500 should not match ErrNotFound")
	}
	var herr *HTTPError
	if !errors.As(err, &herr) || herr.Code != "internal" || herr.Message != "boom" {
		t.Errorf("HTTPError = %+v", herr)
	}
}

func TestNotFoundMatchesBoth(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	_, err := New(ts.URL).GetBook(context.Background(), 9)
	if !errors.Is(err, models.ErrNetwork) || !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("GetBook = %v, want ErrNetwork and ErrNotFound", err)
	}
	if !IsHTTPStatus(err, http.StatusNotFound) {
		t.Error("IsHTTPStatus(404) = false")
	}
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	if err := New(url).Ping(context.Background()); !errors.Is(err, models.ErrNetwork) {
		t.Fatalf("Ping on closed server = %v, want ErrNetwork", err)
	}
}

func TestTimeoutIsNetworkError(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer ts.Close()
	defer close(release)

	c := New(ts.URL).WithTimeout(50 * time.Millisecond)
	if _, err := c.ListBooks(context.Background()); !errors.Is(err, models.ErrNetwork) {
		t.Fatalf("ListBooks = %v, want ErrNetwork", err)
	}
}

func TestUndecodableBodyIsNetworkError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>captive portal</html>")
	}))
	defer ts.Close()

	_, err := New(ts.URL).ListBooks(context.Background())
	if !errors.Is(err, models.ErrNetwork) {
		t.Fatalf("ListBooks = %v, want ErrNetwork", err)
	}
}

func TestUpdateBookUsesPut(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || !strings.HasSuffix(r.URL.Path, "/books/4") {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		w.Write(body)
	}))
	defer ts.Close()

	f := models.BookFields{Title: "T", Price: decimal.RequireFromString("2.5")}
	b, err := New(ts.URL+"/").UpdateBook(context.Background(), 4, f)
	if err != nil {
		t.Fatalf("UpdateBook failed: %v", err)
	}
	if b.ID != 4 || !b.Price.Equal(f.Price) {
		t.Errorf("UpdateBook = %+v", b)
	}
}

func TestUnencodableRequestIsNetworkError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	}))
	defer ts.Close()

	err := New(ts.URL).do(context.Background(), http.MethodPost, "/books", map[string]any{"bad": make(chan int)}, nil)
	if !errors.Is(err, models.ErrNetwork) {
		t.Fatalf("err = %v, want ErrNetwork", err)
	}
	var jsonErr *json.UnsupportedTypeError
	if !errors.As(err, &jsonErr) {
		t.Errorf("err = %v, want the encoding error kept", err)
	}
}
