// Package remote is the HTTP client for the catalog API's /books resource.
//
// Every failure returned by this package matches models.ErrNetwork:
// transport errors, timeouts, non-2xx responses, unencodable requests
// and undecodable bodies alike. A 404 additionally matches models.ErrNotFound.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/marcus/shelf/internal/models"
)

// DefaultTimeout bounds every request made by a client built with New.
const DefaultTimeout = 10 * time.Second

// Client talks to a json-server style /books API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New creates a client for baseURL (e.g. http://localhost:3000).
func New(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: DefaultTimeout},
	}
}

// WithTimeout returns the client with its per-request timeout replaced.
func (c *Client) WithTimeout(d time.Duration) *Client {
	if d > 0 {
		c.HTTP.Timeout = d
	}
	return c
}

// HTTPError is a non-2xx answer from the server.
type HTTPError struct {
	Method  string
	Path    string
	Status  int
	Code    string
	Message string
}

func (e *HTTPError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.Status, strings.TrimSpace(msg))
}

// Is makes every HTTPError a network error, and 404s also not-found.
func (e *HTTPError) Is(target error) bool {
	switch target {
	case models.ErrNetwork:
		return true
	case models.ErrNotFound:
		return e.Status == http.StatusNotFound
	}
	return false
}

// ListBooks fetches every book.
func (c *Client) ListBooks(ctx context.Context) ([]models.Book, error) {
	var books []models.Book
	if err := c.do(ctx, http.MethodGet, "/books", nil, &books); err != nil {
		return nil, err
	}
	if books == nil {
		books = []models.Book{}
	}
	return books, nil
}

// GetBook fetches a single book.
func (c *Client) GetBook(ctx context.Context, id int64) (models.Book, error) {
	var b models.Book
	err := c.do(ctx, http.MethodGet, bookPath(id), nil, &b)
	return b, err
}

// CreateBook posts a book and returns the stored copy. A non-zero ID is
// sent along; the server keeps it when it is free.
func (c *Client) CreateBook(ctx context.Context, b models.Book) (models.Book, error) {
	var created models.Book
	if err := c.do(ctx, http.MethodPost, "/books", b, &created); err != nil {
		return models.Book{}, err
	}
	if created.ID == 0 {
		return models.Book{}, fmt.Errorf("POST /books: response has no id: %w", models.ErrNetwork)
	}
	return created, nil
}

// UpdateBook replaces a book's fields (PUT).
func (c *Client) UpdateBook(ctx context.Context, id int64, f models.BookFields) (models.Book, error) {
	var updated models.Book
	if err := c.do(ctx, http.MethodPut, bookPath(id), f.WithID(id), &updated); err != nil {
		return models.Book{}, err
	}
	if updated.ID == 0 {
		updated = f.WithID(id)
	}
	return updated, nil
}

// DeleteBook deletes a book.
func (c *Client) DeleteBook(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, bookPath(id), nil, nil)
}

// Ping issues HEAD /books, the same request the connectivity probe uses.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodHead, "/books", nil, nil)
}

func bookPath(id int64) string {
	return fmt.Sprintf("/books/%d", id)
}

// errorBody is the structured error the catalog server writes.
type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: marshal request: %w: %w", method, path, models.ErrNetwork, err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, path, models.ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, path, models.ErrNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w: %w", method, path, models.ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		herr := &HTTPError{Method: method, Path: path, Status: resp.StatusCode, Message: string(respBody)}
		var eb errorBody
		if json.Unmarshal(respBody, &eb) == nil && eb.Error.Code != "" {
			herr.Code, herr.Message = eb.Error.Code, eb.Error.Message
		}
		return herr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("%s %s: decode response: %w: %w", method, path, models.ErrNetwork, err)
		}
	}
	return nil
}

// IsHTTPStatus reports whether err carries an HTTP answer with the given status.
func IsHTTPStatus(err error, status int) bool {
	var herr *HTTPError
	return errors.As(err, &herr) && herr.Status == status
}
