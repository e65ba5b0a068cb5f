package models

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// Book is one catalog record. ID is assigned by whichever store creates it first.
type Book struct {
	ID          int64
	Title       string
	Description string
	Price       decimal.Decimal
	Image       string
}

// Change is the unsynced state of a local record.
type Change int

const (
	// Synced records match what the remote held when they were last written.
	Synced Change = iota
	// ChangeCreated marks a record added locally that the remote has never seen.
	ChangeCreated
	// ChangeModified marks a cached remote record edited locally.
	ChangeModified
)

// BookFields holds the mutable part of a book: everything except the ID.
// Create and update operations take fields; the ID is never edited.
type BookFields struct {
	Title       string
	Description string
	Price       decimal.Decimal
	Image       string
}

// Fields returns the mutable fields of the book.
func (b Book) Fields() BookFields {
	return BookFields{
		Title:       b.Title,
		Description: b.Description,
		Price:       b.Price,
		Image:       b.Image,
	}
}

// WithID builds a book from the fields and the given ID.
func (f BookFields) WithID(id int64) Book {
	return Book{
		ID:          id,
		Title:       f.Title,
		Description: f.Description,
		Price:       f.Price,
		Image:       f.Image,
	}
}

// SameFields reports whether two books carry the same field values.
// IDs are not compared. Prices compare numerically, so 12 equals 12.00.
func (b Book) SameFields(o Book) bool {
	return b.Title == o.Title &&
		b.Description == o.Description &&
		b.Image == o.Image &&
		b.Price.Equal(o.Price)
}

// Validate checks the fields before they reach either store.
func (f BookFields) Validate() error {
	if strings.TrimSpace(f.Title) == "" {
		return &ValidationError{Field: "title", Message: "title is required"}
	}
	if !f.Price.IsPositive() {
		return &ValidationError{Field: "price", Message: fmt.Sprintf("price must be greater than 0 (got %s)", f.Price.String())}
	}
	if f.Image != "" {
		if _, err := url.Parse(f.Image); err != nil {
			return &ValidationError{Field: "image", Message: fmt.Sprintf("image is not a valid URI: %v", err)}
		}
	}
	return nil
}

// ParsePrice parses a decimal price string such as "9.99".
func ParsePrice(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, &ValidationError{Field: "price", Message: fmt.Sprintf("invalid price %q", s)}
	}
	return d, nil
}

// bookJSON is the wire shape shared by the remote API and JSON output.
// Price is a JSON number, not a quoted string.
type bookJSON struct {
	ID          int64       `json:"id,omitempty"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Price       json.Number `json:"price"`
	Image       string      `json:"image"`
}

// MarshalJSON encodes the book with price as a JSON number.
func (b Book) MarshalJSON() ([]byte, error) {
	return json.Marshal(bookJSON{
		ID:          b.ID,
		Title:       b.Title,
		Description: b.Description,
		Price:       json.Number(b.Price.String()),
		Image:       b.Image,
	})
}

// UnmarshalJSON accepts price as a number or a numeric string.
func (b *Book) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID          int64           `json:"id"`
		Title       string          `json:"title"`
		Description string          `json:"description"`
		Price       decimal.Decimal `json:"price"`
		Image       string          `json:"image"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*b = Book{
		ID:          raw.ID,
		Title:       raw.Title,
		Description: raw.Description,
		Price:       raw.Price,
		Image:       raw.Image,
	}
	return nil
}

// MarshalJSON encodes fields with the same shape as a book without an id.
func (f BookFields) MarshalJSON() ([]byte, error) {
	return f.WithID(0).MarshalJSON()
}

// UnmarshalJSON decodes fields from a book-shaped object, ignoring any id.
func (f *BookFields) UnmarshalJSON(data []byte) error {
	var b Book
	if err := b.UnmarshalJSON(data); err != nil {
		return err
	}
	*f = b.Fields()
	return nil
}

// Config holds the client settings stored in .shelf/config.json
type Config struct {
	ServerURL      string `json:"server_url,omitempty"`
	RequestTimeout string `json:"request_timeout,omitempty"` // duration string, default "10s"
	ProbeTimeout   string `json:"probe_timeout,omitempty"`   // duration string, default "2s"
	Offline        bool   `json:"offline,omitempty"`         // force local store
}
