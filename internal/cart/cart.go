// Package cart is the client-side shopping cart. It is session state: it
// never reaches the catalog stores.
package cart

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/marcus/shelf/internal/models"
	"github.com/shopspring/decimal"
)

// Entry is a book snapshot and a quantity of at least 1.
type Entry struct {
	Book     models.Book `json:"book"`
	Quantity int         `json:"quantity"`
}

// Subtotal is price times quantity.
func (e Entry) Subtotal() decimal.Decimal {
	return e.Book.Price.Mul(decimal.NewFromInt(int64(e.Quantity)))
}

// Cart keeps entries in the order they were first added. Safe for concurrent use.
type Cart struct {
	mu      sync.Mutex
	entries []Entry
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{}
}

func (c *Cart) index(id int64) int {
	for i, e := range c.entries {
		if e.Book.ID == id {
			return i
		}
	}
	return -1
}

// Add puts qty copies of b in the cart, merging with an existing entry.
// Quantities below 1 count as 1.
func (c *Cart) Add(b models.Book, qty int) {
	qty = max(qty, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if i := c.index(b.ID); i >= 0 {
		c.entries[i].Quantity += qty
		return
	}
	c.entries = append(c.entries, Entry{Book: b, Quantity: qty})
}

// Remove drops the entry for id. It reports whether one existed.
func (c *Cart) Remove(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.index(id)
	if i < 0 {
		return false
	}
	c.entries = append(c.entries[:i], c.entries[i+1:]...)
	return true
}

// SetQuantity sets the quantity for id, clamped to at least 1.
func (c *Cart) SetQuantity(id int64, qty int) bool {
	return c.update(id, func(e *Entry) { e.Quantity = max(qty, 1) })
}

// Increment adds one to the quantity for id.
func (c *Cart) Increment(id int64) bool {
	return c.update(id, func(e *Entry) { e.Quantity++ })
}

// Decrement subtracts one from the quantity for id, never going below 1.
func (c *Cart) Decrement(id int64) bool {
	return c.update(id, func(e *Entry) {
		if e.Quantity > 1 {
			e.Quantity--
		}
	})
}

func (c *Cart) update(id int64, fn func(*Entry)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.index(id)
	if i < 0 {
		return false
	}
	fn(&c.entries[i])
	return true
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.mu.Lock()
	c.entries = nil
	c.mu.Unlock()
}

// Entries returns a copy of the entries.
func (c *Cart) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Total is the sum of price times quantity over all entries.
func (c *Cart) Total() decimal.Decimal {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := decimal.Zero
	for _, e := range c.entries {
		total = total.Add(e.Subtotal())
	}
	return total
}

// Count is the number of items, counting quantities.
func (c *Cart) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, e := range c.entries {
		n += e.Quantity
	}
	return n
}

type fileFormat struct {
	Entries []Entry `json:"entries"`
}

// Load reads a saved cart. A missing file is an empty cart.
func Load(path string) (*Cart, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}
		return nil, err
	}

	var f fileFormat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse cart %s: %w", path, err)
	}
	c := New()
	for _, e := range f.Entries {
		c.Add(e.Book, e.Quantity)
	}
	return c, nil
}

// Save writes the cart with a temp file and rename so readers never see a partial file.
func (c *Cart) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(fileFormat{Entries: c.Entries()}, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "cart-*.json.tmp")
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
	return os.Rename(tmpName, path)
}
