// Package state holds what the UI shows about the catalog: the last known
// list, whether a fetch is in flight or failed, the selected book and the
// connectivity banner.
//
// Every fetch carries a generation number. A result whose generation has
// been superseded, or that arrives after Close, is dropped, so a slow
// request can never overwrite a newer one or touch a dismissed screen.
package state

import (
	"context"
	"slices"
	"sync"

	"github.com/marcus/shelf/internal/models"
)

// Status is a fetch lifecycle state.
type Status int

const (
	Idle Status = iota
	Loading
	Succeeded
	Failed
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Reader is the read side of the catalog service.
type Reader interface {
	GetBooks(ctx context.Context) ([]models.Book, error)
	GetBook(ctx context.Context, id int64) (models.Book, error)
}

// Selection is the independent sub-state for a single book.
type Selection struct {
	Status Status
	ID     int64
	Book   models.Book
	Err    error
}

// Snapshot is an immutable copy of the state.
type Snapshot struct {
	Status Status
	Items  []models.Book
	Err    error
	// Online only drives the banner; routing decisions are made per call elsewhere.
	Online    bool
	Selection Selection
}

// Catalog is safe for concurrent use.
type Catalog struct {
	reader Reader

	mu      sync.Mutex
	snap    Snapshot
	listGen uint64
	selGen  uint64
	closed  bool
	subs    map[int]func(Snapshot)
	nextSub int
}

// New returns an idle catalog state reading through r.
func New(r Reader) *Catalog {
	return &Catalog{reader: r, subs: map[int]func(Snapshot){}}
}

// Refresh reloads the list. The previous items stay visible while loading
// and after a failure. It returns the fetch error whether or not the
// result was applied.
func (c *Catalog) Refresh(ctx context.Context) error {
	gen, ok := c.begin(func(s *Snapshot) uint64 {
		c.listGen++
		s.Status = Loading
		return c.listGen
	})
	if !ok {
		return nil
	}

	items, err := c.reader.GetBooks(ctx)

	c.finish(func(s *Snapshot) bool {
		if gen != c.listGen {
			return false
		}
		if err != nil {
			s.Status, s.Err = Failed, err
			return true
		}
		s.Status, s.Items, s.Err = Succeeded, items, nil
		return true
	})
	return err
}

// Select loads one book into the selection sub-state.
func (c *Catalog) Select(ctx context.Context, id int64) error {
	gen, ok := c.begin(func(s *Snapshot) uint64 {
		c.selGen++
		s.Selection = Selection{Status: Loading, ID: id, Book: s.Selection.Book}
		return c.selGen
	})
	if !ok {
		return nil
	}

	b, err := c.reader.GetBook(ctx, id)

	c.finish(func(s *Snapshot) bool {
		if gen != c.selGen {
			return false
		}
		if err != nil {
			s.Selection = Selection{Status: Failed, ID: id, Err: err}
			return true
		}
		s.Selection = Selection{Status: Succeeded, ID: id, Book: b}
		return true
	})
	return err
}

// ClearSelection resets the selection and drops any in-flight Select.
func (c *Catalog) ClearSelection() {
	c.finish(func(s *Snapshot) bool {
		c.selGen++
		s.Selection = Selection{}
		return true
	})
}

// SetOnline updates the connectivity banner.
func (c *Catalog) SetOnline(online bool) {
	c.finish(func(s *Snapshot) bool {
		if s.Online == online {
			return false
		}
		s.Online = online
		return true
	})
}

// Snapshot returns a copy of the current state.
func (c *Catalog) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyLocked()
}

// Subscribe registers fn to receive a snapshot after every change.
// The returned func unregisters it.
func (c *Catalog) Subscribe(fn func(Snapshot)) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// Close detaches the state from its screen. Results arriving afterwards
// are ignored and subscribers are dropped.
func (c *Catalog) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.subs = map[int]func(Snapshot){}
}

func (c *Catalog) begin(mutate func(*Snapshot) uint64) (uint64, bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return 0, false
	}
	gen := mutate(&c.snap)
	snap, subs := c.copyLocked(), c.subscribersLocked()
	c.mu.Unlock()

	notify(subs, snap)
	return gen, true
}

func (c *Catalog) finish(apply func(*Snapshot) bool) {
	c.mu.Lock()
	if c.closed || !apply(&c.snap) {
		c.mu.Unlock()
		return
	}
	snap, subs := c.copyLocked(), c.subscribersLocked()
	c.mu.Unlock()

	notify(subs, snap)
}

func (c *Catalog) copyLocked() Snapshot {
	s := c.snap
	s.Items = slices.Clone(c.snap.Items)
	return s
}

func (c *Catalog) subscribersLocked() []func(Snapshot) {
	subs := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		fn(snap)
	}
}
