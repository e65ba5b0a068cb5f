// Package catalog routes every catalog operation to the remote API or the
// local store.
//
// Each call probes connectivity afresh. Online calls go to the remote
// API; a failure that matches models.ErrNetwork is retried exactly once
// against the local store. Offline calls never touch the remote. Storage,
// validation and not-found errors from the local store are returned to the
// caller unchanged.
//
// Successful remote writes are copied into the local store as synced
// records, so the cache never holds a version older than one this client
// wrote online. Local writes are marked pending until Sync uploads them.
package catalog

import (
	"context"
	"errors"
	"log/slog"

	"github.com/marcus/shelf/internal/models"
)

// LocalStore is the on-device store. *db.DB implements it.
type LocalStore interface {
	ListBooks(ctx context.Context) ([]models.Book, error)
	GetBook(ctx context.Context, id int64) (models.Book, error)
	CreateBook(ctx context.Context, f models.BookFields) (models.Book, error)
	UpdateBook(ctx context.Context, id int64, f models.BookFields) (bool, error)
	DeleteBook(ctx context.Context, id int64) (bool, error)
	PutBook(ctx context.Context, b models.Book) error
	RekeyBook(ctx context.Context, from, to int64) error
	RelocateBook(ctx context.Context, id int64) (int64, error)
	PendingChanges(ctx context.Context) (map[int64]models.Change, error)
	MarkSynced(ctx context.Context, id int64) error
}

// RemoteStore is the catalog API. *remote.Client implements it.
// Failures that should trigger the local fallback must match models.ErrNetwork.
type RemoteStore interface {
	ListBooks(ctx context.Context) ([]models.Book, error)
	GetBook(ctx context.Context, id int64) (models.Book, error)
	CreateBook(ctx context.Context, b models.Book) (models.Book, error)
	UpdateBook(ctx context.Context, id int64, f models.BookFields) (models.Book, error)
	DeleteBook(ctx context.Context, id int64) error
}

// Prober reports whether the remote is usable right now.
type Prober interface {
	IsOnline(ctx context.Context) bool
}

// Service is the single entry point the UI uses for catalog data.
// It holds no per-call state and is safe for concurrent use.
type Service struct {
	local  LocalStore
	remote RemoteStore
	prober Prober
	log    *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger used for routing and sync diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// New builds a Service over the given stores.
func New(local LocalStore, remote RemoteStore, prober Prober, opts ...Option) *Service {
	s := &Service{
		local:  local,
		remote: remote,
		prober: prober,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Online exposes the connectivity probe for status displays.
func (s *Service) Online(ctx context.Context) bool {
	return s.prober.IsOnline(ctx)
}

// GetBooks lists the catalog.
func (s *Service) GetBooks(ctx context.Context) ([]models.Book, error) {
	return route(ctx, s, "list",
		s.remote.ListBooks,
		s.local.ListBooks,
	)
}

// GetBook returns one book or an error matching models.ErrNotFound.
func (s *Service) GetBook(ctx context.Context, id int64) (models.Book, error) {
	return route(ctx, s, "get",
		func(ctx context.Context) (models.Book, error) { return s.remote.GetBook(ctx, id) },
		func(ctx context.Context) (models.Book, error) { return s.local.GetBook(ctx, id) },
	)
}

// AddBook validates and stores a new book, returning it with its id.
func (s *Service) AddBook(ctx context.Context, f models.BookFields) (models.Book, error) {
	if err := f.Validate(); err != nil {
		return models.Book{}, err
	}
	return route(ctx, s, "add",
		func(ctx context.Context) (models.Book, error) {
			b, err := s.remote.CreateBook(ctx, f.WithID(0))
			if err == nil {
				s.cacheCreated(ctx, b)
			}
			return b, err
		},
		func(ctx context.Context) (models.Book, error) { return s.local.CreateBook(ctx, f) },
	)
}

// UpdateBook validates and replaces a book's fields.
func (s *Service) UpdateBook(ctx context.Context, id int64, f models.BookFields) (models.Book, error) {
	if err := f.Validate(); err != nil {
		return models.Book{}, err
	}
	return route(ctx, s, "update",
		func(ctx context.Context) (models.Book, error) {
			b, err := s.remote.UpdateBook(ctx, id, f)
			if err == nil {
				s.cache(ctx, "update", b)
			}
			return b, err
		},
		func(ctx context.Context) (models.Book, error) {
			ok, err := s.local.UpdateBook(ctx, id, f)
			if err != nil {
				return models.Book{}, err
			}
			if !ok {
				return models.Book{}, models.NotFound(id)
			}
			return f.WithID(id), nil
		},
	)
}

// DeleteBook removes a book. A missing id yields an error matching models.ErrNotFound.
func (s *Service) DeleteBook(ctx context.Context, id int64) error {
	_, err := route(ctx, s, "delete",
		func(ctx context.Context) (struct{}, error) {
			if err := s.remote.DeleteBook(ctx, id); err != nil {
				return struct{}{}, err
			}
			s.uncache(ctx, id)
			return struct{}{}, nil
		},
		func(ctx context.Context) (struct{}, error) {
			ok, err := s.local.DeleteBook(ctx, id)
			if err != nil {
				return struct{}{}, err
			}
			if !ok {
				return struct{}{}, models.NotFound(id)
			}
			return struct{}{}, nil
		},
	)
	return err
}

// route runs one logical operation: remote when online, local when not,
// and local exactly once more when the remote attempt hit a network error.
func route[T any](ctx context.Context, s *Service, op string, remoteFn, localFn func(context.Context) (T, error)) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	if !s.prober.IsOnline(ctx) {
		s.log.Debug("catalog: offline, using local store", "op", op)
		return localFn(ctx)
	}

	v, err := remoteFn(ctx)
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, models.ErrNetwork) || ctx.Err() != nil {
		return zero, err
	}

	s.log.Warn("catalog: remote failed, falling back to local store", "op", op, "err", err)
	return localFn(ctx)
}
