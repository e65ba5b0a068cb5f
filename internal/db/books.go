package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/marcus/shelf/internal/models"
	"github.com/shopspring/decimal"
)

const bookColumns = `id, title, description, image, price`

// nextSeq is evaluated inside INSERT so the position is assigned atomically.
const nextSeq = `(SELECT COALESCE(MAX(seq), 0) + 1 FROM books)`

type scanner interface {
	Scan(dest ...any) error
}

func scanBook(row scanner) (models.Book, error) {
	var b models.Book
	var price string
	if err := row.Scan(&b.ID, &b.Title, &b.Description, &b.Image, &price); err != nil {
		return b, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return b, fmt.Errorf("parse price %q for book %d: %w", price, b.ID, err)
	}
	b.Price = p
	return b, nil
}

// ListBooks returns all books in insertion order. The result is never nil.
func (db *DB) ListBooks(ctx context.Context) ([]models.Book, error) {
	if err := db.EnsureReady(ctx); err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx, `SELECT `+bookColumns+` FROM books ORDER BY seq, id`)
	if err != nil {
		return nil, storageErr("list books", err)
	}
	defer rows.Close()

	books := []models.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, storageErr("scan book", err)
		}
		books = append(books, b)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list books", err)
	}
	return books, nil
}

// GetBook returns the book with the given id, or an error matching models.ErrNotFound.
func (db *DB) GetBook(ctx context.Context, id int64) (models.Book, error) {
	if err := db.EnsureReady(ctx); err != nil {
		return models.Book{}, err
	}

	b, err := scanBook(db.conn.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return models.Book{}, models.NotFound(id)
	}
	if err != nil {
		return models.Book{}, storageErr("get book", err)
	}
	return b, nil
}

// CreateBook inserts a new book and returns it with its assigned id.
// Ids are one past the highest id ever used, so deleted ids are never handed out again.
func (db *DB) CreateBook(ctx context.Context, f models.BookFields) (models.Book, error) {
	if err := db.EnsureReady(ctx); err != nil {
		return models.Book{}, err
	}

	var created models.Book
	err := db.withWriteLock(func() error {
		res, err := db.conn.ExecContext(ctx,
			`INSERT INTO books (title, description, image, price, sync_state, seq) VALUES (?, ?, ?, ?, ?, `+nextSeq+`)`,
			f.Title, f.Description, f.Image, f.Price.String(), models.ChangeCreated,
		)
		if err != nil {
			return storageErr("insert book", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return storageErr("last insert id", err)
		}
		created = f.WithID(id)
		return nil
	})
	return created, err
}

// UpdateBook replaces the mutable fields of a book and marks it as changed
// locally. It reports false when the id is absent.
func (db *DB) UpdateBook(ctx context.Context, id int64, f models.BookFields) (bool, error) {
	if err := db.EnsureReady(ctx); err != nil {
		return false, err
	}

	var updated bool
	err := db.withWriteLock(func() error {
		res, err := db.conn.ExecContext(ctx, `
			UPDATE books SET title = ?, description = ?, image = ?, price = ?,
				sync_state = CASE WHEN sync_state = ? THEN ? ELSE sync_state END,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, f.Title, f.Description, f.Image, f.Price.String(), models.Synced, models.ChangeModified, id)
		if err != nil {
			return storageErr("update book", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return storageErr("rows affected", err)
		}
		updated = n > 0
		return nil
	})
	return updated, err
}

// DeleteBook removes a book. It reports false when the id is absent.
func (db *DB) DeleteBook(ctx context.Context, id int64) (bool, error) {
	if err := db.EnsureReady(ctx); err != nil {
		return false, err
	}

	var deleted bool
	err := db.withWriteLock(func() error {
		res, err := db.conn.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id)
		if err != nil {
			return storageErr("delete book", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return storageErr("rows affected", err)
		}
		deleted = n > 0
		return nil
	})
	return deleted, err
}

// PutBook inserts or replaces a book under its own id and marks it synced.
// Existing rows keep their position. Used when caching remote records locally.
func (db *DB) PutBook(ctx context.Context, b models.Book) error {
	if b.ID <= 0 {
		return &models.ValidationError{Field: "id", Message: fmt.Sprintf("put requires a positive id (got %d)", b.ID)}
	}
	if err := db.EnsureReady(ctx); err != nil {
		return err
	}

	return db.withWriteLock(func() error {
		_, err := db.conn.ExecContext(ctx, `
			INSERT INTO books (id, title, description, image, price, sync_state, seq)
			VALUES (?, ?, ?, ?, ?, ?, `+nextSeq+`)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				description = excluded.description,
				image = excluded.image,
				price = excluded.price,
				sync_state = excluded.sync_state,
				updated_at = CURRENT_TIMESTAMP
		`, b.ID, b.Title, b.Description, b.Image, b.Price.String(), models.Synced)
		if err != nil {
			return storageErr("put book", err)
		}
		return nil
	})
}

// RekeyBook moves a book from one id to another, keeping its fields, position
// and sync state.
// It fails when the target id is already taken.
func (db *DB) RekeyBook(ctx context.Context, from, to int64) error {
	if to <= 0 {
		return &models.ValidationError{Field: "id", Message: fmt.Sprintf("invalid target id %d", to)}
	}
	if from == to {
		return nil
	}
	if err := db.EnsureReady(ctx); err != nil {
		return err
	}

	return db.withWriteLock(func() error {
		res, err := db.conn.ExecContext(ctx,
			`UPDATE books SET id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, to, from)
		if err != nil {
			return storageErr(fmt.Sprintf("rekey book %d to %d", from, to), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return storageErr("rows affected", err)
		}
		if n == 0 {
			return models.NotFound(from)
		}
		return nil
	})
}

// RelocateBook moves a book to a fresh id above every id the store has
// used and returns that id. Fields, position and sync state are kept.
func (db *DB) RelocateBook(ctx context.Context, id int64) (int64, error) {
	if err := db.EnsureReady(ctx); err != nil {
		return 0, err
	}

	var moved int64
	err := db.withWriteLock(func() error {
		tx, err := db.conn.BeginTx(ctx, nil)
		if err != nil {
			return storageErr("begin relocate", err)
		}
		defer tx.Rollback()

		var fresh int64
		if err := tx.QueryRowContext(ctx, `
			SELECT MAX(
				COALESCE((SELECT MAX(id) FROM books), 0),
				COALESCE((SELECT seq FROM sqlite_sequence WHERE name = 'books'), 0)
			) + 1
		`).Scan(&fresh); err != nil {
			return storageErr("next free id", err)
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE books SET id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, fresh, id)
		if err != nil {
			return storageErr(fmt.Sprintf("relocate book %d", id), err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return storageErr("rows affected", err)
		}
		if n == 0 {
			return models.NotFound(id)
		}
		if err := tx.Commit(); err != nil {
			return storageErr("commit relocate", err)
		}
		moved = fresh
		return nil
	})
	return moved, err
}

// PendingChanges returns the records changed locally since they last
// matched the remote, keyed by id.
func (db *DB) PendingChanges(ctx context.Context) (map[int64]models.Change, error) {
	if err := db.EnsureReady(ctx); err != nil {
		return nil, err
	}

	rows, err := db.conn.QueryContext(ctx, `SELECT id, sync_state FROM books WHERE sync_state != ?`, models.Synced)
	if err != nil {
		return nil, storageErr("list pending changes", err)
	}
	defer rows.Close()

	pending := map[int64]models.Change{}
	for rows.Next() {
		var id int64
		var c models.Change
		if err := rows.Scan(&id, &c); err != nil {
			return nil, storageErr("scan pending change", err)
		}
		pending[id] = c
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list pending changes", err)
	}
	return pending, nil
}

// MarkSynced records that a book now matches the remote.
func (db *DB) MarkSynced(ctx context.Context, id int64) error {
	if err := db.EnsureReady(ctx); err != nil {
		return err
	}

	return db.withWriteLock(func() error {
		res, err := db.conn.ExecContext(ctx, `UPDATE books SET sync_state = ? WHERE id = ?`, models.Synced, id)
		if err != nil {
			return storageErr("mark synced", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return storageErr("rows affected", err)
		}
		if n == 0 {
			return models.NotFound(id)
		}
		return nil
	})
}

// CountBooks returns the number of stored books.
func (db *DB) CountBooks(ctx context.Context) (int, error) {
	if err := db.EnsureReady(ctx); err != nil {
		return 0, err
	}
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&n); err != nil {
		return 0, storageErr("count books", err)
	}
	return n, nil
}
