package serverdb

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/marcus/shelf/internal/models"
	"github.com/shopspring/decimal"
)

// ErrConflict is returned when a create names an id that is already taken.
var ErrConflict = errors.New("conflict")

const bookColumns = "id, title, description, price, image"

func scanBook(row interface{ Scan(...any) error }) (*models.Book, error) {
	var b models.Book
	var price string
	if err := row.Scan(&b.ID, &b.Title, &b.Description, &price, &b.Image); err != nil {
		return nil, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("book %d: bad price %q: %w", b.ID, price, err)
	}
	b.Price = p
	return &b, nil
}

// ListBooks returns every book ordered by id.
func (db *ServerDB) ListBooks() ([]models.Book, error) {
	rows, err := db.conn.Query("SELECT " + bookColumns + " FROM books ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := []models.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		books = append(books, *b)
	}
	return books, rows.Err()
}

// GetBook returns a book by id. Returns nil if not found.
func (db *ServerDB) GetBook(id int64) (*models.Book, error) {
	b, err := scanBook(db.conn.QueryRow("SELECT "+bookColumns+" FROM books WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return b, nil
}

// CreateBook inserts a book. A positive id is kept when free and yields
// ErrConflict when taken; otherwise the next id is assigned.
func (db *ServerDB) CreateBook(b models.Book) (*models.Book, error) {
	if b.ID < 0 {
		return nil, &models.ValidationError{Field: "id", Message: "id must be positive"}
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var res sql.Result
	if b.ID > 0 {
		var exists int
		err := tx.QueryRow("SELECT COUNT(*) FROM books WHERE id = ?", b.ID).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("check id: %w", err)
		}
		if exists > 0 {
			return nil, fmt.Errorf("book %d already exists: %w", b.ID, ErrConflict)
		}
		res, err = tx.Exec(
			"INSERT INTO books (id, title, description, price, image) VALUES (?, ?, ?, ?, ?)",
			b.ID, b.Title, b.Description, b.Price.String(), b.Image,
		)
	} else {
		res, err = tx.Exec(
			"INSERT INTO books (title, description, price, image) VALUES (?, ?, ?, ?)",
			b.Title, b.Description, b.Price.String(), b.Image,
		)
	}
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, fmt.Errorf("book %d already exists: %w", b.ID, ErrConflict)
		}
		return nil, fmt.Errorf("insert book: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	created := b.Fields().WithID(id)
	return &created, nil
}

// UpdateBook replaces the fields of a book. Returns nil if not found.
func (db *ServerDB) UpdateBook(id int64, f models.BookFields) (*models.Book, error) {
	res, err := db.conn.Exec(
		`UPDATE books SET title = ?, description = ?, price = ?, image = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		f.Title, f.Description, f.Price.String(), f.Image, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return nil, nil
	}
	updated := f.WithID(id)
	return &updated, nil
}

// DeleteBook removes a book and reports whether it existed.
func (db *ServerDB) DeleteBook(id int64) (bool, error) {
	res, err := db.conn.Exec("DELETE FROM books WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("delete book: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CountBooks returns the number of books in the catalog.
func (db *ServerDB) CountBooks() (int, error) {
	var n int
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM books").Scan(&n); err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return n, nil
}
