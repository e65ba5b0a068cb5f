// Package db is the on-device catalog store: a SQLite file under .shelf/
// that keeps working without any network.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/marcus/shelf/internal/models"
	_ "modernc.org/sqlite"
)

const (
	dataDir = ".shelf"
	dbFile  = "catalog.db"
)

// DB wraps the local database connection
type DB struct {
	conn *sql.DB
	path string
	dir  string

	readyMu sync.Mutex
	ready   bool
}

// Path returns the default database location under baseDir.
func Path(baseDir string) string {
	return filepath.Join(baseDir, dataDir, dbFile)
}

// Open opens (creating if needed) the catalog database under baseDir/.shelf.
func Open(baseDir string) (*DB, error) {
	return OpenPath(Path(baseDir))
}

// OpenPath opens the catalog database at an explicit file path.
// The schema is created lazily by EnsureReady, which every operation calls.
func OpenPath(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, storageErr("create db dir", err)
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, storageErr("open database", err)
	}

	// One connection keeps the pragmas below in effect for every query
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, storageErr("enable WAL mode", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, storageErr("set busy timeout", err)
	}
	conn.Exec("PRAGMA synchronous=NORMAL")

	return &DB{conn: conn, path: path, dir: dir}, nil
}

// EnsureReady creates the books table and brings an older schema up to
// SchemaVersion. It is idempotent and cheap after the first successful call.
func (db *DB) EnsureReady(ctx context.Context) error {
	db.readyMu.Lock()
	defer db.readyMu.Unlock()

	if db.ready {
		return nil
	}

	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return storageErr("create schema", err)
	}

	var stored string
	err := db.conn.QueryRowContext(ctx, "SELECT value FROM schema_info WHERE key = 'version'").Scan(&stored)
	switch {
	case err == sql.ErrNoRows:
		// Fresh database: the schema above is already current.
		if err := db.setSchemaVersion(ctx, SchemaVersion); err != nil {
			return err
		}
	case err != nil:
		return storageErr("read schema version", err)
	default:
		current, _ := strconv.Atoi(stored)
		if err := db.migrate(ctx, current); err != nil {
			return err
		}
	}

	db.ready = true
	return nil
}

func (db *DB) migrate(ctx context.Context, current int) error {
	for _, m := range Migrations {
		if m.Version <= current {
			continue
		}
		if _, err := db.conn.ExecContext(ctx, m.SQL); err != nil {
			return storageErr(fmt.Sprintf("migration %d (%s)", m.Version, m.Description), err)
		}
		if err := db.setSchemaVersion(ctx, m.Version); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) setSchemaVersion(ctx context.Context, version int) error {
	if _, err := db.conn.ExecContext(ctx,
		`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', ?)`,
		strconv.Itoa(version),
	); err != nil {
		return storageErr("set schema version", err)
	}
	return nil
}

// SchemaVersionOnDisk returns the schema version stored in the database, or 0.
func (db *DB) SchemaVersionOnDisk(ctx context.Context) (int, error) {
	if err := db.EnsureReady(ctx); err != nil {
		return 0, err
	}
	var version string
	err := db.conn.QueryRowContext(ctx, "SELECT value FROM schema_info WHERE key = 'version'").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, storageErr("read schema version", err)
	}
	v, _ := strconv.Atoi(version)
	return v, nil
}

// Close checkpoints the WAL and closes the database
func (db *DB) Close() error {
	db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return db.conn.Close()
}

// FilePath returns the database file path
func (db *DB) FilePath() string {
	return db.path
}

// withWriteLock executes fn while holding the cross-process write lock.
func (db *DB) withWriteLock(fn func() error) error {
	locker := newWriteLocker(db.dir)
	if err := locker.acquire(defaultTimeout); err != nil {
		return storageErr("acquire write lock", err)
	}
	defer locker.release()
	return fn()
}

// storageErr tags a backing-store failure so callers can match models.ErrStorage.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, models.ErrStorage, err)
}
