// Package serverdb is the SQLite store behind shelf-server.
package serverdb

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	_ "modernc.org/sqlite"
)

// ServerDB holds the catalog served by the API.
type ServerDB struct {
	conn *sql.DB
	path string
}

// pragmas run on every new connection, in order. Only the first two are required.
var pragmas = []struct {
	stmt     string
	required bool
}{
	{"PRAGMA journal_mode=WAL", true},
	{"PRAGMA busy_timeout=5000", true},
	{"PRAGMA synchronous=NORMAL", false},
}

// Open opens (or creates) the catalog database at dbPath and brings its
// schema up to ServerSchemaVersion.
func Open(dbPath string) (*ServerDB, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// A single writer keeps SQLite from returning SQLITE_BUSY under load.
	conn.SetMaxOpenConns(1)

	for _, p := range pragmas {
		if _, err := conn.Exec(p.stmt); err != nil && p.required {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", p.stmt, err)
		}
	}

	if _, err := conn.Exec(serverSchema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	db := &ServerDB{conn: conn, path: dbPath}
	if _, err := db.RunMigrations(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

// Path returns the database file path.
func (db *ServerDB) Path() string {
	return db.path
}

// Ping checks the database connection is alive.
func (db *ServerDB) Ping() error {
	return db.conn.Ping()
}

// Close checkpoints the WAL and closes the database connection.
func (db *ServerDB) Close() error {
	db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return db.conn.Close()
}

// RunMigrations applies every migration newer than the stored schema
// version, each in its own transaction, and returns how many ran.
func (db *ServerDB) RunMigrations() (int, error) {
	current := db.getSchemaVersion()
	if current >= ServerSchemaVersion {
		return 0, nil
	}

	ran := 0
	for _, m := range Migrations {
		if m.Version <= current {
			continue
		}
		if err := db.applyMigration(m); err != nil {
			return ran, err
		}
		ran++
	}

	// A fresh database already has everything from serverSchema.
	if err := db.setSchemaVersion(db.conn, ServerSchemaVersion); err != nil {
		return ran, fmt.Errorf("set version %d: %w", ServerSchemaVersion, err)
	}
	return ran, nil
}

func (db *ServerDB) applyMigration(m Migration) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("migration %d: begin: %w", m.Version, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(m.SQL); err != nil {
		return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
	}
	if err := db.setSchemaVersion(tx, m.Version); err != nil {
		return fmt.Errorf("migration %d: set version: %w", m.Version, err)
	}
	return tx.Commit()
}

// getSchemaVersion returns the stored version, or 0 for a database that has none.
func (db *ServerDB) getSchemaVersion() int {
	var raw string
	if err := db.conn.QueryRow("SELECT value FROM schema_info WHERE key = 'version'").Scan(&raw); err != nil {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (db *ServerDB) setSchemaVersion(ex execer, version int) error {
	_, err := ex.Exec(`INSERT OR REPLACE INTO schema_info (key, value) VALUES ('version', ?)`, strconv.Itoa(version))
	return err
}
