package db

// SchemaVersion is the current local schema version
const SchemaVersion = 2

// seq keeps insertion order stable even when a record's id is re-keyed
// after upload. AUTOINCREMENT keeps ids from being reused after deletes.
// sync_state holds a models.Change: 0 synced, 1 created locally, 2 modified locally.
const schema = `
CREATE TABLE IF NOT EXISTS books (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    image TEXT NOT NULL DEFAULT '',
    price TEXT NOT NULL,
    seq INTEGER NOT NULL DEFAULT 0,
    sync_state INTEGER NOT NULL DEFAULT 1,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS schema_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_books_seq ON books(seq);
`

// Migration upgrades a store written by an older release.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// Rows written before sync tracking existed are treated as created locally,
// so the next sync still uploads anything the remote lacks.
var Migrations = []Migration{
	{
		Version:     2,
		Description: "Track per-record sync state",
		SQL:         `ALTER TABLE books ADD COLUMN sync_state INTEGER NOT NULL DEFAULT 1`,
	},
}
