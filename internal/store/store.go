package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// Storage errors.
var (
	// ErrStorageUnavailable is returned when a write failed through all
	// retries and could not even be queued for replay. The crawl must
	// stop persisting rather than silently lose data.
	ErrStorageUnavailable = errors.New("graph store unavailable")

	// ErrDatabaseNotFound is returned by Open when CreateIfNotExists is
	// false and no database exists at the given directory.
	ErrDatabaseNotFound = errors.New("database not found")
)

// DB provides SQLite-backed storage for the dedup store and the link
// graph. It manages the connection pool and schema.
type DB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string

	// writeAttempts bounds retries for graph writes.
	writeAttempts int

	// writeBackoff is the base delay between write retries, doubled on
	// each attempt.
	writeBackoff time.Duration
}

// Options configures DB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent
	// performance. Recommended for most use cases.
	EnableWAL bool

	// WriteAttempts bounds retries for transient graph-write failures.
	// Zero selects the default of 3.
	WriteAttempts int

	// WriteBackoff is the base delay between write retries.
	// Zero selects the default of 100ms.
	WriteBackoff time.Duration
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
		WriteAttempts:     3,
		WriteBackoff:      100 * time.Millisecond,
	}
}

// Open opens or creates the crawl database at the specified directory.
// If CreateIfNotExists is false and the database doesn't exist, an error
// is returned.
func Open(dbDir string, opts Options) (*DB, error) {
	dbPath := filepath.Join(dbDir, "onionmap.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s (use CreateIfNotExists option to create)", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite uses mode=rw / mode=rwc in the DSN to control
	// whether a missing file is created.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports only one writer; a larger pool just queues inside
	// the driver and obscures contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	s := &DB{
		db:            db,
		dbPath:        dbPath,
		writeAttempts: opts.WriteAttempts,
		writeBackoff:  opts.WriteBackoff,
	}
	if s.writeAttempts <= 0 {
		s.writeAttempts = 3
	}
	if s.writeBackoff <= 0 {
		s.writeBackoff = 100 * time.Millisecond
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *DB) Close() error {
	return s.db.Close()
}

// Path returns the path of the database file.
func (s *DB) Path() string {
	return s.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (s *DB) createTables() error {
	schema := `
	-- Fingerprints record every URL and content hash ever seen.
	-- Append-only: rows are inserted once and never updated or deleted.
	CREATE TABLE IF NOT EXISTS fingerprints (
		kind TEXT NOT NULL,
		digest TEXT NOT NULL,
		first_seen DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (kind, digest)
	);

	-- Nodes are crawled (or discovered-as-link-destination) pages.
	CREATE TABLE IF NOT EXISTS nodes (
		url TEXT PRIMARY KEY,
		host TEXT NOT NULL,
		title TEXT DEFAULT '',
		content_type TEXT DEFAULT '',
		http_status INTEGER DEFAULT 0,
		content_hash TEXT DEFAULT '',
		first_seen DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_seen DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_nodes_host ON nodes(host);

	-- Edges are directed links between nodes. One row per (src, dst);
	-- rediscovery bumps occurrences and last_seen.
	CREATE TABLE IF NOT EXISTS edges (
		src TEXT NOT NULL,
		dst TEXT NOT NULL,
		first_seen DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_seen DATETIME DEFAULT CURRENT_TIMESTAMP,
		occurrences INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (src, dst)
	);

	CREATE INDEX IF NOT EXISTS idx_edges_dst ON edges(dst);

	-- Edges whose upsert exhausted its retries, waiting for a replay
	-- pass. Never dropped silently.
	CREATE TABLE IF NOT EXISTS replay_edges (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		src TEXT NOT NULL,
		dst TEXT NOT NULL,
		queued_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// timestampFormats contains the timestamp formats SQLite may return,
// most specific first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999",
}

// parseTimestamp attempts to parse a timestamp string using multiple
// formats. SQLite returns different formats depending on configuration.
// Returns zero time if no format matches.
func parseTimestamp(v string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
