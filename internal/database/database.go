// Package database keeps the pipeline's bookkeeping in SQLite: which
// seasons finished collecting and with what content, every artifact write,
// and the history of pipeline and validation runs. The artifacts themselves
// stay on disk as CSV.
package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/TobiSchelling/hypetrack/internal/logging"
)

// DB is an open bookkeeping database.
type DB struct {
	conn   *sql.DB
	path   string
	logger *zap.Logger
}

// Option configures Open.
type Option func(*DB)

// WithLogger sets the logger used for schema migrations.
func WithLogger(l *zap.Logger) Option {
	return func(db *DB) { db.logger = l }
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
}

// Open creates the database file and its directory if needed and migrates
// the schema to the latest version.
func Open(dbPath string, opts ...Option) (*DB, error) {
	db := &DB{path: dbPath}
	for _, opt := range opts {
		opt(db)
	}
	db.logger = logging.OrNop(db.logger).Named("database")

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dbPath, err)
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	db.conn = conn

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrating %s: %w", dbPath, err)
	}
	return db, nil
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}
