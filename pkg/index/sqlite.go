package index

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	DriverModernc = "sqlite"  // modernc.org/sqlite, pure Go
	DriverMattn   = "sqlite3" // github.com/mattn/go-sqlite3, cgo
)

// SQLiteConfig contains configuration for the SQLite store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// Driver is DriverModernc (default) or DriverMattn.
	Driver string

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool

	// BusyTimeout is how long to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig(path string) SQLiteConfig {
	return SQLiteConfig{
		Path:        path,
		Driver:      DriverModernc,
		WALMode:     true,
		BusyTimeout: 5 * time.Second,
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS entries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    request_id TEXT NOT NULL,
    kind TEXT NOT NULL,
    type TEXT NOT NULL,
    segment TEXT NOT NULL,
    byte_offset INTEGER NOT NULL,
    length INTEGER NOT NULL,
    truncated INTEGER NOT NULL DEFAULT 0,
    timestamp TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entries_request_id ON entries(request_id);
CREATE INDEX IF NOT EXISTS idx_entries_segment ON entries(segment);
`

const (
	insertEntry = `INSERT INTO entries
    (request_id, kind, type, segment, byte_offset, length, truncated, timestamp)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	selectByRequest = `SELECT request_id, kind, type, segment, byte_offset, length, truncated, timestamp
FROM entries WHERE request_id = ? ORDER BY id`

	selectRecent = `SELECT request_id, kind, type, segment, byte_offset, length, truncated, timestamp
FROM entries ORDER BY id DESC LIMIT ?`

	renameSegment = `UPDATE entries SET segment = ? WHERE segment = ?`

	deleteSegment = `DELETE FROM entries WHERE segment = ?`
)

// SQLiteStore implements Store on SQLite.
type SQLiteStore struct {
	db        *sql.DB
	config    SQLiteConfig
	logger    *slog.Logger
	closeOnce sync.Once
}

// NewSQLiteStore opens (creating if needed) the index database.
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.Driver == "" {
		cfg.Driver = DriverModernc
	}
	if cfg.Driver != DriverModernc && cfg.Driver != DriverMattn {
		return nil, fmt.Errorf("unsupported sqlite driver %q", cfg.Driver)
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, &StoreError{Backend: cfg.Driver, Op: "open", Err: err}
		}
	}

	db, err := sql.Open(cfg.Driver, cfg.Path)
	if err != nil {
		return nil, &StoreError{Backend: cfg.Driver, Op: "open", Err: err}
	}

	// SQLite only supports a single writer; one connection also keeps
	// pragmas and :memory: databases alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:     db,
		config: cfg,
		logger: slog.Default().With("component", "index.sqlite"),
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("entry index opened",
		"path", cfg.Path,
		"driver", cfg.Driver,
		"wal_mode", cfg.WALMode,
	)

	return s, nil
}

func (s *SQLiteStore) initialize() error {
	if s.config.WALMode && s.config.Path != ":memory:" {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return s.fail("enable_wal", err)
		}
	}

	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return s.fail("set_busy_timeout", err)
	}

	if _, err := s.db.Exec(schema); err != nil {
		return s.fail("create_schema", err)
	}
	return nil
}

func (s *SQLiteStore) Record(ctx context.Context, locs []Location) error {
	if len(locs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.fail("begin", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertEntry)
	if err != nil {
		return s.fail("prepare", err)
	}
	defer stmt.Close()

	for _, loc := range locs {
		if _, err := stmt.ExecContext(ctx,
			loc.RequestID, loc.Kind, loc.Type, loc.Segment,
			loc.Offset, loc.Length, loc.Truncated, loc.Timestamp,
		); err != nil {
			return s.fail("record", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return s.fail("commit", err)
	}
	return nil
}

func (s *SQLiteStore) Lookup(ctx context.Context, requestID string) ([]Location, error) {
	locs, err := s.query(ctx, "lookup", selectByRequest, requestID)
	if err != nil {
		return nil, err
	}
	if len(locs) == 0 {
		return nil, ErrNotFound
	}
	return locs, nil
}

func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]Location, error) {
	if limit <= 0 {
		limit = -1 // no limit
	}
	return s.query(ctx, "recent", selectRecent, limit)
}

func (s *SQLiteStore) RenameSegment(ctx context.Context, from, to string) error {
	res, err := s.db.ExecContext(ctx, renameSegment, to, from)
	if err != nil {
		return s.fail("rename_segment", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		s.logger.Debug("index segment renamed", "from", from, "to", to, "entries", n)
	}
	return nil
}

func (s *SQLiteStore) DropSegment(ctx context.Context, segment string) error {
	if _, err := s.db.ExecContext(ctx, deleteSegment, segment); err != nil {
		return s.fail("drop_segment", err)
	}
	return nil
}

// Ping verifies the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return s.fail("ping", err)
	}
	return nil
}

// Close closes the database. It is safe to call more than once.
func (s *SQLiteStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteStore) query(ctx context.Context, op, query string, args ...any) ([]Location, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.fail(op, err)
	}
	defer rows.Close()

	var locs []Location
	for rows.Next() {
		var loc Location
		if err := rows.Scan(
			&loc.RequestID, &loc.Kind, &loc.Type, &loc.Segment,
			&loc.Offset, &loc.Length, &loc.Truncated, &loc.Timestamp,
		); err != nil {
			return nil, s.fail(op, err)
		}
		locs = append(locs, loc)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail(op, err)
	}
	return locs, nil
}

func (s *SQLiteStore) fail(op string, err error) error {
	return &StoreError{Backend: s.config.Driver, Op: op, Err: err}
}
