package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// Supported database/sql driver names.
const (
	// DriverPureGo is modernc.org/sqlite.
	DriverPureGo = "sqlite"

	// DriverCgo is github.com/mattn/go-sqlite3.
	DriverCgo = "sqlite3"
)

// SQLiteConfig contains SQLite sink configuration.
type SQLiteConfig struct {
	// Driver is DriverPureGo or DriverCgo.
	// Default: DriverPureGo
	Driver string

	// Path is the database file path, or ":memory:".
	Path string

	// BusyTimeout is how long to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// SQLiteSink stores audit entries in SQLite.
type SQLiteSink struct {
	db     *sql.DB
	config SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteSink opens the database and creates the schema.
func NewSQLiteSink(cfg SQLiteConfig) (*SQLiteSink, error) {
	if cfg.Driver == "" {
		cfg.Driver = DriverPureGo
	}
	if cfg.Driver != DriverPureGo && cfg.Driver != DriverCgo {
		return nil, fmt.Errorf("unsupported sqlite driver %q", cfg.Driver)
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create audit directory: %w", err)
		}
	}

	db, err := sql.Open(cfg.Driver, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	// one writer; the recorder worker is the only caller
	db.SetMaxOpenConns(1)

	s := &SQLiteSink{
		db:     db,
		config: cfg,
		logger: slog.Default().With("component", "audit.sqlite"),
	}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	s.logger.Info("SQLite audit sink initialized", "driver", cfg.Driver, "path", cfg.Path)
	return s, nil
}

func (s *SQLiteSink) initialize() error {
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := s.db.Exec(Schema); err != nil {
		return fmt.Errorf("failed to create audit schema: %w", err)
	}
	if _, err := s.db.Exec(insertSchemaVersion, SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	var version int
	if err := s.db.QueryRow(getSchemaVersion).Scan(&version); err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if version != SchemaVersion {
		return fmt.Errorf("audit schema version mismatch: expected %d, got %d", SchemaVersion, version)
	}
	return nil
}

// Write inserts e.
func (s *SQLiteSink) Write(ctx context.Context, e *Entry) error {
	issues, err := json.Marshal(e.Issues)
	if err != nil {
		return fmt.Errorf("failed to encode issues: %w", err)
	}
	_, err = s.db.ExecContext(ctx, insertEntry,
		e.ID,
		e.Timestamp.UnixMilli(),
		e.CorrelationID,
		e.Model,
		e.Kind,
		string(issues),
		e.Corrected,
		e.Before,
		e.After,
		e.Prompt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *SQLiteSink) Recent(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, selectRecent, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                     Entry
			ms                    int64
			issues                string
			before, after, prompt sql.NullString
		)
		if err := rows.Scan(&e.ID, &ms, &e.CorrelationID, &e.Model, &e.Kind, &issues, &e.Corrected, &before, &after, &prompt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if err := json.Unmarshal([]byte(issues), &e.Issues); err != nil {
			return nil, fmt.Errorf("failed to decode issues: %w", err)
		}
		e.Timestamp = time.UnixMilli(ms).UTC()
		e.Before, e.After, e.Prompt = before.String, after.String, prompt.String
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes entries older than before.
func (s *SQLiteSink) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, deleteBefore, before.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune audit entries: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
