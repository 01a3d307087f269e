package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Document keys owned by the kiosk client.
const (
	KeyOrderOverlay = "kiosk.order_overlay"
	KeyPendingCart  = "kiosk.pending_cart"
)

// migration moves the schema from version-1 to version.
type migration struct {
	version int
	name    string
	stmt    string
}

// migrations run in order against PRAGMA user_version. Append only.
var migrations = []migration{
	{
		version: 1,
		name:    "documents_updated_at_index",
		stmt:    `CREATE INDEX IF NOT EXISTS idx_documents_updated_at ON documents(updated_at)`,
	},
}

// SchemaVersion is the version a freshly opened store reports.
var SchemaVersion = migrations[len(migrations)-1].version

// Store keeps the kiosk's client documents in a single SQLite file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures Open.
type Option func(*Store)

// WithClock sets the clock used for updated_at stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// Open creates or opens the database at path and brings its schema up to
// date. ":memory:" gives a private in-memory database, used by tests.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	// One connection: SQLite has a single writer, and an in-memory
	// database exists per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.init(context.Background(), isMemory(path)); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return s, nil
}

func isMemory(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory")
}

func (s *Store) init(ctx context.Context, memory bool) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	pragmas := []string{"synchronous = NORMAL", "busy_timeout = 5000"}
	if !memory {
		pragmas = append([]string{"journal_mode = WAL"}, pragmas...)
	}
	for _, p := range pragmas {
		if _, err := s.db.ExecContext(ctx, "PRAGMA "+p); err != nil {
			return fmt.Errorf("pragma %s: %w", p, err)
		}
	}

	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return s.migrate(ctx)
}

// migrate applies every migration newer than user_version, each in its own
// transaction together with the version bump.
func (s *Store) migrate(ctx context.Context) error {
	current, err := s.pragmaInt(ctx, "user_version")
	if err != nil {
		return err
	}
	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.ExecContext(ctx, m.stmt); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

// Version returns the schema version recorded in the database.
func (s *Store) Version(ctx context.Context) (int, error) {
	return s.pragmaInt(ctx, "user_version")
}

func (s *Store) pragma(ctx context.Context, name string) (string, error) {
	var value string
	if err := s.db.QueryRowContext(ctx, "PRAGMA "+name).Scan(&value); err != nil {
		return "", fmt.Errorf("pragma %s: %w", name, err)
	}
	return value, nil
}

func (s *Store) pragmaInt(ctx context.Context, name string) (int, error) {
	var value int
	if err := s.db.QueryRowContext(ctx, "PRAGMA "+name).Scan(&value); err != nil {
		return 0, fmt.Errorf("pragma %s: %w", name, err)
	}
	return value, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Healthy reports whether the database still answers.
func (s *Store) Healthy(ctx context.Context) bool {
	return s.db != nil && s.db.PingContext(ctx) == nil
}
