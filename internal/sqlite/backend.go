// Package sqlite implements the SQLite local cache for fieldsurvey: a generic
// key/value-per-row store whose table schemas are inferred from the first
// record written to them.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/fieldsurvey/internal/logging"
	"github.com/mesh-intelligence/fieldsurvey/pkg/types"
)

// DatabaseFile is the name of the SQLite file inside the data directory.
const DatabaseFile = "fieldsurvey.db"

// dsn returns the driver connection string for the database at path.
func dsn(path string, config types.Config) string {
	return fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)",
		path, config.Timeout().Milliseconds())
}

// Store implements types.LocalStore on top of an embedded SQLite database.
// All statements go through a single connection, so the database sees one
// writer at a time.
type Store struct {
	mu       sync.RWMutex
	attached bool
	config   types.Config
	db       *sql.DB
	log      *zap.SugaredLogger

	// registry holds every table name ClearDatabase drops: the known tables
	// plus any table prepared through this store.
	registry map[string]bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for statement diagnostics.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Store) {
		s.log = log.Named(logging.ComponentStore)
	}
}

// NewStore creates a new SQLite store. The store is not attached; call Attach
// with a Config to open the database.
func NewStore(opts ...Option) *Store {
	s := &Store{
		log:      zap.NewNop().Sugar(),
		registry: make(map[string]bool),
	}
	for _, t := range types.KnownTables {
		s.registry[t] = true
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach opens <DataDir>/fieldsurvey.db, creating DataDir if needed. Cached
// tables survive across attaches; nothing is dropped here.
// Returns ErrAlreadyAttached if already attached.
func (s *Store) Attach(config types.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached {
		return types.ErrAlreadyAttached
	}

	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)
	db, err := sql.Open("sqlite", dsn(dbPath, config))
	if err != nil {
		return &types.StorageError{Op: "open", Err: err}
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return &types.StorageError{Op: "open", Err: err}
	}

	s.db = db
	s.config = config
	s.attached = true
	s.log.Debugw("attached local store", "path", dbPath)
	return nil
}

// Detach closes the database. After Detach, all operations return
// ErrStoreDetached. Detach is idempotent.
func (s *Store) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return nil
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return err
		}
		s.db = nil
	}

	s.attached = false
	return nil
}

// conn returns the open database or ErrStoreDetached.
// The caller must hold s.mu.
func (s *Store) conn() (*sql.DB, error) {
	if !s.attached {
		return nil, types.ErrStoreDetached
	}
	return s.db, nil
}

// Tables returns the names of the tables that currently exist, in name order.
func (s *Store) Tables(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, &types.StorageError{Op: "list tables", Err: err}
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &types.StorageError{Op: "list tables", Err: err}
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, &types.StorageError{Op: "list tables", Err: err}
	}
	return names, nil
}

var _ types.LocalStore = (*Store)(nil)
