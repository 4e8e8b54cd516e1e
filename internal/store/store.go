// Package store implements the project store: durable storage of projects,
// media metadata, thumbnails, settings and books in a local SQLite database,
// plus whole-database export and import.
//
// A Store is opened once at startup, shared by reference and closed at
// shutdown. Storage errors are logged and returned to the caller; nothing is
// retried.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gridworm/gridworm/internal/common"
	"github.com/gridworm/gridworm/internal/logging"
	"github.com/gridworm/gridworm/internal/repositories/repomanager"

	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// DefaultRetentionDays is used by ClearOldThumbnails when days is not positive.
const DefaultRetentionDays = 7

const busyTimeoutMillis = 5000

type Options struct {
	Path   string
	Logger logging.Logger
	// Now defaults to time.Now.
	Now func() time.Time
	// NewID defaults to uuid.NewString.
	NewID func() string
}

type Store struct {
	db    *sql.DB
	repos repomanager.RepositoryManager
	log   logging.Logger
	now   func() time.Time
	newID func() string
	path  string
}

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

// Open opens (creating if needed) the database at opts.Path and migrates it
// to the current schema. A failure here is returned to the caller; the
// process should not continue without a store.
func Open(ctx context.Context, opts Options) (*Store, error) {
	if opts.Path == "" {
		opts.Path = MemoryPath
	}

	db, err := sqlOpen("sqlite", dsn(opts.Path))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if opts.Path == MemoryPath {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	s := newWithDB(db, opts)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, s.fail(ctx, "open database", err)
	}
	if err := s.repos.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, s.fail(ctx, "migrate database", err)
	}

	s.log.Info(ctx, "project store opened", "path", opts.Path)
	return s, nil
}

func newWithDB(db *sql.DB, opts Options) *Store {
	s := &Store{
		db:    db,
		repos: repomanager.NewSQLiteRepositoryManager(opts.Logger),
		log:   opts.Logger,
		now:   opts.Now,
		newID: opts.NewID,
		path:  opts.Path,
	}
	if s.log == nil {
		s.log = logging.Nop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

func dsn(path string) string {
	if path == MemoryPath {
		return path
	}
	var b strings.Builder
	if !strings.HasPrefix(path, "file:") {
		b.WriteString("file:")
	}
	b.WriteString(path)
	if strings.Contains(path, "?") {
		b.WriteByte('&')
	} else {
		b.WriteByte('?')
	}
	fmt.Fprintf(&b, "_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", busyTimeoutMillis)
	return b.String()
}

// Close releases the database. Every later operation fails.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database location the store was opened with.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) timestamp() time.Time {
	return s.now().UTC()
}

// fail logs a storage failure and wraps it with the operation name.
// Not-found outcomes are part of the contract and are not logged.
func (s *Store) fail(ctx context.Context, op string, err error) error {
	if !errors.Is(err, common.ErrNotFound) {
		s.log.Error(ctx, "storage operation failed", "op", op, "error", err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
