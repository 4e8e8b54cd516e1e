// Package repomanager provides a concrete RepositoryManager for SQLite,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/gridworm/gridworm/internal/dbx"
	"github.com/gridworm/gridworm/internal/logging"
	"github.com/gridworm/gridworm/internal/migrations"
	"github.com/gridworm/gridworm/internal/repositories/books"
	"github.com/gridworm/gridworm/internal/repositories/mediameta"
	"github.com/gridworm/gridworm/internal/repositories/projects"
	"github.com/gridworm/gridworm/internal/repositories/settings"
	"github.com/gridworm/gridworm/internal/repositories/thumbnails"
	"github.com/pressly/goose/v3"
)

// SQLiteRepositoryManager vends SQLite-backed repository implementations
// and exposes a schema migration hook.
type SQLiteRepositoryManager struct {
	log logging.Logger
}

// NewSQLiteRepositoryManager constructs a SQLite-backed RepositoryManager.
// Migration progress goes to log at debug level; a nil log discards it.
func NewSQLiteRepositoryManager(log logging.Logger) *SQLiteRepositoryManager {
	if log == nil {
		log = logging.Nop()
	}
	return &SQLiteRepositoryManager{log: log}
}

// Projects returns a projects.Repository bound to the provided DBTX.
func (m *SQLiteRepositoryManager) Projects(db dbx.DBTX) projects.Repository {
	return projects.NewSQLiteRepository(db)
}

// MediaMetadata returns a mediameta.Repository bound to the provided DBTX.
func (m *SQLiteRepositoryManager) MediaMetadata(db dbx.DBTX) mediameta.Repository {
	return mediameta.NewSQLiteRepository(db)
}

// Thumbnails returns a thumbnails.Repository bound to the provided DBTX.
func (m *SQLiteRepositoryManager) Thumbnails(db dbx.DBTX) thumbnails.Repository {
	return thumbnails.NewSQLiteRepository(db)
}

// Settings returns a settings.Repository bound to the provided DBTX.
func (m *SQLiteRepositoryManager) Settings(db dbx.DBTX) settings.Repository {
	return settings.NewSQLiteRepository(db)
}

// Books returns a books.Repository bound to the provided DBTX.
func (m *SQLiteRepositoryManager) Books(db dbx.DBTX) books.Repository {
	return books.NewSQLiteRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// goose keeps its base FS, dialect and logger in package state.
var gooseMu sync.Mutex

// gooseLogger forwards goose output to a Logger instead of stdout.
type gooseLogger struct {
	ctx context.Context
	log logging.Logger
}

func (g gooseLogger) Printf(format string, v ...any) {
	g.log.Debug(g.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// Fatalf is only reached from goose's own command paths; it logs without
// exiting so the caller still gets the returned error.
func (g gooseLogger) Fatalf(format string, v ...any) {
	g.log.Error(g.ctx, strings.TrimSpace(fmt.Sprintf(format, v...)))
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *SQLiteRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetLogger(gooseLogger{ctx: ctx, log: m.log.With("component", "migrations")})
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}
