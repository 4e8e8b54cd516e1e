package repomanager

import (
	"context"
	"database/sql"

	"github.com/gridworm/gridworm/internal/dbx"
	"github.com/gridworm/gridworm/internal/repositories/books"
	"github.com/gridworm/gridworm/internal/repositories/mediameta"
	"github.com/gridworm/gridworm/internal/repositories/projects"
	"github.com/gridworm/gridworm/internal/repositories/settings"
	"github.com/gridworm/gridworm/internal/repositories/thumbnails"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Projects(db dbx.DBTX) projects.Repository
	MediaMetadata(db dbx.DBTX) mediameta.Repository
	Thumbnails(db dbx.DBTX) thumbnails.Repository
	Settings(db dbx.DBTX) settings.Repository
	Books(db dbx.DBTX) books.Repository
}
