package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gridworm/gridworm/internal/common"
	"github.com/gridworm/gridworm/internal/filex"
	"github.com/gridworm/gridworm/internal/logging"
	"github.com/gridworm/gridworm/internal/models"
	"github.com/gridworm/gridworm/internal/thumbnail"
	"golang.org/x/sync/errgroup"
)

const defaultImportWorkers = 4

type FileOpener interface {
	File(ctx context.Context, id string) (io.ReadCloser, *FileInfo, error)
}

type MetadataStore interface {
	SaveMetadata(ctx context.Context, m *models.MediaMetadata) error
}

// ThumbnailWarmer is satisfied by *thumbnail.Cache.
type ThumbnailWarmer interface {
	GetOrGenerate(ctx context.Context, d thumbnail.Descriptor, opts thumbnail.Options) string
}

// Importer copies companion files into the media directory, records their
// metadata and warms the thumbnail cache.
type Importer struct {
	files    FileOpener
	store    MetadataStore
	warmer   ThumbnailWarmer
	mediaDir string
	workers  int
	log      logging.Logger
}

type ImporterOption func(*Importer)

func WithWarmer(w ThumbnailWarmer) ImporterOption {
	return func(im *Importer) { im.warmer = w }
}

func WithWorkers(n int) ImporterOption {
	return func(im *Importer) {
		if n > 0 {
			im.workers = n
		}
	}
}

func WithImporterLogger(l logging.Logger) ImporterOption {
	return func(im *Importer) {
		if l != nil {
			im.log = l
		}
	}
}

func NewImporter(files FileOpener, store MetadataStore, mediaDir string, opts ...ImporterOption) *Importer {
	im := &Importer{
		files:    files,
		store:    store,
		mediaDir: mediaDir,
		workers:  defaultImportWorkers,
		log:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

// Import downloads files concurrently. A failed file does not stop the
// others; the returned error joins every failure. imported holds the
// metadata of the files that were stored.
func (im *Importer) Import(ctx context.Context, files []FileInfo) (imported []models.MediaMetadata, err error) {
	if len(files) == 0 {
		return nil, nil
	}
	dir, err := filex.EnsureDir(im.mediaDir)
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.workers)
	for _, f := range files {
		g.Go(func() error {
			meta, err := im.importOne(gctx, dir, f)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				im.log.Warn(ctx, "bridge import failed", "id", f.ID, "name", f.Name, "error", err)
				errs = append(errs, fmt.Errorf("%s: %w", f.Name, err))
				return nil
			}
			imported = append(imported, *meta)
			return nil
		})
	}
	_ = g.Wait()

	im.log.Info(ctx, "bridge import finished", "imported", len(imported), "failed", len(errs))
	return imported, errors.Join(errs...)
}

func (im *Importer) importOne(ctx context.Context, dir string, f FileInfo) (*models.MediaMetadata, error) {
	if !safeID(f.ID) {
		return nil, fmt.Errorf("%w: unsafe file id %q", common.ErrValidation, f.ID)
	}
	body, info, err := im.files.File(ctx, f.ID)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	name := f.Name
	if name == "" {
		name = info.Name
	}
	name = filepath.Base(filepath.Clean("/" + name))
	if name == "/" || name == "." {
		name = f.ID
	}
	fileType := f.Type
	if fileType == "" {
		fileType = info.Type
	}
	modified := f.LastModified
	if modified.IsZero() {
		modified = info.LastModified
	}

	dest := filepath.Join(dir, LocalName(f.ID, name))
	n, err := filex.WriteAtomic(dest, body, 0o640)
	if err != nil {
		return nil, err
	}

	meta := &models.MediaMetadata{
		ID:           f.ID,
		Name:         name,
		FileType:     fileType,
		Size:         n,
		LastModified: modified,
	}
	if err := im.store.SaveMetadata(ctx, meta); err != nil {
		return nil, err
	}

	if im.warmer != nil {
		im.warmer.GetOrGenerate(ctx, thumbnail.Descriptor{
			ID:   meta.ID,
			Name: meta.Name,
			Type: meta.FileType,
			URL:  dest,
		}, thumbnail.Options{})
	}
	return meta, nil
}

// safeID reports whether id can be used as a file name prefix inside the
// media directory.
func safeID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && !strings.Contains(id, "..")
}

// LocalName is the file name an imported file gets in the media directory.
// The id prefix keeps files with the same name in different folders apart.
func LocalName(id, name string) string {
	return id + "-" + strings.ReplaceAll(name, string(filepath.Separator), "_")
}
