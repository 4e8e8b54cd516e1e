package store

import (
	"context"
	"fmt"

	"github.com/gridworm/gridworm/internal/common"
	"github.com/gridworm/gridworm/internal/dbx"
	"github.com/gridworm/gridworm/internal/models"
)

// ExportDatabase reads projects, media metadata, books and settings into a
// version 1 snapshot. Thumbnails are not exported.
func (s *Store) ExportDatabase(ctx context.Context) (*models.Snapshot, error) {
	snap := &models.Snapshot{Version: common.SnapshotVersion, ExportedAt: s.timestamp()}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var err error
		if snap.Data.Projects, err = s.repos.Projects(tx).GetAll(ctx); err != nil {
			return err
		}
		if snap.Data.MediaMetadata, err = s.repos.MediaMetadata(tx).GetAll(ctx); err != nil {
			return err
		}
		if snap.Data.Books, err = s.repos.Books(tx).GetAll(ctx); err != nil {
			return err
		}
		snap.Data.Settings, err = s.repos.Settings(tx).List(ctx)
		return err
	})
	if err != nil {
		return nil, s.fail(ctx, "export database", err)
	}

	snap.Data.Normalize()
	return snap, nil
}

// ImportDatabase replaces projects, media metadata, books and settings with
// the contents of snap. A snapshot of any version other than 1 is rejected
// with common.ErrUnsupportedVersion before anything is touched. The clear and
// the inserts run in one transaction.
func (s *Store) ImportDatabase(ctx context.Context, snap *models.Snapshot) error {
	if snap == nil {
		return fmt.Errorf("import database: empty snapshot: %w", common.ErrValidation)
	}
	if snap.Version != common.SnapshotVersion {
		return fmt.Errorf("import database: version %d: %w", snap.Version, common.ErrUnsupportedVersion)
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		projects := s.repos.Projects(tx)
		media := s.repos.MediaMetadata(tx)
		books := s.repos.Books(tx)
		settings := s.repos.Settings(tx)

		if err := projects.Clear(ctx); err != nil {
			return err
		}
		if err := media.Clear(ctx); err != nil {
			return err
		}
		if err := books.Clear(ctx); err != nil {
			return err
		}
		if err := settings.Clear(ctx); err != nil {
			return err
		}

		now := s.timestamp()
		for i := range snap.Data.Projects {
			p := snap.Data.Projects[i]
			if p.ID == "" {
				p.ID = s.newID()
			}
			if p.CreatedAt.IsZero() {
				p.CreatedAt = now
			}
			if p.UpdatedAt.IsZero() {
				p.UpdatedAt = p.CreatedAt
			}
			if err := projects.Insert(ctx, &p); err != nil {
				return err
			}
		}
		for i := range snap.Data.MediaMetadata {
			if err := media.Upsert(ctx, &snap.Data.MediaMetadata[i]); err != nil {
				return err
			}
		}
		for i := range snap.Data.Books {
			b := snap.Data.Books[i]
			if b.ID == "" {
				b.ID = s.newID()
			}
			if b.CreatedAt.IsZero() {
				b.CreatedAt = now
			}
			if err := books.Insert(ctx, &b); err != nil {
				return err
			}
		}
		for i := range snap.Data.Settings {
			st := snap.Data.Settings[i]
			if len(st.Value) == 0 {
				st.Value = []byte("null")
			}
			if st.UpdatedAt.IsZero() {
				st.UpdatedAt = now
			}
			if err := settings.Set(ctx, &st); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return s.fail(ctx, "import database", err)
	}

	s.log.Info(ctx, "database imported",
		"projects", len(snap.Data.Projects),
		"media", len(snap.Data.MediaMetadata),
		"books", len(snap.Data.Books),
		"settings", len(snap.Data.Settings))
	return nil
}
