package store

import (
	"context"
	"fmt"
	"time"

	"github.com/gridworm/gridworm/internal/models"
)

func (s *Store) SaveMetadata(ctx context.Context, m *models.MediaMetadata) error {
	if err := s.repos.MediaMetadata(s.db).Upsert(ctx, m); err != nil {
		return s.fail(ctx, "save metadata", err)
	}
	return nil
}

// BulkSaveMetadata upserts each item on its own. The first failure stops the
// remaining items; items already saved stay saved.
func (s *Store) BulkSaveMetadata(ctx context.Context, items []models.MediaMetadata) error {
	repo := s.repos.MediaMetadata(s.db)
	for i := range items {
		if err := repo.Upsert(ctx, &items[i]); err != nil {
			return s.fail(ctx, fmt.Sprintf("bulk save metadata (item %d of %d)", i+1, len(items)), err)
		}
	}
	return nil
}

func (s *Store) GetMetadata(ctx context.Context, id string) (*models.MediaMetadata, error) {
	m, err := s.repos.MediaMetadata(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, "get metadata", err)
	}
	return m, nil
}

func (s *Store) GetAllMetadata(ctx context.Context) ([]models.MediaMetadata, error) {
	all, err := s.repos.MediaMetadata(s.db).GetAll(ctx)
	if err != nil {
		return nil, s.fail(ctx, "get all metadata", err)
	}
	return all, nil
}

// DeleteMetadata removes the metadata record and then its thumbnail, as two
// separate statements. An interruption between them leaves an orphaned
// thumbnail for SweepOrphanThumbnails.
func (s *Store) DeleteMetadata(ctx context.Context, id string) error {
	if err := s.repos.MediaMetadata(s.db).DeleteByID(ctx, id); err != nil {
		return s.fail(ctx, "delete metadata", err)
	}
	if err := s.repos.Thumbnails(s.db).DeleteByMediaID(ctx, id); err != nil {
		return s.fail(ctx, "delete metadata thumbnail", err)
	}
	return nil
}

// SaveThumbnail stores data as the only thumbnail of mediaID.
func (s *Store) SaveThumbnail(ctx context.Context, mediaID string, data []byte, mimeType string) error {
	t := &models.Thumbnail{MediaID: mediaID, Data: data, MimeType: mimeType, GeneratedAt: s.timestamp()}
	if err := s.repos.Thumbnails(s.db).Upsert(ctx, t); err != nil {
		return s.fail(ctx, "save thumbnail", err)
	}
	return nil
}

// GetThumbnail returns the stored thumbnail or common.ErrNotFound.
func (s *Store) GetThumbnail(ctx context.Context, mediaID string) (*models.Thumbnail, error) {
	t, err := s.repos.Thumbnails(s.db).GetByMediaID(ctx, mediaID)
	if err != nil {
		return nil, s.fail(ctx, "get thumbnail", err)
	}
	return t, nil
}

// ClearOldThumbnails deletes thumbnails generated strictly before
// now - days. A thumbnail generated exactly at the cutoff is kept.
// It is never called by the store itself.
func (s *Store) ClearOldThumbnails(ctx context.Context, days int) (int, error) {
	if days <= 0 {
		days = DefaultRetentionDays
	}
	cutoff := s.timestamp().Add(-time.Duration(days) * 24 * time.Hour)
	n, err := s.repos.Thumbnails(s.db).DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, s.fail(ctx, "clear old thumbnails", err)
	}
	s.log.Info(ctx, "old thumbnails cleared", "days", days, "removed", n)
	return n, nil
}

// SweepOrphanThumbnails deletes thumbnails whose media metadata is gone.
func (s *Store) SweepOrphanThumbnails(ctx context.Context) (int, error) {
	n, err := s.repos.Thumbnails(s.db).DeleteOrphans(ctx)
	if err != nil {
		return 0, s.fail(ctx, "sweep orphan thumbnails", err)
	}
	s.log.Info(ctx, "orphan thumbnails swept", "removed", n)
	return n, nil
}
