// Package thumbnails persists at most one cached thumbnail per media asset.
package thumbnails

import (
	"context"
	"time"

	"github.com/gridworm/gridworm/internal/models"
)

type Repository interface {
	// Upsert replaces any previous thumbnail of the same media.
	Upsert(ctx context.Context, t *models.Thumbnail) error

	// GetByMediaID returns the thumbnail or common.ErrNotFound.
	GetByMediaID(ctx context.Context, mediaID string) (*models.Thumbnail, error)

	DeleteByMediaID(ctx context.Context, mediaID string) error

	// DeleteOlderThan removes thumbnails generated strictly before cutoff and
	// returns how many were removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)

	// DeleteOrphans removes thumbnails whose media has no metadata record and
	// returns how many were removed.
	DeleteOrphans(ctx context.Context) (int, error)
}
