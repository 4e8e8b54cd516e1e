package thumbnails

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gridworm/gridworm/internal/common"
	"github.com/gridworm/gridworm/internal/dbx"
	"github.com/gridworm/gridworm/internal/models"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Upsert(ctx context.Context, t *models.Thumbnail) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO thumbnails (media_id, data, mime_type, generated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(media_id) DO UPDATE SET
			data = excluded.data,
			mime_type = excluded.mime_type,
			generated_at = excluded.generated_at`,
		t.MediaID, t.Data, t.MimeType, dbx.FormatTime(t.GeneratedAt))
	if err != nil {
		return fmt.Errorf("failed to upsert thumbnail[%s]: %w", t.MediaID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetByMediaID(ctx context.Context, mediaID string) (*models.Thumbnail, error) {
	var (
		t           models.Thumbnail
		generatedAt string
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT media_id, data, mime_type, generated_at FROM thumbnails WHERE media_id = ?`, mediaID).
		Scan(&t.MediaID, &t.Data, &t.MimeType, &generatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("thumbnail %s: %w", mediaID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get thumbnail[%s]: %w", mediaID, err)
	}
	if t.GeneratedAt, err = dbx.ParseTime(generatedAt); err != nil {
		return nil, fmt.Errorf("failed to get thumbnail[%s]: %w", mediaID, err)
	}
	return &t, nil
}

func (r *SQLiteRepository) DeleteByMediaID(ctx context.Context, mediaID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM thumbnails WHERE media_id = ?`, mediaID); err != nil {
		return fmt.Errorf("failed to delete thumbnail[%s]: %w", mediaID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM thumbnails WHERE generated_at < ?`, dbx.FormatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to delete old thumbnails: %w", err)
	}
	return int(dbx.RowsAffected(res)), nil
}

func (r *SQLiteRepository) DeleteOrphans(ctx context.Context) (int, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM thumbnails
		WHERE NOT EXISTS (SELECT 1 FROM media_metadata m WHERE m.id = thumbnails.media_id)`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete orphan thumbnails: %w", err)
	}
	return int(dbx.RowsAffected(res)), nil
}
