package mediameta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

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

// Upsert inserts the record or overwrites every column of an existing one.
func (r *SQLiteRepository) Upsert(ctx context.Context, m *models.MediaMetadata) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO media_metadata (id, name, file_type, size, last_modified)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			file_type = excluded.file_type,
			size = excluded.size,
			last_modified = excluded.last_modified`,
		m.ID, m.Name, m.FileType, m.Size, dbx.FormatTime(m.LastModified))
	if err != nil {
		return fmt.Errorf("failed to upsert media metadata[%s]: %w", m.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.MediaMetadata, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, name, file_type, size, last_modified FROM media_metadata WHERE id = ?`, id)
	m, err := scanMetadata(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("media metadata %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get media metadata[%s]: %w", id, err)
	}
	return m, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.MediaMetadata, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, file_type, size, last_modified FROM media_metadata ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list media metadata: %w", err)
	}
	defer rows.Close()

	result := []models.MediaMetadata{}
	for rows.Next() {
		m, err := scanMetadata(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media metadata row: %w", err)
		}
		result = append(result, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate media metadata rows: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM media_metadata WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete media metadata[%s]: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM media_metadata`); err != nil {
		return fmt.Errorf("failed to clear media metadata: %w", err)
	}
	return nil
}

func scanMetadata(s interface{ Scan(...any) error }) (*models.MediaMetadata, error) {
	var (
		m            models.MediaMetadata
		lastModified string
	)
	if err := s.Scan(&m.ID, &m.Name, &m.FileType, &m.Size, &lastModified); err != nil {
		return nil, err
	}
	t, err := dbx.ParseTime(lastModified)
	if err != nil {
		return nil, err
	}
	m.LastModified = t
	return &m, nil
}
