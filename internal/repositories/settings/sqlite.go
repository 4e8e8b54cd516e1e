package settings

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gridworm/gridworm/internal/dbx"
	"github.com/gridworm/gridworm/internal/models"
)

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Get(ctx context.Context, key string) (*models.Setting, error) {
	var value, updatedAt string
	err := r.db.QueryRowContext(ctx, `SELECT value, updated_at FROM settings WHERE key = ?`, key).
		Scan(&value, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get setting[%s]: %w", key, err)
	}
	s := &models.Setting{Key: key, Value: json.RawMessage(value)}
	if s.UpdatedAt, err = dbx.ParseTime(updatedAt); err != nil {
		return nil, fmt.Errorf("failed to get setting[%s]: %w", key, err)
	}
	return s, nil
}

func (r *SQLiteRepository) Set(ctx context.Context, s *models.Setting) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, s.Key, string(s.Value), dbx.FormatTime(s.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to set setting[%s]: %w", s.Key, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete setting[%s]: %w", key, err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM settings`)
	if err != nil {
		return fmt.Errorf("failed to clear settings: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) List(ctx context.Context) ([]models.Setting, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value, updated_at FROM settings ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	result := []models.Setting{}
	for rows.Next() {
		var key, value, updatedAt string
		if err := rows.Scan(&key, &value, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan settings row: %w", err)
		}
		ts, err := dbx.ParseTime(updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan settings row: %w", err)
		}
		result = append(result, models.Setting{Key: key, Value: json.RawMessage(value), UpdatedAt: ts})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settings rows: %w", err)
	}

	return result, nil
}
