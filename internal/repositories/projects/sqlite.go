package projects

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gridworm/gridworm/internal/common"
	"github.com/gridworm/gridworm/internal/dbx"
	"github.com/gridworm/gridworm/internal/models"
)

const selectColumns = `SELECT id, name, author, payload, created_at, updated_at FROM projects`

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, p *models.Project) error {
	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode project payload: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, author, payload, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Author, string(payload),
		dbx.FormatTime(p.CreatedAt), dbx.FormatTime(p.UpdatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, p *models.Project) error {
	payload, err := json.Marshal(p.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode project payload: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE projects SET name = ?, author = ?, payload = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.Author, string(payload), dbx.FormatTime(p.UpdatedAt), p.ID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if dbx.RowsAffected(res) == 0 {
		return fmt.Errorf("project %s: %w", p.ID, common.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	row := r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.Project, error) {
	return r.list(ctx, func(models.Project) bool { return true })
}

func (r *SQLiteRepository) Search(ctx context.Context, query string) ([]models.Project, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return r.GetAll(ctx)
	}
	return r.list(ctx, func(p models.Project) bool {
		return strings.Contains(strings.ToLower(p.Name), q) ||
			strings.Contains(strings.ToLower(p.Author), q)
	})
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM projects`); err != nil {
		return fmt.Errorf("failed to clear projects: %w", err)
	}
	return nil
}

// list filters in Go: SQLite lower() and LIKE only fold ASCII.
func (r *SQLiteRepository) list(ctx context.Context, keep func(models.Project) bool) ([]models.Project, error) {
	rows, err := r.db.QueryContext(ctx, selectColumns+` ORDER BY updated_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select projects: %w", err)
	}
	defer rows.Close()

	result := []models.Project{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project row: %w", err)
		}
		if keep(*p) {
			result = append(result, *p)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate project rows: %w", err)
	}
	return result, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(s scanner) (*models.Project, error) {
	var (
		p                    models.Project
		payload              string
		createdAt, updatedAt string
	)
	if err := s.Scan(&p.ID, &p.Name, &p.Author, &payload, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(payload), &p.Payload); err != nil {
		return nil, fmt.Errorf("decode payload of %s: %w", p.ID, err)
	}
	var err error
	if p.CreatedAt, err = dbx.ParseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = dbx.ParseTime(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
