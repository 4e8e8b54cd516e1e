package books

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gridworm/gridworm/internal/common"
	"github.com/gridworm/gridworm/internal/dbx"
	"github.com/gridworm/gridworm/internal/models"
)

const selectColumns = `SELECT id, title, author, shelf_id, pages, created_at FROM books`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Insert(ctx context.Context, b *models.Book) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO books (id, title, author, shelf_id, pages, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		b.ID, b.Title, b.Author, shelfOf(b), dbx.NullString(string(b.Pages)), dbx.FormatTime(b.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert book: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, b *models.Book) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE books SET title = ?, author = ?, shelf_id = ?, pages = ? WHERE id = ?`,
		b.Title, b.Author, shelfOf(b), dbx.NullString(string(b.Pages)), b.ID)
	if err != nil {
		return fmt.Errorf("failed to update book: %w", err)
	}
	if dbx.RowsAffected(res) == 0 {
		return fmt.Errorf("book %s: %w", b.ID, common.ErrNotFound)
	}
	return nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.Book, error) {
	b, err := scanBook(r.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("book %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get book: %w", err)
	}
	return b, nil
}

func (r *SQLiteRepository) GetAll(ctx context.Context) ([]models.Book, error) {
	return r.query(ctx, selectColumns+` ORDER BY created_at, id`)
}

func (r *SQLiteRepository) GetByShelf(ctx context.Context, shelfID string) ([]models.Book, error) {
	return r.query(ctx, selectColumns+` WHERE shelf_id = ? ORDER BY created_at, id`, shelfID)
}

func (r *SQLiteRepository) DeleteByID(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM books`); err != nil {
		return fmt.Errorf("failed to clear books: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) query(ctx context.Context, q string, args ...any) ([]models.Book, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select books: %w", err)
	}
	defer rows.Close()

	result := []models.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan book row: %w", err)
		}
		result = append(result, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate book rows: %w", err)
	}
	return result, nil
}

func shelfOf(b *models.Book) string {
	if b.ShelfID == "" {
		return models.DefaultShelfID
	}
	return b.ShelfID
}

func scanBook(s interface{ Scan(...any) error }) (*models.Book, error) {
	var (
		b         models.Book
		pages     sql.NullString
		createdAt string
	)
	if err := s.Scan(&b.ID, &b.Title, &b.Author, &b.ShelfID, &pages, &createdAt); err != nil {
		return nil, err
	}
	if pages.Valid {
		b.Pages = json.RawMessage(pages.String)
	}
	t, err := dbx.ParseTime(createdAt)
	if err != nil {
		return nil, err
	}
	b.CreatedAt = t
	return &b, nil
}
