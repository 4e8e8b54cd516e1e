// Package books persists saved books and their shelf grouping.
package books

import (
	"context"

	"github.com/gridworm/gridworm/internal/models"
)

type Repository interface {
	Insert(ctx context.Context, b *models.Book) error
	// Update returns common.ErrNotFound when no row has the book ID.
	Update(ctx context.Context, b *models.Book) error
	GetByID(ctx context.Context, id string) (*models.Book, error)
	GetAll(ctx context.Context) ([]models.Book, error)
	GetByShelf(ctx context.Context, shelfID string) ([]models.Book, error)
	DeleteByID(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}
