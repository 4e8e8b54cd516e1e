package store

import (
	"context"

	"github.com/gridworm/gridworm/internal/models"
)

// SaveBook follows the SaveProject rule: no ID inserts, an ID updates.
func (s *Store) SaveBook(ctx context.Context, b *models.Book) (string, error) {
	repo := s.repos.Books(s.db)
	if b.ShelfID == "" {
		b.ShelfID = models.DefaultShelfID
	}

	if b.ID != "" {
		if err := repo.Update(ctx, b); err != nil {
			return "", s.fail(ctx, "save book", err)
		}
		return b.ID, nil
	}

	b.ID = s.newID()
	b.CreatedAt = s.timestamp()
	if err := repo.Insert(ctx, b); err != nil {
		b.ID = ""
		return "", s.fail(ctx, "save book", err)
	}
	return b.ID, nil
}

func (s *Store) GetBook(ctx context.Context, id string) (*models.Book, error) {
	b, err := s.repos.Books(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, "get book", err)
	}
	return b, nil
}

func (s *Store) GetAllBooks(ctx context.Context) ([]models.Book, error) {
	all, err := s.repos.Books(s.db).GetAll(ctx)
	if err != nil {
		return nil, s.fail(ctx, "get all books", err)
	}
	return all, nil
}

func (s *Store) GetBooksByShelf(ctx context.Context, shelfID string) ([]models.Book, error) {
	found, err := s.repos.Books(s.db).GetByShelf(ctx, shelfID)
	if err != nil {
		return nil, s.fail(ctx, "get books by shelf", err)
	}
	return found, nil
}

func (s *Store) DeleteBook(ctx context.Context, id string) error {
	if err := s.repos.Books(s.db).DeleteByID(ctx, id); err != nil {
		return s.fail(ctx, "delete book", err)
	}
	return nil
}
