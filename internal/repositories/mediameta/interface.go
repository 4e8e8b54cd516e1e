// Package mediameta persists descriptive metadata of media assets.
package mediameta

import (
	"context"

	"github.com/gridworm/gridworm/internal/models"
)

type Repository interface {
	Upsert(ctx context.Context, m *models.MediaMetadata) error
	GetByID(ctx context.Context, id string) (*models.MediaMetadata, error)
	GetAll(ctx context.Context) ([]models.MediaMetadata, error)
	DeleteByID(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}
