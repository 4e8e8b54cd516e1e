// Package settings persists application settings as JSON values under
// string keys.
package settings

import (
	"context"

	"github.com/gridworm/gridworm/internal/models"
)

type Repository interface {
	// Get returns (nil, nil) when the key is absent.
	Get(ctx context.Context, key string) (*models.Setting, error)
	// Set inserts or overwrites the value of key.
	Set(ctx context.Context, s *models.Setting) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]models.Setting, error)
	Clear(ctx context.Context) error
}
