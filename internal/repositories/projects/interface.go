// Package projects persists workspace projects.
package projects

import (
	"context"

	"github.com/gridworm/gridworm/internal/models"
)

// Repository describes storage operations for projects.
type Repository interface {
	// Insert stores a new project. ID and timestamps must already be set.
	Insert(ctx context.Context, p *models.Project) error

	// Update overwrites name, author, payload and updated_at of an existing
	// project. It returns common.ErrNotFound when no row has the project ID.
	Update(ctx context.Context, p *models.Project) error

	// GetByID returns the project or common.ErrNotFound.
	GetByID(ctx context.Context, id string) (*models.Project, error)

	// GetAll returns every project, most recently updated first.
	GetAll(ctx context.Context) ([]models.Project, error)

	// DeleteByID removes a project. Deleting a missing project is not an error.
	DeleteByID(ctx context.Context, id string) error

	// Search returns projects whose name or author contains query,
	// case-insensitively. An empty query returns every project.
	Search(ctx context.Context, query string) ([]models.Project, error)

	// Clear removes every project.
	Clear(ctx context.Context) error
}
