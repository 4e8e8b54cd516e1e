package store

import (
	"context"

	"github.com/gridworm/gridworm/internal/models"
)

// SaveProject inserts p when it has no ID, assigning ID, CreatedAt and
// UpdatedAt, or overwrites the stored record with the same ID and refreshes
// UpdatedAt. Saving an ID that is not stored returns common.ErrNotFound.
// p is updated in place and its ID is returned. The payload is not
// validated.
func (s *Store) SaveProject(ctx context.Context, p *models.Project) (string, error) {
	now := s.timestamp()
	repo := s.repos.Projects(s.db)

	if p.ID != "" {
		prev := p.UpdatedAt
		p.UpdatedAt = now
		if err := repo.Update(ctx, p); err != nil {
			p.UpdatedAt = prev
			return "", s.fail(ctx, "save project", err)
		}
		return p.ID, nil
	}

	prevCreated, prevUpdated := p.CreatedAt, p.UpdatedAt
	p.ID = s.newID()
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := repo.Insert(ctx, p); err != nil {
		p.ID, p.CreatedAt, p.UpdatedAt = "", prevCreated, prevUpdated
		return "", s.fail(ctx, "save project", err)
	}
	return p.ID, nil
}

// LoadProject returns the full project or common.ErrNotFound.
func (s *Store) LoadProject(ctx context.Context, id string) (*models.Project, error) {
	p, err := s.repos.Projects(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, s.fail(ctx, "load project", err)
	}
	return p, nil
}

// GetAllProjects returns every project, most recently updated first.
func (s *Store) GetAllProjects(ctx context.Context) ([]models.Project, error) {
	all, err := s.repos.Projects(s.db).GetAll(ctx)
	if err != nil {
		return nil, s.fail(ctx, "get all projects", err)
	}
	return all, nil
}

// DeleteProject removes a project. Missing IDs are ignored.
func (s *Store) DeleteProject(ctx context.Context, id string) error {
	if err := s.repos.Projects(s.db).DeleteByID(ctx, id); err != nil {
		return s.fail(ctx, "delete project", err)
	}
	return nil
}

// SearchProjects matches query case-insensitively against name or author.
func (s *Store) SearchProjects(ctx context.Context, query string) ([]models.Project, error) {
	found, err := s.repos.Projects(s.db).Search(ctx, query)
	if err != nil {
		return nil, s.fail(ctx, "search projects", err)
	}
	return found, nil
}
