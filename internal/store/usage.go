package store

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/gridworm/gridworm/internal/models"
)

// DatabaseSize estimates the space used by the database. It returns nil,
// nil when no estimate is possible: an in-memory database, or a platform
// without a filesystem statistics call.
func (s *Store) DatabaseSize(ctx context.Context) (*models.StorageUsage, error) {
	if s.path == MemoryPath || strings.Contains(s.path, "mode=memory") {
		return nil, nil
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_count`).Scan(&pageCount); err != nil {
		return nil, s.fail(ctx, "database size", err)
	}
	if err := s.db.QueryRowContext(ctx, `PRAGMA page_size`).Scan(&pageSize); err != nil {
		return nil, s.fail(ctx, "database size", err)
	}
	used := pageCount * pageSize

	dir := filepath.Dir(strings.TrimPrefix(strings.SplitN(s.path, "?", 2)[0], "file:"))
	free, ok, err := filesystemFree(dir)
	if !ok {
		return nil, nil
	}
	if err != nil {
		return nil, s.fail(ctx, "database size", err)
	}

	return usage(used, used+free), nil
}

func usage(used, quota int64) *models.StorageUsage {
	u := &models.StorageUsage{Used: used, Quota: quota}
	if quota > 0 {
		u.Percentage = float64(used) / float64(quota) * 100
	}
	return u
}
