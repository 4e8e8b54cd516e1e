package mediameta

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/gridworm/gridworm/internal/common"
	"github.com/gridworm/gridworm/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE media_metadata (
  id            TEXT PRIMARY KEY,
  name          TEXT NOT NULL,
  file_type     TEXT NOT NULL,
  size          INTEGER NOT NULL DEFAULT 0,
  last_modified TEXT NOT NULL
);`)
	require.NoError(t, err)
	return db
}

func TestUpsert_InsertThenOverwrite(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	lm := time.Date(2023, 7, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, r.Upsert(ctx, &models.MediaMetadata{ID: "m1", Name: "clip.mp4", FileType: "video/mp4", Size: 100, LastModified: lm}))
	require.NoError(t, r.Upsert(ctx, &models.MediaMetadata{ID: "m1", Name: "clip2.mp4", FileType: "video/mp4", Size: 200, LastModified: lm}))

	got, err := r.GetByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "clip2.mp4", got.Name)
	assert.Equal(t, int64(200), got.Size)
	assert.True(t, lm.Equal(got.LastModified))

	all, err := r.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetByID_Missing(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	_, err := r.GetByID(context.Background(), "x")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeleteAndClear(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, r.Upsert(ctx, &models.MediaMetadata{ID: id, Name: id, FileType: "image/png"}))
	}
	require.NoError(t, r.DeleteByID(ctx, "a"))
	require.NoError(t, r.DeleteByID(ctx, "a"))

	all, err := r.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, r.Clear(ctx))
	all, err = r.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestDBErrorsAreWrapped(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	ctx := context.Background()
	require.NoError(t, db.Close())

	require.ErrorContains(t, r.Upsert(ctx, &models.MediaMetadata{ID: "k"}), "failed to upsert media metadata[k]")
	_, err := r.GetByID(ctx, "k")
	require.ErrorContains(t, err, "failed to get media metadata[k]")
	_, err = r.GetAll(ctx)
	require.ErrorContains(t, err, "failed to list media metadata")
	require.ErrorContains(t, r.DeleteByID(ctx, "k"), "failed to delete media metadata[k]")
	require.ErrorContains(t, r.Clear(ctx), "failed to clear media metadata")
}
