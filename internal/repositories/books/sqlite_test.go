package books

import (
	"context"
	"database/sql"
	"encoding/json"
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
CREATE TABLE books (
  id         TEXT PRIMARY KEY,
  title      TEXT NOT NULL,
  author     TEXT NOT NULL,
  shelf_id   TEXT NOT NULL,
  pages      TEXT,
  created_at TEXT NOT NULL
);`)
	require.NoError(t, err)
	return db
}

func TestInsertGetUpdate(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	created := time.Date(2024, 4, 1, 9, 0, 0, 0, time.UTC)

	b := &models.Book{ID: "b1", Title: "Sketches", Author: "Ana", Pages: json.RawMessage(`[{"n":1}]`), CreatedAt: created}
	require.NoError(t, r.Insert(ctx, b))

	got, err := r.GetByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, models.DefaultShelfID, got.ShelfID)
	assert.JSONEq(t, `[{"n":1}]`, string(got.Pages))
	assert.True(t, created.Equal(got.CreatedAt))

	b.Title = "Sketches II"
	b.ShelfID = "s2"
	b.Pages = nil
	require.NoError(t, r.Update(ctx, b))

	got, err = r.GetByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Sketches II", got.Title)
	assert.Equal(t, "s2", got.ShelfID)
	assert.Nil(t, got.Pages)
}

func TestUpdateAndGet_Missing(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.ErrorIs(t, r.Update(ctx, &models.Book{ID: "ghost"}), common.ErrNotFound)
	_, err := r.GetByID(ctx, "ghost")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestGetByShelf(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, r.Insert(ctx, &models.Book{ID: "1", Title: "a", ShelfID: "s1", CreatedAt: now}))
	require.NoError(t, r.Insert(ctx, &models.Book{ID: "2", Title: "b", ShelfID: "s1", CreatedAt: now.Add(time.Second)}))
	require.NoError(t, r.Insert(ctx, &models.Book{ID: "3", Title: "c", ShelfID: "s2", CreatedAt: now}))

	s1, err := r.GetByShelf(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, s1, 2)
	assert.Equal(t, "1", s1[0].ID)

	none, err := r.GetByShelf(ctx, "empty")
	require.NoError(t, err)
	assert.Empty(t, none)

	all, err := r.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestDeleteAndClear(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Insert(ctx, &models.Book{ID: "1", CreatedAt: time.Now()}))
	require.NoError(t, r.Insert(ctx, &models.Book{ID: "2", CreatedAt: time.Now()}))
	require.NoError(t, r.DeleteByID(ctx, "1"))
	require.NoError(t, r.DeleteByID(ctx, "1"))

	all, err := r.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

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

	require.ErrorContains(t, r.Insert(ctx, &models.Book{ID: "1"}), "failed to insert book")
	require.ErrorContains(t, r.Update(ctx, &models.Book{ID: "1"}), "failed to update book")
	_, err := r.GetByID(ctx, "1")
	require.ErrorContains(t, err, "failed to get book")
	_, err = r.GetByShelf(ctx, "s")
	require.ErrorContains(t, err, "failed to select books")
	require.ErrorContains(t, r.DeleteByID(ctx, "1"), "failed to delete book")
	require.ErrorContains(t, r.Clear(ctx), "failed to clear books")
}
