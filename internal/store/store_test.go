package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/gridworm/gridworm/internal/common"
	"github.com/gridworm/gridworm/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func openTestStore(t *testing.T) (*Store, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	n := 0
	s, err := Open(context.Background(), Options{
		Path: MemoryPath,
		Now:  c.Now,
		NewID: func() string {
			n++
			return fmt.Sprintf("id-%03d", n)
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, c
}

func demoProject(name, author string) *models.Project {
	return &models.Project{
		Name:   name,
		Author: author,
		Payload: models.ProjectPayload{
			MediaFiles: []models.MediaFileRef{{
				ID: "m1", Name: "clip.mp4", Type: "video/mp4", Size: 1024,
				LastModified: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			}},
			GridSlots: json.RawMessage(`["m1",null,null]`),
			Shapes:    json.RawMessage(`[{"kind":"rect","x":1}]`),
			Extra:     map[string]json.RawMessage{"canvasZoom": json.RawMessage(`1.25`)},
		},
	}
}

func TestSaveProject_RoundTrip(t *testing.T) {
	s, c := openTestStore(t)
	ctx := context.Background()

	in := demoProject("Demo", "Ana")
	id, err := s.SaveProject(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "id-001", id)
	assert.Equal(t, id, in.ID)
	assert.Equal(t, c.Now(), in.CreatedAt)
	assert.Equal(t, c.Now(), in.UpdatedAt)

	got, err := s.LoadProject(ctx, id)
	require.NoError(t, err)
	if diff := cmp.Diff(in, got); diff != "" {
		t.Fatalf("loaded project mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveProject_EmptyAuthorIsStoredAsIs(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	id, err := s.SaveProject(ctx, &models.Project{Name: "Demo"})
	require.NoError(t, err)

	got, err := s.LoadProject(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "", got.Author)
	assert.NotNil(t, got.Payload.MediaFiles)
}

func TestSaveProject_UpdateDoesNotInsert(t *testing.T) {
	s, c := openTestStore(t)
	ctx := context.Background()

	p := demoProject("Demo", "Ana")
	id, err := s.SaveProject(ctx, p)
	require.NoError(t, err)
	created := p.CreatedAt

	c.Advance(time.Hour)
	p.Name = "Demo v2"
	p.Payload.GridSlots = json.RawMessage(`[]`)
	id2, err := s.SaveProject(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, id, id2)

	all, err := s.GetAllProjects(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Demo v2", all[0].Name)
	assert.JSONEq(t, `[]`, string(all[0].Payload.GridSlots))
	assert.Equal(t, created, all[0].CreatedAt)
	assert.Equal(t, c.Now(), all[0].UpdatedAt)
}

func TestSaveProject_UnknownIDReturnsNotFound(t *testing.T) {
	s, _ := openTestStore(t)

	_, err := s.SaveProject(context.Background(), &models.Project{ID: "ghost", Name: "x"})
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestLoadProject_Missing(t *testing.T) {
	s, _ := openTestStore(t)

	_, err := s.LoadProject(context.Background(), "nope")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestDeleteProject_Idempotent(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	id, err := s.SaveProject(ctx, demoProject("a", "b"))
	require.NoError(t, err)
	require.NoError(t, s.DeleteProject(ctx, id))
	require.NoError(t, s.DeleteProject(ctx, id))
	require.NoError(t, s.DeleteProject(ctx, "never-existed"))

	all, err := s.GetAllProjects(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSearchProjects(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	for _, p := range []*models.Project{
		demoProject("Holiday Board", "ana"),
		demoProject("Work", "Holly"),
		demoProject("Misc", "Bo"),
	} {
		_, err := s.SaveProject(ctx, p)
		require.NoError(t, err)
	}

	got, err := s.SearchProjects(ctx, "HOL")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = s.SearchProjects(ctx, "")
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestDeleteMetadata_CascadesToThumbnail(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveMetadata(ctx, &models.MediaMetadata{ID: "m1", Name: "a.mp4", FileType: "video/mp4", Size: 5}))
	require.NoError(t, s.SaveThumbnail(ctx, "m1", []byte("jpeg"), "image/jpeg"))

	require.NoError(t, s.DeleteMetadata(ctx, "m1"))

	_, err := s.GetThumbnail(ctx, "m1")
	require.ErrorIs(t, err, common.ErrNotFound)
	_, err = s.GetMetadata(ctx, "m1")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestBulkSaveMetadata_UpsertsEachItem(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.BulkSaveMetadata(ctx, []models.MediaMetadata{
		{ID: "a", Name: "a.png", FileType: "image/png"},
		{ID: "b", Name: "b.png", FileType: "image/png"},
		{ID: "a", Name: "a2.png", FileType: "image/png"},
	}))

	all, err := s.GetAllMetadata(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	got, err := s.GetMetadata(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "a2.png", got.Name)
}

func TestSaveThumbnail_KeepsLatest(t *testing.T) {
	s, c := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveThumbnail(ctx, "m", []byte("one"), "image/jpeg"))
	c.Advance(time.Minute)
	require.NoError(t, s.SaveThumbnail(ctx, "m", []byte("two"), "image/png"))

	got, err := s.GetThumbnail(ctx, "m")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got.Data)
	assert.Equal(t, "image/png", got.MimeType)
	assert.Equal(t, c.Now(), got.GeneratedAt)
}

func TestClearOldThumbnails_BoundaryIsRetained(t *testing.T) {
	s, c := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveThumbnail(ctx, "oldest", []byte("x"), "image/jpeg"))
	c.Advance(time.Second)
	require.NoError(t, s.SaveThumbnail(ctx, "exact", []byte("x"), "image/jpeg"))
	c.Advance(time.Hour)
	require.NoError(t, s.SaveThumbnail(ctx, "fresh", []byte("x"), "image/jpeg"))

	// now - 7 days lands exactly on "exact"
	c.Advance(7*24*time.Hour - time.Hour)

	n, err := s.ClearOldThumbnails(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = s.GetThumbnail(ctx, "oldest")
	require.ErrorIs(t, err, common.ErrNotFound)
	_, err = s.GetThumbnail(ctx, "exact")
	require.NoError(t, err)
	_, err = s.GetThumbnail(ctx, "fresh")
	require.NoError(t, err)
}

func TestClearOldThumbnails_NonPositiveDaysUsesDefault(t *testing.T) {
	s, c := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveThumbnail(ctx, "m", []byte("x"), "image/jpeg"))
	c.Advance(6 * 24 * time.Hour)

	n, err := s.ClearOldThumbnails(ctx, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSweepOrphanThumbnails(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveMetadata(ctx, &models.MediaMetadata{ID: "keep", Name: "k", FileType: "video/mp4"}))
	require.NoError(t, s.SaveThumbnail(ctx, "keep", []byte("x"), "image/jpeg"))
	require.NoError(t, s.SaveThumbnail(ctx, "orphan", []byte("x"), "image/jpeg"))

	n, err := s.SweepOrphanThumbnails(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSettings(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveSetting(ctx, "darkMode", true))
	require.NoError(t, s.SaveSetting(ctx, "layout", map[string]int{"cols": 4}))
	require.NoError(t, s.SaveSetting(ctx, "darkMode", false))

	var dark bool
	ok, err := s.GetSetting(ctx, "darkMode", &dark)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, dark)

	var layout map[string]int
	ok, err = s.GetSetting(ctx, "layout", &layout)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 4, layout["cols"])

	var missing string
	ok, err = s.GetSetting(ctx, "missing", &missing)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.DeleteSetting(ctx, "layout"))
	all, err := s.GetAllSettings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "darkMode", all[0].Key)
}

func TestBooks(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	b := &models.Book{Title: "Notes", Author: "Ana"}
	id, err := s.SaveBook(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultShelfID, b.ShelfID)

	_, err = s.SaveBook(ctx, &models.Book{Title: "Other", ShelfID: "s2"})
	require.NoError(t, err)

	b.Title = "Notes 2"
	_, err = s.SaveBook(ctx, b)
	require.NoError(t, err)

	got, err := s.GetBook(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Notes 2", got.Title)

	shelf, err := s.GetBooksByShelf(ctx, "s2")
	require.NoError(t, err)
	assert.Len(t, shelf, 1)

	require.NoError(t, s.DeleteBook(ctx, id))
	all, err := s.GetAllBooks(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestExportDatabase_Empty(t *testing.T) {
	s, c := openTestStore(t)

	snap, err := s.ExportDatabase(context.Background())
	require.NoError(t, err)

	out, err := json.Marshal(snap)
	require.NoError(t, err)
	want := fmt.Sprintf(`{"version":1,"exportedAt":%q,"data":{"projects":[],"mediaMetadata":[],"books":[],"settings":[]}}`,
		c.Now().Format(time.RFC3339Nano))
	assert.JSONEq(t, want, string(out))
}

func TestExportImport_RoundTripExcludesThumbnails(t *testing.T) {
	src, _ := openTestStore(t)
	ctx := context.Background()

	_, err := src.SaveProject(ctx, demoProject("Demo", "Ana"))
	require.NoError(t, err)
	require.NoError(t, src.SaveMetadata(ctx, &models.MediaMetadata{ID: "m1", Name: "clip.mp4", FileType: "video/mp4", Size: 1}))
	require.NoError(t, src.SaveThumbnail(ctx, "m1", []byte("jpeg"), "image/jpeg"))
	_, err = src.SaveBook(ctx, &models.Book{Title: "B", ShelfID: "s1"})
	require.NoError(t, err)
	require.NoError(t, src.SaveSetting(ctx, "darkMode", true))

	snap, err := src.ExportDatabase(ctx)
	require.NoError(t, err)

	dst, _ := openTestStore(t)
	_, err = dst.SaveProject(ctx, demoProject("Replaced", "X"))
	require.NoError(t, err)
	require.NoError(t, dst.ImportDatabase(ctx, snap))

	again, err := dst.ExportDatabase(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(snap.Data, again.Data); diff != "" {
		t.Fatalf("imported data mismatch (-want +got):\n%s", diff)
	}
	_, err = dst.GetThumbnail(ctx, "m1")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func TestImportDatabase_UnsupportedVersionLeavesTablesUntouched(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	_, err := s.SaveProject(ctx, demoProject("Keep", "me"))
	require.NoError(t, err)
	require.NoError(t, s.SaveSetting(ctx, "darkMode", true))

	err = s.ImportDatabase(ctx, &models.Snapshot{Version: 2})
	require.ErrorIs(t, err, common.ErrUnsupportedVersion)

	all, err := s.GetAllProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	settings, err := s.GetAllSettings(ctx)
	require.NoError(t, err)
	assert.Len(t, settings, 1)
}

func TestImportDatabase_NilSnapshot(t *testing.T) {
	s, _ := openTestStore(t)

	err := s.ImportDatabase(context.Background(), nil)
	require.ErrorIs(t, err, common.ErrValidation)
}

func TestImportDatabase_FailureRollsBack(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()

	_, err := s.SaveProject(ctx, demoProject("Keep", "me"))
	require.NoError(t, err)

	snap := &models.Snapshot{Version: 1}
	snap.Data.Projects = []models.Project{
		{ID: "dup", Name: "a"},
		{ID: "dup", Name: "b"},
	}
	require.Error(t, s.ImportDatabase(ctx, snap))

	all, err := s.GetAllProjects(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Keep", all[0].Name)
}

func TestDatabaseSize_InMemoryIsNil(t *testing.T) {
	s, _ := openTestStore(t)

	u, err := s.DatabaseSize(context.Background())
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestDatabaseSize_File(t *testing.T) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" && runtime.GOOS != "freebsd" {
		t.Skip("no filesystem statistics on this platform")
	}
	ctx := context.Background()
	s, err := Open(ctx, Options{Path: filepath.Join(t.TempDir(), "gridworm.db")})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.SaveProject(ctx, demoProject("Demo", "Ana"))
	require.NoError(t, err)

	u, err := s.DatabaseSize(ctx)
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Positive(t, u.Used)
	assert.GreaterOrEqual(t, u.Quota, u.Used)
	assert.Greater(t, u.Percentage, 0.0)
	assert.LessOrEqual(t, u.Percentage, 100.0)
}

func TestOperationsAfterCloseFail(t *testing.T) {
	s, _ := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Close())

	_, err := s.SaveProject(ctx, demoProject("a", "b"))
	require.Error(t, err)
	_, err = s.GetAllProjects(ctx)
	require.Error(t, err)
	require.Error(t, s.SaveSetting(ctx, "k", 1))
}

func TestOpen_Failures(t *testing.T) {
	orig := sqlOpen
	defer func() { sqlOpen = orig }()

	sqlOpen = func(string, string) (*sql.DB, error) { return nil, errors.New("no driver") }
	_, err := Open(context.Background(), Options{Path: MemoryPath})
	require.ErrorContains(t, err, "no driver")

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing().WillReturnError(errors.New("locked"))
	sqlOpen = func(string, string) (*sql.DB, error) { return db, nil }

	_, err = Open(context.Background(), Options{Path: MemoryPath})
	require.ErrorContains(t, err, "open database: locked")
}

func TestStorageErrorsPropagate(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	s := newWithDB(db, Options{Path: MemoryPath, NewID: func() string { return "new-id" }})
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO projects`).WillReturnError(errors.New("disk full"))
	p := demoProject("x", "y")
	_, err = s.SaveProject(ctx, p)
	require.ErrorContains(t, err, "save project")
	require.ErrorContains(t, err, "disk full")
	assert.Empty(t, p.ID, "id is assigned only on a successful save")

	mock.ExpectExec(`INSERT INTO media_metadata`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO media_metadata`).WillReturnError(errors.New("quota exceeded"))
	err = s.BulkSaveMetadata(ctx, []models.MediaMetadata{{ID: "a"}, {ID: "b"}, {ID: "c"}})
	require.ErrorContains(t, err, "item 2 of 3")
	require.ErrorContains(t, err, "quota exceeded")

	mock.ExpectExec(`DELETE FROM media_metadata`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM thumbnails`).WillReturnError(errors.New("io"))
	err = s.DeleteMetadata(ctx, "a")
	require.ErrorContains(t, err, "delete metadata thumbnail")

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM projects`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM media_metadata`).WillReturnError(errors.New("aborted"))
	mock.ExpectRollback()
	err = s.ImportDatabase(ctx, &models.Snapshot{Version: 1})
	require.ErrorContains(t, err, "import database: failed to clear media metadata: aborted")

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportDatabase_VersionCheckedBeforeAnyStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	s := newWithDB(db, Options{Path: MemoryPath})
	err = s.ImportDatabase(context.Background(), &models.Snapshot{Version: 0})
	require.ErrorIs(t, err, common.ErrUnsupportedVersion)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDSN(t *testing.T) {
	assert.Equal(t, ":memory:", dsn(":memory:"))
	assert.Equal(t, "file:/tmp/g.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dsn("/tmp/g.db"))
	assert.Equal(t, "file:g.db?cache=shared&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dsn("file:g.db?cache=shared"))
}
