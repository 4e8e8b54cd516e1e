package legacy

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gridworm/gridworm/internal/common"
	"github.com/gridworm/gridworm/internal/models"
	"github.com/gridworm/gridworm/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), store.Options{Path: store.MemoryPath})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

const legacyProjects = `[
  {"id": 17, "name": "Old board", "createdAt": "2023-01-01T00:00:00Z",
   "mediaFiles": [{"id": "m1", "name": "a.png", "type": "image/png", "size": 10, "lastModified": 1700000000000}],
   "gridSlots": ["m1", null], "zoom": 2},
  {"id": 18, "author": "Bo"},
  {"id": 19, "name": "Nested", "author": "Cy", "data": {"shapes": [{"kind": "rect"}]}}
]`

func TestRun_MigratesAllUnits(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	src := MapSource{
		KeySavedProjects: legacyProjects,
		KeyBookshelf:     `{"shelves":[{"id":"s1","books":[{"title":"A","author":"X","pages":[1,2]},{"name":"B"}]},{"books":[{"title":""}]}]}`,
		KeyDarkMode:      "true",
		"gridSize":       "not json",
	}

	report, err := NewMigrator(src, st, nil, "gridSize").Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, report.Errors)
	assert.Equal(t, 2, report.Projects)
	assert.Equal(t, 2, report.Books)
	assert.Equal(t, 2, report.Settings)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, "true", src[KeyCompleted])

	projects, err := st.GetAllProjects(ctx)
	require.NoError(t, err)
	require.Len(t, projects, 2)
	byName := map[string]models.Project{}
	for _, p := range projects {
		byName[p.Name] = p
	}

	old := byName["Old board"]
	assert.NotEqual(t, "17", old.ID)
	assert.Equal(t, common.DefaultAuthor, old.Author)
	require.Len(t, old.Payload.MediaFiles, 1)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), old.Payload.MediaFiles[0].LastModified.UTC())
	assert.JSONEq(t, `["m1", null]`, string(old.Payload.GridSlots))
	assert.JSONEq(t, `2`, string(old.Payload.Extra["zoom"]))

	nested := byName["Nested"]
	assert.Equal(t, "Cy", nested.Author)
	assert.JSONEq(t, `[{"kind":"rect"}]`, string(nested.Payload.Shapes))

	books, err := st.GetBooksByShelf(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, books, 2)

	var dark bool
	found, err := st.GetSetting(ctx, KeyDarkMode, &dark)
	require.NoError(t, err)
	assert.True(t, found)
	assert.True(t, dark)

	var grid string
	found, err = st.GetSetting(ctx, "gridSize", &grid)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "not json", grid)
}

func TestRun_BareBookList(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	src := MapSource{KeyBookshelf: `{"books":[{"title":"Solo"}]}`}

	report, err := NewMigrator(src, st, nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Books)

	books, err := st.GetBooksByShelf(ctx, models.DefaultShelfID)
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Solo", books[0].Title)
}

func TestRun_SkipsWhenCompleted(t *testing.T) {
	st := openStore(t)
	src := MapSource{KeyCompleted: "true", KeySavedProjects: legacyProjects}

	report, err := NewMigrator(src, st, nil).Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.AlreadyDone)

	projects, err := st.GetAllProjects(context.Background())
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestRun_SecondRunIsNoop(t *testing.T) {
	ctx := context.Background()
	st := openStore(t)
	src := MapSource{KeySavedProjects: legacyProjects}

	_, err := NewMigrator(src, st, nil).Run(ctx)
	require.NoError(t, err)
	report, err := NewMigrator(src, st, nil).Run(ctx)
	require.NoError(t, err)
	assert.True(t, report.AlreadyDone)

	projects, err := st.GetAllProjects(ctx)
	require.NoError(t, err)
	assert.Len(t, projects, 2)
}

type failingStore struct {
	*store.Store
	bookErr error
}

func (f *failingStore) SaveBook(ctx context.Context, b *models.Book) (string, error) {
	return "", f.bookErr
}

func TestRun_FailedUnitDoesNotStopOthers(t *testing.T) {
	ctx := context.Background()
	st := &failingStore{Store: openStore(t), bookErr: errors.New("disk full")}
	src := MapSource{
		KeySavedProjects: `not json`,
		KeyBookshelf:     `{"books":[{"title":"A"}]}`,
		KeyDarkMode:      "false",
	}

	report, err := NewMigrator(src, st, nil).Run(ctx)
	require.NoError(t, err)
	require.Len(t, report.Errors, 2)
	assert.ErrorContains(t, report.Errors[0], "projects: decode gridworm_saved_projects")
	assert.ErrorContains(t, report.Errors[1], "bookshelf: save book \"A\": disk full")
	assert.Equal(t, 1, report.Settings)
	assert.Equal(t, "true", src[KeyCompleted])
}

type panicStore struct{ *store.Store }

func (panicStore) SaveProject(context.Context, *models.Project) (string, error) {
	panic("boom")
}

func TestRun_PanicInUnitIsRecovered(t *testing.T) {
	src := MapSource{KeySavedProjects: `[{"name":"x"}]`}
	report, err := NewMigrator(src, panicStore{openStore(t)}, nil).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Errors, 1)
	assert.ErrorContains(t, report.Errors[0], "panic: boom")
	assert.Equal(t, "true", src[KeyCompleted])
}

type readOnlySource struct{ MapSource }

func (readOnlySource) Set(string, string) error { return errors.New("read-only") }

func TestRun_FlagWriteError(t *testing.T) {
	_, err := NewMigrator(readOnlySource{MapSource{}}, openStore(t), nil).Run(context.Background())
	require.ErrorContains(t, err, "set migration flag: read-only")
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "localStorage.json")

	dump := map[string]any{
		KeyDarkMode:      "true",
		KeySavedProjects: []any{map[string]any{"name": "x"}},
	}
	data, err := json.Marshal(dump)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	src, err := OpenFileSource(path)
	require.NoError(t, err)

	v, ok := src.Get(KeyDarkMode)
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	v, ok = src.Get(KeySavedProjects)
	assert.True(t, ok)
	assert.JSONEq(t, `[{"name":"x"}]`, v)

	require.NoError(t, src.Set(KeyCompleted, "true"))

	reopened, err := OpenFileSource(path)
	require.NoError(t, err)
	v, ok = reopened.Get(KeyCompleted)
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileSource_MissingFileIsEmpty(t *testing.T) {
	src, err := OpenFileSource(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	_, ok := src.Get(KeyDarkMode)
	assert.False(t, ok)
}

func TestFileSource_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0o600))
	_, err := OpenFileSource(path)
	require.ErrorContains(t, err, "decode legacy dump")
}

func TestFileSource_SetFailureKeepsOldValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing-dir", "dump.json")
	src, err := OpenFileSource(path)
	require.NoError(t, err)

	require.Error(t, src.Set(KeyCompleted, "true"))
	_, ok := src.Get(KeyCompleted)
	assert.False(t, ok)
}
