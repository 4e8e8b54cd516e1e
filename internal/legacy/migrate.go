// Package legacy moves data left in browser localStorage by old Gridworm
// versions into the project store. The migration runs once: a completion
// flag is written back to the source when it finishes.
package legacy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gridworm/gridworm/internal/common"
	"github.com/gridworm/gridworm/internal/logging"
	"github.com/gridworm/gridworm/internal/models"
)

// Legacy localStorage keys.
const (
	KeySavedProjects = "gridworm_saved_projects"
	KeyBookshelf     = "gridworm_bookshelf_data"
	KeyDarkMode      = "darkMode"
	KeyCompleted     = "gridworm_migration_completed"
)

// Store is the part of the project store the migration writes to.
type Store interface {
	SaveProject(ctx context.Context, p *models.Project) (string, error)
	SaveBook(ctx context.Context, b *models.Book) (string, error)
	SaveSetting(ctx context.Context, key string, value any) error
}

// Report summarizes one run.
type Report struct {
	// AlreadyDone is set when the completion flag was found.
	AlreadyDone bool
	Projects    int
	Books       int
	Settings    int
	// Skipped counts legacy entries that could not be interpreted.
	Skipped int
	// Errors holds one entry per failed unit.
	Errors []error
}

type Migrator struct {
	source      Source
	store       Store
	log         logging.Logger
	settingKeys []string
}

// NewMigrator builds a migrator. settingKeys lists generic settings to
// carry over in addition to darkMode.
func NewMigrator(source Source, store Store, log logging.Logger, settingKeys ...string) *Migrator {
	if log == nil {
		log = logging.Nop()
	}
	keys := append([]string{KeyDarkMode}, settingKeys...)
	return &Migrator{source: source, store: store, log: log, settingKeys: keys}
}

type unit struct {
	name string
	run  func(ctx context.Context, r *Report) error
}

// Run migrates projects, the bookshelf and settings, each in its own
// failure boundary: a failing unit is logged and recorded in the report and
// the next unit still runs. The completion flag is written afterwards even
// when a unit failed. The returned error is only about the flag.
func (m *Migrator) Run(ctx context.Context) (Report, error) {
	var report Report
	if v, ok := m.source.Get(KeyCompleted); ok && v == "true" {
		report.AlreadyDone = true
		return report, nil
	}

	units := []unit{
		{"projects", m.migrateProjects},
		{"bookshelf", m.migrateBookshelf},
		{"settings", m.migrateSettings},
	}
	for _, u := range units {
		if err := m.guard(ctx, u, &report); err != nil {
			m.log.Error(ctx, "legacy migration unit failed", "unit", u.name, "error", err)
			report.Errors = append(report.Errors, fmt.Errorf("%s: %w", u.name, err))
		}
	}

	if err := m.source.Set(KeyCompleted, "true"); err != nil {
		return report, fmt.Errorf("set migration flag: %w", err)
	}

	m.log.Info(ctx, "legacy migration finished",
		"projects", report.Projects,
		"books", report.Books,
		"settings", report.Settings,
		"skipped", report.Skipped,
		"failed_units", len(report.Errors))
	return report, nil
}

func (m *Migrator) guard(ctx context.Context, u unit, r *Report) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return u.run(ctx, r)
}

// projectMetaKeys are not part of the workspace payload.
var projectMetaKeys = []string{"id", "name", "author", "createdAt", "updatedAt", "timestamp"}

func (m *Migrator) migrateProjects(ctx context.Context, r *Report) error {
	raw, ok := m.source.Get(KeySavedProjects)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}

	var entries []map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return fmt.Errorf("decode %s: %w", KeySavedProjects, err)
	}

	for i, entry := range entries {
		p, err := legacyProject(entry)
		if err != nil {
			m.log.Warn(ctx, "legacy project skipped", "index", i, "error", err)
			r.Skipped++
			continue
		}
		if _, err := m.store.SaveProject(ctx, p); err != nil {
			return fmt.Errorf("save project %q: %w", p.Name, err)
		}
		r.Projects++
	}
	return nil
}

func legacyProject(entry map[string]json.RawMessage) (*models.Project, error) {
	name := stringField(entry, "name")
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("project has no name")
	}
	p := &models.Project{Name: name, Author: stringField(entry, "author")}
	if strings.TrimSpace(p.Author) == "" {
		p.Author = common.DefaultAuthor
	}

	body := make(map[string]json.RawMessage, len(entry))
	for k, v := range entry {
		body[k] = v
	}
	for _, k := range projectMetaKeys {
		delete(body, k)
	}
	// some versions nested the workspace under "data"
	if nested, ok := body["data"]; ok && len(body) == 1 {
		body = nil
		if err := json.Unmarshal(nested, &body); err != nil {
			return nil, fmt.Errorf("decode project data: %w", err)
		}
	}

	if files, ok := body["mediaFiles"]; ok {
		fixed, err := normalizeMediaFiles(files)
		if err != nil {
			return nil, err
		}
		body["mediaFiles"] = fixed
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(encoded, &p.Payload); err != nil {
		return nil, fmt.Errorf("decode project payload: %w", err)
	}
	return p, nil
}

type legacyShelf struct {
	ID    string                       `json:"id"`
	Books []map[string]json.RawMessage `json:"books"`
}

type legacyBookshelf struct {
	Shelves []legacyShelf                `json:"shelves"`
	Books   []map[string]json.RawMessage `json:"books"`
}

func (m *Migrator) migrateBookshelf(ctx context.Context, r *Report) error {
	raw, ok := m.source.Get(KeyBookshelf)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil
	}

	var shelf legacyBookshelf
	if err := json.Unmarshal([]byte(raw), &shelf); err != nil {
		return fmt.Errorf("decode %s: %w", KeyBookshelf, err)
	}
	if len(shelf.Books) > 0 {
		shelf.Shelves = append(shelf.Shelves, legacyShelf{ID: models.DefaultShelfID, Books: shelf.Books})
	}

	for _, s := range shelf.Shelves {
		shelfID := s.ID
		if shelfID == "" {
			shelfID = models.DefaultShelfID
		}
		for _, entry := range s.Books {
			title := stringField(entry, "title")
			if title == "" {
				title = stringField(entry, "name")
			}
			if title == "" {
				r.Skipped++
				continue
			}
			b := &models.Book{
				Title:   title,
				Author:  stringField(entry, "author"),
				ShelfID: shelfID,
				Pages:   entry["pages"],
			}
			if _, err := m.store.SaveBook(ctx, b); err != nil {
				return fmt.Errorf("save book %q: %w", title, err)
			}
			r.Books++
		}
	}
	return nil
}

// migrateSettings stores each setting parsed as JSON, or as the raw string
// when it is not valid JSON.
func (m *Migrator) migrateSettings(ctx context.Context, r *Report) error {
	for _, key := range m.settingKeys {
		raw, ok := m.source.Get(key)
		if !ok {
			continue
		}
		var value any = raw
		if json.Valid([]byte(raw)) {
			value = json.RawMessage(raw)
		}
		if err := m.store.SaveSetting(ctx, key, value); err != nil {
			return fmt.Errorf("save setting %q: %w", key, err)
		}
		r.Settings++
	}
	return nil
}

// normalizeMediaFiles rewrites lastModified values stored as epoch
// milliseconds, as File.lastModified reports them, to RFC 3339.
func normalizeMediaFiles(raw json.RawMessage) (json.RawMessage, error) {
	var files []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &files); err != nil {
		return nil, fmt.Errorf("decode mediaFiles: %w", err)
	}
	for _, f := range files {
		lm, ok := f["lastModified"]
		if !ok {
			continue
		}
		var ms float64
		if err := json.Unmarshal(lm, &ms); err != nil {
			continue
		}
		ts := time.UnixMilli(int64(ms)).UTC().Format(time.RFC3339Nano)
		f["lastModified"], _ = json.Marshal(ts)
	}
	return json.Marshal(files)
}

func stringField(entry map[string]json.RawMessage, key string) string {
	v, ok := entry[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return s
}
