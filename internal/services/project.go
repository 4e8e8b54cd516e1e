// Package services holds the application flows built on top of the store:
// the validated save flow, single-project export files and remote backups.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gridworm/gridworm/internal/common"
	"github.com/gridworm/gridworm/internal/filex"
	"github.com/gridworm/gridworm/internal/logging"
	"github.com/gridworm/gridworm/internal/models"
)

// MaxProjectNameLength is the longest accepted project name, in characters.
const MaxProjectNameLength = 255

// ProjectFileFormat tags files written by ExportFile.
const ProjectFileFormat = "gridworm.project"

type ProjectStore interface {
	SaveProject(ctx context.Context, p *models.Project) (string, error)
	LoadProject(ctx context.Context, id string) (*models.Project, error)
	GetAllProjects(ctx context.Context) ([]models.Project, error)
	SearchProjects(ctx context.Context, query string) ([]models.Project, error)
	DeleteProject(ctx context.Context, id string) error
}

// SaveRequest carries the fields of the save dialog. An empty ID creates a
// new project.
type SaveRequest struct {
	ID      string
	Name    string
	Author  string
	Payload models.ProjectPayload
}

func (r *SaveRequest) validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name,
			validation.Required,
			validation.Length(1, MaxProjectNameLength),
		),
	)
}

type ProjectService struct {
	store ProjectStore
	log   logging.Logger
	now   func() time.Time
}

func NewProjectService(store ProjectStore, log logging.Logger) *ProjectService {
	if log == nil {
		log = logging.Nop()
	}
	return &ProjectService{store: store, log: log, now: time.Now}
}

// Save validates req and stores the project. Invalid input returns an error
// wrapping common.ErrValidation and never reaches the store.
func (s *ProjectService) Save(ctx context.Context, req SaveRequest) (*models.Project, error) {
	req.Name = strings.TrimSpace(req.Name)
	req.Author = strings.TrimSpace(req.Author)

	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	if req.Author == "" {
		req.Author = common.DefaultAuthor
	}

	p := &models.Project{
		ID:      req.ID,
		Name:    req.Name,
		Author:  req.Author,
		Payload: req.Payload,
	}
	if _, err := s.store.SaveProject(ctx, p); err != nil {
		return nil, fmt.Errorf("save project: %w", err)
	}

	s.log.Info(ctx, "project saved", "id", p.ID, "name", p.Name)
	return p, nil
}

func (s *ProjectService) Load(ctx context.Context, id string) (*models.Project, error) {
	p, err := s.store.LoadProject(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	return p, nil
}

func (s *ProjectService) List(ctx context.Context) ([]models.Project, error) {
	ps, err := s.store.GetAllProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return ps, nil
}

func (s *ProjectService) Search(ctx context.Context, query string) ([]models.Project, error) {
	ps, err := s.store.SearchProjects(ctx, strings.TrimSpace(query))
	if err != nil {
		return nil, fmt.Errorf("search projects: %w", err)
	}
	return ps, nil
}

func (s *ProjectService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteProject(ctx, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return nil
}

type projectFile struct {
	Format     string         `json:"format"`
	Version    int            `json:"version"`
	ExportedAt time.Time      `json:"exportedAt"`
	Project    models.Project `json:"project"`
}

// ExportFile writes project id to dir as <slug>.gridworm.json and returns
// the file path. An existing file of the same name is replaced.
func (s *ProjectService) ExportFile(ctx context.Context, id, dir string) (string, error) {
	p, err := s.Load(ctx, id)
	if err != nil {
		return "", err
	}

	data, err := json.MarshalIndent(projectFile{
		Format:     ProjectFileFormat,
		Version:    common.SnapshotVersion,
		ExportedAt: s.now().UTC(),
		Project:    *p,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("export project: %w", err)
	}

	path := filepath.Join(dir, Slug(p.Name)+common.ProjectFileSuffix)
	if _, err := filex.WriteAtomic(path, bytes.NewReader(data), 0o644); err != nil {
		return "", fmt.Errorf("export project: %w", err)
	}
	return path, nil
}

// ImportFile reads a project file and saves it as a new project. Files
// holding a bare project object, without the export envelope, are accepted.
func (s *ProjectService) ImportFile(ctx context.Context, path string) (*models.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("import project: %w", err)
	}

	var f projectFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: import project: %v", common.ErrValidation, err)
	}
	switch {
	case f.Format == ProjectFileFormat:
		if f.Version != common.SnapshotVersion {
			return nil, fmt.Errorf("import project: %w: %d", common.ErrUnsupportedVersion, f.Version)
		}
	case f.Format == "":
		if err := json.Unmarshal(data, &f.Project); err != nil {
			return nil, fmt.Errorf("%w: import project: %v", common.ErrValidation, err)
		}
	default:
		return nil, fmt.Errorf("%w: import project: unknown format %q", common.ErrValidation, f.Format)
	}

	return s.Save(ctx, SaveRequest{
		Name:    f.Project.Name,
		Author:  f.Project.Author,
		Payload: f.Project.Payload,
	})
}

// Slug turns a project name into a file name stem: lower case, with every
// run of characters other than letters and digits collapsed to "-".
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	if slug == "" {
		return "project"
	}
	return slug
}
