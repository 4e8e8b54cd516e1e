// Package server is starmie, the companion process of the bridge: it
// serves the files of one watched folder over the bridge HTTP API.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gridworm/gridworm/internal/bridge"
	"github.com/gridworm/gridworm/internal/buildinfo"
	"github.com/gridworm/gridworm/internal/logging"
)

const maxWatchBody = 64 << 10

type Server struct {
	log      logging.Logger
	validate *validator.Validate

	mu    sync.Mutex
	index *index
	// baseline holds the modification time of every file as of the last
	// changes call (or the last watch).
	baseline map[string]time.Time
}

// New serves root, which must be an existing directory.
func New(root string, log logging.Logger) (*Server, error) {
	if log == nil {
		log = logging.Nop()
	}
	s := &Server{log: log, validate: validator.New()}
	if err := s.watch(root); err != nil {
		return nil, err
	}
	return s, nil
}

// Root is the watched folder.
func (s *Server) Root() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.root
}

// watch switches to root. Files already present are not reported by the
// next changes call; import-all returns them.
func (s *Server) watch(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	if !isDir(abs) {
		return fmt.Errorf("%s is not a directory", abs)
	}

	ix := newIndex(abs)
	if err := ix.rescan(); err != nil {
		return fmt.Errorf("scan %s: %w", abs, err)
	}

	s.mu.Lock()
	s.index = ix
	s.baseline = snapshot(ix)
	s.mu.Unlock()
	return nil
}

func snapshot(ix *index) map[string]time.Time {
	m := make(map[string]time.Time, len(ix.entries))
	for id, e := range ix.entries {
		m[id] = e.info.LastModified
	}
	return m
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer, s.requestLogger)

	r.Route("/starmie", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/changes", s.handleChanges)
		r.Get("/import-all", s.handleImportAll)
		r.Get("/file/{id}", s.handleFile)
		r.Post("/watch", s.handleWatch)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	err := s.index.rescan()
	st := bridge.Status{
		Running:     true,
		WatchedPath: s.index.root,
		FileCount:   len(s.index.entries),
		Version:     buildinfo.Version,
	}
	s.mu.Unlock()

	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleChanges returns files added or modified since the previous call.
func (s *Server) handleChanges(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if err := s.index.rescan(); err != nil {
		s.mu.Unlock()
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	var changed []bridge.FileInfo
	for _, f := range s.index.list() {
		prev, ok := s.baseline[f.ID]
		if !ok || !prev.Equal(f.LastModified) {
			changed = append(changed, f)
		}
	}
	s.baseline = snapshot(s.index)
	s.mu.Unlock()

	if changed == nil {
		changed = []bridge.FileInfo{}
	}
	writeJSON(w, http.StatusOK, bridge.FileList{Files: changed})
}

func (s *Server) handleImportAll(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	err := s.index.rescan()
	files := s.index.list()
	s.mu.Unlock()

	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, bridge.FileList{Files: files})
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	e, ok := s.index.get(id)
	if !ok {
		if err := s.index.rescan(); err == nil {
			e, ok = s.index.get(id)
		}
	}
	s.mu.Unlock()

	if !ok {
		s.writeError(w, r, http.StatusNotFound, errors.New("file not found"))
		return
	}

	f, err := os.Open(e.abs)
	if err != nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("file not found"))
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", e.info.Type)
	w.Header().Set(bridge.HeaderFileName, e.info.Name)
	w.Header().Set(bridge.HeaderFileID, e.info.ID)
	http.ServeContent(w, r, e.info.Name, e.info.LastModified, f)
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	var req bridge.WatchRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, maxWatchBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, validationError(err))
		return
	}
	if err := s.watch(req.Path); err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	s.log.Info(r.Context(), "watching folder", "path", s.Root())
	s.handleStatus(w, r)
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return errors.New("path is required")
	case "dir":
		return errors.New("path must be an existing directory")
	}
	return fmt.Errorf("path is invalid (%s)", fe.Tag())
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, code int, err error) {
	if code >= http.StatusInternalServerError {
		s.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, code, bridge.ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
