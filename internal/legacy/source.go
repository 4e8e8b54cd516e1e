package legacy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/gridworm/gridworm/internal/filex"
)

// Source is a string key/value store holding legacy data, in the shape of
// browser localStorage.
type Source interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

// MapSource is an in-memory Source.
type MapSource map[string]string

func (m MapSource) Get(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

func (m MapSource) Set(key, value string) error {
	m[key] = value
	return nil
}

// FileSource is a Source backed by a JSON object dump of localStorage,
// {"key": "value", ...}. Set rewrites the file atomically.
type FileSource struct {
	path string

	mu     sync.Mutex
	values map[string]string
}

// OpenFileSource loads the dump at path. A missing file is an empty source.
func OpenFileSource(path string) (*FileSource, error) {
	s := &FileSource{path: path, values: map[string]string{}}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read legacy dump: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode legacy dump %s: %w", path, err)
	}
	for k, v := range raw {
		// localStorage only holds strings; tools that exported nested JSON
		// are accepted as the raw JSON text.
		var str string
		if err := json.Unmarshal(v, &str); err == nil {
			s.values[k] = str
		} else {
			s.values[k] = string(v)
		}
	}
	return s, nil
}

func (s *FileSource) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *FileSource) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.values[key]
	s.values[key] = value
	if err := s.flush(); err != nil {
		if had {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

func (s *FileSource) flush() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode legacy dump: %w", err)
	}

	if _, err := filex.WriteAtomic(s.path, bytes.NewReader(data), 0o600); err != nil {
		return fmt.Errorf("save legacy dump: %w", err)
	}
	return nil
}
