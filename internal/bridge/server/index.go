package server

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/gridworm/gridworm/internal/bridge"
)

// fileNamespace seeds the UUIDv5 file ids.
var fileNamespace = uuid.MustParse("6f1c4a52-93c1-5b0e-8d8e-2b7c1f3e9a40")

// FileID is the stable id of the file at rel, a slash-separated path
// relative to the watched folder.
func FileID(rel string) string {
	return uuid.NewSHA1(fileNamespace, []byte(rel)).String()
}

type entry struct {
	info bridge.FileInfo
	abs  string
}

type sniffKey struct {
	path    string
	size    int64
	modTime time.Time
}

// index is a snapshot of the watched folder. MIME types are sniffed once
// per (path, size, mtime).
type index struct {
	root    string
	entries map[string]entry
	order   []string
	sniffed map[sniffKey]string
}

func newIndex(root string) *index {
	return &index{root: root, entries: map[string]entry{}, sniffed: map[sniffKey]string{}}
}

// rescan walks the folder again. Hidden files and directories are skipped;
// unreadable entries are ignored.
func (ix *index) rescan() error {
	entries := map[string]entry{}
	var order []string
	seen := map[sniffKey]string{}

	err := filepath.WalkDir(ix.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == ix.root {
				return err
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != ix.root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}

		rel, err := filepath.Rel(ix.root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		key := sniffKey{path: path, size: fi.Size(), modTime: fi.ModTime()}
		mime, ok := ix.sniffed[key]
		if !ok {
			mime = sniff(path)
		}
		seen[key] = mime

		id := FileID(rel)
		entries[id] = entry{
			abs: path,
			info: bridge.FileInfo{
				ID:           id,
				Name:         d.Name(),
				Path:         rel,
				Type:         mime,
				Size:         fi.Size(),
				LastModified: fi.ModTime().UTC(),
			},
		}
		order = append(order, id)
		return nil
	})
	if err != nil {
		return err
	}

	ix.entries, ix.order, ix.sniffed = entries, order, seen
	return nil
}

func (ix *index) list() []bridge.FileInfo {
	out := make([]bridge.FileInfo, 0, len(ix.order))
	for _, id := range ix.order {
		out = append(out, ix.entries[id].info)
	}
	return out
}

func (ix *index) get(id string) (entry, bool) {
	e, ok := ix.entries[id]
	return e, ok
}

func sniff(path string) string {
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}
	mt := m.String()
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return mt
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}
