// Package bridge talks to starmie, the companion process that watches a
// local folder and serves its media files over HTTP.
package bridge

import "time"

// API paths, relative to the companion base URL.
const (
	PathStatus    = "/starmie/status"
	PathChanges   = "/starmie/changes"
	PathFile      = "/starmie/file/"
	PathImportAll = "/starmie/import-all"
	PathWatch     = "/starmie/watch"
)

// Response headers of GET /starmie/file/{id}.
const (
	HeaderFileName     = "X-Starmie-Name"
	HeaderFileID       = "X-Starmie-Id"
	HeaderLastModified = "Last-Modified"
)

type Status struct {
	Running     bool   `json:"running"`
	WatchedPath string `json:"watchedPath"`
	FileCount   int    `json:"fileCount"`
	Version     string `json:"version,omitempty"`
}

// FileInfo describes one file in the watched folder. ID is stable for a
// given relative path.
type FileInfo struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	Type         string    `json:"type"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

type FileList struct {
	Files []FileInfo `json:"files"`
}

type WatchRequest struct {
	Path string `json:"path" validate:"required,dir"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
