package models

import "time"

// Snapshot is the whole-database export document:
//
//	{"version":1,"exportedAt":"...","data":{"projects":[],"mediaMetadata":[],"books":[],"settings":[]}}
//
// Thumbnails are never part of a snapshot.
type Snapshot struct {
	Version    int          `json:"version"`
	ExportedAt time.Time    `json:"exportedAt"`
	Data       SnapshotData `json:"data"`
}

type SnapshotData struct {
	Projects      []Project       `json:"projects"`
	MediaMetadata []MediaMetadata `json:"mediaMetadata"`
	Books         []Book          `json:"books"`
	Settings      []Setting       `json:"settings"`
}

// Normalize replaces nil tables with empty ones so they encode as [].
func (d *SnapshotData) Normalize() {
	if d.Projects == nil {
		d.Projects = []Project{}
	}
	if d.MediaMetadata == nil {
		d.MediaMetadata = []MediaMetadata{}
	}
	if d.Books == nil {
		d.Books = []Book{}
	}
	if d.Settings == nil {
		d.Settings = []Setting{}
	}
}

// StorageUsage is a best-effort estimate of the space used by the store.
type StorageUsage struct {
	Used       int64   `json:"used"`
	Quota      int64   `json:"quota"`
	Percentage float64 `json:"percentage"`
}
