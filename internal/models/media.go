package models

import "time"

// MediaMetadata is the descriptive record of one media asset.
type MediaMetadata struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	FileType     string    `json:"fileType"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// Thumbnail is a cached still image of a media asset. Only the most recent
// thumbnail per MediaID is kept.
type Thumbnail struct {
	MediaID     string    `json:"mediaId"`
	Data        []byte    `json:"thumbnail"`
	MimeType    string    `json:"mimeType"`
	GeneratedAt time.Time `json:"generatedAt"`
}
