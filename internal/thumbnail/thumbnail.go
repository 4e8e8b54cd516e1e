// Package thumbnail produces still-image representations of media assets
// for list and grid display.
//
// A Cache hides whether an asset is a static image (its own address is
// returned), a video (one frame is captured) or an animated image (the first
// frame is decoded). Concurrent requests for the same asset share one
// generation, successful results are memoized in memory, and failures
// degrade to NoThumbnail instead of an error.
package thumbnail

import (
	"context"
	"image"
	"image/color"
	"io"
	"time"

	"github.com/gridworm/gridworm/internal/models"
)

// NoThumbnail is returned when no thumbnail could be produced. Callers show
// a placeholder.
const NoThumbnail = ""

// Default rendering options.
const (
	DefaultWidth   = 320
	DefaultHeight  = 180
	DefaultQuality = 80
	DefaultAt      = time.Second
	DefaultTimeout = 30 * time.Second
)

// Descriptor identifies one media asset.
type Descriptor struct {
	ID   string
	Name string
	// Type is the declared MIME type, possibly empty.
	Type string
	// URL is a local path, a file:// URL, an http(s) URL or a data: URL.
	URL string
	// Thumbnail, when set, is returned unchanged.
	Thumbnail string
}

// Key is the cache key of d.
func (d Descriptor) Key() string {
	return d.ID + "|" + d.Name
}

// Options controls rendering. Zero fields take the cache defaults.
type Options struct {
	Width, Height int
	// At is the requested capture time for videos. The actual capture time
	// is never later than 10% of the clip duration.
	At         time.Duration
	Quality    int
	Background color.Color
}

func (o Options) withDefaults(d Options) Options {
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	if o.At <= 0 {
		o.At = d.At
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = d.Quality
	}
	if o.Background == nil {
		o.Background = d.Background
	}
	return o
}

func builtinDefaults() Options {
	return Options{
		Width:      DefaultWidth,
		Height:     DefaultHeight,
		At:         DefaultAt,
		Quality:    DefaultQuality,
		Background: color.Black,
	}
}

// ClipInfo describes a decoded video.
type ClipInfo struct {
	Width, Height int
	Duration      time.Duration
}

// Clip is one opened video resource. Frames may be requested repeatedly
// until Close.
type Clip interface {
	Info() ClipInfo
	Frame(ctx context.Context, at time.Duration) (image.Image, error)
	Close() error
}

// FrameSource opens videos for frame capture.
type FrameSource interface {
	Open(ctx context.Context, url string) (Clip, error)
}

// Fetcher opens the bytes behind a media URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// Persister is an optional second-level cache, usually the project store.
type Persister interface {
	GetThumbnail(ctx context.Context, mediaID string) (*models.Thumbnail, error)
	SaveThumbnail(ctx context.Context, mediaID string, data []byte, mimeType string) error
}
