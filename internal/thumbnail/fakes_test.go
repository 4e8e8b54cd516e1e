package thumbnail

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gridworm/gridworm/internal/common"
	"github.com/gridworm/gridworm/internal/models"
)

type fakeSource struct {
	info  ClipInfo
	opens atomic.Int32

	mu      sync.Mutex
	frames  []time.Duration
	openErr error
	// fail makes the next n Frame calls fail.
	fail int
	// gate, when set, blocks Frame until closed.
	gate    chan struct{}
	entered chan struct{}
}

func newFakeSource(w, h int, d time.Duration) *fakeSource {
	return &fakeSource{info: ClipInfo{Width: w, Height: h, Duration: d}}
}

func (s *fakeSource) Open(ctx context.Context, url string) (Clip, error) {
	s.opens.Add(1)
	if s.openErr != nil {
		return nil, s.openErr
	}
	return &fakeClip{src: s}, nil
}

func (s *fakeSource) captured() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.frames...)
}

type fakeClip struct {
	src    *fakeSource
	closed bool
}

func (c *fakeClip) Info() ClipInfo { return c.src.info }

func (c *fakeClip) Frame(ctx context.Context, at time.Duration) (image.Image, error) {
	s := c.src
	if s.entered != nil {
		select {
		case s.entered <- struct{}{}:
		default:
		}
	}
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, at)
	if s.fail > 0 {
		s.fail--
		return nil, errors.New("decode error")
	}
	img := image.NewRGBA(image.Rect(0, 0, s.info.Width, s.info.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 200, A: 255}}, image.Point{}, draw.Src)
	return img, nil
}

func (c *fakeClip) Close() error {
	c.closed = true
	return nil
}

type fakePersister struct {
	mu    sync.Mutex
	items map[string]models.Thumbnail
	saves int
}

func newFakePersister() *fakePersister {
	return &fakePersister{items: map[string]models.Thumbnail{}}
}

func (p *fakePersister) GetThumbnail(_ context.Context, id string) (*models.Thumbnail, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.items[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &t, nil
}

func (p *fakePersister) SaveThumbnail(_ context.Context, id string, data []byte, mimeType string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saves++
	p.items[id] = models.Thumbnail{MediaID: id, Data: data, MimeType: mimeType, GeneratedAt: time.Now()}
	return nil
}
