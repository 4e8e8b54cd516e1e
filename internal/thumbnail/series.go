package thumbnail

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// GenerateSeries captures n thumbnails of a video at evenly spaced times
// that exclude both ends: duration*i/(n+1) for i = 1..n. One clip is opened
// for the whole series. Unlike GetOrGenerate, errors are returned.
func (c *Cache) GenerateSeries(ctx context.Context, d Descriptor, n int, opts Options) ([]string, error) {
	if n <= 0 {
		return nil, fmt.Errorf("series size must be positive, got %d", n)
	}
	if kind, _ := classify(d); kind != KindVideo {
		return nil, fmt.Errorf("series needs a video, %q is %s", d.Name, kind)
	}
	if c.frames == nil {
		return nil, fmt.Errorf("no frame source configured")
	}
	opts = opts.withDefaults(c.defaults)

	clip, err := c.frames.Open(ctx, d.URL)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	defer clip.Close()

	duration := clip.Info().Duration
	out := make([]string, 0, n)
	for _, at := range SeriesTimes(duration, n) {
		frame, err := clip.Frame(ctx, at)
		if err != nil {
			return nil, fmt.Errorf("capture frame at %s: %w", at, err)
		}
		jpeg, err := renderJPEG(frame, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, DataURL(jpegMime, jpeg))
	}
	return out, nil
}

// SeriesTimes returns the n capture times used by GenerateSeries.
func SeriesTimes(duration time.Duration, n int) []time.Duration {
	times := make([]time.Duration, n)
	for i := 1; i <= n; i++ {
		times[i-1] = duration * time.Duration(i) / time.Duration(n+1)
	}
	return times
}

// Prefetch warms the cache for ds using at most workers concurrent
// generations and returns how many descriptors produced a thumbnail.
func (c *Cache) Prefetch(ctx context.Context, ds []Descriptor, opts Options, workers int) (int, error) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var produced atomic.Int64
	for _, d := range ds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if c.GetOrGenerate(gctx, d, opts) != NoThumbnail {
				produced.Add(1)
			}
			return nil
		})
	}
	err := g.Wait()
	return int(produced.Load()), err
}
