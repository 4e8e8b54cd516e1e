package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/gridworm/gridworm/internal/common"
	"github.com/gridworm/gridworm/internal/logging"
	"golang.org/x/sync/singleflight"
)

// Generation states, logged at debug level.
const (
	stateRequested       = "requested"
	stateLoadingMetadata = "loading-metadata"
	stateSeeking         = "seeking"
	stateRendered        = "rendered"
	stateCached          = "cached"
	stateFailed          = "failed"
)

// maxSeekFraction caps the capture time at a tenth of the clip, which skips
// black lead-in frames without seeking past short clips.
const maxSeekFraction = 10

type Config struct {
	FrameSource FrameSource
	Fetcher     Fetcher
	Persister   Persister
	Logger      logging.Logger
	Metrics     *Metrics
	Defaults    Options
	// Timeout bounds one shared generation. Zero means DefaultTimeout.
	Timeout time.Duration
}

// Cache memoizes thumbnails by Descriptor.Key and runs at most one
// generation per key at a time.
type Cache struct {
	frames   FrameSource
	fetch    Fetcher
	persist  Persister
	log      logging.Logger
	metrics  *Metrics
	defaults Options
	timeout  time.Duration

	group singleflight.Group

	mu      sync.RWMutex
	results map[string]string
}

func New(cfg Config) *Cache {
	c := &Cache{
		frames:   cfg.FrameSource,
		fetch:    cfg.Fetcher,
		persist:  cfg.Persister,
		log:      cfg.Logger,
		metrics:  cfg.Metrics,
		defaults: cfg.Defaults.withDefaults(builtinDefaults()),
		timeout:  cfg.Timeout,
		results:  make(map[string]string),
	}
	if c.log == nil {
		c.log = logging.Nop()
	}
	if c.fetch == nil {
		c.fetch = NewURLFetcher(DefaultTimeout)
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	return c
}

// GetOrGenerate returns a displayable address for d, or NoThumbnail.
//
// A thumbnail carried by d is returned unchanged. A memoized result is
// returned without work. Otherwise callers for the same key share one
// generation. A caller whose ctx ends first gets NoThumbnail while the
// generation continues for the others, bounded by the cache timeout.
// Failures are logged and never memoized, so the next call retries.
func (c *Cache) GetOrGenerate(ctx context.Context, d Descriptor, opts Options) string {
	if d.Thumbnail != "" {
		c.metrics.observeRequest(ResultHit)
		return d.Thumbnail
	}

	key := d.Key()
	if v, ok := c.lookup(key); ok {
		c.metrics.observeRequest(ResultHit)
		return v
	}

	opts = opts.withDefaults(c.defaults)
	started := false
	ch := c.group.DoChan(key, func() (any, error) {
		started = true
		return c.lookupOrGenerate(context.WithoutCancel(ctx), key, d, opts)
	})

	select {
	case res := <-ch:
		if !started {
			c.metrics.incCoalesced()
		}
		if res.Err != nil {
			return NoThumbnail
		}
		return res.Val.(string)
	case <-ctx.Done():
		c.log.Debug(ctx, "thumbnail wait abandoned", "key", key, "error", ctx.Err())
		return NoThumbnail
	}
}

// Invalidate drops the memoized result for key.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	delete(c.results, key)
	c.mu.Unlock()
}

// Len returns the number of memoized results.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.results)
}

func (c *Cache) lookup(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.results[key]
	return v, ok
}

func (c *Cache) remember(key, value string) {
	c.mu.Lock()
	c.results[key] = value
	c.mu.Unlock()
}

// lookupOrGenerate runs inside the flight. A flight that finished between
// the caller's lookup and DoChan has already memoized the result.
func (c *Cache) lookupOrGenerate(ctx context.Context, key string, d Descriptor, opts Options) (string, error) {
	if v, ok := c.lookup(key); ok {
		c.metrics.observeRequest(ResultHit)
		return v, nil
	}
	return c.generate(ctx, key, d, opts)
}

func (c *Cache) generate(ctx context.Context, key string, d Descriptor, opts Options) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	log := c.log.With("key", key)
	start := time.Now()
	log.Debug(ctx, "thumbnail state", "state", stateRequested)

	result, outcome, err := c.produce(ctx, log, d, opts)
	if err != nil {
		log.Warn(ctx, "thumbnail generation failed", "state", stateFailed, "error", err)
		c.metrics.observeRequest(ResultFailed)
		return NoThumbnail, err
	}

	c.remember(key, result)
	c.metrics.observeRequest(outcome)
	if outcome == ResultGenerated {
		c.metrics.observeDuration(time.Since(start))
	}
	log.Debug(ctx, "thumbnail state", "state", stateCached, "outcome", outcome)
	return result, nil
}

func (c *Cache) produce(ctx context.Context, log logging.Logger, d Descriptor, opts Options) (string, string, error) {
	if d.URL == "" {
		return "", "", fmt.Errorf("%w: descriptor has no address", common.ErrNoThumbnail)
	}

	log.Debug(ctx, "thumbnail state", "state", stateLoadingMetadata)
	kind, data, err := detect(ctx, c.fetch, d)
	if err != nil {
		return "", "", err
	}

	switch kind {
	case KindStatic:
		return d.URL, ResultPassthrough, nil
	case KindUnsupported:
		return "", "", fmt.Errorf("%w: unsupported media %q (%s)", common.ErrNoThumbnail, d.Name, d.Type)
	}

	if stored := c.loadPersisted(ctx, log, d); stored != "" {
		return stored, ResultHit, nil
	}

	var frame image.Image
	if kind == KindVideo {
		frame, err = c.captureVideo(ctx, log, d, opts)
	} else {
		frame, err = firstFrame(data)
	}
	if err != nil {
		return "", "", err
	}

	jpeg, err := renderJPEG(frame, opts)
	if err != nil {
		return "", "", err
	}
	log.Debug(ctx, "thumbnail state", "state", stateRendered, "kind", kind.String(), "bytes", len(jpeg))

	c.savePersisted(ctx, log, d, jpeg)
	return DataURL(jpegMime, jpeg), ResultGenerated, nil
}

func (c *Cache) captureVideo(ctx context.Context, log logging.Logger, d Descriptor, opts Options) (image.Image, error) {
	if c.frames == nil {
		return nil, errors.New("no frame source configured")
	}
	clip, err := c.frames.Open(ctx, d.URL)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	defer clip.Close()

	at := SeekTime(opts.At, clip.Info().Duration)
	log.Debug(ctx, "thumbnail state", "state", stateSeeking, "at", at)

	frame, err := clip.Frame(ctx, at)
	if err != nil {
		return nil, fmt.Errorf("capture frame at %s: %w", at, err)
	}
	return frame, nil
}

// SeekTime returns the capture time for a clip: the lesser of requested and
// 10% of duration. Clips of unknown duration are captured at the start.
func SeekTime(requested, duration time.Duration) time.Duration {
	if duration <= 0 {
		return 0
	}
	limit := duration / maxSeekFraction
	if requested < limit {
		return requested
	}
	return limit
}

func (c *Cache) loadPersisted(ctx context.Context, log logging.Logger, d Descriptor) string {
	if c.persist == nil || d.ID == "" {
		return ""
	}
	t, err := c.persist.GetThumbnail(ctx, d.ID)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			log.Warn(ctx, "stored thumbnail unavailable", "error", err)
		}
		return ""
	}
	return DataURL(t.MimeType, t.Data)
}

func (c *Cache) savePersisted(ctx context.Context, log logging.Logger, d Descriptor, jpeg []byte) {
	if c.persist == nil || d.ID == "" {
		return
	}
	if err := c.persist.SaveThumbnail(ctx, d.ID, jpeg, jpegMime); err != nil {
		log.Warn(ctx, "thumbnail not persisted", "error", err)
	}
}
