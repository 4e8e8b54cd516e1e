package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/gridworm/gridworm/internal/logging"
	"github.com/gridworm/gridworm/internal/models"
)

const probeTimeout = 3 * time.Second

type API interface {
	Status(ctx context.Context) (*Status, error)
	Changes(ctx context.Context) ([]FileInfo, error)
}

type FileImporter interface {
	Import(ctx context.Context, files []FileInfo) ([]models.MediaMetadata, error)
}

// Watcher polls the companion on a fixed interval. Any failure to reach it
// marks the bridge disconnected without surfacing an error; the next tick
// simply tries again.
type Watcher struct {
	api      API
	importer FileImporter
	interval time.Duration
	log      logging.Logger

	// OnChange is called with the new state whenever it flips.
	OnChange func(connected bool)

	mu        sync.RWMutex
	connected bool
	lastSeen  time.Time
}

func NewWatcher(api API, importer FileImporter, interval time.Duration, log logging.Logger) *Watcher {
	if log == nil {
		log = logging.Nop()
	}
	return &Watcher{api: api, importer: importer, interval: interval, log: log}
}

func (w *Watcher) Connected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

// LastSeen is the time of the last successful status call.
func (w *Watcher) LastSeen() time.Time {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastSeen
}

func (w *Watcher) setConnected(ctx context.Context, v bool) {
	w.mu.Lock()
	changed := w.connected != v
	w.connected = v
	if v {
		w.lastSeen = time.Now()
	}
	w.mu.Unlock()

	if !changed {
		return
	}
	w.log.Info(ctx, "bridge state changed", "connected", v)
	if w.OnChange != nil {
		w.OnChange(v)
	}
}

// Run polls until ctx is done. The first poll happens immediately.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Poll(ctx)
	for {
		select {
		case <-ticker.C:
			w.Poll(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Poll runs one tick: a status probe and, when connected, an import of the
// files changed since the previous tick.
func (w *Watcher) Poll(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	_, err := w.api.Status(probeCtx)
	cancel()
	if err != nil {
		w.log.Debug(ctx, "bridge status probe failed", "error", err)
		w.setConnected(ctx, false)
		return
	}
	w.setConnected(ctx, true)

	if w.importer == nil {
		return
	}
	files, err := w.api.Changes(ctx)
	if err != nil {
		w.log.Debug(ctx, "bridge changes failed", "error", err)
		w.setConnected(ctx, false)
		return
	}
	if len(files) == 0 {
		return
	}
	if _, err := w.importer.Import(ctx, files); err != nil {
		w.log.Warn(ctx, "bridge import incomplete", "error", err)
	}
}
