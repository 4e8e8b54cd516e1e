// Package cli is the interactive front end of Gridworm: it wires the store,
// services, thumbnail cache, bridge and maintenance scheduler together and
// runs a prompt loop over them.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/gridworm/gridworm/internal/bridge"
	"github.com/gridworm/gridworm/internal/config"
	"github.com/gridworm/gridworm/internal/legacy"
	"github.com/gridworm/gridworm/internal/logging"
	"github.com/gridworm/gridworm/internal/maintenance"
	"github.com/gridworm/gridworm/internal/services"
	"github.com/gridworm/gridworm/internal/store"
	"github.com/gridworm/gridworm/internal/thumbnail"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/term"
)

// Test seams.
var (
	openStore       = store.Open
	stdinIsTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
)

type App struct {
	cfg *config.Config
	log logging.Logger
	in  *bufio.Reader
	out io.Writer

	interactive bool

	store     *store.Store
	projects  *services.ProjectService
	backup    *services.BackupService
	thumbs    *thumbnail.Cache
	registry  *prometheus.Registry
	bridge    *bridge.Client
	importer  *bridge.Importer
	watcher   *bridge.Watcher
	scheduler *maintenance.Scheduler

	closeOnce sync.Once
}

// NewApp opens the store and builds every component. A store that cannot
// be opened aborts startup.
func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger, in io.Reader, out io.Writer) (*App, error) {
	if log == nil {
		log = logging.Nop()
	}

	st, err := openStore(ctx, store.Options{Path: cfg.Database.Path, Logger: log.With("component", "store")})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a := &App{
		cfg:         cfg,
		log:         log,
		in:          bufio.NewReader(in),
		out:         out,
		interactive: stdinIsTerminal(),
		store:       st,
		registry:    prometheus.NewRegistry(),
	}

	a.projects = services.NewProjectService(st, log.With("component", "projects"))
	a.backup = services.NewBackupService(st, cfg.Backup, log.With("component", "backup"))
	a.thumbs = thumbnail.New(thumbnail.Config{
		FrameSource: thumbnail.NewFFmpegSource(cfg.Thumbnails.FFmpegPath, cfg.Thumbnails.FFprobePath),
		Persister:   st,
		Logger:      log.With("component", "thumbnail"),
		Metrics:     thumbnail.NewMetrics(a.registry),
		Timeout:     cfg.Thumbnails.Timeout,
		Defaults: thumbnail.Options{
			Width:   cfg.Thumbnails.Width,
			Height:  cfg.Thumbnails.Height,
			Quality: cfg.Thumbnails.Quality,
		},
	})
	a.scheduler = maintenance.NewScheduler(st, cfg.Maintenance.Interval, cfg.Maintenance.RetentionDays,
		log.With("component", "maintenance"))

	if cfg.Bridge.URL != "" {
		c, err := bridge.NewClient(cfg.Bridge.URL, bridge.WithTimeout(cfg.Bridge.Timeout))
		if err != nil {
			if cfg.Bridge.Enabled {
				a.Close()
				return nil, err
			}
			log.Warn(ctx, "bridge url ignored", "error", err)
		} else {
			a.bridge = c
			a.importer = bridge.NewImporter(c, st, cfg.Bridge.MediaDir,
				bridge.WithWarmer(a.thumbs),
				bridge.WithWorkers(cfg.Thumbnails.Workers),
				bridge.WithImporterLogger(log.With("component", "bridge")))
		}
	}
	if a.bridge != nil && cfg.Bridge.Enabled {
		a.watcher = bridge.NewWatcher(a.bridge, a.importer, cfg.Bridge.PollInterval, log.With("component", "bridge"))
		a.watcher.OnChange = func(connected bool) {
			if a.interactive {
				fmt.Fprintf(a.out, "\nbridge %s\n", stateName(connected))
			}
		}
	}
	return a, nil
}

func stateName(connected bool) string {
	if connected {
		return "connected"
	}
	return "disconnected"
}

// Close releases the store. It is safe to call more than once.
func (a *App) Close() error {
	var err error
	a.closeOnce.Do(func() { err = a.store.Close() })
	return err
}

// Run migrates legacy data when a dump is configured, starts the bridge
// watcher and the maintenance scheduler, and runs the prompt loop until
// exit, end of input or ctx cancellation. The store is closed on return.
func (a *App) Run(ctx context.Context) error {
	defer a.Close()

	if a.cfg.Legacy.DumpPath != "" {
		if _, err := a.migrate(ctx, a.cfg.Legacy.DumpPath); err != nil {
			a.log.Error(ctx, "legacy migration failed", "error", err)
		}
	}

	bg, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	if a.watcher != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.watcher.Run(bg)
		}()
	}
	if a.scheduler.Enabled() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.scheduler.Run(bg)
		}()
	}

	err := a.repl(ctx)
	cancel()
	wg.Wait()
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

func (a *App) migrate(ctx context.Context, path string) (legacy.Report, error) {
	src, err := legacy.OpenFileSource(path)
	if err != nil {
		return legacy.Report{}, err
	}
	return legacy.NewMigrator(src, a.store, a.log.With("component", "legacy")).Run(ctx)
}
