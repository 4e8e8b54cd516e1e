package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/gridworm/gridworm/internal/flagx"
)

var knownFlags = []string{
	"-d", "-db",
	"-l", "-log-level",
	"-log-format",
	"-legacy",
	"-bridge",
	"-media",
	"-addr",
	"-root",
	"-maintenance",
}

// parseFlags overlays cfg with command-line flags. Only the flags listed in
// knownFlags are looked at; the rest of args is left to other parsers.
//
//	-d, -db string        database path
//	-l, -log-level string debug|info|warn|error
//	-log-format string    text|json|console
//	-legacy string        localStorage dump to migrate
//	-bridge string        companion URL; enables the bridge
//	-media string         directory for imported media
//	-addr string          companion listen address
//	-root string          companion watched folder
//	-maintenance duration thumbnail clean-up interval
func parseFlags(cfg *Config, args []string) error {
	fs := flag.NewFlagSet("gridworm", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.Database.Path, "d", cfg.Database.Path, "database path")
	fs.StringVar(&cfg.Database.Path, "db", cfg.Database.Path, "database path")
	fs.StringVar(&cfg.Log.Level, "l", cfg.Log.Level, "log level")
	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level")
	fs.StringVar(&cfg.Log.Format, "log-format", cfg.Log.Format, "log format")
	fs.StringVar(&cfg.Legacy.DumpPath, "legacy", cfg.Legacy.DumpPath, "localStorage dump to migrate")
	bridgeURL := fs.String("bridge", "", "companion URL")
	fs.StringVar(&cfg.Bridge.MediaDir, "media", cfg.Bridge.MediaDir, "directory for imported media")
	fs.StringVar(&cfg.Starmie.Addr, "addr", cfg.Starmie.Addr, "companion listen address")
	fs.StringVar(&cfg.Starmie.Root, "root", cfg.Starmie.Root, "companion watched folder")
	fs.DurationVar(&cfg.Maintenance.Interval, "maintenance", cfg.Maintenance.Interval, "thumbnail clean-up interval")

	if err := fs.Parse(flagx.FilterArgs(args, knownFlags)); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	if *bridgeURL != "" {
		cfg.Bridge.URL = *bridgeURL
		cfg.Bridge.Enabled = true
	}
	return nil
}
