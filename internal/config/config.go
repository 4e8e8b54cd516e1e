// Package config assembles runtime settings. Sources are applied in order,
// later ones winning: built-in defaults, a .env file and GRIDWORM_*
// environment variables, a JSON or YAML config file named by -c/-config,
// and finally command-line flags.
package config

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// EnvPrefix prefixes every environment variable, e.g. GRIDWORM_DATABASE_PATH.
const EnvPrefix = "GRIDWORM"

type Config struct {
	Database    Database    `envconfig:"DATABASE" yaml:"database"`
	Log         Log         `envconfig:"LOG" yaml:"log"`
	Thumbnails  Thumbnails  `envconfig:"THUMBNAILS" yaml:"thumbnails"`
	Legacy      Legacy      `envconfig:"LEGACY" yaml:"legacy"`
	Bridge      Bridge      `envconfig:"BRIDGE" yaml:"bridge"`
	Backup      Backup      `envconfig:"BACKUP" yaml:"backup"`
	Maintenance Maintenance `envconfig:"MAINTENANCE" yaml:"maintenance"`
	Starmie     Starmie     `envconfig:"STARMIE" yaml:"starmie"`
}

type Database struct {
	// Path is the database file; ":memory:" keeps everything in memory.
	Path string `envconfig:"PATH" yaml:"path"`
}

type Log struct {
	Level  string `envconfig:"LEVEL" yaml:"level"`
	Format string `envconfig:"FORMAT" yaml:"format"`
}

type Thumbnails struct {
	Width       int           `envconfig:"WIDTH" yaml:"width"`
	Height      int           `envconfig:"HEIGHT" yaml:"height"`
	Quality     int           `envconfig:"QUALITY" yaml:"quality"`
	Timeout     time.Duration `envconfig:"TIMEOUT" yaml:"timeout"`
	FFmpegPath  string        `envconfig:"FFMPEG_PATH" yaml:"ffmpeg_path"`
	FFprobePath string        `envconfig:"FFPROBE_PATH" yaml:"ffprobe_path"`
	Workers     int           `envconfig:"WORKERS" yaml:"workers"`
}

type Legacy struct {
	// DumpPath is a JSON dump of browser localStorage; empty skips the
	// legacy migration.
	DumpPath string `envconfig:"DUMP_PATH" yaml:"dump_path"`
}

type Bridge struct {
	Enabled      bool          `envconfig:"ENABLED" yaml:"enabled"`
	URL          string        `envconfig:"URL" yaml:"url"`
	PollInterval time.Duration `envconfig:"POLL_INTERVAL" yaml:"poll_interval"`
	Timeout      time.Duration `envconfig:"TIMEOUT" yaml:"timeout"`
	MediaDir     string        `envconfig:"MEDIA_DIR" yaml:"media_dir"`
}

type Backup struct {
	Bucket    string `envconfig:"BUCKET" yaml:"bucket"`
	Region    string `envconfig:"REGION" yaml:"region"`
	Endpoint  string `envconfig:"ENDPOINT" yaml:"endpoint"`
	AccessKey string `envconfig:"ACCESS_KEY" yaml:"access_key"`
	SecretKey string `envconfig:"SECRET_KEY" yaml:"secret_key"`
}

// Enabled reports whether a bucket is configured.
func (b Backup) Enabled() bool { return b.Bucket != "" }

type Maintenance struct {
	// Interval between thumbnail clean-ups; zero disables the scheduler.
	Interval      time.Duration `envconfig:"INTERVAL" yaml:"interval"`
	RetentionDays int           `envconfig:"RETENTION_DAYS" yaml:"retention_days"`
}

type Starmie struct {
	Addr string `envconfig:"ADDR" yaml:"addr"`
	Root string `envconfig:"ROOT" yaml:"root"`
}

// LoadDefaults populates c with the built-in defaults.
func (c *Config) LoadDefaults() {
	c.Database.Path = "gridworm.db"

	c.Log.Level = "info"
	c.Log.Format = "text"

	c.Thumbnails.Width = 320
	c.Thumbnails.Height = 180
	c.Thumbnails.Quality = 80
	c.Thumbnails.Timeout = 30 * time.Second
	c.Thumbnails.FFmpegPath = "ffmpeg"
	c.Thumbnails.FFprobePath = "ffprobe"
	c.Thumbnails.Workers = 4

	c.Bridge.URL = "http://127.0.0.1:7777"
	c.Bridge.PollInterval = 5 * time.Second
	c.Bridge.Timeout = 10 * time.Second
	c.Bridge.MediaDir = "media"

	c.Backup.Region = "us-east-1"

	c.Maintenance.RetentionDays = 7

	c.Starmie.Addr = "127.0.0.1:7777"
	c.Starmie.Root = "."
}

// Validate checks value ranges after all sources are applied.
func (c *Config) Validate() error {
	err := validation.Errors{
		"database": validation.ValidateStruct(&c.Database,
			validation.Field(&c.Database.Path, validation.Required),
		),
		"log": validation.ValidateStruct(&c.Log,
			validation.Field(&c.Log.Level, validation.In("debug", "info", "warn", "error")),
			validation.Field(&c.Log.Format, validation.In("text", "json", "console")),
		),
		"thumbnails": validation.ValidateStruct(&c.Thumbnails,
			validation.Field(&c.Thumbnails.Width, validation.Required, validation.Min(1)),
			validation.Field(&c.Thumbnails.Height, validation.Required, validation.Min(1)),
			validation.Field(&c.Thumbnails.Quality, validation.Min(1), validation.Max(100)),
			validation.Field(&c.Thumbnails.Workers, validation.Min(1)),
		),
		"bridge": validation.ValidateStruct(&c.Bridge,
			validation.Field(&c.Bridge.URL, validation.When(c.Bridge.Enabled, validation.Required)),
			validation.Field(&c.Bridge.PollInterval,
				validation.When(c.Bridge.Enabled, validation.Required, validation.Min(time.Duration(1)))),
		),
		"maintenance": validation.ValidateStruct(&c.Maintenance,
			validation.Field(&c.Maintenance.RetentionDays, validation.Min(0)),
		),
	}.Filter()
	if err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadConfig builds a Config from every source. args are the command-line
// arguments without the program name.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFile(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
