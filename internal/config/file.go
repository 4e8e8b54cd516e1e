package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gridworm/gridworm/internal/flagx"
	"gopkg.in/yaml.v3"
)

// parseFile overlays cfg with the file named by -c/-config. Keys missing from
// the file keep their current values.
//
// Both formats are decoded with yaml.v3, which reads JSON as well, so that
// durations can be written as "30s" in either. A .json file must still be
// valid JSON.
func parseFile(cfg *Config, args []string) error {
	path := flagx.ConfigFileFlag(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if !json.Valid(data) {
			return fmt.Errorf("config file %s: invalid JSON", path)
		}
	case ".yaml", ".yml":
	default:
		return fmt.Errorf("config file %s: unsupported extension %q", path, ext)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}
