package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// EnvFileVar names an alternative .env file.
const EnvFileVar = "GRIDWORM_ENV_FILE"

// parseEnv loads the .env file, if any, into the process environment and
// overlays GRIDWORM_* variables. Variables already set in the environment
// win over the .env file.
func parseEnv(cfg *Config) error {
	envFile := os.Getenv(EnvFileVar)
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("parsing env: %w", err)
	}
	return nil
}
