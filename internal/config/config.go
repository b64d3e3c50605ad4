// Package config loads settings from a YAML file, environment variables,
// and command-line flags, in that order of increasing precedence.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "LEITSYNC_"

// Config is the application configuration.
type Config struct {
	DBPath string `koanf:"db_path" validate:"required"`
	UserID string `koanf:"user_id" validate:"required"`

	// DelayFirstReview makes newly created cards due a day after creation
	// instead of immediately.
	DelayFirstReview bool `koanf:"delay_first_review"`

	// ReposDir caches git deck checkouts.
	ReposDir string `koanf:"repos_dir"`

	Remote Remote `koanf:"remote"`
}

// Remote configures the sync backend. An empty BaseURL disables sync.
type Remote struct {
	BaseURL    string `koanf:"base_url" validate:"omitempty,url"`
	AuthSecret string `koanf:"auth_secret"`
}

// SyncEnabled reports whether a sync backend is configured.
func (c *Config) SyncEnabled() bool { return c.Remote.BaseURL != "" }

// Load reads configuration from the YAML file at path (skipped when the
// file does not exist), LEITSYNC_* environment variables, and the given
// flag set. The merged result is validated before being returned.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		}
	}

	// Double underscore nests: LEITSYNC_REMOTE__BASE_URL -> remote.base_url,
	// LEITSYNC_DB_PATH -> db_path.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment config: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, fmt.Errorf("failed to load flag config: %w", err)
		}
	}

	cfg := &Config{
		DBPath:   "leitsync.db",
		ReposDir: "repos",
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
