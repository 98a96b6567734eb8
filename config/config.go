// Package config loads the key/value configuration file spec.md §6
// describes into a typed Config, using the layered defaults → file → env
// → flags precedence idiom (viper + pflag), then fans the resolved keys
// out into the process-wide environment store the same values started
// from (internal/domain/env), so the runtime's GETENV command can still
// see them the way skynet_main.c's config loader would have set them.
package config

import (
	"fmt"
	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/webitel/actor-runtime/internal/domain/env"
)

// Config mirrors spec.md §6's recognized key table.
type Config struct {
	Thread     int    `mapstructure:"thread"`
	Harbor     uint8  `mapstructure:"harbor"`
	Logger     string `mapstructure:"logger"`
	CPath      string `mapstructure:"cpath"`
	Master     string `mapstructure:"master"`
	Address    string `mapstructure:"address"`
	Start      string `mapstructure:"start"`
	Standalone bool   `mapstructure:"standalone"`
}

const (
	defaultThread = 8
	defaultHarbor = 1
)

// Load reads path (default "config" when empty), applying defaults first
// and environment-variable/flag overrides last, and validates the
// result.
func Load(path string, flags *pflag.FlagSet) (*Config, *viper.Viper, error) {
	if path == "" {
		path = "config"
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("thread", defaultThread)
	v.SetDefault("harbor", defaultHarbor)

	v.SetEnvPrefix("ACTOR_RUNTIME")
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, nil, fmt.Errorf("config: bind flags: %w", err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}

	return &cfg, v, nil
}

func (c *Config) validate() error {
	if c.Thread <= 0 {
		return fmt.Errorf("config: thread must be positive, got %d", c.Thread)
	}
	if c.Harbor == 0 {
		return fmt.Errorf("config: harbor must be in 1..255, got 0")
	}
	return nil
}

// PopulateEnv seeds the process-wide environment store from the resolved
// configuration, mirroring the duplicate-key-is-fatal rule spec.md §3/§7
// assign to the env store's initial load.
func PopulateEnv(store *env.Store, v *viper.Viper) error {
	for _, key := range v.AllKeys() {
		if err := store.SetInitial(key, fmt.Sprint(v.Get(key))); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}
	return nil
}

// WatchChanges logs (but never hot-applies — spec.md's config keys are
// read once at startup) subsequent edits to the underlying file.
func WatchChanges(v *viper.Viper, logger *slog.Logger) {
	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Warn("CONFIG_FILE_CHANGED", slog.String("op", e.Op.String()), slog.String("file", e.Name))
	})
	v.WatchConfig()
}
