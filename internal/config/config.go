// Package config holds the CLI configuration: a YAML file overlaid with
// environment variables, defaults coming from env-default tags.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/notecap/pkg/core"
)

// Config is the root configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	List      ListConfig      `yaml:"list"`
	Generator GeneratorConfig `yaml:"generator"`
	Bus       BusConfig       `yaml:"bus"`
	Render    RenderConfig    `yaml:"render"`
	Log       LogConfig       `yaml:"log"`
}

// StoreConfig selects and tunes the persistent store.
type StoreConfig struct {
	Path        string        `yaml:"path"         env:"NOTECAP_STORE_PATH"         env-default:"."`
	Adapter     string        `yaml:"adapter"      env:"NOTECAP_STORE_ADAPTER"      env-default:"fs"`
	File        string        `yaml:"file"         env:"NOTECAP_STORE_FILE"         env-default:"notes.json"`
	ReadOnly    bool          `yaml:"read_only"    env:"NOTECAP_STORE_READ_ONLY"    env-default:"false"`
	LockTimeout time.Duration `yaml:"lock_timeout" env:"NOTECAP_STORE_LOCK_TIMEOUT" env-default:"5s"`
	Watch       bool          `yaml:"watch"        env:"NOTECAP_STORE_WATCH"        env-default:"true"`
}

// ListConfig is the list policy of the main window.
// WindowDays 0 lists every note.
type ListConfig struct {
	WindowDays int `yaml:"window_days" env:"NOTECAP_LIST_WINDOW_DAYS" env-default:"3"`
}

// GeneratorConfig configures title/tag generation. Without a URL only the
// local markdown heuristic runs.
type GeneratorConfig struct {
	URL     string        `yaml:"url"     env:"NOTECAP_GENERATOR_URL"`
	Token   string        `yaml:"token"   env:"NOTECAP_GENERATOR_TOKEN"`
	Timeout time.Duration `yaml:"timeout" env:"NOTECAP_GENERATOR_TIMEOUT" env-default:"30s"`
}

// BusConfig configures the Event Bus between window processes.
type BusConfig struct {
	Transport string        `yaml:"transport" env:"NOTECAP_BUS_TRANSPORT" env-default:"spool"`
	SpoolDir  string        `yaml:"spool_dir" env:"NOTECAP_BUS_SPOOL_DIR"`
	TTL       time.Duration `yaml:"ttl"       env:"NOTECAP_BUS_TTL"       env-default:"1m"`
}

// RenderConfig configures terminal rendering of note bodies.
type RenderConfig struct {
	Style string `yaml:"style" env:"NOTECAP_RENDER_STYLE" env-default:"auto"`
	Width int    `yaml:"width" env:"NOTECAP_RENDER_WIDTH" env-default:"80"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level string `yaml:"level" env:"NOTECAP_LOG_LEVEL" env-default:"info"`
}

var (
	adapters   = []string{"fs", "bolt", "memory"}
	transports = []string{"spool", "hub"}
)

// Validate checks values the loader cannot.
func (c *Config) Validate() error {
	var errs []string
	if !slices.Contains(adapters, c.Store.Adapter) {
		errs = append(errs, fmt.Sprintf("store.adapter must be one of %v, got %q", adapters, c.Store.Adapter))
	}
	if !slices.Contains(transports, c.Bus.Transport) {
		errs = append(errs, fmt.Sprintf("bus.transport must be one of %v, got %q", transports, c.Bus.Transport))
	}
	if c.List.WindowDays < 0 {
		errs = append(errs, "list.window_days must be >= 0")
	}
	if c.Generator.Timeout <= 0 {
		errs = append(errs, "generator.timeout must be positive")
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// ListPolicy returns the configured list policy.
func (c *Config) ListPolicy() core.ListPolicy {
	return core.ListPolicy{WindowDays: c.List.WindowDays}
}

// LogLevel returns the configured slog level.
func (c *Config) LogLevel() slog.Level {
	l, _ := parseLevel(c.Log.Level)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return l, nil
}

// Write saves c as YAML at path without overwriting an existing file.
func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
