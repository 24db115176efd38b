// Package config holds the runtime settings of the server and the CLI.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ironsheep/vault-geometry-mcp/internal/roicorrect"
)

// Environment variables read by ApplyEnv.
const (
	EnvConfig   = "VAULT_MCP_CONFIG"
	EnvDataDir  = "VAULT_MCP_DATA_DIR"
	EnvWorkers  = "VAULT_MCP_WORKERS"
	EnvLogLevel = "VAULT_MCP_LOG_LEVEL"
)

const maxWorkers = 64

// Config holds runtime configuration. Fields may be loaded from a JSON file and
// overridden by environment variables or command-line flags.
type Config struct {
	// DataDir holds the projects/ tree.
	DataDir string `json:"data_dir"`

	// Workers bounds how many CPU-bound tool calls run at once.
	Workers int `json:"workers"`

	LogLevel string `json:"log_level"`

	// DefaultPreset is the auto-correct preset used when a request names none.
	DefaultPreset string `json:"default_preset"`

	RenderLabels bool `json:"render_labels"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		DataDir:       "data",
		Workers:       max(1, runtime.NumCPU()/2),
		LogLevel:      "info",
		DefaultPreset: roicorrect.PresetBalanced,
		RenderLabels:  false,
	}
}

// Validate clamps/normalizes values to safe ranges.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "data"
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Workers > maxWorkers {
		c.Workers = maxWorkers
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		c.LogLevel = "info"
	}
	switch c.DefaultPreset {
	case roicorrect.PresetFast, roicorrect.PresetBalanced, roicorrect.PresetPrecise:
	default:
		c.DefaultPreset = roicorrect.PresetBalanced
	}
	return nil
}

// Load reads configuration from the JSON file at path. A missing file yields
// DefaultConfig(). On a JSON error the defaults come back with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrap(err, "open config")
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(cfg); err != nil {
		return DefaultConfig(), errors.Wrapf(err, "decode config %s", path)
	}
	_ = cfg.Validate()
	return cfg, nil
}

// Save writes the configuration to path in JSON format.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "create config directory")
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create config")
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(c), "encode config")
}

// ApplyEnv overrides fields from the VAULT_MCP_* environment variables and
// revalidates. Unparseable values are ignored.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Workers = n
		}
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	_ = c.Validate()
}

// FromEnv loads the file named by VAULT_MCP_CONFIG, if any, then applies the
// environment overrides.
func FromEnv() (*Config, error) {
	cfg := DefaultConfig()
	if path := os.Getenv(EnvConfig); path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return cfg, err
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}
