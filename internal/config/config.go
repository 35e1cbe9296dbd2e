// Package config loads the boards configuration file and manages the
// preference keys stored next to the records.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/roach88/boardstore/internal/kv"
	"github.com/roach88/boardstore/internal/storeerr"
)

// DefaultPath is the data location used when neither the file nor a flag
// names one.
const DefaultPath = "~/.boards/boards.db"

// Config is the contents of the configuration file.
type Config struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Driver:   kv.DriverSQLite,
		Path:     DefaultPath,
		LogLevel: "info",
	}
}

// Load reads the YAML file at path over the defaults. An empty path or a
// missing file yields the defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(ExpandHome(path))
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the driver name and log level.
func (c Config) Validate() error {
	if !kv.IsDriver(c.Driver) {
		return storeerr.New(storeerr.KindConfiguration, storeerr.CodeUnknownDriver, "config.validate",
			fmt.Sprintf("unknown storage driver %q: must be one of %v", c.Driver, kv.Drivers()))
	}
	if _, err := zap.ParseAtomicLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", c.LogLevel, err)
	}
	return nil
}

// DataPath returns Path with a leading "~" expanded.
func (c Config) DataPath() string {
	return ExpandHome(c.Path)
}

// ExpandHome replaces a leading "~/" with the user's home directory. The
// path is returned unchanged if the home directory is unknown.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
