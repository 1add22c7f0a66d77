// Package config loads laserd settings from TOML or YAML files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config holds the daemon settings.
type Config struct {
	// Addr is the TCP address of the line protocol listener.
	Addr string `toml:"addr" yaml:"addr"`

	// HTTPAddr is the address of the HTTP API. Empty disables it.
	HTTPAddr string `toml:"http_addr" yaml:"http_addr"`

	// Speed is the initial speed in steps per second.
	Speed float64 `toml:"speed" yaml:"speed"`

	// LogFile, when set, receives a rotated copy of the log.
	LogFile  string `toml:"log_file" yaml:"log_file"`
	LogMaxKB int64  `toml:"log_max_kb" yaml:"log_max_kb"`
	LogRolls int    `toml:"log_rolls" yaml:"log_rolls"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:     ":12345",
		HTTPAddr: ":9091",
		Speed:    100,
		LogMaxKB: 10 * 1024,
		LogRolls: 3,
	}
}

// Load reads path over the defaults. The format is chosen by extension:
// .yaml and .yml are YAML, anything else is TOML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return Parse(data, FormatYAML)
	}
	return Parse(data, FormatTOML)
}

type Format int

const (
	FormatTOML Format = iota
	FormatYAML
)

// Parse decodes data over the defaults and validates the result.
func Parse(data []byte, f Format) (*Config, error) {
	cfg := Default()

	var err error
	switch f {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&cfg)
		if errors.Is(err, io.EOF) {
			err = nil
		}
	default:
		var md toml.MetaData
		md, err = toml.Decode(string(data), &cfg)
		if err == nil {
			if keys := md.Undecoded(); len(keys) > 0 {
				err = fmt.Errorf("unknown key %q", keys[0].String())
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if !(c.Speed > 0) || math.IsInf(c.Speed, 0) {
		return fmt.Errorf("speed must be a positive number, got %v", c.Speed)
	}
	if c.LogMaxKB < 1 {
		return fmt.Errorf("log_max_kb must be positive, got %d", c.LogMaxKB)
	}
	if c.LogRolls < 0 {
		return fmt.Errorf("log_rolls must not be negative, got %d", c.LogRolls)
	}
	return nil
}
