package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"go.uber.org/zap"

	"github.com/packflate/pack/flate"
)

const (
	envPrefix         = "SQUEEZE_"
	maxConfigFileSize = 1 << 20
)

// Config holds the settings for a squeeze run.
//
// Values are taken, lowest precedence first, from the defaults, the YAML
// config file, SQUEEZE_* environment variables, and command-line flags.
type Config struct {
	Iterations     int    `koanf:"iterations"`
	MaxStall       int    `koanf:"max_stall"`
	RandomizeEvery int    `koanf:"randomize_every"`
	SearchLen      int    `koanf:"search_len"`
	BlockSize      int    `koanf:"block_size"`
	Format         string `koanf:"format"`

	// GreedyLevel selects the greedy match finder at that level (1-9)
	// instead of the optimal parser. 0 means use the optimal parser.
	GreedyLevel int `koanf:"greedy_level"`
}

func defaultConfig() Config {
	return Config{
		Iterations:     15,
		MaxStall:       10,
		RandomizeEvery: 5,
		SearchLen:      128,
		BlockSize:      1 << 16,
		Format:         "gzip",
	}
}

// loadConfig builds a Config from the file at path (if path is not empty),
// the environment, and overrides, which maps config keys to flag values.
func loadConfig(path string, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// SQUEEZE_MAX_STALL -> max_stall
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	for key, v := range overrides {
		if err := k.Set(key, v); err != nil {
			return nil, fmt.Errorf("failed to set %s: %w", key, err)
		}
	}

	cfg := defaultConfig()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s is too large (%d bytes)", path, info.Size())
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return content, nil
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	// Zero would silently select the library defaults.
	if c.Iterations == 0 {
		return fmt.Errorf("iterations must not be 0 (use a negative value for a fixed-tree parse only)")
	}
	if c.MaxStall == 0 {
		return fmt.Errorf("max_stall must not be 0 (use a negative value to disable it)")
	}
	if c.RandomizeEvery == 0 {
		return fmt.Errorf("randomize_every must not be 0 (use a negative value to disable it)")
	}
	if c.SearchLen < 0 {
		return fmt.Errorf("search_len must not be negative, got %d", c.SearchLen)
	}
	if c.BlockSize <= 0 {
		return fmt.Errorf("block_size must be positive, got %d", c.BlockSize)
	}
	if c.GreedyLevel < 0 || c.GreedyLevel > 9 {
		return fmt.Errorf("greedy_level must be between 0 and 9, got %d", c.GreedyLevel)
	}
	if _, err := flate.ParseFormat(c.Format); err != nil {
		return err
	}
	return nil
}

// squeezeParser returns a SqueezeParser with c's settings.
func (c *Config) squeezeParser(logger *zap.Logger) *flate.SqueezeParser {
	return &flate.SqueezeParser{
		Iterations:     c.Iterations,
		MaxStall:       c.MaxStall,
		RandomizeEvery: c.RandomizeEvery,
		Logger:         logger,
	}
}
