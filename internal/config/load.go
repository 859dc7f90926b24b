package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file. Unknown keys are fatal.
// Validation happens in Resolve, after CLI overrides are applied.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing config file %s: %w", ErrConfiguration, path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}

		return nil, fmt.Errorf("%w: unknown config keys in %s: %s",
			ErrConfiguration, path, strings.Join(keys, ", "))
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns a
// Config populated with defaults. A daemon fully configured through CLI
// flags needs no config file at all.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the override chain:
// defaults -> config file -> CLI flags, then validates the result.
func Resolve(cli CLIOverrides) (*Config, error) {
	cfg, err := LoadOrDefault(cli.ConfigPath)
	if err != nil {
		return nil, err
	}

	if cli.Cluster != "" {
		cfg.Cluster = cli.Cluster
	}

	if cli.Scheduler != "" {
		cfg.Scheduler = cli.Scheduler
	}

	if cli.SpoolDir != "" {
		cfg.SpoolDir = cli.SpoolDir
	}

	if cli.Backend != "" {
		cfg.Backend = cli.Backend
	}

	if cli.PIDFile != "" {
		cfg.PIDFile = cli.PIDFile
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}
