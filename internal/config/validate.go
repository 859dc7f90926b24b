package config

import (
	"fmt"
	"time"
)

// Valid enumeration values. Validation happens once, on the fully resolved
// config — misconfiguration aborts startup before any watcher is spawned.
var (
	validSchedulers = map[string]bool{"slurm": true, "torque": true}
	validBackends   = map[string]bool{"file": true, "redis": true, "sqlite": true}
	validPeriods    = map[string]bool{"": true, "yearly": true, "monthly": true, "daily": true}
)

// Validate checks the resolved configuration. All errors wrap
// ErrConfiguration.
func Validate(cfg *Config) error {
	if cfg.Cluster == "" {
		return fmt.Errorf("%w: cluster name is required", ErrConfiguration)
	}

	if cfg.SpoolDir == "" {
		return fmt.Errorf("%w: spool_dir is required", ErrConfiguration)
	}

	if !validSchedulers[cfg.Scheduler] {
		return fmt.Errorf("%w: unknown scheduler %q (want slurm or torque)",
			ErrConfiguration, cfg.Scheduler)
	}

	if !validBackends[cfg.Backend] {
		return fmt.Errorf("%w: unknown backend %q (want file, redis, or sqlite)",
			ErrConfiguration, cfg.Backend)
	}

	if cfg.Queue.Capacity < 1 {
		return fmt.Errorf("%w: queue capacity must be positive, got %d",
			ErrConfiguration, cfg.Queue.Capacity)
	}

	if _, err := time.ParseDuration(cfg.Shutdown.GracePeriod); err != nil {
		return fmt.Errorf("%w: shutdown grace_period %q: %v",
			ErrConfiguration, cfg.Shutdown.GracePeriod, err)
	}

	return validateBackend(cfg)
}

// validateBackend checks the settings of the selected backend only —
// sections for inactive backends are ignored.
func validateBackend(cfg *Config) error {
	switch cfg.Backend {
	case "file":
		if cfg.File.ArchiveDir == "" {
			return fmt.Errorf("%w: file backend requires archive_dir", ErrConfiguration)
		}

		if !validPeriods[cfg.File.Period] {
			return fmt.Errorf("%w: unknown archive period %q (want yearly, monthly, daily, or empty)",
				ErrConfiguration, cfg.File.Period)
		}
	case "redis":
		if cfg.Redis.URL == "" {
			return fmt.Errorf("%w: redis backend requires url", ErrConfiguration)
		}

		if cfg.Redis.Stream == "" {
			return fmt.Errorf("%w: redis backend requires stream", ErrConfiguration)
		}
	case "sqlite":
		if cfg.SQLite.DBPath == "" {
			return fmt.Errorf("%w: sqlite backend requires db_path", ErrConfiguration)
		}
	}

	return nil
}

// GracePeriod returns the parsed shutdown grace period. Validate must have
// accepted the config first.
func (c *Config) GracePeriod() time.Duration {
	d, err := time.ParseDuration(c.Shutdown.GracePeriod)
	if err != nil {
		return 30 * time.Second
	}

	return d
}
