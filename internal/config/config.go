// Package config implements TOML configuration loading and validation for
// spoolarchive. Precedence is a three-layer override chain: built-in
// defaults -> config file -> CLI flags. Unknown keys in the config file are
// fatal, because a silently ignored typo in an archival daemon means jobs
// quietly stop being archived.
package config

import "errors"

// ErrConfiguration marks fatal startup-time configuration problems: bad
// spool path, unknown scheduler or backend, malformed settings. The daemon
// exits non-zero when an error wraps this sentinel.
var ErrConfiguration = errors.New("invalid configuration")

// Config is the top-level structure parsed from the TOML config file.
type Config struct {
	// Cluster names the scheduler instance whose spool is watched. It is
	// attached to every archived job.
	Cluster string `toml:"cluster"`
	// Scheduler selects the spool layout and naming conventions:
	// "slurm" or "torque".
	Scheduler string `toml:"scheduler"`
	// SpoolDir is the scheduler's spool root.
	SpoolDir string `toml:"spool_dir"`
	// TorqueSubdirs watches the numbered subdirectories 0..9 of the Torque
	// spool instead of the spool root itself.
	TorqueSubdirs bool `toml:"torque_subdirs"`
	// Backend selects the archival sink: "file", "redis", or "sqlite".
	Backend string `toml:"backend"`
	// PIDFile guards against a second daemon on the same spool.
	PIDFile string `toml:"pid_file"`

	Queue    QueueConfig    `toml:"queue"`
	File     FileConfig     `toml:"file"`
	Redis    RedisConfig    `toml:"redis"`
	SQLite   SQLiteConfig   `toml:"sqlite"`
	Logging  LoggingConfig  `toml:"logging"`
	Shutdown ShutdownConfig `toml:"shutdown"`
}

// QueueConfig controls the watcher -> dispatcher event queue.
type QueueConfig struct {
	// Capacity bounds the queue. Watchers block briefly (with shutdown
	// rechecks) when it is full; losing events is strictly worse than
	// backpressure.
	Capacity int `toml:"capacity"`
}

// FileConfig configures the filesystem backend.
type FileConfig struct {
	// ArchiveDir is the archive root. Created if missing.
	ArchiveDir string `toml:"archive_dir"`
	// Period buckets the archive into time subdirectories:
	// "yearly" (YYYY), "monthly" (YYYYMM), "daily" (YYYYMMDD), or ""
	// for a flat archive.
	Period string `toml:"period"`
}

// RedisConfig configures the Redis Stream backend.
type RedisConfig struct {
	// URL is a go-redis connection URL, e.g. redis://localhost:6379/0.
	URL string `toml:"url"`
	// Stream is the stream key jobs are appended to.
	Stream string `toml:"stream"`
	// MaxLen, when positive, caps the stream length (approximate trim).
	MaxLen int64 `toml:"max_len"`
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	// DBPath is the database file. Created on first use.
	DBPath string `toml:"db_path"`
}

// LoggingConfig controls log output: level and optional rotating file.
type LoggingConfig struct {
	LogLevel   string `toml:"log_level"`
	LogFile    string `toml:"log_file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// ShutdownConfig controls graceful drain timing.
type ShutdownConfig struct {
	// GracePeriod bounds the drain after a termination signal. When it
	// expires the process exits even if queued events remain, logging the
	// loss.
	GracePeriod string `toml:"grace_period"`
}

// CLIOverrides holds values from CLI flags that override the config file.
// Empty string means "not specified".
type CLIOverrides struct {
	ConfigPath string // --config
	Cluster    string // --cluster
	Scheduler  string // --scheduler
	SpoolDir   string // --spool
	Backend    string // --backend
	PIDFile    string // --pid-file
}
