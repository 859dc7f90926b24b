package config

// Default values: layer 0 of the override chain. Chosen so that a config
// file only needs the cluster name, spool location, and backend settings.
const (
	defaultScheduler     = "slurm"
	defaultBackend       = "file"
	defaultQueueCapacity = 1024
	defaultRedisURL      = "redis://localhost:6379/0"
	defaultRedisStream   = "spoolarchive"
	defaultLogLevel      = "info"
	defaultLogMaxSizeMB  = 100
	defaultLogMaxBackups = 5
	defaultLogMaxAgeDays = 30
	defaultGracePeriod   = "30s"
)

// DefaultConfig returns a Config populated with all default values. It is
// the starting point for TOML decoding so unset fields keep their defaults.
func DefaultConfig() *Config {
	return &Config{
		Scheduler: defaultScheduler,
		Backend:   defaultBackend,
		Queue: QueueConfig{
			Capacity: defaultQueueCapacity,
		},
		Redis: RedisConfig{
			URL:    defaultRedisURL,
			Stream: defaultRedisStream,
		},
		Logging: LoggingConfig{
			LogLevel:   defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
		},
		Shutdown: ShutdownConfig{
			GracePeriod: defaultGracePeriod,
		},
	}
}
