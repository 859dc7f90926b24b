package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/hpcops/spoolarchive/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagCluster    string
	flagScheduler  string
	flagSpoolDir   string
	flagBackend    string
	flagPIDFile    string
	flagVerbose    bool
	flagQuiet      bool
)

// newRootCmd builds the fully-assembled root command. The root command
// itself runs the daemon; subcommands cover operator interactions with a
// running instance. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "spoolarchive",
		Short:   "Archive HPC job scripts from the scheduler spool",
		Long: "spoolarchive watches a Slurm or Torque spool directory and durably\n" +
			"archives every submitted job script (and its accompanying files) to a\n" +
			"file tree, a Redis Stream, or a SQLite database before the scheduler\n" +
			"purges the spool entry.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          runDaemon,
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.Flags().StringVar(&flagCluster, "cluster", "", "cluster name attached to every archived job")
	cmd.Flags().StringVar(&flagScheduler, "scheduler", "", "scheduler kind (slurm or torque)")
	cmd.Flags().StringVar(&flagSpoolDir, "spool", "", "scheduler spool directory to watch")
	cmd.Flags().StringVar(&flagBackend, "backend", "", "archival backend (file, redis, or sqlite)")
	cmd.Flags().StringVar(&flagPIDFile, "pid-file", "", "PID file path guarding against duplicate daemons")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newRotateCmd())

	return cmd
}

// resolveConfig applies the override chain (defaults -> config file -> CLI
// flags) and validates the result.
func resolveConfig() (*config.Config, error) {
	cli := config.CLIOverrides{
		ConfigPath: flagConfigPath,
		Cluster:    flagCluster,
		Scheduler:  flagScheduler,
		SpoolDir:   flagSpoolDir,
		Backend:    flagBackend,
		PIDFile:    flagPIDFile,
	}

	cfg, err := config.Resolve(cli)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return cfg, nil
}

// buildLogger creates the daemon logger. With a log file configured the
// output goes through a size/age-rotated file as JSON; otherwise stderr,
// human-readable on a terminal and JSON when piped. The returned rotator is
// nil when logging to stderr.
func buildLogger(cfg *config.Config) (*slog.Logger, *lumberjack.Logger) {
	level := slog.LevelInfo

	switch cfg.Logging.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	// CLI flags override config (highest priority).
	if flagVerbose {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Logging.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.Logging.LogFile,
			MaxSize:    cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAge:     cfg.Logging.MaxAgeDays,
			Compress:   true,
		}

		return slog.New(slog.NewJSONHandler(rotator, opts)), rotator
	}

	if isatty.IsTerminal(os.Stderr.Fd()) {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
}

// newRotateCmd returns the "rotate" subcommand: it asks a running daemon to
// reopen its log file, for use from logrotate postrotate hooks.
func newRotateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rotate",
		Short: "Signal a running daemon to rotate its log file",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := resolveConfig()
			if err != nil {
				return err
			}

			if cfg.PIDFile == "" {
				return fmt.Errorf("%w: rotate requires pid_file to locate the daemon",
					config.ErrConfiguration)
			}

			return sendSIGHUP(cfg.PIDFile)
		},
	}
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
