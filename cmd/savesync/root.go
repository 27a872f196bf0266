// Command savesync is a CLI front end and long-running daemon for the
// cross-device save-file sync agent: it bootstraps app-data, constructs
// every internal component via internal/daemon, and dispatches one
// subcommand per internal/api operation.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/crosssave/agent/internal/api"
	"github.com/crosssave/agent/internal/config"
	"github.com/crosssave/agent/internal/daemon"
)

var version = "dev"

var (
	flagAppDataDir string
	flagLogLevel   string
	flagJSON       bool
	flagVerbose    bool
	flagQuiet      bool
)

// skipConfigAnnotation marks commands that do their own bootstrap (none
// currently do; kept for parity with subcommands that may need it later,
// e.g. a future "init" command run before any app-data dir exists).
const skipConfigAnnotation = "skipConfig"

// CLIContext bundles the bootstrapped config, a bound API, and the daemon
// those live on, so subcommands can close over one struct instead of
// re-deriving their dependencies.
type CLIContext struct {
	Cfg    *config.Resolved
	Daemon *daemon.Daemon
	API    *api.API
	Logger *slog.Logger
}

type cliContextKey struct{}

func cliContextFrom(ctx context.Context) *CLIContext {
	cc, _ := ctx.Value(cliContextKey{}).(*CLIContext)
	return cc
}

func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("BUG: CLIContext not found in context — every command must go through PersistentPreRunE")
	}

	return cc
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "savesync",
		Short:         "Cross-device save-file sync agent",
		Long:          "savesync watches emulator save directories, keeps a local version history, and syncs save files to a cloud backend across devices.",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfigAnnotation] == "true" {
				return nil
			}

			return loadContext(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagAppDataDir, "app-data-dir", "", "override the app data directory")
	cmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "emit NDJSON output instead of human-readable text")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "info-level logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "error-level logging only")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	cmd.AddCommand(newDaemonCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newProfilesCmd())
	cmd.AddCommand(newPackageCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newCloudCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadContext bootstraps config and constructs (but does not Run) a Daemon,
// storing the result on the command's context for subcommands to retrieve
// with mustCLIContext.
func loadContext(cmd *cobra.Command) error {
	logger := buildLogger(nil)

	cli := config.CLIOverrides{AppDataDir: flagAppDataDir, LogLevel: flagLogLevel}

	cfg, err := config.Bootstrap(cli, logger)
	if err != nil {
		return fmt.Errorf("bootstrapping config: %w", err)
	}

	finalLogger := buildLogger(cfg.Static)
	cfg.Logger = finalLogger

	d, err := daemon.New(cfg)
	if err != nil {
		return fmt.Errorf("constructing daemon: %w", err)
	}

	cc := &CLIContext{Cfg: cfg, Daemon: d, API: api.New(d), Logger: finalLogger}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))

	return nil
}

// buildLogger resolves the log level from static config (lowest priority),
// then CLI flags (highest priority). Unlike config.ResolveLogLevel, it does
// not consult the SAVESYNC_LOG_LEVEL environment variable.
func buildLogger(static *config.StaticConfig) *slog.Logger {
	level := slog.LevelWarn

	if static != nil {
		switch static.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "error":
			level = slog.LevelError
		}
	}

	if flagLogLevel != "" {
		switch flagLogLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelInfo
	}

	if flagQuiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// isInteractive reports whether stdout is a terminal, used to decide
// whether human-readable tables get extra framing.
func isInteractive() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}

func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
