package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// StaticConfig holds operator-tunable knobs that are awkward to express as
// mutable JSON state: log level, poll interval, and defaults for things the
// RPC surface does not churn at runtime. Resolved with the same four-layer
// precedence the CLI uses for everything else: defaults -> file -> env ->
// CLI flags.
type StaticConfig struct {
	LogLevel        string        `toml:"log_level"`
	AppDataDir      string        `toml:"app_data_dir"`
	PollInterval    time.Duration `toml:"-"`
	PollIntervalRaw string        `toml:"poll_interval"`
	HTTPTimeout     time.Duration `toml:"-"`
	HTTPTimeoutRaw  string        `toml:"http_timeout"`
}

// DefaultStaticConfig mirrors spec §4.6's 10s tick and §5's >=1s HTTP
// timeout floor.
func DefaultStaticConfig() *StaticConfig {
	return &StaticConfig{
		LogLevel:        "warn",
		PollInterval:    10 * time.Second,
		PollIntervalRaw: "10s",
		HTTPTimeout:     30 * time.Second,
		HTTPTimeoutRaw:  "30s",
	}
}

// staticConfigTemplate is written on first run so every option is
// discoverable without reading docs, matching the teacher's config
// template convention.
const staticConfigTemplate = `# savesync bootstrap configuration
# Docs: internal config knobs only; mutable state lives in settings.json.

# log_level = "info"       # debug, info, warn, error
# app_data_dir = ""        # default: platform data dir
# poll_interval = "10s"    # sync engine tick interval
# http_timeout = "30s"     # cloud backend HTTP client timeout
`

// LoadStatic reads and parses the TOML bootstrap config. Missing files
// yield defaults (zero-config first run).
func LoadStatic(path string, logger *slog.Logger) (*StaticConfig, error) {
	cfg := DefaultStaticConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Debug("static config not found, using defaults", "path", path)
		return cfg, nil
	}

	if err != nil {
		return nil, fmt.Errorf("config: reading static config %s: %w", path, err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("config: parsing static config %s: %w", path, err)
	}

	if err := cfg.resolveDurations(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *StaticConfig) resolveDurations() error {
	if c.PollIntervalRaw != "" {
		d, err := time.ParseDuration(c.PollIntervalRaw)
		if err != nil {
			return fmt.Errorf("config: invalid poll_interval %q: %w", c.PollIntervalRaw, err)
		}

		c.PollInterval = d
	}

	if c.HTTPTimeoutRaw != "" {
		d, err := time.ParseDuration(c.HTTPTimeoutRaw)
		if err != nil {
			return fmt.Errorf("config: invalid http_timeout %q: %w", c.HTTPTimeoutRaw, err)
		}

		c.HTTPTimeout = d
	}

	return nil
}

// WriteDefaultStaticConfig writes the template config file if none exists.
func WriteDefaultStaticConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	return atomicWriteFile(path, []byte(staticConfigTemplate))
}

// EnvOverrides captures SAVESYNC_* environment variables, the third layer
// of the four-layer precedence chain.
type EnvOverrides struct {
	ConfigPath string
	AppDataDir string
	LogLevel   string
}

// ReadEnvOverrides reads SAVESYNC_CONFIG, SAVESYNC_APP_DATA_DIR, and
// SAVESYNC_LOG_LEVEL.
func ReadEnvOverrides(logger *slog.Logger) EnvOverrides {
	env := EnvOverrides{
		ConfigPath: os.Getenv("SAVESYNC_CONFIG"),
		AppDataDir: os.Getenv("SAVESYNC_APP_DATA_DIR"),
		LogLevel:   os.Getenv("SAVESYNC_LOG_LEVEL"),
	}

	logger.Debug("read environment overrides",
		"config_path", env.ConfigPath,
		"app_data_dir", env.AppDataDir,
		"log_level", env.LogLevel,
	)

	return env
}

// CLIOverrides captures flags parsed by cobra, the highest-priority layer.
type CLIOverrides struct {
	ConfigPath string
	AppDataDir string
	LogLevel   string
}

// Resolved is the fully merged configuration handed to every subcommand.
type Resolved struct {
	Layout  Layout
	Static  *StaticConfig
	Holder  *Holder
	Logger  *slog.Logger
}

// ResolveAppDataDir applies the precedence defaults -> env -> CLI.
func ResolveAppDataDir(env EnvOverrides, cli CLIOverrides) string {
	dir := DefaultAppDataDir()

	if env.AppDataDir != "" {
		dir = env.AppDataDir
	}

	if cli.AppDataDir != "" {
		dir = cli.AppDataDir
	}

	return dir
}

// ResolveLogLevel applies the precedence static-file -> env -> CLI.
func ResolveLogLevel(static *StaticConfig, env EnvOverrides, cli CLIOverrides) string {
	level := static.LogLevel

	if env.LogLevel != "" {
		level = env.LogLevel
	}

	if cli.LogLevel != "" {
		level = cli.LogLevel
	}

	return level
}
