package config

import (
	"fmt"
	"log/slog"
)

// Bootstrap resolves the static config and the mutable Settings record for
// one process lifetime: app-data dir -> static config -> settings.json,
// generating a device identity on first run (spec §3 invariant). This is
// the single entry point cmd/savesync uses before dispatching any command.
func Bootstrap(cli CLIOverrides, logger *slog.Logger) (*Resolved, error) {
	env := ReadEnvOverrides(logger)

	appDataDir := ResolveAppDataDir(env, cli)
	layout := NewLayout(appDataDir)

	if err := WriteDefaultStaticConfig(layout.StaticConfigPath()); err != nil {
		logger.Warn("could not write default static config", "error", err)
	}

	static, err := LoadStatic(layout.StaticConfigPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("config: bootstrapping static config: %w", err)
	}

	settings, err := LoadSettings(layout.SettingsPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("config: bootstrapping settings: %w", err)
	}

	if err := EnsureDeviceIdentity(layout.SettingsPath(), settings, logger); err != nil {
		return nil, fmt.Errorf("config: ensuring device identity: %w", err)
	}

	holder := NewHolder(settings, layout.SettingsPath())

	return &Resolved{
		Layout: layout,
		Static: static,
		Holder: holder,
		Logger: logger,
	}, nil
}
