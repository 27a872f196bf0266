// Package config resolves the agent's static bootstrap configuration and
// owns the durable, RPC-mutable Settings record described in spec §3.
package config

import (
	"os"
	"path/filepath"
)

// Layout is the set of paths making up the persisted state layout under an
// app-data root (spec §6 "Persisted state layout").
type Layout struct {
	Root string
}

// NewLayout returns a Layout rooted at root. If root is empty, the platform
// default app-data directory is used.
func NewLayout(root string) Layout {
	if root == "" {
		root = DefaultAppDataDir()
	}

	return Layout{Root: root}
}

// DefaultAppDataDir returns the platform-default app-data root, honoring
// XDG_DATA_HOME on Linux and falling back to ~/.local/share/savesync.
func DefaultAppDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "savesync")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".savesync")
	}

	return filepath.Join(home, ".local", "share", "savesync")
}

func (l Layout) StaticConfigPath() string   { return filepath.Join(l.Root, "config", "config.toml") }
func (l Layout) SettingsPath() string       { return filepath.Join(l.Root, "config", "settings.json") }
func (l Layout) HistoryRoot() string        { return filepath.Join(l.Root, "archives", "history") }
func (l Layout) ActiveSnapshotDir() string  { return filepath.Join(l.Root, "archives") }
func (l Layout) CloudDownloadsDir() string  { return filepath.Join(l.Root, "data", "cloud_downloads") }
func (l Layout) QueueSnapshotPath() string  { return filepath.Join(l.Root, "data", "sync_queue.json") }
func (l Layout) ProfilesDir() string        { return filepath.Join(l.Root, "profiles") }
func (l Layout) HistoryIndexDBPath() string { return filepath.Join(l.Root, "archives", "history", "index.db") }
