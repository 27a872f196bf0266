// Package testutil provides shared test environment helpers: a
// bootstrapped temp-dir app-data tree and a fake cloud backend, standing in
// for the teacher's live-account E2E harness (this project has no live
// cloud account to test against; package-level tests use these instead).
package testutil

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/crosssave/agent/internal/config"
)

// DiscardLogger returns a logger that drops everything, for tests that
// don't assert on log output.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// BootstrapTempConfig bootstraps a full config.Resolved rooted at a fresh
// t.TempDir(), the one-call setup the daemon and api tests use before
// constructing the component under test.
func BootstrapTempConfig(t *testing.T) *config.Resolved {
	t.Helper()

	cfg, err := config.Bootstrap(config.CLIOverrides{AppDataDir: t.TempDir()}, DiscardLogger())
	require.NoError(t, err)

	return cfg
}
