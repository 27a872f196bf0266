package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosssave/agent/internal/config"
	"github.com/crosssave/agent/testutil"
)

func TestNewWiresEveryComponent(t *testing.T) {
	cfg := testutil.BootstrapTempConfig(t)

	d, err := New(cfg)
	require.NoError(t, err)
	defer d.Close()

	assert.NotNil(t, d.History)
	assert.NotNil(t, d.Profiles)
	assert.NotNil(t, d.Watcher)
	assert.NotNil(t, d.Queue)
	assert.NotNil(t, d.Cell)
	assert.NotNil(t, d.Engine)
	assert.NotNil(t, d.Monitor)
}

func TestNewInstallsDisabledBackendWhenCloudOff(t *testing.T) {
	cfg := testutil.BootstrapTempConfig(t)

	d, err := New(cfg)
	require.NoError(t, err)
	defer d.Close()

	assert.False(t, d.Cell.Get().CheckConnection(context.Background()))
}

func TestRunStopsOnContextCancel(t *testing.T) {
	cfg := testutil.BootstrapTempConfig(t)

	d, err := New(cfg)
	require.NoError(t, err)
	defer d.Close()

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}

func TestModeProviderReflectsCloudMode(t *testing.T) {
	cfg := testutil.BootstrapTempConfig(t)

	mp := &modeProvider{holder: cfg.Holder}
	assert.False(t, mp.CloudEnabled())

	s := cfg.Holder.Get()
	s.CloudMode = config.CloudModeOfficial
	require.NoError(t, cfg.Holder.Update(&s))

	assert.True(t, mp.CloudEnabled())
}
