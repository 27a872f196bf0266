package api

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosssave/agent/internal/cloud"
	"github.com/crosssave/agent/internal/daemon"
	"github.com/crosssave/agent/testutil"
)

func newTestAPIWithFakeBackend(t *testing.T) (*API, *testutil.FakeBackend) {
	t.Helper()

	cfg := testutil.BootstrapTempConfig(t)

	d, err := daemon.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })

	fake := testutil.NewFakeBackend()
	fake.Token = cloud.AuthToken{Token: "fake-token"}
	d.Cell.Switch(cloud.Official, fake)

	return New(d), fake
}

func TestLoginPersistsTokenAndRebuildsBackend(t *testing.T) {
	a, _ := newTestAPIWithFakeBackend(t)

	s := a.GetAppSettings()
	s.CloudMode = "official"
	require.NoError(t, a.UpdateAppSettings(s))

	tok, err := a.Login(context.Background(), "player@example.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "fake-token", tok.Token)

	stored := a.GetCloudConfig()
	assert.Equal(t, "fake-token", stored.Cloud.APIKey)
}

func TestRegisterAndListAndRemoveDevice(t *testing.T) {
	a, _ := newTestAPIWithFakeBackend(t)
	ctx := context.Background()

	require.NoError(t, a.RegisterDevice(ctx, "token", "dev-1", "linux", "My PC"))

	devices, err := a.ListDevices(ctx, "token")
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, "dev-1", devices[0].DeviceID)

	require.NoError(t, a.RemoveDevice(ctx, "token", "dev-1"))

	devices, err = a.ListDevices(ctx, "token")
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestUploadAndListAndDownloadCloudVersion(t *testing.T) {
	a, _ := newTestAPIWithFakeBackend(t)
	ctx := context.Background()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "save.srm"), []byte("progress"), 0o600))

	packaged, err := a.PackageSave("zelda", "dolphin", []string{dir}, []string{"*.srm"})
	require.NoError(t, err)

	summary, err := a.UploadCloudSave(ctx, packaged.Metadata.GameID, packaged.Metadata.VersionID)
	require.NoError(t, err)
	assert.Equal(t, packaged.Metadata.VersionID, summary.VersionID)

	versions, err := a.ListCloudVersions(ctx, "zelda", 0)
	require.NoError(t, err)
	require.Len(t, versions, 1)

	path, err := a.DownloadCloudVersion(ctx, "zelda", packaged.Metadata.VersionID)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}

func TestUpdateCloudModeSwitchesBackend(t *testing.T) {
	a, _ := newTestAPIWithFakeBackend(t)

	require.NoError(t, a.UpdateCloudMode("off"))

	status := a.GetCloudStatus()
	assert.Equal(t, "off", string(status.Mode))
}
