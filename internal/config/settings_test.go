package config

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestDefaultSettingsValidates(t *testing.T) {
	s := DefaultSettings()
	require.NoError(t, s.Validate())
}

func TestSettingsValidate_RetentionBounds(t *testing.T) {
	s := DefaultSettings()

	s.RetentionLimit = MinRetentionLimit - 1
	assert.Error(t, s.Validate())

	s.RetentionLimit = MaxRetentionLimit + 1
	assert.Error(t, s.Validate())

	s.RetentionLimit = MinRetentionLimit
	assert.NoError(t, s.Validate())

	s.RetentionLimit = MaxRetentionLimit
	assert.NoError(t, s.Validate())
}

func TestSettingsValidate_CloudMode(t *testing.T) {
	s := DefaultSettings()
	s.CloudMode = "bogus"
	assert.Error(t, s.Validate())
}

func TestLoadSettings_MissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")

	s, err := LoadSettings(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, DefaultSettings(), s)
}

func TestSaveAndLoadSettingsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")

	s := DefaultSettings()
	s.Cloud.DeviceID = "device-1"
	s.RetentionLimit = 7

	require.NoError(t, SaveSettings(path, s))

	loaded, err := LoadSettings(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}

func TestSaveSettingsRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")

	s := DefaultSettings()
	s.RetentionLimit = 1000

	assert.Error(t, SaveSettings(path, s))
}

func TestEnsureDeviceIdentity_GeneratesOnce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")

	s := DefaultSettings()
	require.NoError(t, EnsureDeviceIdentity(path, s, testLogger()))
	assert.NotEmpty(t, s.Cloud.DeviceID)
	assert.NotEmpty(t, s.Cloud.Platform)

	firstID := s.Cloud.DeviceID

	require.NoError(t, EnsureDeviceIdentity(path, s, testLogger()))
	assert.Equal(t, firstID, s.Cloud.DeviceID)
}

func TestHolderUpdateIsVisibleToReaders(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.json")

	h := NewHolder(DefaultSettings(), path)
	got := h.Get()
	assert.Equal(t, 10, got.RetentionLimit)

	updated := DefaultSettings()
	updated.RetentionLimit = 15
	require.NoError(t, h.Update(updated))

	assert.Equal(t, 15, h.Get().RetentionLimit)
}
