package profile

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetReturnsBuiltinWhenNoOverride(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "profiles"))

	p, err := s.Get("dolphin")
	require.NoError(t, err)
	assert.Equal(t, "dolphin", p.EmulatorID)
}

func TestGetUnknownReturnsNotFound(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "profiles"))

	_, err := s.Get("nonexistent")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSaveOverridesBuiltin(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "profiles"))

	override := Profile{
		EmulatorID:       "dolphin",
		DisplayName:      "My Dolphin",
		DefaultSavePaths: []string{"/custom/path"},
		Patterns:         []string{"*.gci"},
	}
	require.NoError(t, s.Save(override))

	got, err := s.Get("dolphin")
	require.NoError(t, err)
	assert.Equal(t, "My Dolphin", got.DisplayName)
	assert.Equal(t, []string{"/custom/path"}, got.DefaultSavePaths)
}

func TestDeleteRemovesOverrideNotBuiltin(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "profiles"))

	require.NoError(t, s.Save(Profile{EmulatorID: "dolphin", DisplayName: "Custom"}))
	require.NoError(t, s.Delete("dolphin"))

	got, err := s.Get("dolphin")
	require.NoError(t, err)
	assert.Equal(t, "Dolphin (GameCube/Wii)", got.DisplayName)
}

func TestListMergesBuiltinsAndOverrides(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "profiles"))
	require.NoError(t, s.Save(Profile{EmulatorID: "custom-emu", DisplayName: "Custom Emu"}))

	list, err := s.List()
	require.NoError(t, err)
	assert.True(t, len(list) >= 4)

	var found bool
	for _, p := range list {
		if p.EmulatorID == "custom-emu" {
			found = true
		}
	}
	assert.True(t, found)
}
