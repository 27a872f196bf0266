package history

import (
	"archive/zip"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crosssave/agent/internal/packager"
)

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func writeArchive(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.Create("save.srm")
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
}

func newTestStore(t *testing.T, retentionLimit int, autoDelete bool) *Store {
	t.Helper()

	base := t.TempDir()
	root := filepath.Join(base, "history")
	require.NoError(t, os.MkdirAll(root, 0o755))

	s, err := Init(root, filepath.Join(base, "index.db"), retentionLimit, autoDelete, discardLogger())
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })

	return s
}

func metaFor(gameID string, ts uint64) packager.SaveMetadata {
	return packager.SaveMetadata{
		GameID:     gameID,
		EmulatorID: "dolphin",
		VersionID:  versionIDFor(ts),
		Timestamp:  ts,
		FileList:   []string{"save.srm"},
		Hash:       "deadbeef",
	}
}

func versionIDFor(ts uint64) string {
	return fmt.Sprintf("v%d", ts)
}

func saveVersion(t *testing.T, s *Store, gameID string, ts uint64) HistoryEntry {
	t.Helper()

	src := filepath.Join(t.TempDir(), "staged.zip")
	writeArchive(t, src, "content")

	entry, err := s.SaveToHistory(metaFor(gameID, ts), src)
	require.NoError(t, err)

	return *entry
}

// TestRetentionScenarioS5 implements spec §8 scenario S5: insert 7 versions
// with retention_limit=5 and expect only the 5 newest (t=3..7) to remain.
func TestRetentionScenarioS5(t *testing.T) {
	s := newTestStore(t, 5, true)

	for ts := uint64(1); ts <= 7; ts++ {
		saveVersion(t, s, "sm64", ts)
	}

	entries := s.ListHistory("sm64")
	require.Len(t, entries, 5)

	var got []uint64
	for _, e := range entries {
		got = append(got, e.Metadata.Timestamp)
	}

	assert.Equal(t, []uint64{7, 6, 5, 4, 3}, got)

	for ts := uint64(1); ts <= 2; ts++ {
		_, err := s.GetHistoryItem("sm64", versionIDFor(ts))
		assert.ErrorIs(t, err, ErrNotFound)
	}

	size, err := s.TotalSize("sm64")
	require.NoError(t, err)
	assert.Greater(t, size, int64(0))
}

func TestSaveToHistoryThenGetRoundTrips(t *testing.T) {
	s := newTestStore(t, 5, false)

	entry := saveVersion(t, s, "zelda", 100)

	got, err := s.GetHistoryItem("zelda", entry.Metadata.VersionID)
	require.NoError(t, err)
	assert.Equal(t, entry.Metadata.Hash, got.Metadata.Hash)
	assert.FileExists(t, got.ArchivePath)
}

func TestListHistoryIsNewestFirst(t *testing.T) {
	s := newTestStore(t, 10, false)

	saveVersion(t, s, "metroid", 10)
	saveVersion(t, s, "metroid", 30)
	saveVersion(t, s, "metroid", 20)

	entries := s.ListHistory("metroid")
	require.Len(t, entries, 3)
	assert.Equal(t, uint64(30), entries[0].Metadata.Timestamp)
	assert.Equal(t, uint64(20), entries[1].Metadata.Timestamp)
	assert.Equal(t, uint64(10), entries[2].Metadata.Timestamp)
}

func TestRollbackVersionCopiesWithoutMutatingHistory(t *testing.T) {
	s := newTestStore(t, 10, false)

	entry := saveVersion(t, s, "chrono", 5)

	packaged, err := s.RollbackVersion("chrono", entry.Metadata.VersionID)
	require.NoError(t, err)
	assert.FileExists(t, packaged.ArchivePath)

	still, err := s.GetHistoryItem("chrono", entry.Metadata.VersionID)
	require.NoError(t, err)
	assert.Equal(t, entry.Metadata.VersionID, still.Metadata.VersionID)
	assert.FileExists(t, still.ArchivePath)
}

func TestDeleteHistoryItemRemovesFromCacheAndDisk(t *testing.T) {
	s := newTestStore(t, 10, false)

	entry := saveVersion(t, s, "mario", 1)

	require.NoError(t, s.DeleteHistoryItem("mario", entry.Metadata.VersionID))

	_, err := s.GetHistoryItem("mario", entry.Metadata.VersionID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoFileExists(t, entry.ArchivePath)
	assert.NoFileExists(t, entry.MetadataPath)
}

func TestClearAllRemovesEverything(t *testing.T) {
	s := newTestStore(t, 10, false)

	saveVersion(t, s, "a", 1)
	saveVersion(t, s, "b", 2)

	require.NoError(t, s.ClearAll())

	assert.Empty(t, s.ListHistory("a"))
	assert.Empty(t, s.ListHistory("b"))

	size, err := s.TotalSize("")
	require.NoError(t, err)
	assert.Equal(t, int64(0), size)
}

func TestSetPolicyEnforcesRetentionImmediately(t *testing.T) {
	s := newTestStore(t, 10, false)

	for ts := uint64(1); ts <= 5; ts++ {
		saveVersion(t, s, "pokemon", ts)
	}

	s.SetPolicy(2, true)

	entries := s.ListHistory("pokemon")
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(5), entries[0].Metadata.Timestamp)
	assert.Equal(t, uint64(4), entries[1].Metadata.Timestamp)
}

func TestInitRebuildsCacheFromDiskAfterRestart(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "history")
	require.NoError(t, os.MkdirAll(root, 0o755))

	s1, err := Init(root, filepath.Join(base, "index.db"), 10, false, discardLogger())
	require.NoError(t, err)

	saveVersion(t, s1, "sonic", 1)
	saveVersion(t, s1, "sonic", 2)
	require.NoError(t, s1.Close())

	s2, err := Init(root, filepath.Join(base, "index.db"), 10, false, discardLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s2.Close() })

	entries := s2.ListHistory("sonic")
	require.Len(t, entries, 2)
	assert.Equal(t, uint64(2), entries[0].Metadata.Timestamp)
}

func TestSaveToHistoryReplacesSameVersionID(t *testing.T) {
	s := newTestStore(t, 10, false)

	meta := metaFor("zelda", 42)
	src := filepath.Join(t.TempDir(), "staged.zip")
	writeArchive(t, src, "v1")

	_, err := s.SaveToHistory(meta, src)
	require.NoError(t, err)

	meta.Hash = "updated-hash"
	writeArchive(t, src, "v2")
	_, err = s.SaveToHistory(meta, src)
	require.NoError(t, err)

	entries := s.ListHistory("zelda")
	require.Len(t, entries, 1)
	assert.Equal(t, "updated-hash", entries[0].Metadata.Hash)
}
