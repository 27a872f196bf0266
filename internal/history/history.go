// Package history implements spec §4.2: a content-addressed, per-game
// archive set with bounded retention and rollback.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/crosssave/agent/internal/packager"
)

// ErrNotFound is returned when a requested (game_id, version_id) pair does
// not exist in the history store.
var ErrNotFound = errors.New("history: not found")

// HistoryEntry is an on-disk record: the archive, its sibling metadata
// file, and the parsed metadata (spec §3).
type HistoryEntry struct {
	ArchivePath  string                  `json:"archive_path"`
	MetadataPath string                  `json:"metadata_path"`
	Metadata     packager.SaveMetadata   `json:"metadata"`
}

// Store is the content-addressed local version archive.
type Store struct {
	mu               sync.Mutex
	root             string
	activeSnapshotDir string
	retentionLimit   int
	autoDelete       bool
	cache            map[string][]HistoryEntry
	idx              *index
	logger           *slog.Logger
}

// Init scans root, loads every metadata JSON into the in-memory cache
// (sorted newest-first per game), rebuilds the derived sqlite index, and
// enforces retention if autoDelete is set (spec §4.2 init).
func Init(root string, indexDBPath string, retentionLimit int, autoDelete bool, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("history: creating root %s: %w", root, err)
	}

	idx, err := openIndex(indexDBPath, logger)
	if err != nil {
		return nil, err
	}

	s := &Store{
		root:              root,
		activeSnapshotDir: filepath.Dir(root),
		retentionLimit:    retentionLimit,
		autoDelete:        autoDelete,
		cache:             make(map[string][]HistoryEntry),
		idx:               idx,
		logger:            logger,
	}

	if err := s.rebuild(); err != nil {
		return nil, err
	}

	if autoDelete {
		for gameID := range s.cache {
			s.enforceRetention(gameID)
		}
	}

	return s, nil
}

// rebuild scans s.root and repopulates the in-memory cache and sqlite
// index from the JSON metadata files on disk — the JSON files are the
// ground truth; the index is always derived from them.
func (s *Store) rebuild() error {
	ctx := context.Background()
	if err := s.idx.reset(ctx); err != nil {
		return fmt.Errorf("history: resetting index: %w", err)
	}

	gameDirs, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("history: reading root %s: %w", s.root, err)
	}

	for _, gd := range gameDirs {
		if !gd.IsDir() {
			continue
		}

		gameID := gd.Name()
		gameDir := filepath.Join(s.root, gameID)

		entries, err := s.loadGameDir(gameID, gameDir)
		if err != nil {
			return err
		}

		sortEntriesDesc(entries)
		s.cache[gameID] = entries

		for _, e := range entries {
			if err := s.idx.upsert(ctx, e); err != nil {
				return fmt.Errorf("history: indexing %s/%s: %w", gameID, e.Metadata.VersionID, err)
			}
		}
	}

	return nil
}

func (s *Store) loadGameDir(gameID, gameDir string) ([]HistoryEntry, error) {
	files, err := os.ReadDir(gameDir)
	if err != nil {
		return nil, fmt.Errorf("history: reading game dir %s: %w", gameDir, err)
	}

	var entries []HistoryEntry

	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}

		versionID := f.Name()[:len(f.Name())-len(".json")]
		metaPath := filepath.Join(gameDir, f.Name())
		archivePath := filepath.Join(gameDir, versionID+".zip")

		if _, err := os.Stat(archivePath); err != nil {
			s.logger.Warn("history: metadata without archive, skipping",
				slog.String("game_id", gameID), slog.String("version_id", versionID))
			continue
		}

		meta, err := readMetadata(metaPath)
		if err != nil {
			s.logger.Warn("history: corrupt metadata, skipping",
				slog.String("path", metaPath), slog.String("error", err.Error()))
			continue
		}

		entries = append(entries, HistoryEntry{
			ArchivePath:  archivePath,
			MetadataPath: metaPath,
			Metadata:     *meta,
		})
	}

	// Archives without metadata are orphaned; warn once per file so a
	// future save_to_history with the same version_id can clean them up.
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".zip" {
			continue
		}

		versionID := f.Name()[:len(f.Name())-len(".zip")]
		if _, err := os.Stat(filepath.Join(gameDir, versionID+".json")); err != nil {
			s.logger.Warn("history: archive without metadata",
				slog.String("game_id", gameID), slog.String("version_id", versionID))
		}
	}

	return entries, nil
}

func readMetadata(path string) (*packager.SaveMetadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var m packager.SaveMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	return &m, nil
}

func sortEntriesDesc(entries []HistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Metadata.Timestamp != entries[j].Metadata.Timestamp {
			return entries[i].Metadata.Timestamp > entries[j].Metadata.Timestamp
		}

		return entries[i].Metadata.VersionID < entries[j].Metadata.VersionID
	})
}

// SaveToHistory copies sourceArchive and writes metadata atomically into
// the game's directory, replacing any prior entry with the same
// version_id, then enforces retention (spec §4.2).
func (s *Store) SaveToHistory(metadata packager.SaveMetadata, sourceArchive string) (*HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	gameDir := filepath.Join(s.root, metadata.GameID)
	if err := os.MkdirAll(gameDir, 0o755); err != nil {
		return nil, fmt.Errorf("history: creating game dir %s: %w", gameDir, err)
	}

	archivePath := filepath.Join(gameDir, metadata.VersionID+".zip")
	metaPath := filepath.Join(gameDir, metadata.VersionID+".json")

	if err := copyFile(sourceArchive, archivePath); err != nil {
		return nil, err
	}

	metaBytes, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("history: encoding metadata: %w", err)
	}

	if err := atomicWrite(metaPath, metaBytes); err != nil {
		return nil, err
	}

	entry := HistoryEntry{ArchivePath: archivePath, MetadataPath: metaPath, Metadata: metadata}

	entries := s.cache[metadata.GameID]
	entries = removeVersion(entries, metadata.VersionID)
	entries = append(entries, entry)
	sortEntriesDesc(entries)
	s.cache[metadata.GameID] = entries

	ctx := context.Background()
	if err := s.idx.upsert(ctx, entry); err != nil {
		s.logger.Warn("history: index upsert failed", slog.String("error", err.Error()))
	}

	s.enforceRetention(metadata.GameID)

	return &entry, nil
}

func removeVersion(entries []HistoryEntry, versionID string) []HistoryEntry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.Metadata.VersionID != versionID {
			out = append(out, e)
		}
	}

	return out
}

// enforceRetention must be called with s.mu held. While len > retentionLimit
// it pops the oldest entry and deletes both files, best-effort.
func (s *Store) enforceRetention(gameID string) {
	if !s.autoDelete {
		return
	}

	entries := s.cache[gameID]
	ctx := context.Background()

	for len(entries) > s.retentionLimit {
		oldest := entries[len(entries)-1]
		entries = entries[:len(entries)-1]

		if err := os.Remove(oldest.ArchivePath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("history: eviction failed to remove archive",
				slog.String("path", oldest.ArchivePath), slog.String("error", err.Error()))
		}

		if err := os.Remove(oldest.MetadataPath); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("history: eviction failed to remove metadata",
				slog.String("path", oldest.MetadataPath), slog.String("error", err.Error()))
		}

		if err := s.idx.delete(ctx, gameID, oldest.Metadata.VersionID); err != nil {
			s.logger.Warn("history: index delete failed", slog.String("error", err.Error()))
		}

		s.logger.Warn("history: evicted version past retention limit",
			slog.String("game_id", gameID), slog.String("version_id", oldest.Metadata.VersionID))
	}

	s.cache[gameID] = entries
}

// ListHistory returns entries for gameID sorted newest-first (spec §8
// property 3).
func (s *Store) ListHistory(gameID string) []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cache[gameID]
	out := make([]HistoryEntry, len(entries))
	copy(out, entries)

	return out
}

// GetLatestVersion returns the newest entry for gameID, or nil if none
// exists — consumed directly by the sync engine's decision procedure
// (spec §4.6 step 1).
func (s *Store) GetLatestVersion(gameID string) *HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cache[gameID]
	if len(entries) == 0 {
		return nil
	}

	cp := entries[0]

	return &cp
}

// GameIDs returns every game id known to the store.
func (s *Store) GameIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.cache))
	for id := range s.cache {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}

// GetHistoryItem returns the exact entry for (gameID, versionID).
func (s *Store) GetHistoryItem(gameID, versionID string) (*HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.cache[gameID] {
		if e.Metadata.VersionID == versionID {
			cp := e
			return &cp, nil
		}
	}

	return nil, fmt.Errorf("history: %s/%s: %w", gameID, versionID, ErrNotFound)
}

// RollbackVersion copies a history entry's archive into the active
// snapshot directory (the parent of the history root) without modifying
// the history entry itself (spec §4.2).
func (s *Store) RollbackVersion(gameID, versionID string) (*packager.PackagedSave, error) {
	entry, err := s.GetHistoryItem(gameID, versionID)
	if err != nil {
		return nil, err
	}

	targetArchive := filepath.Join(s.activeSnapshotDir, fmt.Sprintf("%s_%s.zip", gameID, versionID))
	if err := copyFile(entry.ArchivePath, targetArchive); err != nil {
		return nil, err
	}

	metaBytes, err := json.MarshalIndent(entry.Metadata, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("history: encoding rollback metadata: %w", err)
	}

	metaTarget := filepath.Join(s.activeSnapshotDir, fmt.Sprintf("%s_%s.json", gameID, versionID))
	if err := atomicWrite(metaTarget, metaBytes); err != nil {
		return nil, err
	}

	return &packager.PackagedSave{Metadata: entry.Metadata, ArchivePath: targetArchive}, nil
}

// DeleteHistoryItem removes both files of an entry and drops it from the
// cache and index.
func (s *Store) DeleteHistoryItem(gameID, versionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cache[gameID]

	idx := -1
	for i, e := range entries {
		if e.Metadata.VersionID == versionID {
			idx = i
			break
		}
	}

	if idx < 0 {
		return fmt.Errorf("history: %s/%s: %w", gameID, versionID, ErrNotFound)
	}

	entry := entries[idx]

	if err := os.Remove(entry.ArchivePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("history: deleting archive: %w", err)
	}

	if err := os.Remove(entry.MetadataPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("history: deleting metadata: %w", err)
	}

	s.cache[gameID] = append(entries[:idx], entries[idx+1:]...)

	if err := s.idx.delete(context.Background(), gameID, versionID); err != nil {
		s.logger.Warn("history: index delete failed", slog.String("error", err.Error()))
	}

	return nil
}

// ClearAll removes every history entry for every game.
func (s *Store) ClearAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for gameID, entries := range s.cache {
		for _, e := range entries {
			os.Remove(e.ArchivePath)
			os.Remove(e.MetadataPath)
		}

		delete(s.cache, gameID)
	}

	return s.idx.reset(context.Background())
}

// TotalSize returns the sum of archive sizes; gameID empty means all games.
func (s *Store) TotalSize(gameID string) (int64, error) {
	return s.idx.totalSize(context.Background(), gameID)
}

// SetPolicy updates the retention limit and auto-delete flag, re-enforcing
// retention across every known game if auto-delete is now on.
func (s *Store) SetPolicy(limit int, autoDelete bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.retentionLimit = limit
	s.autoDelete = autoDelete

	if autoDelete {
		for gameID := range s.cache {
			s.enforceRetention(gameID)
		}
	}
}

// Close releases the derived index's database handle.
func (s *Store) Close() error {
	return s.idx.Close()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("history: opening %s: %w", src, err)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("history: creating %s: %w", filepath.Dir(dst), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tmp-*")
	if err != nil {
		return fmt.Errorf("history: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tmpPath)
		}
	}()

	if _, err := io.Copy(tmp, in); err != nil {
		tmp.Close()
		return fmt.Errorf("history: copying %s: %w", src, err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("history: syncing %s: %w", tmpPath, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("history: closing %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, dst); err != nil {
		return fmt.Errorf("history: renaming into %s: %w", dst, err)
	}

	succeeded = true

	return nil
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("history: creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("history: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("history: writing %s: %w", tmpPath, err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("history: syncing %s: %w", tmpPath, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("history: closing %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("history: renaming into %s: %w", path, err)
	}

	succeeded = true

	return nil
}
