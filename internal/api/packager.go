package api

import (
	"log/slog"

	"github.com/crosssave/agent/internal/packager"
)

// PackageSave implements spec §6 package_save: glob-filter paths into a
// deterministic archive, then ingest it into history as a local save. The
// sync engine's next tick picks it up and decides whether to upload it —
// package_save itself never talks to the cloud backend.
func (a *API) PackageSave(gameID, emulatorID string, paths, patterns []string) (*packager.PackagedSave, error) {
	gameID = sanitizeGameID(gameID)

	p := packager.New(a.d.Cfg.Layout.ActiveSnapshotDir(), a.logger)

	packaged, err := p.Package(gameID, emulatorID, paths, patterns)
	if err != nil {
		return nil, err
	}

	entry, err := a.d.History.SaveToHistory(packaged.Metadata, packaged.ArchivePath)
	if err != nil {
		return nil, err
	}

	a.logger.Info("packaged save ingested into history",
		slog.String("game_id", gameID), slog.String("version_id", entry.Metadata.VersionID))

	return &packager.PackagedSave{Metadata: entry.Metadata, ArchivePath: entry.ArchivePath}, nil
}

// ValidatePaths implements spec §6 validate_paths(paths) → [absolute_path].
func (a *API) ValidatePaths(paths []string) ([]string, error) {
	return packager.ValidatePaths(paths)
}
