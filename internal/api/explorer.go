package api

import (
	"os"
	"path/filepath"
	"time"
)

// ScannedFile is one file matched under a profile's save paths (spec §6
// scan_save_files).
type ScannedFile struct {
	Path     string    `json:"path"`
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// PathStatus reports whether one of a profile's configured paths currently
// exists on disk (spec §6 check_path_status).
type PathStatus struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
	IsDir  bool   `json:"is_dir"`
	Error  string `json:"error,omitempty"`
}

// ScanSaveFiles implements spec §6 scan_save_files(emulator_id): walks the
// profile's default save paths filtered by its patterns, the same matcher
// the packager uses for collection, without writing an archive.
func (a *API) ScanSaveFiles(emulatorID string) ([]ScannedFile, error) {
	prof, err := a.d.Profiles.Get(emulatorID)
	if err != nil {
		return nil, err
	}

	var out []ScannedFile

	for _, root := range prof.DefaultSavePaths {
		expanded := expandHome(root)

		err := filepath.WalkDir(expanded, func(path string, d os.DirEntry, walkErr error) error {
			if walkErr != nil {
				return nil //nolint:nilerr // best-effort scan, matches ScanSaveFiles' tolerant contract
			}

			if d.IsDir() {
				return nil
			}

			if !matchesAny(filepath.Base(path), prof.Patterns) {
				return nil
			}

			info, err := d.Info()
			if err != nil {
				return nil //nolint:nilerr
			}

			out = append(out, ScannedFile{Path: path, Name: d.Name(), Size: info.Size(), Modified: info.ModTime()})

			return nil
		})
		if err != nil {
			a.logger.Warn("explorer: walk failed", "path", expanded, "error", err.Error())
		}
	}

	return out, nil
}

// CheckPathStatus implements spec §6 check_path_status(emulator_id).
func (a *API) CheckPathStatus(emulatorID string) ([]PathStatus, error) {
	prof, err := a.d.Profiles.Get(emulatorID)
	if err != nil {
		return nil, err
	}

	out := make([]PathStatus, 0, len(prof.DefaultSavePaths))

	for _, root := range prof.DefaultSavePaths {
		expanded := expandHome(root)

		info, statErr := os.Stat(expanded)
		if statErr != nil {
			out = append(out, PathStatus{Path: root, Error: statErr.Error()})
			continue
		}

		out = append(out, PathStatus{Path: root, Exists: true, IsDir: info.IsDir()})
	}

	return out, nil
}

func matchesAny(name string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}

	for _, pat := range patterns {
		if ok, _ := filepath.Match(pat, name); ok {
			return true
		}
	}

	return false
}

func expandHome(path string) string {
	if path == "~" || len(path) < 2 || path[:2] != "~/" {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[2:])
}
