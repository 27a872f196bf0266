// Package packager implements spec §4.1: glob-filter a set of paths into a
// deterministic ZIP archive, compute its content hash, and derive a
// version identifier.
package packager

import (
	"archive/zip"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ErrNoFiles is returned when no file matches the glob patterns.
var ErrNoFiles = errors.New("packager: no files matched")

// SaveMetadata describes one captured snapshot (spec §3).
type SaveMetadata struct {
	GameID     string   `json:"game_id"`
	EmulatorID string   `json:"emulator_id"`
	VersionID  string   `json:"version_id"`
	Timestamp  uint64   `json:"timestamp"`
	FileList   []string `json:"file_list"`
	Hash       string   `json:"hash"`
	SizeBytes  *int64   `json:"size_bytes,omitempty"`
	Source     string   `json:"source,omitempty"` // "local" or "cloud"
}

// PackagedSave is the result of Package: the metadata plus the archive's
// location on disk (spec §6 "PackagedSave").
type PackagedSave struct {
	Metadata    SaveMetadata
	ArchivePath string
}

// Packager collects files, builds a deterministic ZIP, and computes its
// content hash and version identifier.
type Packager struct {
	logger  *slog.Logger
	tempDir string
	nowFunc func() time.Time
}

// New creates a Packager. tempDir is where archives are staged before the
// caller moves them into history; it must never be inside a watched save
// path, to avoid the filesystem watcher self-triggering on its own output
// (spec §4.1).
func New(tempDir string, logger *slog.Logger) *Packager {
	if tempDir == "" {
		tempDir = os.TempDir()
	}

	return &Packager{logger: logger, tempDir: tempDir, nowFunc: time.Now}
}

// ValidatePaths resolves each input path to its absolute form, verifying it
// exists (spec §6 validate_paths).
func ValidatePaths(paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))

	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("packager: resolving %s: %w", p, err)
		}

		if _, err := os.Stat(abs); err != nil {
			return nil, fmt.Errorf("packager: path %s: %w", p, err)
		}

		out = append(out, abs)
	}

	return out, nil
}

// Package collects files under paths matching patterns, writes a
// deterministic ZIP under the temp directory, and returns its metadata.
func (p *Packager) Package(gameID, emulatorID string, paths, patterns []string) (*PackagedSave, error) {
	files, err := collectFiles(paths, patterns, p.logger)
	if err != nil {
		return nil, err
	}

	if len(files) == 0 {
		return nil, ErrNoFiles
	}

	timestamp := uint64(p.nowFunc().Unix())

	fileList := baseNameSortedUnique(files)

	archivePath, err := p.writeArchive(files)
	if err != nil {
		return nil, err
	}

	hash, size, err := hashFile(archivePath)
	if err != nil {
		return nil, err
	}

	versionID := deriveVersionID(timestamp, fileList)

	return &PackagedSave{
		Metadata: SaveMetadata{
			GameID:     gameID,
			EmulatorID: emulatorID,
			VersionID:  versionID,
			Timestamp:  timestamp,
			FileList:   fileList,
			Hash:       hash,
			SizeBytes:  &size,
			Source:     "local",
		},
		ArchivePath: archivePath,
	}, nil
}

// collectFiles walks directories, filters files against patterns (an empty
// pattern list matches everything), and returns the sorted, deduplicated
// set of matched absolute file paths.
func collectFiles(paths, patterns []string, logger *slog.Logger) ([]string, error) {
	validPatterns := make([]string, 0, len(patterns))

	for _, pat := range patterns {
		if _, err := filepath.Match(pat, "x"); err != nil {
			logger.Warn("ignoring invalid glob pattern", slog.String("pattern", pat), slog.String("error", err.Error()))
			continue
		}

		validPatterns = append(validPatterns, pat)
	}

	seen := make(map[string]bool)
	var files []string

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("packager: stat %s: %w", root, err)
		}

		if !info.IsDir() {
			if matches(filepath.Base(root), validPatterns) && !seen[root] {
				seen[root] = true
				files = append(files, root)
			}

			continue
		}

		err = filepath.WalkDir(root, func(path string, d os.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}

			if d.IsDir() {
				return nil
			}

			if matches(filepath.Base(path), validPatterns) && !seen[path] {
				seen[path] = true
				files = append(files, path)
			}

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("packager: walking %s: %w", root, err)
		}
	}

	sort.Strings(files)

	return files, nil
}

func matches(name string, patterns []string) bool {
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

// baseNameSortedUnique returns the sorted, deduplicated set of base
// filenames for a file list (spec §4.1: file_list = sort(unique(base_name))).
func baseNameSortedUnique(files []string) []string {
	seen := make(map[string]bool, len(files))
	names := make([]string, 0, len(files))

	for _, f := range files {
		name := filepath.Base(f)
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	sort.Strings(names)

	return names
}

// writeArchive writes a DEFLATE ZIP of files (entry names are base
// filenames only) to a new file under the Packager's temp directory, in
// sorted file-list order.
func (p *Packager) writeArchive(files []string) (string, error) {
	if err := os.MkdirAll(p.tempDir, 0o700); err != nil {
		return "", fmt.Errorf("packager: creating temp dir %s: %w", p.tempDir, err)
	}

	out, err := os.CreateTemp(p.tempDir, "savesync-*.zip")
	if err != nil {
		return "", fmt.Errorf("packager: creating archive: %w", err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)

	names := baseNameSortedUnique(files)
	pathForName := make(map[string]string, len(files))
	for _, f := range files {
		pathForName[filepath.Base(f)] = f
	}

	for _, name := range names {
		if err := writeZipEntry(zw, name, pathForName[name]); err != nil {
			zw.Close()
			return "", err
		}
	}

	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("packager: finalizing archive: %w", err)
	}

	return out.Name(), nil
}

func writeZipEntry(zw *zip.Writer, name, srcPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("packager: opening %s: %w", srcPath, err)
	}
	defer src.Close()

	hdr := &zip.FileHeader{Name: name, Method: zip.Deflate}

	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("packager: creating zip entry %s: %w", name, err)
	}

	if _, err := io.Copy(w, src); err != nil {
		return fmt.Errorf("packager: writing zip entry %s: %w", name, err)
	}

	return nil
}

// hashFile computes the hex SHA-256 and byte size of a file.
func hashFile(path string) (hash string, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("packager: opening %s for hashing: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()

	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("packager: hashing %s: %w", path, err)
	}

	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// deriveVersionID implements spec §4.1's formula:
// version_id = hex(SHA256(decimal(timestamp) || hex(SHA256(join(file_list, "|")))))
func deriveVersionID(timestamp uint64, fileList []string) string {
	joined := ""
	for i, name := range fileList {
		if i > 0 {
			joined += "|"
		}
		joined += name
	}

	fileListHash := sha256.Sum256([]byte(joined))
	fileListHashHex := hex.EncodeToString(fileListHash[:])

	input := fmt.Sprintf("%d%s", timestamp, fileListHashHex)
	versionHash := sha256.Sum256([]byte(input))

	return hex.EncodeToString(versionHash[:])
}
