package syncengine

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/crosssave/agent/internal/cloud"
	"github.com/crosssave/agent/internal/history"
	"github.com/crosssave/agent/internal/packager"
	"github.com/crosssave/agent/internal/profile"
	"github.com/crosssave/agent/internal/queue"
)

const tickInterval = 10 * time.Second

// HistoryStore is the subset of *history.Store the engine consumes.
type HistoryStore interface {
	GameIDs() []string
	GetLatestVersion(gameID string) *history.HistoryEntry
	SaveToHistory(metadata packager.SaveMetadata, sourceArchive string) (*history.HistoryEntry, error)
}

// Enqueuer is the subset of *queue.Queue the engine consumes.
type Enqueuer interface {
	AddJob(job queue.UploadJob)
}

// ProfileStore is the subset of *profile.Store the engine consumes.
type ProfileStore interface {
	Get(emulatorID string) (*profile.Profile, error)
}

// ModeProvider reports whether the cloud feature is currently enabled.
type ModeProvider interface {
	CloudEnabled() bool
}

// Bus publishes sync events to the shell's event surface (spec §4.6/§4.6.1).
type Bus interface {
	Publish(topic string, payload any)
}

const (
	TopicConflictDetected = "sync.conflict_detected"
	TopicSyncError        = "sync.error"
	TopicDownloadError    = "sync.download_error"
	TopicDownloadProgress = "sync.download_progress"
)

// ConflictEvent is published when the decision procedure detects a
// conflict (spec §4.6 Actions: Conflict).
type ConflictEvent struct {
	GameID string
}

// Engine is the per-process sync reconciliation loop (spec §4.6).
type Engine struct {
	history      HistoryStore
	cell         *cloud.Cell
	queue        Enqueuer
	profiles     ProfileStore
	mode         ModeProvider
	downloadsDir string
	bus          Bus
	logger       *slog.Logger

	started atomic.Bool
	paused  atomic.Bool
	online  atomic.Bool

	trigger chan struct{}
}

// New creates an Engine. downloadsDir is {app_data}/data/cloud_downloads.
func New(hist HistoryStore, cell *cloud.Cell, q Enqueuer, profiles ProfileStore, mode ModeProvider,
	downloadsDir string, bus Bus, logger *slog.Logger,
) *Engine {
	return &Engine{
		history:      hist,
		cell:         cell,
		queue:        q,
		profiles:     profiles,
		mode:         mode,
		downloadsDir: downloadsDir,
		bus:          bus,
		logger:       logger,
		trigger:      make(chan struct{}, 1),
	}
}

// Pause skips ticks until Resume is called; the current tick, if any,
// completes (spec's cancellation policy).
func (e *Engine) Pause() { e.paused.Store(true) }

// Resume re-enables ticking.
func (e *Engine) Resume() { e.paused.Store(false) }

// SetOnline updates the connectivity flag; transition to online wakes an
// immediate tick (spec §4.7).
func (e *Engine) SetOnline(online bool) {
	e.online.Store(online)
	if online {
		e.TriggerNow()
	}
}

// TriggerNow requests an out-of-band reconciliation pass.
func (e *Engine) TriggerNow() {
	select {
	case e.trigger <- struct{}{}:
	default:
	}
}

// Run is started exactly once per process (guarded by a start-flag) and
// ticks every 10s, on explicit trigger, or on transition-to-online (spec
// §4.6). Ticks are never overlapped.
func (e *Engine) Run(ctx context.Context) {
	if !e.started.CompareAndSwap(false, true) {
		e.logger.Warn("sync engine already started, ignoring second Run")
		return
	}

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx)
		case <-e.trigger:
			e.tick(ctx)
		}
	}
}

func (e *Engine) tick(ctx context.Context) {
	if e.paused.Load() || !e.online.Load() || !e.mode.CloudEnabled() {
		return
	}

	for _, gameID := range e.history.GameIDs() {
		if ctx.Err() != nil {
			return
		}

		e.reconcileGame(ctx, gameID)
	}
}

func (e *Engine) reconcileGame(ctx context.Context, gameID string) {
	local := e.history.GetLatestVersion(gameID)

	remote, err := e.cell.Get().ListVersions(ctx, gameID, 1)
	if err != nil {
		e.logger.Warn("sync: listing remote versions failed", slog.String("game_id", gameID), slog.String("error", err.Error()))

		if e.bus != nil {
			e.bus.Publish(TopicSyncError, err)
		}

		return
	}

	decision := determineSyncAction(local, remote)

	switch decision.Action {
	case Upload:
		e.queue.AddJob(queue.UploadJob{
			GameID:      gameID,
			VersionID:   local.Metadata.VersionID,
			ArchivePath: local.ArchivePath,
			Metadata:    local.Metadata,
		})
	case Download:
		if err := e.download(ctx, gameID, decision.VersionID); err != nil {
			e.logger.Warn("sync: download failed", slog.String("game_id", gameID), slog.String("error", err.Error()))
		}
	case Conflict:
		if e.bus != nil {
			e.bus.Publish(TopicConflictDetected, ConflictEvent{GameID: gameID})
		}
	case Noop:
	}
}

// download implements the pipeline of spec §4.6.1.
func (e *Engine) download(ctx context.Context, gameID, versionID string) error {
	backend := e.cell.Get()

	if _, err := backend.EnsureDeviceID(ctx); err != nil {
		e.emitDownloadError(gameID, "ensure_device", err)
		return err
	}

	manifest, err := backend.RequestDownloadURL(ctx, gameID, versionID)
	if err != nil {
		e.emitDownloadError(gameID, "request_download_url", err)
		return err
	}

	archivePath := filepath.Join(e.downloadsDir, fmt.Sprintf("%s_%s.zip", gameID, versionID))

	if err := backend.DownloadVersion(ctx, gameID, versionID, archivePath); err != nil {
		e.emitDownloadError(gameID, "download", err)
		return err
	}

	if e.bus != nil {
		e.bus.Publish(TopicDownloadProgress, fmt.Sprintf("%s:%s:downloaded", gameID, versionID))
	}

	prof, err := e.profiles.Get(manifest.EmulatorID)
	if err != nil || len(prof.DefaultSavePaths) == 0 {
		err = fmt.Errorf("syncengine: no save directory for emulator %q: %w", manifest.EmulatorID, profileResolveErr(err))
		e.emitDownloadError(gameID, "resolve_target", err)

		return err
	}

	target := prof.DefaultSavePaths[0]

	if err := extractZipSafely(archivePath, target); err != nil {
		e.emitDownloadError(gameID, "extract", err)
		return err
	}

	meta := packager.SaveMetadata{
		GameID:     gameID,
		EmulatorID: manifest.EmulatorID,
		VersionID:  versionID,
		Timestamp:  manifest.Timestamp,
		FileList:   manifest.FileList,
		Hash:       manifest.SHA256,
		SizeBytes:  &manifest.SizeBytes,
		Source:     "cloud",
	}

	if _, err := e.history.SaveToHistory(meta, archivePath); err != nil {
		e.emitDownloadError(gameID, "ingest_history", err)
		return err
	}

	if e.bus != nil {
		e.bus.Publish(TopicDownloadProgress, fmt.Sprintf("%s:%s:completed", gameID, versionID))
	}

	return nil
}

func profileResolveErr(err error) error {
	if err != nil {
		return err
	}

	return fmt.Errorf("empty default_save_paths")
}

func (e *Engine) emitDownloadError(gameID, stage string, err error) {
	if e.bus != nil {
		e.bus.Publish(TopicDownloadError, map[string]string{"game_id": gameID, "stage": stage, "error": err.Error()})
	}
}

// extractZipSafely extracts archivePath into targetDir. Zip-slip protection
// is mandatory: only entries whose normalized path is contained within
// targetDir are written (spec §4.6.1 step 5, testable property 9).
func extractZipSafely(archivePath, targetDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("syncengine: opening archive: %w", err)
	}
	defer zr.Close()

	absTarget, err := filepath.Abs(targetDir)
	if err != nil {
		return fmt.Errorf("syncengine: resolving target dir: %w", err)
	}

	if err := os.MkdirAll(absTarget, 0o755); err != nil {
		return fmt.Errorf("syncengine: creating target dir: %w", err)
	}

	for _, f := range zr.File {
		if err := extractEntry(f, absTarget); err != nil {
			return err
		}
	}

	return nil
}

func extractEntry(f *zip.File, absTarget string) error {
	cleanName := filepath.Clean(f.Name)
	destPath := filepath.Join(absTarget, cleanName)

	rel, err := filepath.Rel(absTarget, destPath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("syncengine: zip entry %q escapes target directory", f.Name)
	}

	if f.FileInfo().IsDir() {
		return os.MkdirAll(destPath, 0o755)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("syncengine: creating parent dir for %s: %w", destPath, err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("syncengine: opening zip entry %s: %w", f.Name, err)
	}
	defer src.Close()

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("syncengine: creating %s: %w", destPath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("syncengine: writing %s: %w", destPath, err)
	}

	return nil
}
