// Package daemon wires the long-running components (history, cloud, watcher,
// upload queue, sync engine, connectivity monitor) into one supervised
// process, the idiomatic-Go replacement for the original Tauri app's manual
// task handles (spec's supplemental daemon-supervisor section).
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/crosssave/agent/internal/cloud"
	"github.com/crosssave/agent/internal/config"
	"github.com/crosssave/agent/internal/connectivity"
	"github.com/crosssave/agent/internal/events"
	"github.com/crosssave/agent/internal/history"
	"github.com/crosssave/agent/internal/profile"
	"github.com/crosssave/agent/internal/queue"
	"github.com/crosssave/agent/internal/syncengine"
	"github.com/crosssave/agent/internal/watcher"
)

// Daemon bundles every long-running component plus the shared config/event
// plumbing needed to construct the RPC surface in internal/api.
type Daemon struct {
	Cfg      *config.Resolved
	Bus      *events.Bus
	History  *history.Store
	Profiles *profile.Store
	Watcher  *watcher.Watcher
	Queue    *queue.Queue
	Cell     *cloud.Cell
	Engine   *syncengine.Engine
	Monitor  *connectivity.Monitor

	logger *slog.Logger
}

// New builds every component in dependency order (history before the
// queue/engine that read it, the cloud cell before the queue and engine
// that dispatch through it, the watcher last since nothing built here
// depends on it) but does not start any background loop. Call Run to start
// them.
func New(cfg *config.Resolved) (*Daemon, error) {
	logger := cfg.Logger
	bus := events.New(logger)

	hist, err := history.Init(
		cfg.Layout.HistoryRoot(),
		cfg.Layout.HistoryIndexDBPath(),
		cfg.Holder.Get().RetentionLimit,
		cfg.Holder.Get().AutoDelete,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("daemon: initializing history: %w", err)
	}

	profiles := profile.NewStore(cfg.Layout.ProfilesDir())

	cell := cloud.NewCell(backendForSettings(cfg.Holder.Get(), cfg.Static, logger), nil, bus, logger)

	q, err := queue.New(cfg.Layout.QueueSnapshotPath(), &cloudUploader{cell: cell}, bus, logger)
	if err != nil {
		return nil, fmt.Errorf("daemon: initializing upload queue: %w", err)
	}

	eng := syncengine.New(hist, cell, q, profiles, &modeProvider{holder: cfg.Holder}, cfg.Layout.CloudDownloadsDir(), bus, logger)

	// The sync engine must be pausable across a backend switch; wire the
	// Cell's PauseResumer now that eng exists (cloud.NewCell took nil above
	// because the engine can't be constructed before the cell).
	cell.SetEngine(eng)

	monitor := connectivity.New(cellChecker{cell: cell}, bus, logger, q, eng)

	w := watcher.New(logger)

	return &Daemon{
		Cfg:      cfg,
		Bus:      bus,
		History:  hist,
		Profiles: profiles,
		Watcher:  w,
		Queue:    q,
		Cell:     cell,
		Engine:   eng,
		Monitor:  monitor,
		logger:   logger,
	}, nil
}

// Run starts the queue, sync engine, and connectivity monitor and blocks
// until ctx is canceled or one of them returns an error. The watcher is
// started separately via StartWatcher since its path list comes from an RPC
// call, not bootstrap.
func (d *Daemon) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		d.Queue.Run(gctx)
		return nil
	})

	g.Go(func() error {
		d.Engine.Run(gctx)
		return nil
	})

	g.Go(func() error {
		d.Monitor.Run(gctx)
		return nil
	})

	return g.Wait()
}

// Logger returns the daemon's logger, shared with every component
// constructed by New.
func (d *Daemon) Logger() *slog.Logger { return d.logger }

// SwitchCloudBackend rebuilds the active Backend from s and installs it on
// the Cell, pausing the sync engine across the switch (spec §4.4 "Mode
// switch"). Callers are expected to have already persisted s via
// Cfg.Holder.Update.
func (d *Daemon) SwitchCloudBackend(s config.Settings) {
	mode := cloud.Official
	if s.CloudMode == config.CloudModeSelfHost {
		mode = cloud.SelfHost
	}

	d.Cell.Switch(mode, backendForSettings(s, d.Cfg.Static, d.logger))
}

// Close releases resources that outlive a single Run call (the history
// index's sqlite handle, the running watcher if still active).
func (d *Daemon) Close() error {
	d.Watcher.Stop()
	return d.History.Close()
}

// modeProvider adapts a config.Holder into syncengine.ModeProvider.
type modeProvider struct {
	holder *config.Holder
}

func (m *modeProvider) CloudEnabled() bool {
	return m.holder.Get().CloudMode != config.CloudModeOff
}

// cellChecker adapts a cloud.Cell into connectivity.Checker, always probing
// whichever backend is currently installed.
type cellChecker struct {
	cell *cloud.Cell
}

func (c cellChecker) CheckConnection(ctx context.Context) bool {
	return c.cell.Get().CheckConnection(ctx)
}

// cloudUploader adapts a cloud.Cell into queue.Uploader: the queue only
// knows how to drive an upload job, never which backend variant is active.
// The whole upload is one UploadArchive call, so it reports progress 0
// before the call and 100 after it succeeds; no intermediate 80 stage is
// reported.
type cloudUploader struct {
	cell *cloud.Cell
}

func (u *cloudUploader) Upload(ctx context.Context, job queue.UploadJob, progress func(percent int)) error {
	progress(0)

	req := cloud.UploadURLRequest{
		GameID:     job.GameID,
		VersionID:  job.VersionID,
		SizeBytes:  sizeOf(job),
		SHA256:     job.Metadata.Hash,
		FileList:   job.Metadata.FileList,
		EmulatorID: job.Metadata.EmulatorID,
		DeviceID:   u.cell.Get().GetDeviceID(),
	}

	if _, err := u.cell.Get().UploadArchive(ctx, req, job.ArchivePath); err != nil {
		return err
	}

	progress(100)

	return nil
}

func sizeOf(job queue.UploadJob) int64 {
	if job.Metadata.SizeBytes != nil {
		return *job.Metadata.SizeBytes
	}

	return 0
}

// backendForSettings installs the Backend variant matching the current
// CloudMode: Disabled when cloud sync is off, an HTTPBackend in Official or
// SelfHost mode otherwise (spec §4.4 "Mode switch").
func backendForSettings(s config.Settings, static *config.StaticConfig, logger *slog.Logger) cloud.Backend {
	timeout := time.Duration(s.Cloud.TimeoutSeconds) * time.Second

	switch s.CloudMode {
	case config.CloudModeOfficial:
		token := cloud.NewOAuth2TokenSource(cloud.StaticOAuth2TokenSource(cloud.AuthToken{Token: s.Cloud.APIKey}))
		return cloud.NewHTTPBackend(cloud.Official, s.Cloud.BaseURL, token,
			s.Cloud.DeviceID, s.Cloud.Platform, s.Cloud.DeviceName, timeout, logger)
	case config.CloudModeSelfHost:
		token := cloud.NewOAuth2TokenSource(cloud.StaticOAuth2TokenSource(cloud.AuthToken{Token: s.SelfHost.AccessKey}))
		return cloud.NewHTTPBackend(cloud.SelfHost, s.SelfHost.APIServer, token,
			s.Cloud.DeviceID, s.Cloud.Platform, s.Cloud.DeviceName, timeout, logger)
	default:
		return cloud.Disabled{}
	}
}
