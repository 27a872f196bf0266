// Package queue implements spec §4.5: a durable, single-consumer FIFO
// upload queue with exponential-backoff retries, gated on connectivity.
package queue

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/crosssave/agent/internal/packager"
)

// Status is the lifecycle state of an UploadJob.
type Status string

const (
	StatusPending   Status = "pending"
	StatusUploading Status = "uploading"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

const maxRetries = 3

// UploadJob is one queued archive upload (spec §4.5).
type UploadJob struct {
	GameID      string                `json:"game_id"`
	VersionID   string                `json:"version_id"`
	ArchivePath string                `json:"archive_path"`
	Metadata    packager.SaveMetadata `json:"metadata"`
	Status      Status                `json:"status"`
	Retries     int                   `json:"retries"`
}

// Uploader performs the cloud upload sequence for a job (spec §4.4's HTTP
// upload protocol), reporting percentages via progress; which stages are
// reported is up to the implementation.
type Uploader interface {
	Upload(ctx context.Context, job UploadJob, progress func(percent int)) error
}

// Bus publishes job status/progress events to the shell's event surface.
type Bus interface {
	Publish(topic string, payload any)
}

const (
	TopicJobStatus   = "queue.job_status"
	TopicJobProgress = "queue.job_progress"
)

// StatusEvent is published whenever a job's status changes.
type StatusEvent struct {
	Job UploadJob
}

// ProgressEvent is published during an active upload.
type ProgressEvent struct {
	VersionID string
	Percent   int
}

// Queue is the durable FIFO upload queue (spec §4.5).
type Queue struct {
	mu   sync.Mutex
	fifo []UploadJob
	cond *sync.Cond

	activeMu sync.Mutex
	active   *UploadJob

	online     atomicBool
	snapshotPath string

	uploader Uploader
	bus      Bus
	logger   *slog.Logger

	backoff func(attempt int) time.Duration
}

type atomicBool struct {
	mu sync.Mutex
	v  bool
}

func (a *atomicBool) set(v bool) { a.mu.Lock(); a.v = v; a.mu.Unlock() }
func (a *atomicBool) get() bool  { a.mu.Lock(); defer a.mu.Unlock(); return a.v }

// New creates a Queue and, if a snapshot exists at snapshotPath, recovers
// it: any job found in Uploading is rewritten to Pending (spec §4.5
// "Durability").
func New(snapshotPath string, uploader Uploader, bus Bus, logger *slog.Logger) (*Queue, error) {
	q := &Queue{
		snapshotPath: snapshotPath,
		uploader:     uploader,
		bus:          bus,
		logger:       logger,
		backoff:      exponentialBackoffSeconds,
	}
	q.cond = sync.NewCond(&q.mu)

	if err := q.recover(); err != nil {
		return nil, err
	}

	return q, nil
}

// exponentialBackoffSeconds implements spec §4.5 step 6: sleep 2^retries
// seconds (2s, 4s, 8s for retries=1,2,3), grounded on sethvargo/go-retry's
// exponential backoff sequence seeded at a 2s base so its first Next()
// call already lands on 2^1.
func exponentialBackoffSeconds(attempt int) time.Duration {
	b, err := retry.NewExponential(2 * time.Second)
	if err != nil {
		return time.Duration(1<<uint(attempt)) * time.Second //nolint:gosec // bounded by maxRetries
	}

	var d time.Duration
	for i := 0; i < attempt; i++ {
		d, _ = b.Next()
	}

	return d
}

func (q *Queue) recover() error {
	data, err := os.ReadFile(q.snapshotPath)
	if os.IsNotExist(err) {
		return nil
	}

	if err != nil {
		return err
	}

	var jobs []UploadJob
	if err := json.Unmarshal(data, &jobs); err != nil {
		q.logger.Warn("queue: corrupt snapshot, starting empty", slog.String("error", err.Error()))
		return nil
	}

	for i := range jobs {
		if jobs[i].Status == StatusUploading {
			jobs[i].Status = StatusPending
		}
	}

	q.mu.Lock()
	q.fifo = jobs
	q.mu.Unlock()

	return nil
}

// snapshot persists only Pending/Uploading jobs (spec §4.5 "Durability":
// terminal states are not persisted) with a best-effort atomic write.
func (q *Queue) snapshot() {
	q.mu.Lock()
	persist := make([]UploadJob, 0, len(q.fifo)+1)
	persist = append(persist, q.fifo...)

	q.activeMu.Lock()
	if q.active != nil {
		persist = append([]UploadJob{*q.active}, persist...)
	}
	q.activeMu.Unlock()
	q.mu.Unlock()

	data, err := json.MarshalIndent(persist, "", "  ")
	if err != nil {
		q.logger.Warn("queue: failed to encode snapshot", slog.String("error", err.Error()))
		return
	}

	if err := atomicWrite(q.snapshotPath, data); err != nil {
		q.logger.Warn("queue: failed to write snapshot", slog.String("error", err.Error()))
	}
}

// AddJob enqueues a job. A no-op if a queued job already shares its
// version_id (spec §4.5 "Deduplication").
func (q *Queue) AddJob(job UploadJob) {
	q.mu.Lock()

	for _, existing := range q.fifo {
		if existing.VersionID == job.VersionID {
			q.mu.Unlock()
			return
		}
	}

	job.Status = StatusPending
	q.fifo = append(q.fifo, job)
	q.cond.Broadcast()
	q.mu.Unlock()

	q.snapshot()
	q.publishStatus(job)
}

// SetOnline updates the connectivity flag, waking the draining loop.
func (q *Queue) SetOnline(online bool) {
	q.online.set(online)

	q.mu.Lock()
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Clear drops all queued (not active) jobs (spec's cancellation policy:
// "the only way to stop them is queue-clear, which drops all queued
// (not active) jobs").
func (q *Queue) Clear() {
	q.mu.Lock()
	q.fifo = nil
	q.mu.Unlock()

	q.snapshot()
}

// Len returns the number of queued (not active) jobs.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.fifo)
}

func (q *Queue) publishStatus(job UploadJob) {
	if q.bus != nil {
		q.bus.Publish(TopicJobStatus, StatusEvent{Job: job})
	}
}

func (q *Queue) publishProgress(versionID string, percent int) {
	if q.bus != nil {
		q.bus.Publish(TopicJobProgress, ProgressEvent{VersionID: versionID, Percent: percent})
	}
}

// Run is the draining loop (spec §4.5). It blocks until ctx is canceled.
func (q *Queue) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		if !q.online.get() {
			if !q.waitFor(ctx, q.online.get) {
				return
			}

			continue
		}

		job, ok := q.popHead()
		if !ok {
			if !q.waitFor(ctx, func() bool { return len(q.fifo) > 0 || !q.online.get() }) {
				return
			}

			continue
		}

		q.process(ctx, job)
	}
}

// waitFor blocks until cond is true, ctx is canceled, or the queue's
// condvar is broadcast. Returns false if ctx was canceled.
func (q *Queue) waitFor(ctx context.Context, cond func() bool) bool {
	done := make(chan struct{})

	go func() {
		q.mu.Lock()
		for !cond() && ctx.Err() == nil {
			q.cond.Wait()
		}
		q.mu.Unlock()
		close(done)
	}()

	select {
	case <-done:
		return ctx.Err() == nil
	case <-ctx.Done():
		q.mu.Lock()
		q.cond.Broadcast()
		q.mu.Unlock()
		<-done

		return false
	}
}

func (q *Queue) popHead() (UploadJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.fifo) == 0 {
		return UploadJob{}, false
	}

	job := q.fifo[0]
	q.fifo = q.fifo[1:]

	return job, true
}

func (q *Queue) pushFront(job UploadJob) {
	q.mu.Lock()
	q.fifo = append([]UploadJob{job}, q.fifo...)
	q.cond.Broadcast()
	q.mu.Unlock()
}

// process performs steps 3-7 of spec §4.5's draining loop for one job.
func (q *Queue) process(ctx context.Context, job UploadJob) {
	job.Status = StatusUploading

	q.activeMu.Lock()
	q.active = &job
	q.activeMu.Unlock()

	q.snapshot()
	q.publishStatus(job)

	err := q.uploader.Upload(ctx, job, func(percent int) {
		q.publishProgress(job.VersionID, percent)
	})

	q.activeMu.Lock()
	q.active = nil
	q.activeMu.Unlock()

	if err == nil {
		job.Status = StatusCompleted
		q.snapshot()
		q.publishStatus(job)

		return
	}

	if job.Retries < maxRetries {
		job.Retries++

		q.logger.Warn("queue: upload failed, retrying",
			slog.String("version_id", job.VersionID), slog.Int("retries", job.Retries), slog.String("error", err.Error()))

		job.Status = StatusPending
		q.pushFront(job)
		q.snapshot()

		sleepCtx(ctx, q.backoff(job.Retries))

		return
	}

	job.Status = StatusFailed

	q.logger.Warn("queue: upload failed permanently, dropping job",
		slog.String("version_id", job.VersionID), slog.String("error", err.Error()))

	q.snapshot()
	q.publishStatus(job)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
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
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return err
	}

	succeeded = true

	return nil
}
