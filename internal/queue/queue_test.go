package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

type recordingBus struct {
	mu     sync.Mutex
	events []StatusEvent
}

func (b *recordingBus) Publish(topic string, payload any) {
	if topic != TopicJobStatus {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, payload.(StatusEvent))
}

func (b *recordingBus) snapshot() []StatusEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]StatusEvent, len(b.events))
	copy(out, b.events)

	return out
}

type fakeUploader struct {
	mu      sync.Mutex
	order   []string
	failN   map[string]int
}

func (u *fakeUploader) Upload(ctx context.Context, job UploadJob, progress func(int)) error {
	u.mu.Lock()
	u.order = append(u.order, job.VersionID)
	fails := u.failN[job.VersionID]
	u.mu.Unlock()

	progress(0)
	progress(80)

	if fails > job.Retries {
		return errors.New("simulated failure")
	}

	progress(100)

	return nil
}

func TestAddJobDedupsByVersionID(t *testing.T) {
	q, err := New(filepath.Join(t.TempDir(), "queue.json"), &fakeUploader{}, nil, discardLogger())
	require.NoError(t, err)

	q.AddJob(UploadJob{GameID: "g", VersionID: "v1"})
	q.AddJob(UploadJob{GameID: "g", VersionID: "v1"})
	q.AddJob(UploadJob{GameID: "g", VersionID: "v2"})

	assert.Equal(t, 2, q.Len())
}

func TestFIFOOrderingPreserved(t *testing.T) {
	up := &fakeUploader{failN: map[string]int{}}
	bus := &recordingBus{}

	q, err := New(filepath.Join(t.TempDir(), "queue.json"), up, bus, discardLogger())
	require.NoError(t, err)

	q.AddJob(UploadJob{GameID: "g", VersionID: "v1"})
	q.AddJob(UploadJob{GameID: "g", VersionID: "v2"})
	q.AddJob(UploadJob{GameID: "g", VersionID: "v3"})
	q.SetOnline(true)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go q.Run(ctx)

	require.Eventually(t, func() bool { return q.Len() == 0 }, 2*time.Second, 10*time.Millisecond)

	up.mu.Lock()
	defer up.mu.Unlock()
	assert.Equal(t, []string{"v1", "v2", "v3"}, up.order)
}

// TestRestartRecoveryRewritesUploadingToPending implements spec §8
// scenario S6: a snapshot with a job stuck in Uploading is rewritten to
// Pending on the next New().
func TestRestartRecoveryRewritesUploadingToPending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")

	jobs := []UploadJob{
		{GameID: "g", VersionID: "v1", Status: StatusUploading, Retries: 1},
		{GameID: "g", VersionID: "v2", Status: StatusPending},
	}

	data, err := json.Marshal(jobs)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	q, err := New(path, &fakeUploader{}, nil, discardLogger())
	require.NoError(t, err)

	assert.Equal(t, 2, q.Len())

	q.mu.Lock()
	for _, j := range q.fifo {
		assert.Equal(t, StatusPending, j.Status)
	}
	q.mu.Unlock()
}

func TestExponentialBackoffSecondsFollowsTwoToTheRetries(t *testing.T) {
	assert.Equal(t, 2*time.Second, exponentialBackoffSeconds(1))
	assert.Equal(t, 4*time.Second, exponentialBackoffSeconds(2))
	assert.Equal(t, 8*time.Second, exponentialBackoffSeconds(3))
}

func TestRetryExhaustionMarksFailedAndDrops(t *testing.T) {
	up := &fakeUploader{failN: map[string]int{"v1": 10}}
	bus := &recordingBus{}

	q, err := New(filepath.Join(t.TempDir(), "queue.json"), up, bus, discardLogger())
	require.NoError(t, err)
	q.backoff = func(int) time.Duration { return time.Millisecond }

	q.AddJob(UploadJob{GameID: "g", VersionID: "v1"})
	q.SetOnline(true)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	go q.Run(ctx)

	require.Eventually(t, func() bool {
		for _, ev := range bus.snapshot() {
			if ev.Job.VersionID == "v1" && ev.Job.Status == StatusFailed {
				return true
			}
		}

		return false
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, 0, q.Len())
}

func TestClearDropsQueuedJobs(t *testing.T) {
	q, err := New(filepath.Join(t.TempDir(), "queue.json"), &fakeUploader{}, nil, discardLogger())
	require.NoError(t, err)

	q.AddJob(UploadJob{GameID: "g", VersionID: "v1"})
	q.AddJob(UploadJob{GameID: "g", VersionID: "v2"})

	q.Clear()

	assert.Equal(t, 0, q.Len())
}

func TestSnapshotPersistsOnlyNonTerminalJobs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "queue.json")
	up := &fakeUploader{failN: map[string]int{}}

	q, err := New(path, up, nil, discardLogger())
	require.NoError(t, err)

	q.AddJob(UploadJob{GameID: "g", VersionID: "v1"})
	q.SetOnline(true)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	go q.Run(ctx)

	require.Eventually(t, func() bool { return q.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var persisted []UploadJob
	require.NoError(t, json.Unmarshal(data, &persisted))
	assert.Empty(t, persisted)
}
