package testutil

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/crosssave/agent/internal/cloud"
)

// FakeBackend is an in-memory cloud.Backend for tests that need a
// controllable remote without an httptest.Server; internal/api's cloud RPC
// tests use it. Versions and Archives can be pre-seeded directly or filled
// through UploadArchive.
type FakeBackend struct {
	mu sync.Mutex

	DeviceID string
	Online   bool
	Devices  []cloud.Device
	Versions map[string][]cloud.CloudVersionSummary // gameID -> versions, any order
	Archives map[string][]byte                      // "gameID/versionID" -> archive bytes

	LoginErr error
	Token    cloud.AuthToken
}

// NewFakeBackend returns a FakeBackend that reports online and has no
// versions or devices registered.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{
		Online:   true,
		DeviceID: "test-device",
		Versions: make(map[string][]cloud.CloudVersionSummary),
		Archives: make(map[string][]byte),
	}
}

func (f *FakeBackend) Login(_ context.Context, _, _ string) (cloud.AuthToken, error) {
	if f.LoginErr != nil {
		return cloud.AuthToken{}, f.LoginErr
	}

	return f.Token, nil
}

func (f *FakeBackend) Signup(ctx context.Context, email, password string) (cloud.AuthToken, error) {
	return f.Login(ctx, email, password)
}

func (f *FakeBackend) UploadArchive(_ context.Context, req cloud.UploadURLRequest, archivePath string) (cloud.CloudVersionSummary, error) {
	data, err := os.ReadFile(archivePath)
	if err != nil {
		return cloud.CloudVersionSummary{}, fmt.Errorf("testutil: reading archive: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	summary := cloud.CloudVersionSummary{
		GameID:     req.GameID,
		VersionID:  req.VersionID,
		EmulatorID: req.EmulatorID,
		SHA256:     req.SHA256,
		SizeBytes:  int64(len(data)),
		FileList:   req.FileList,
	}

	f.Versions[req.GameID] = append(f.Versions[req.GameID], summary)
	f.Archives[req.GameID+"/"+req.VersionID] = data

	return summary, nil
}

func (f *FakeBackend) RequestUploadURL(_ context.Context, req cloud.UploadURLRequest) (cloud.UploadURLResponse, error) {
	return cloud.UploadURLResponse{
		UploadURL: "fake://upload/" + req.GameID + "/" + req.VersionID,
		ObjectKey: req.GameID + "/" + req.VersionID + ".zip",
		VersionID: req.VersionID,
	}, nil
}

func (f *FakeBackend) NotifyUploadComplete(_ context.Context, _ cloud.UploadURLRequest, _ string) error {
	return nil
}

func (f *FakeBackend) RequestDownloadURL(_ context.Context, gameID, versionID string) (cloud.DownloadURLResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, v := range f.Versions[gameID] {
		if v.VersionID == versionID {
			return cloud.DownloadURLResponse{
				DownloadURL: "fake://download/" + gameID + "/" + versionID,
				ObjectKey:   gameID + "/" + versionID + ".zip",
				SizeBytes:   v.SizeBytes,
				SHA256:      v.SHA256,
				FileList:    v.FileList,
				EmulatorID:  v.EmulatorID,
			}, nil
		}
	}

	return cloud.DownloadURLResponse{}, &cloud.CloudError{Op: "request_download_url", Err: cloud.ErrNotFound}
}

func (f *FakeBackend) ListVersions(_ context.Context, gameID string, limit int) ([]cloud.CloudVersionSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := append([]cloud.CloudVersionSummary(nil), f.Versions[gameID]...)

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (f *FakeBackend) DownloadVersion(_ context.Context, gameID, versionID, targetPath string) error {
	f.mu.Lock()
	data, ok := f.Archives[gameID+"/"+versionID]
	f.mu.Unlock()

	if !ok {
		return &cloud.CloudError{Op: "download_version", Err: cloud.ErrNotFound}
	}

	return os.WriteFile(targetPath, data, 0o600)
}

func (f *FakeBackend) ListDevices(context.Context, string) ([]cloud.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]cloud.Device(nil), f.Devices...), nil
}

func (f *FakeBackend) RegisterDevice(_ context.Context, _, deviceID, platform, deviceName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Devices = append(f.Devices, cloud.Device{DeviceID: deviceID, Platform: platform, DeviceName: deviceName})

	return nil
}

func (f *FakeBackend) RemoveDevice(_ context.Context, _, deviceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	kept := f.Devices[:0]
	for _, d := range f.Devices {
		if d.DeviceID != deviceID {
			kept = append(kept, d)
		}
	}
	f.Devices = kept

	return nil
}

func (f *FakeBackend) EnsureDeviceID(context.Context) (string, error) {
	return f.DeviceID, nil
}

func (f *FakeBackend) GetDeviceID() string {
	return f.DeviceID
}

func (f *FakeBackend) CheckConnection(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.Online
}

func (f *FakeBackend) ListGames(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	games := make([]string, 0, len(f.Versions))
	for g := range f.Versions {
		games = append(games, g)
	}

	sort.Strings(games)

	return games, nil
}
