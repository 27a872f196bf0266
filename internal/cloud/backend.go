// Package cloud implements spec §4.4: the cloud backend capability, its
// Disabled and HTTP (Official/SelfHost) variants, and the shared-lock mode
// switch between them.
package cloud

import "context"

// Backend is the capability every cloud variant implements. Every method is
// fallible with a *CloudError wrapping one of the sentinels in errors.go.
type Backend interface {
	Login(ctx context.Context, email, password string) (AuthToken, error)
	Signup(ctx context.Context, email, password string) (AuthToken, error)

	UploadArchive(ctx context.Context, req UploadURLRequest, archivePath string) (CloudVersionSummary, error)
	RequestUploadURL(ctx context.Context, req UploadURLRequest) (UploadURLResponse, error)
	NotifyUploadComplete(ctx context.Context, req UploadURLRequest, workerToken string) error

	RequestDownloadURL(ctx context.Context, gameID, versionID string) (DownloadURLResponse, error)
	ListVersions(ctx context.Context, gameID string, limit int) ([]CloudVersionSummary, error)
	DownloadVersion(ctx context.Context, gameID, versionID, targetPath string) error

	ListDevices(ctx context.Context, token string) ([]Device, error)
	RegisterDevice(ctx context.Context, token, deviceID, platform, deviceName string) error
	RemoveDevice(ctx context.Context, token, deviceID string) error

	EnsureDeviceID(ctx context.Context) (string, error)
	GetDeviceID() string
	CheckConnection(ctx context.Context) bool
	ListGames(ctx context.Context) ([]string, error)
}
