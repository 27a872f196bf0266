package cloud

import "context"

// Disabled is the no-op Backend variant: every operation fails with
// ErrDisabled except CheckConnection, which returns false (spec §4.4).
type Disabled struct{}

func (Disabled) Login(context.Context, string, string) (AuthToken, error) {
	return AuthToken{}, newError("login", 0, "cloud backend disabled", ErrDisabled)
}

func (Disabled) Signup(context.Context, string, string) (AuthToken, error) {
	return AuthToken{}, newError("signup", 0, "cloud backend disabled", ErrDisabled)
}

func (Disabled) UploadArchive(context.Context, UploadURLRequest, string) (CloudVersionSummary, error) {
	return CloudVersionSummary{}, newError("upload_archive", 0, "cloud backend disabled", ErrDisabled)
}

func (Disabled) RequestUploadURL(context.Context, UploadURLRequest) (UploadURLResponse, error) {
	return UploadURLResponse{}, newError("request_upload_url", 0, "cloud backend disabled", ErrDisabled)
}

func (Disabled) NotifyUploadComplete(context.Context, UploadURLRequest, string) error {
	return newError("notify_upload_complete", 0, "cloud backend disabled", ErrDisabled)
}

func (Disabled) RequestDownloadURL(context.Context, string, string) (DownloadURLResponse, error) {
	return DownloadURLResponse{}, newError("request_download_url", 0, "cloud backend disabled", ErrDisabled)
}

func (Disabled) ListVersions(context.Context, string, int) ([]CloudVersionSummary, error) {
	return nil, newError("list_versions", 0, "cloud backend disabled", ErrDisabled)
}

func (Disabled) DownloadVersion(context.Context, string, string, string) error {
	return newError("download_version", 0, "cloud backend disabled", ErrDisabled)
}

func (Disabled) ListDevices(context.Context, string) ([]Device, error) {
	return nil, newError("list_devices", 0, "cloud backend disabled", ErrDisabled)
}

func (Disabled) RegisterDevice(context.Context, string, string, string, string) error {
	return newError("register_device", 0, "cloud backend disabled", ErrDisabled)
}

func (Disabled) RemoveDevice(context.Context, string, string) error {
	return newError("remove_device", 0, "cloud backend disabled", ErrDisabled)
}

func (Disabled) EnsureDeviceID(context.Context) (string, error) {
	return "", newError("ensure_device_id", 0, "cloud backend disabled", ErrDisabled)
}

func (Disabled) GetDeviceID() string { return "" }

func (Disabled) CheckConnection(context.Context) bool { return false }

func (Disabled) ListGames(context.Context) ([]string, error) {
	return nil, newError("list_games", 0, "cloud backend disabled", ErrDisabled)
}
