package api

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/crosssave/agent/internal/cloud"
	"github.com/crosssave/agent/internal/config"
)

// Event topics not already owned by another package (spec §6 Event
// surface). cloud.TopicBackendSwitched is published by the Cell itself.
const (
	TopicCloudModeChanged      = "cloud.mode_changed"
	TopicCloudConfigValid      = "cloud.config_valid"
	TopicCloudConfigInvalid    = "cloud.config_invalid"
	TopicCloudDeviceUpdated    = "cloud.device_updated"
	TopicCloudDeviceError      = "cloud.device_error"
	TopicCloudDeviceRegistered = "cloud.device_registered"
	TopicCloudOnline           = "cloud.online"
	TopicCloudReconnectStart   = "cloud.reconnect_started"
	TopicCloudReconnectNeeded  = "cloud.reconnect_required"
)

// CloudStatus is the response shape for spec §6 get_cloud_status.
type CloudStatus struct {
	Mode       config.CloudMode `json:"mode"`
	Online     bool             `json:"online"`
	DeviceID   string           `json:"device_id"`
	UserID     string           `json:"user_id,omitempty"`
	TokenValid bool             `json:"token_valid"`
}

// Login implements spec §6 login(email, password): authenticates against
// the currently configured backend and stores the resulting token in the
// mode-appropriate settings field, without switching the active mode.
func (a *API) Login(ctx context.Context, email, password string) (cloud.AuthToken, error) {
	tok, err := a.d.Cell.Get().Login(ctx, email, password)
	if err != nil {
		return cloud.AuthToken{}, err
	}

	if err := a.storeToken(tok); err != nil {
		return cloud.AuthToken{}, err
	}

	return tok, nil
}

// Signup implements spec §6 signup(email, password).
func (a *API) Signup(ctx context.Context, email, password string) (cloud.AuthToken, error) {
	tok, err := a.d.Cell.Get().Signup(ctx, email, password)
	if err != nil {
		return cloud.AuthToken{}, err
	}

	if err := a.storeToken(tok); err != nil {
		return cloud.AuthToken{}, err
	}

	return tok, nil
}

// storeToken persists tok into the CloudMode-appropriate settings field and
// rebuilds the Cell's backend so subsequent calls carry the new bearer
// token, mirroring backendForSettings' per-mode token selection.
func (a *API) storeToken(tok cloud.AuthToken) error {
	s := a.d.Cfg.Holder.Get()

	switch s.CloudMode {
	case config.CloudModeSelfHost:
		s.SelfHost.AccessKey = tok.Token
	default:
		s.Cloud.APIKey = tok.Token
	}

	if err := a.d.Cfg.Holder.Update(&s); err != nil {
		return err
	}

	a.d.SwitchCloudBackend(s)

	return nil
}

// Logout implements spec §6 logout: clears the stored tokens of both the
// official and self-host modes and switches cloud sync off.
func (a *API) Logout() error {
	s := a.d.Cfg.Holder.Get()
	s.Cloud.APIKey = ""
	s.SelfHost.AccessKey = ""
	s.CloudMode = config.CloudModeOff

	if err := a.d.Cfg.Holder.Update(&s); err != nil {
		return err
	}

	a.d.SwitchCloudBackend(s)
	a.d.Bus.Publish(TopicCloudModeChanged, s.CloudMode)

	return nil
}

// GetCloudConfig implements spec §6 get_cloud_config.
func (a *API) GetCloudConfig() config.Settings {
	return a.d.Cfg.Holder.Get()
}

// UpdateCloudConfig implements spec §6 update_cloud_config(s): validates,
// persists, and republishes cloud.config_valid/cloud.config_invalid so a UI
// can surface the result without re-polling get_cloud_config.
func (a *API) UpdateCloudConfig(s config.Settings) error {
	if err := a.d.Cfg.Holder.Update(&s); err != nil {
		a.d.Bus.Publish(TopicCloudConfigInvalid, err.Error())
		return err
	}

	a.d.Bus.Publish(TopicCloudConfigValid, s)
	a.d.SwitchCloudBackend(s)

	return nil
}

// UpdateCloudMode implements spec §6 update_cloud_mode(mode_string).
func (a *API) UpdateCloudMode(mode string) error {
	cm := config.CloudMode(mode)

	s := a.d.Cfg.Holder.Get()
	s.CloudMode = cm

	if err := a.d.Cfg.Holder.Update(&s); err != nil {
		return err
	}

	a.d.SwitchCloudBackend(s)
	a.d.Bus.Publish(TopicCloudModeChanged, cm)

	return nil
}

// ReconnectCloud implements spec §6 reconnect_cloud: forces an immediate
// connectivity probe against the active backend instead of waiting for the
// monitor's next poll tick.
func (a *API) ReconnectCloud(ctx context.Context) bool {
	a.d.Bus.Publish(TopicCloudReconnectStart, nil)

	online := a.d.Monitor.Probe(ctx)

	if online {
		a.d.Bus.Publish(TopicCloudOnline, nil)
	} else {
		a.d.Bus.Publish(TopicCloudReconnectNeeded, nil)
	}

	return online
}

// GetCloudStatus implements spec §6 get_cloud_status. Token validity is a
// local exp-claim check (IntrospectToken), never an authorization decision.
func (a *API) GetCloudStatus() CloudStatus {
	s := a.d.Cfg.Holder.Get()

	status := CloudStatus{
		Mode:     s.CloudMode,
		Online:   a.d.Monitor.Online(),
		DeviceID: a.d.Cell.Get().GetDeviceID(),
		UserID:   s.Cloud.UserID,
	}

	token := s.Cloud.APIKey
	if s.CloudMode == config.CloudModeSelfHost {
		token = s.SelfHost.AccessKey
	}

	if token != "" {
		if claims, err := cloud.IntrospectToken(token); err == nil {
			status.TokenValid = true
			if claims.Subject != "" {
				status.UserID = claims.Subject
			}
		}
	}

	return status
}

// ListDevices implements spec §6 list_devices.
func (a *API) ListDevices(ctx context.Context, token string) ([]cloud.Device, error) {
	return a.d.Cell.Get().ListDevices(ctx, token)
}

// RegisterDevice implements spec §6 register_device(device_id, platform,
// device_name).
func (a *API) RegisterDevice(ctx context.Context, token, deviceID, platform, deviceName string) error {
	if err := a.d.Cell.Get().RegisterDevice(ctx, token, deviceID, platform, deviceName); err != nil {
		a.d.Bus.Publish(TopicCloudDeviceError, err.Error())
		return err
	}

	a.d.Bus.Publish(TopicCloudDeviceRegistered, cloud.Device{DeviceID: deviceID, Platform: platform, DeviceName: deviceName})

	return nil
}

// RemoveDevice implements spec §6 remove_device(device_id).
func (a *API) RemoveDevice(ctx context.Context, token, deviceID string) error {
	if err := a.d.Cell.Get().RemoveDevice(ctx, token, deviceID); err != nil {
		a.d.Bus.Publish(TopicCloudDeviceError, err.Error())
		return err
	}

	a.d.Bus.Publish(TopicCloudDeviceUpdated, deviceID)

	return nil
}

// UploadCloudSave implements spec §6 upload_cloud_save(game_id, version_id):
// an explicit, synchronous upload outside the queue's own retry loop, for a
// caller that wants to wait for the result rather than poll sync://status.
func (a *API) UploadCloudSave(ctx context.Context, gameID, versionID string) (cloud.CloudVersionSummary, error) {
	entry, err := a.d.History.GetHistoryItem(gameID, versionID)
	if err != nil {
		return cloud.CloudVersionSummary{}, err
	}

	req := cloud.UploadURLRequest{
		GameID:     entry.Metadata.GameID,
		VersionID:  entry.Metadata.VersionID,
		SHA256:     entry.Metadata.Hash,
		FileList:   entry.Metadata.FileList,
		EmulatorID: entry.Metadata.EmulatorID,
		DeviceID:   a.d.Cell.Get().GetDeviceID(),
	}
	if entry.Metadata.SizeBytes != nil {
		req.SizeBytes = *entry.Metadata.SizeBytes
	}

	return a.d.Cell.Get().UploadArchive(ctx, req, entry.ArchivePath)
}

// ListCloudVersions implements spec §6 list_cloud_versions(game_id, limit?).
func (a *API) ListCloudVersions(ctx context.Context, gameID string, limit int) ([]cloud.CloudVersionSummary, error) {
	return a.d.Cell.Get().ListVersions(ctx, gameID, limit)
}

// DownloadCloudVersion implements spec §6 download_cloud_version(game_id,
// version_id) -> path: downloads the archive into the cloud downloads
// staging directory and returns its path.
func (a *API) DownloadCloudVersion(ctx context.Context, gameID, versionID string) (string, error) {
	target := filepath.Join(a.d.Cfg.Layout.CloudDownloadsDir(), gameID+"_"+versionID+".zip")

	if err := a.d.Cell.Get().DownloadVersion(ctx, gameID, versionID, target); err != nil {
		return "", fmt.Errorf("api: downloading %s/%s: %w", gameID, versionID, err)
	}

	return target, nil
}

// GetUploadURL implements spec §6 get_upload_url(req).
func (a *API) GetUploadURL(ctx context.Context, req cloud.UploadURLRequest) (cloud.UploadURLResponse, error) {
	return a.d.Cell.Get().RequestUploadURL(ctx, req)
}

// NotifyUpload implements spec §6 notify_upload(req, worker_token).
func (a *API) NotifyUpload(ctx context.Context, req cloud.UploadURLRequest, workerToken string) error {
	return a.d.Cell.Get().NotifyUploadComplete(ctx, req, workerToken)
}

// ListGames implements spec §6 list_games.
func (a *API) ListGames(ctx context.Context) ([]string, error) {
	return a.d.Cell.Get().ListGames(ctx)
}
