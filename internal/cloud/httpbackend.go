package cloud

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Mode selects which base URL and access headers an HTTPBackend uses.
type Mode int

const (
	Official Mode = iota
	SelfHost
)

func (m Mode) String() string {
	if m == SelfHost {
		return "self_host"
	}

	return "official"
}

// deviceRegistrationAttempts implements the spec's resolved open question:
// up to two attempts, with a logged warning between (spec §Open Questions).
const deviceRegistrationAttempts = 2

// accessHeaderEnv lists the environment-driven Cloudflare Access headers
// attached to every request in Official mode when set (spec §4.4).
var accessHeaderEnv = map[string]string{
	"Cf-Access-Client-Id":     "SAVESYNC_CF_ACCESS_CLIENT_ID",
	"Cf-Access-Client-Secret": "SAVESYNC_CF_ACCESS_CLIENT_SECRET",
	"Cf-Access-Jwt-Assertion": "SAVESYNC_CF_ACCESS_JWT_ASSERTION",
}

// TokenSource supplies the bearer token used for control-plane calls.
type TokenSource interface {
	Token() string
}

// staticToken is a TokenSource that always returns the same token.
type staticToken string

func (s staticToken) Token() string { return string(s) }

// HTTPBackend implements Backend against a REST API with presigned
// object-store URLs (spec §4.4 HTTP variant).
type HTTPBackend struct {
	mode       Mode
	baseURL    string
	token      TokenSource
	deviceID   string
	platform   string
	deviceName string

	control *retryablehttp.Client
	plain   *http.Client
	logger  *slog.Logger

	mu registeredGuard
}

type registeredGuard struct {
	sync.Mutex
	done bool
}

// NewHTTPBackend creates an HTTPBackend. timeout is cloud.timeout_seconds
// from Settings (minimum 1s).
func NewHTTPBackend(mode Mode, baseURL string, token TokenSource, deviceID, platform, deviceName string, timeout time.Duration, logger *slog.Logger) *HTTPBackend {
	if timeout <= 0 {
		timeout = time.Second
	}

	control := retryablehttp.NewClient()
	control.Logger = nil
	control.RetryMax = 3
	control.HTTPClient.Timeout = timeout

	return &HTTPBackend{
		mode:       mode,
		baseURL:    baseURL,
		token:      token,
		deviceID:   deviceID,
		platform:   platform,
		deviceName: deviceName,
		control:    control,
		plain:      &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (b *HTTPBackend) GetDeviceID() string { return b.deviceID }

func (b *HTTPBackend) accessHeaders() http.Header {
	h := http.Header{}

	if b.mode != Official {
		return h
	}

	for header, env := range accessHeaderEnv {
		if v := os.Getenv(env); v != "" {
			h.Set(header, v)
		}
	}

	return h
}

// doJSON performs a control-plane request with retry, bearer auth, and
// access headers, decoding the JSON response into out (if non-nil).
func (b *HTTPBackend) doJSON(ctx context.Context, op, method, path string, body any, out any) error {
	return b.doJSONOpt(ctx, op, method, path, body, out, false)
}

// doJSONOpt is doJSON with emptyOn404: when true, a 404 response leaves out
// untouched and returns nil instead of an error (spec §4.4: "404 on list →
// empty result").
func (b *HTTPBackend) doJSONOpt(ctx context.Context, op, method, path string, body any, out any, emptyOn404 bool) error {
	var reader io.Reader

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return newError(op, 0, err.Error(), ErrSerialization)
		}

		reader = bytes.NewReader(data)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return newError(op, 0, err.Error(), ErrNetworkError)
	}

	req.Header.Set("Authorization", "Bearer "+b.token.Token())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, vals := range b.accessHeaders() {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	resp, err := b.control.Do(req)
	if err != nil {
		return newError(op, 0, err.Error(), ErrNetworkError)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if emptyOn404 && resp.StatusCode == http.StatusNotFound {
		return nil
	}

	if sentinel := classifyStatus(resp.StatusCode); sentinel != nil {
		return newError(op, resp.StatusCode, string(respBody), sentinel)
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return newError(op, resp.StatusCode, err.Error(), ErrSerialization)
	}

	return nil
}

// authEnvelope is the wire shape of POST /login and /signup (spec §6 wire
// protocol table): `{ok, user_id, token, exp, email, device_id?}`.
type authEnvelope struct {
	Ok       bool   `json:"ok"`
	UserID   string `json:"user_id"`
	Token    string `json:"token"`
	Exp      int64  `json:"exp,omitempty"`
	Email    string `json:"email,omitempty"`
	DeviceID string `json:"device_id,omitempty"`
}

func (b *HTTPBackend) Login(ctx context.Context, email, password string) (AuthToken, error) {
	var out authEnvelope

	err := b.doJSON(ctx, "login", http.MethodPost, "/login",
		map[string]string{"email": email, "password": password, "device_id": b.deviceID, "platform": b.platform, "device_name": b.deviceName}, &out)

	return AuthToken{Token: out.Token}, err
}

func (b *HTTPBackend) Signup(ctx context.Context, email, password string) (AuthToken, error) {
	var out authEnvelope

	err := b.doJSON(ctx, "signup", http.MethodPost, "/signup",
		map[string]string{"email": email, "password": password, "device_id": b.deviceID, "platform": b.platform, "device_name": b.deviceName}, &out)

	return AuthToken{Token: out.Token}, err
}

// ensureDeviceRegistered registers the device once per backend lifetime,
// retrying up to deviceRegistrationAttempts times with a warning logged
// between attempts (spec's resolved open question).
func (b *HTTPBackend) ensureDeviceRegistered(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.mu.done {
		return nil
	}

	var lastErr error

	for attempt := 1; attempt <= deviceRegistrationAttempts; attempt++ {
		if err := b.RegisterDevice(ctx, b.token.Token(), b.deviceID, b.platform, b.deviceName); err != nil {
			lastErr = err

			if attempt < deviceRegistrationAttempts {
				b.logger.Warn("device registration failed, retrying",
					slog.Int("attempt", attempt), slog.String("error", err.Error()))

				continue
			}

			b.logger.Warn("device registration failed, giving up",
				slog.Int("attempts", attempt), slog.String("error", err.Error()))

			return lastErr
		}

		b.mu.done = true

		return nil
	}

	return lastErr
}

type deviceListEnvelope struct {
	Ok      bool     `json:"ok"`
	Devices []Device `json:"devices"`
}

func (b *HTTPBackend) RegisterDevice(ctx context.Context, token, deviceID, platform, deviceName string) error {
	return b.doJSON(ctx, "register_device", http.MethodPost, "/device/register",
		map[string]string{"device_id": deviceID, "platform": platform, "device_name": deviceName}, nil)
}

func (b *HTTPBackend) ListDevices(ctx context.Context, token string) ([]Device, error) {
	var out deviceListEnvelope
	err := b.doJSONOpt(ctx, "list_devices", http.MethodGet, "/device/list", nil, &out, true)

	return out.Devices, err
}

func (b *HTTPBackend) RemoveDevice(ctx context.Context, token, deviceID string) error {
	return b.doJSON(ctx, "remove_device", http.MethodPost, "/device/remove",
		map[string]string{"device_id": deviceID}, nil)
}

func (b *HTTPBackend) EnsureDeviceID(ctx context.Context) (string, error) {
	if err := b.ensureDeviceRegistered(ctx); err != nil {
		return "", err
	}

	return b.deviceID, nil
}

type gamesEnvelope struct {
	Ok    bool     `json:"ok"`
	Games []string `json:"games"`
}

func (b *HTTPBackend) ListGames(ctx context.Context) ([]string, error) {
	var out gamesEnvelope
	err := b.doJSONOpt(ctx, "list_games", http.MethodPost, "/save/games", nil, &out, true)

	return out.Games, err
}

type listVersionsEnvelope struct {
	Ok       bool                  `json:"ok"`
	Versions []CloudVersionSummary `json:"versions"`
}

// ListVersions performs POST /save/list (spec §6 wire protocol table), not a
// path-scoped GET: the protocol passes game_id in the request body.
func (b *HTTPBackend) ListVersions(ctx context.Context, gameID string, limit int) ([]CloudVersionSummary, error) {
	var out listVersionsEnvelope

	err := b.doJSONOpt(ctx, "list_versions", http.MethodPost, "/save/list",
		map[string]string{"game_id": gameID}, &out, true)
	if err != nil {
		return nil, err
	}

	versions := sortVersionsDescending(out.Versions)
	if limit > 0 && limit < len(versions) {
		versions = versions[:limit]
	}

	return versions, nil
}

func sortVersionsDescending(versions []CloudVersionSummary) []CloudVersionSummary {
	out := make([]CloudVersionSummary, len(versions))
	copy(out, versions)

	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Timestamp < out[j].Timestamp; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}

	return out
}

// uploadURLEnvelope is the wire shape of POST /save/upload-url: `{ok,
// upload_url, r2_key, version_id, worker_token}` (spec §6).
type uploadURLEnvelope struct {
	Ok          bool   `json:"ok"`
	UploadURL   string `json:"upload_url"`
	R2Key       string `json:"r2_key"`
	VersionID   string `json:"version_id"`
	WorkerToken string `json:"worker_token"`
}

// RequestUploadURL performs step 3 of the upload protocol (spec §4.4).
func (b *HTTPBackend) RequestUploadURL(ctx context.Context, req UploadURLRequest) (UploadURLResponse, error) {
	if err := b.ensureDeviceRegistered(ctx); err != nil {
		return UploadURLResponse{}, err
	}

	var out uploadURLEnvelope
	if err := b.doJSON(ctx, "request_upload_url", http.MethodPost, "/save/upload-url", req, &out); err != nil {
		return UploadURLResponse{}, err
	}

	return UploadURLResponse{
		UploadURL:   out.UploadURL,
		ObjectKey:   out.R2Key,
		VersionID:   out.VersionID,
		WorkerToken: out.WorkerToken,
	}, nil
}

// NotifyUploadComplete performs step 5 of the upload protocol. workerToken
// is echoed when non-empty; when empty the call still succeeds (spec's
// resolved open question on worker_token).
func (b *HTTPBackend) NotifyUploadComplete(ctx context.Context, req UploadURLRequest, workerToken string) error {
	if err := b.ensureDeviceRegistered(ctx); err != nil {
		return err
	}

	body := struct {
		UploadURLRequest
		WorkerToken string `json:"worker_token,omitempty"`
	}{UploadURLRequest: req, WorkerToken: workerToken}

	return b.doJSON(ctx, "notify_upload_complete", http.MethodPost, "/save/notify-upload", body, nil)
}

// UploadArchive performs the full upload sequence of spec §4.4: compute
// hash/size, request a presigned URL, PUT the bytes, then notify completion.
func (b *HTTPBackend) UploadArchive(ctx context.Context, meta UploadURLRequest, archivePath string) (CloudVersionSummary, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return CloudVersionSummary{}, newError("upload_archive", 0, err.Error(), ErrIO)
	}
	defer f.Close()

	h := sha256.New()

	size, err := io.Copy(h, f)
	if err != nil {
		return CloudVersionSummary{}, newError("upload_archive", 0, err.Error(), ErrIO)
	}

	meta.SHA256 = hex.EncodeToString(h.Sum(nil))
	meta.SizeBytes = size

	uploadResp, err := b.RequestUploadURL(ctx, meta)
	if err != nil {
		return CloudVersionSummary{}, err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return CloudVersionSummary{}, newError("upload_archive", 0, err.Error(), ErrIO)
	}

	if err := b.putArchive(ctx, uploadResp.UploadURL, f, size); err != nil {
		return CloudVersionSummary{}, err
	}

	if err := b.NotifyUploadComplete(ctx, meta, uploadResp.WorkerToken); err != nil {
		return CloudVersionSummary{}, err
	}

	return CloudVersionSummary{
		GameID:     meta.GameID,
		VersionID:  meta.VersionID,
		EmulatorID: meta.EmulatorID,
		SHA256:     meta.SHA256,
		SizeBytes:  meta.SizeBytes,
		FileList:   meta.FileList,
	}, nil
}

// putArchive performs step 4 of the upload protocol: PUT to the presigned
// URL. Presigned URLs are treated as opaque and single-use, so this uses
// the plain (non-retrying) client.
func (b *HTTPBackend) putArchive(ctx context.Context, uploadURL string, body io.Reader, size int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, body)
	if err != nil {
		return newError("put_archive", 0, err.Error(), ErrNetworkError)
	}

	req.Header.Set("Content-Type", "application/zip")
	req.ContentLength = size

	resp, err := b.plain.Do(req)
	if err != nil {
		return newError("put_archive", 0, err.Error(), ErrNetworkError)
	}
	defer resp.Body.Close()

	if sentinel := classifyStatus(resp.StatusCode); sentinel != nil {
		return newError("put_archive", resp.StatusCode, "upload failed", sentinel)
	}

	return nil
}

// downloadURLEnvelope is the wire shape of POST /save/download-url: `{ok,
// download_url, r2_key, version_id, game_id, size_bytes, sha256, file_list,
// emulator_id?, timestamp?}` (spec §6).
type downloadURLEnvelope struct {
	Ok          bool     `json:"ok"`
	DownloadURL string   `json:"download_url"`
	R2Key       string   `json:"r2_key"`
	VersionID   string   `json:"version_id"`
	GameID      string   `json:"game_id"`
	SizeBytes   int64    `json:"size_bytes"`
	SHA256      string   `json:"sha256"`
	FileList    []string `json:"file_list"`
	EmulatorID  string   `json:"emulator_id,omitempty"`
	Timestamp   uint64   `json:"timestamp,omitempty"`
}

func (b *HTTPBackend) RequestDownloadURL(ctx context.Context, gameID, versionID string) (DownloadURLResponse, error) {
	if err := b.ensureDeviceRegistered(ctx); err != nil {
		return DownloadURLResponse{}, err
	}

	var env downloadURLEnvelope

	err := b.doJSON(ctx, "request_download_url", http.MethodPost, "/save/download-url",
		map[string]string{"game_id": gameID, "version_id": versionID}, &env)
	if err != nil {
		return DownloadURLResponse{}, err
	}

	out := DownloadURLResponse{
		DownloadURL: env.DownloadURL,
		ObjectKey:   env.R2Key,
		SizeBytes:   env.SizeBytes,
		SHA256:      env.SHA256,
		FileList:    env.FileList,
		EmulatorID:  env.EmulatorID,
		Timestamp:   env.Timestamp,
	}

	return out, nil
}

// DownloadVersion performs the download protocol end to end: request the
// presigned URL, GET it, write the bytes to targetPath (spec §4.4).
func (b *HTTPBackend) DownloadVersion(ctx context.Context, gameID, versionID, targetPath string) error {
	manifest, err := b.RequestDownloadURL(ctx, gameID, versionID)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, manifest.DownloadURL, nil)
	if err != nil {
		return newError("download_version", 0, err.Error(), ErrNetworkError)
	}

	resp, err := b.plain.Do(req)
	if err != nil {
		return newError("download_version", 0, err.Error(), ErrNetworkError)
	}
	defer resp.Body.Close()

	if sentinel := classifyStatus(resp.StatusCode); sentinel != nil {
		return newError("download_version", resp.StatusCode, "download failed", sentinel)
	}

	out, err := os.Create(targetPath)
	if err != nil {
		return newError("download_version", 0, err.Error(), ErrIO)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		return newError("download_version", 0, err.Error(), ErrIO)
	}

	return nil
}

func (b *HTTPBackend) CheckConnection(ctx context.Context) bool {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/health", nil)
	if err != nil {
		return false
	}

	resp, err := b.control.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices
}
