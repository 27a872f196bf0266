package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"

	"github.com/google/uuid"
)

// CloudMode selects which cloud backend variant is installed (spec §3).
type CloudMode string

const (
	CloudModeOfficial CloudMode = "official"
	CloudModeSelfHost CloudMode = "selfhost"
	CloudModeOff      CloudMode = "off"
)

// MinRetentionLimit and MaxRetentionLimit bound Settings.RetentionLimit
// (spec §3 invariant: retention_limit ∈ [5,20]).
const (
	MinRetentionLimit = 5
	MaxRetentionLimit = 20
)

// CloudSettings holds the fields authoritative when CloudMode is Official.
type CloudSettings struct {
	BaseURL             string `json:"base_url"`
	APIKey              string `json:"api_key,omitempty"`
	DeviceID            string `json:"device_id"`
	DeviceName          string `json:"device_name"`
	Platform            string `json:"platform"`
	UserID              string `json:"user_id,omitempty"`
	TimeoutSeconds      int    `json:"timeout_seconds"`
	Enabled             bool   `json:"enabled"`
	HasRegisteredDevice bool   `json:"has_registered_device"`
}

// SelfHostSettings holds the fields authoritative when CloudMode is SelfHost.
type SelfHostSettings struct {
	IDServer    string `json:"id_server"`
	RelayServer string `json:"relay_server"`
	APIServer   string `json:"api_server"`
	AccessKey   string `json:"access_key,omitempty"`
}

// Settings is the durable, RPC-mutable process-wide configuration record
// (spec §3). It is persisted as JSON at Layout.SettingsPath().
type Settings struct {
	RetentionLimit int              `json:"retention_limit"`
	AutoDelete     bool             `json:"auto_delete"`
	CloudMode      CloudMode        `json:"cloud_mode"`
	Cloud          CloudSettings    `json:"cloud"`
	SelfHost       SelfHostSettings `json:"self_host"`
}

// DefaultSettings returns the zero-config starting point: retention of 10
// versions, auto-delete on, cloud disabled until the user opts in.
func DefaultSettings() *Settings {
	return &Settings{
		RetentionLimit: 10,
		AutoDelete:     true,
		CloudMode:      CloudModeOff,
		Cloud: CloudSettings{
			BaseURL:        "https://api.crosssave.cloud",
			TimeoutSeconds: 30,
		},
	}
}

// Validate enforces the Settings invariants from spec §3.
func (s *Settings) Validate() error {
	if s.RetentionLimit < MinRetentionLimit || s.RetentionLimit > MaxRetentionLimit {
		return fmt.Errorf("config: retention_limit %d out of range [%d,%d]",
			s.RetentionLimit, MinRetentionLimit, MaxRetentionLimit)
	}

	switch s.CloudMode {
	case CloudModeOfficial, CloudModeSelfHost, CloudModeOff:
	default:
		return fmt.Errorf("config: invalid cloud_mode %q", s.CloudMode)
	}

	if s.Cloud.TimeoutSeconds < 1 {
		return errors.New("config: cloud.timeout_seconds must be >= 1")
	}

	return nil
}

// LoadSettings reads Settings from path. If the file does not exist, default
// Settings are returned (first-run experience, no explicit init required).
func LoadSettings(path string, logger *slog.Logger) (*Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Debug("settings file not found, using defaults", "path", path)
		return DefaultSettings(), nil
	}

	if err != nil {
		return nil, fmt.Errorf("config: reading settings file %s: %w", path, err)
	}

	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("config: decoding settings file %s: %w", path, err)
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}

// SaveSettings writes s to path atomically.
func SaveSettings(path string, s *Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("config: encoding settings: %w", err)
	}

	return atomicWriteFile(path, data)
}

// EnsureDeviceIdentity generates and persists a fresh device id, platform
// tag, and device name the first time Settings.Cloud.DeviceID is empty
// (spec §3 invariant: device_id is non-empty after first run). Must run
// before any cloud call.
func EnsureDeviceIdentity(path string, s *Settings, logger *slog.Logger) error {
	if s.Cloud.DeviceID != "" {
		return nil
	}

	s.Cloud.DeviceID = uuid.NewString()
	s.Cloud.Platform = runtime.GOOS
	if s.Cloud.DeviceName == "" {
		s.Cloud.DeviceName = defaultDeviceName(s.Cloud.Platform)
	}

	logger.Info("generated device identity",
		slog.String("device_id", s.Cloud.DeviceID),
		slog.String("platform", s.Cloud.Platform),
	)

	return SaveSettings(path, s)
}

// defaultDeviceName returns the local hostname as the device name, falling
// back to a generic name derived from the platform tag when the hostname is
// unavailable.
func defaultDeviceName(platform string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		switch platform {
		case "darwin":
			return "Mac"
		case "windows":
			return "Windows PC"
		default:
			return "Linux device"
		}
	}

	return host
}
