package api

import "github.com/crosssave/agent/internal/config"

// StorageInfo implements spec §6 get_storage_info's response shape.
type StorageInfo struct {
	HistoryPath    string `json:"history_path"`
	TotalSizeBytes int64  `json:"total_size_bytes"`
	TotalVersions  int    `json:"total_versions"`
	MinRetention   int    `json:"min_retention"`
	MaxRetention   int    `json:"max_retention"`
}

// GetAppSettings implements spec §6 get_app_settings.
func (a *API) GetAppSettings() config.Settings {
	return a.d.Cfg.Holder.Get()
}

// UpdateAppSettings implements spec §6 update_app_settings(s): validates and
// persists the whole record, then re-applies the retention policy to the
// history store so a tightened limit takes effect immediately.
func (a *API) UpdateAppSettings(s config.Settings) error {
	if err := a.d.Cfg.Holder.Update(&s); err != nil {
		return err
	}

	a.d.History.SetPolicy(s.RetentionLimit, s.AutoDelete)

	return nil
}

// GetStorageInfo implements spec §6 get_storage_info.
func (a *API) GetStorageInfo() (StorageInfo, error) {
	total, err := a.d.History.TotalSize("")
	if err != nil {
		return StorageInfo{}, err
	}

	versions := 0
	for _, gameID := range a.d.History.GameIDs() {
		versions += len(a.d.History.ListHistory(gameID))
	}

	return StorageInfo{
		HistoryPath:    a.d.Cfg.Layout.HistoryRoot(),
		TotalSizeBytes: total,
		TotalVersions:  versions,
		MinRetention:   config.MinRetentionLimit,
		MaxRetention:   config.MaxRetentionLimit,
	}, nil
}

// ClearHistoryCache implements spec §6 clear_history_cache.
func (a *API) ClearHistoryCache() error {
	return a.d.History.ClearAll()
}
