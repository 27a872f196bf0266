package api

import (
	"github.com/crosssave/agent/internal/history"
	"github.com/crosssave/agent/internal/packager"
)

// ListHistory implements spec §6 list_history(game_id).
func (a *API) ListHistory(gameID string) []history.HistoryEntry {
	return a.d.History.ListHistory(gameID)
}

// GetHistoryItem implements spec §6 get_history_item(game_id, version_id).
func (a *API) GetHistoryItem(gameID, versionID string) (*history.HistoryEntry, error) {
	return a.d.History.GetHistoryItem(gameID, versionID)
}

// RollbackVersion implements spec §6 rollback_version(...) → PackagedSave.
func (a *API) RollbackVersion(gameID, versionID string) (*packager.PackagedSave, error) {
	return a.d.History.RollbackVersion(gameID, versionID)
}

// DeleteHistoryItem implements spec §6 delete_history_item.
func (a *API) DeleteHistoryItem(gameID, versionID string) error {
	return a.d.History.DeleteHistoryItem(gameID, versionID)
}
