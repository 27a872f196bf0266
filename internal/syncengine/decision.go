// Package syncengine implements spec §4.6: per-game periodic reconciliation
// against a remote catalog, the decision procedure, and the download
// pipeline.
package syncengine

import (
	"github.com/crosssave/agent/internal/cloud"
	"github.com/crosssave/agent/internal/history"
)

// Action is the outcome of the decision procedure for one game.
type Action int

const (
	Noop Action = iota
	Upload
	Download
	Conflict
)

func (a Action) String() string {
	switch a {
	case Upload:
		return "upload"
	case Download:
		return "download"
	case Conflict:
		return "conflict"
	default:
		return "noop"
	}
}

// conflictWindowSeconds is the spec's resolved open question: the 2-second
// tie-break window is compared in seconds, not milliseconds.
const conflictWindowSeconds = 2

// Decision is the result of determineSyncAction: an Action plus the
// version_id to download, when applicable.
type Decision struct {
	Action    Action
	VersionID string
}

// determineSyncAction implements spec §4.6's decision procedure as a pure
// function of local and the remote version list.
func determineSyncAction(local *history.HistoryEntry, remote []cloud.CloudVersionSummary) Decision {
	latestRemote, hasRemote := latestByTimestamp(remote)

	switch {
	case local != nil && !hasRemote:
		return Decision{Action: Upload}
	case local == nil && hasRemote:
		return Decision{Action: Download, VersionID: latestRemote.VersionID}
	case local == nil && !hasRemote:
		return Decision{Action: Noop}
	}

	if latestRemote.SHA256 == local.Metadata.Hash {
		return Decision{Action: Noop}
	}

	dt := diffSeconds(latestRemote.Timestamp, local.Metadata.Timestamp)
	if dt <= conflictWindowSeconds {
		return Decision{Action: Conflict}
	}

	if latestRemote.Timestamp > local.Metadata.Timestamp {
		return Decision{Action: Download, VersionID: latestRemote.VersionID}
	}

	return Decision{Action: Upload}
}

func latestByTimestamp(versions []cloud.CloudVersionSummary) (cloud.CloudVersionSummary, bool) {
	if len(versions) == 0 {
		return cloud.CloudVersionSummary{}, false
	}

	best := versions[0]
	for _, v := range versions[1:] {
		if v.Timestamp > best.Timestamp {
			best = v
		}
	}

	return best, true
}

func diffSeconds(a, b uint64) uint64 {
	if a > b {
		return a - b
	}

	return b - a
}
