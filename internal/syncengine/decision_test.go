package syncengine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crosssave/agent/internal/cloud"
	"github.com/crosssave/agent/internal/history"
	"github.com/crosssave/agent/internal/packager"
)

func localAt(hash string, ts uint64) *history.HistoryEntry {
	return &history.HistoryEntry{Metadata: packager.SaveMetadata{Hash: hash, Timestamp: ts}}
}

// TestDecisionScenarioS2 implements spec §8 scenario S2: dt=1s -> Conflict.
func TestDecisionScenarioS2(t *testing.T) {
	local := localAt("AA", 1000)
	remote := []cloud.CloudVersionSummary{{VersionID: "v1", SHA256: "BB", Timestamp: 1001}}

	d := determineSyncAction(local, remote)
	assert.Equal(t, Conflict, d.Action)
}

// TestDecisionScenarioS3 implements spec §8 scenario S3: remote newer
// outside the conflict window -> Download("v1").
func TestDecisionScenarioS3(t *testing.T) {
	local := localAt("AA", 1000)
	remote := []cloud.CloudVersionSummary{{VersionID: "v1", SHA256: "BB", Timestamp: 1010}}

	d := determineSyncAction(local, remote)
	assert.Equal(t, Download, d.Action)
	assert.Equal(t, "v1", d.VersionID)
}

// TestDecisionScenarioS4 implements spec §8 scenario S4: local newer
// outside the conflict window -> Upload.
func TestDecisionScenarioS4(t *testing.T) {
	local := localAt("AA", 1100)
	remote := []cloud.CloudVersionSummary{{VersionID: "v1", SHA256: "BB", Timestamp: 1000}}

	d := determineSyncAction(local, remote)
	assert.Equal(t, Upload, d.Action)
}

func TestDecisionNoLocalNoRemoteIsNoop(t *testing.T) {
	d := determineSyncAction(nil, nil)
	assert.Equal(t, Noop, d.Action)
}

func TestDecisionNoLocalWithRemoteDownloadsLatest(t *testing.T) {
	remote := []cloud.CloudVersionSummary{
		{VersionID: "old", Timestamp: 100},
		{VersionID: "new", Timestamp: 200},
	}

	d := determineSyncAction(nil, remote)
	assert.Equal(t, Download, d.Action)
	assert.Equal(t, "new", d.VersionID)
}

func TestDecisionLocalOnlyUploads(t *testing.T) {
	d := determineSyncAction(localAt("AA", 1000), nil)
	assert.Equal(t, Upload, d.Action)
}

func TestDecisionMatchingHashIsNoop(t *testing.T) {
	local := localAt("AA", 1000)
	remote := []cloud.CloudVersionSummary{{VersionID: "v1", SHA256: "AA", Timestamp: 5000}}

	d := determineSyncAction(local, remote)
	assert.Equal(t, Noop, d.Action)
}

func TestDecisionExactlyAtConflictWindowBoundaryIsConflict(t *testing.T) {
	local := localAt("AA", 1000)
	remote := []cloud.CloudVersionSummary{{VersionID: "v1", SHA256: "BB", Timestamp: 1002}}

	d := determineSyncAction(local, remote)
	assert.Equal(t, Conflict, d.Action)
}
