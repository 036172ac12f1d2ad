// Package checkpoint persists the data-lake syncer's per-profile sync
// state atomically, grounded on the original implementation's
// core/data_lake/checkpoint.py.
package checkpoint

import (
	"encoding/json"
	"os"
	"time"

	"github.com/google/renameio/v2"

	"github.com/FireNirva/quants-fleet/pkg/types"
)

// Load reads the checkpoint at path. A missing or malformed file returns a
// zero-value Checkpoint rather than an error: the original implementation
// treats "no prior checkpoint" and "corrupt checkpoint" identically as
// "nothing recorded yet", letting a profile's first sync proceed.
func Load(path string) (types.Checkpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return types.Checkpoint{}, nil
		}
		return types.Checkpoint{}, nil
	}

	var cp types.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return types.Checkpoint{}, nil
	}
	return cp, nil
}

// Save writes cp to path atomically: the new content lands in a temp file
// in the same directory and is renamed over path, so a crash mid-write never
// leaves a torn checkpoint. SavedAt is stamped with the current time.
func Save(path string, cp types.Checkpoint) error {
	cp.SavedAt = time.Now()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return err
	}

	return renameio.WriteFile(path, data, 0o644)
}

// LastSyncTime returns the LastSyncTime recorded in the checkpoint at path,
// or the zero time if none exists.
func LastSyncTime(path string) time.Time {
	cp, _ := Load(path)
	return cp.LastSyncTime
}

// IsLastSuccessful reports whether the most recent recorded sync for path
// succeeded outright (a partial or failed transfer both return false).
func IsLastSuccessful(path string) bool {
	cp, _ := Load(path)
	return cp.Status == types.TransferSuccess
}
