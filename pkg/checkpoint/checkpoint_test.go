package checkpoint_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/FireNirva/quants-fleet/pkg/checkpoint"
	"github.com/FireNirva/quants-fleet/pkg/types"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint.json")

	cp := types.Checkpoint{
		ProfileName:     "orderbook-btc",
		LastSyncTime:    time.Now().Truncate(time.Second),
		Status:          types.TransferSuccess,
		DurationSeconds: 12.5,
		FilesSynced:     42,
		BytesSynced:     1 << 20,
	}

	require.NoError(t, checkpoint.Save(path, cp))

	loaded, err := checkpoint.Load(path)
	require.NoError(t, err)
	require.Equal(t, cp.ProfileName, loaded.ProfileName)
	require.True(t, cp.LastSyncTime.Equal(loaded.LastSyncTime))
	require.Equal(t, types.TransferSuccess, loaded.Status)
	require.Equal(t, 42, loaded.FilesSynced)
	require.False(t, loaded.SavedAt.IsZero())
}

func TestLoadMissingFileReturnsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")

	cp, err := checkpoint.Load(path)
	require.NoError(t, err)
	require.Zero(t, cp.ProfileName)
	require.Zero(t, cp.Status)
}

func TestLoadMalformedFileReturnsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "checkpoint.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	cp, err := checkpoint.Load(path)
	require.NoError(t, err)
	require.Zero(t, cp.ProfileName)
}
