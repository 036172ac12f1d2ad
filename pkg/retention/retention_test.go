package retention_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/FireNirva/quants-fleet/pkg/retention"
)

func mkdirWithFile(t *testing.T, root, name string, modTime time.Time) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.Mkdir(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.bin"), []byte("x"), 0o644))
	_ = modTime
}

func TestRunDryRunPreservesUnparseableNames(t *testing.T) {
	root := t.TempDir()
	mkdirWithFile(t, root, "orderbook_20200101", time.Time{})
	mkdirWithFile(t, root, "scratch-notes", time.Time{})

	result, err := retention.Run(root, 30, true)
	require.NoError(t, err)

	byName := map[string]retention.Entry{}
	for _, e := range result.Entries {
		byName[filepath.Base(e.Path)] = e
	}

	require.False(t, byName["scratch-notes"].Deleted)
	require.Contains(t, byName["scratch-notes"].Reason, "unparseable")

	require.False(t, byName["orderbook_20200101"].Deleted)
	require.Contains(t, byName["orderbook_20200101"].Reason, "dry-run")

	_, err = os.Stat(filepath.Join(root, "orderbook_20200101"))
	require.NoError(t, err, "dry-run must not delete anything")
}

func TestRunDeletesExpiredDirectories(t *testing.T) {
	root := t.TempDir()
	old := time.Now().AddDate(0, 0, -90).Format("20060102")
	mkdirWithFile(t, root, "ticks_"+old, time.Time{})

	recent := time.Now().Format("2006-01-02")
	mkdirWithFile(t, root, "snap-"+recent, time.Time{})

	result, err := retention.Run(root, 30, false)
	require.NoError(t, err)
	require.Greater(t, result.FreedBytes, int64(0))
	require.Equal(t, 1, result.DeletedDirs)
	require.Equal(t, 1, result.DeletedFiles)

	_, err = os.Stat(filepath.Join(root, "ticks_"+old))
	require.True(t, os.IsNotExist(err))

	_, err = os.Stat(filepath.Join(root, "snap-"+recent))
	require.NoError(t, err, "recent directory must be preserved")
}

func TestSuffixDatePatternTakesPriorityOverPrefix(t *testing.T) {
	root := t.TempDir()
	old := time.Now().AddDate(0, 0, -400).Format("20060102")
	// Name both starts and ends with a digit run; suffix pattern must win
	// since it is tried first.
	name := "20190101_archive_" + old
	mkdirWithFile(t, root, name, time.Time{})

	result, err := retention.Run(root, 10, true)
	require.NoError(t, err)

	var found *retention.Entry
	for i := range result.Entries {
		if filepath.Base(result.Entries[i].Path) == name {
			found = &result.Entries[i]
		}
	}
	require.NotNil(t, found)
	require.Equal(t, old, found.Date.Format("20060102"))
}
