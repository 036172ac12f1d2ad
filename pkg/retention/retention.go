// Package retention implements the data-lake's retention garbage collector:
// deleting directories older than a profile's retention window, keyed off a
// date token parsed from the directory name. Grounded on the original
// implementation's core/data_lake/cleaner.py.
package retention

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/FireNirva/quants-fleet/pkg/log"
)

// datePattern pairs a regexp that extracts a date token from a directory
// name with the time.Parse layout that decodes it. Patterns are tried in
// order; the first match wins. Order matters: the trailing-suffix pattern
// must be tried before the standalone-prefix pattern so a name such as
// "20190101_archive_20240105", which matches both, yields the suffix date
// "20240105" rather than the prefix date "20190101".
type datePattern struct {
	re     *regexp.Regexp
	layout string
}

var datePatterns = []datePattern{
	{regexp.MustCompile(`_(\d{8})$`), "20060102"},
	{regexp.MustCompile(`^(\d{8})`), "20060102"},
	{regexp.MustCompile(`(\d{4}-\d{2}-\d{2})`), "2006-01-02"},
	{regexp.MustCompile(`(\d{4}_\d{2}_\d{2})`), "2006_01_02"},
}

// ExtractDate returns the date encoded in dirname, and false if none of the
// known patterns match. An unparseable name is preserved by the GC rather
// than treated as expired. Exported so pkg/stats can report the same date
// range the GC would use to judge a directory's age.
func ExtractDate(dirname string) (time.Time, bool) {
	for _, p := range datePatterns {
		m := p.re.FindStringSubmatch(dirname)
		if m == nil {
			continue
		}
		t, err := time.Parse(p.layout, m[1])
		if err != nil {
			continue
		}
		return t, true
	}
	return time.Time{}, false
}

// Entry describes one retention decision made during a GC pass.
type Entry struct {
	Path    string
	Date    time.Time
	Freed   int64
	Deleted bool
	Reason  string // why it was kept, when Deleted is false
}

// Result summarizes one GC pass over a profile's local directory tree.
type Result struct {
	Entries      []Entry
	FreedBytes   int64
	DeletedDirs  int
	DeletedFiles int
}

// Run walks the immediate subdirectories of localPath, deletes those whose
// extracted date is older than retentionDays, and reports what it did or
// would do. Unparseable directory names are always preserved. A permission
// error removing one directory is logged and skipped, not fatal to the pass.
func Run(localPath string, retentionDays int, dryRun bool) (Result, error) {
	entries, err := os.ReadDir(localPath)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", localPath, err)
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result := Result{}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		full := filepath.Join(localPath, e.Name())
		date, ok := ExtractDate(e.Name())
		if !ok {
			result.Entries = append(result.Entries, Entry{Path: full, Reason: "unparseable name, preserved"})
			continue
		}

		if !date.Before(cutoff) {
			result.Entries = append(result.Entries, Entry{Path: full, Date: date, Reason: "within retention window"})
			continue
		}

		size, fileCount, err := dirSize(full)
		if err != nil {
			log.WithComponent("retention").Warn().Str("path", full).Err(err).Msg("failed to size directory, skipping")
			continue
		}

		if dryRun {
			result.Entries = append(result.Entries, Entry{Path: full, Date: date, Freed: size, Reason: "would delete (dry-run)"})
			result.FreedBytes += size
			result.DeletedDirs++
			result.DeletedFiles += fileCount
			continue
		}

		if err := os.RemoveAll(full); err != nil {
			log.WithComponent("retention").Warn().Str("path", full).Err(err).Msg("failed to remove expired directory, skipping")
			continue
		}

		result.Entries = append(result.Entries, Entry{Path: full, Date: date, Freed: size, Deleted: true})
		result.FreedBytes += size
		result.DeletedDirs++
		result.DeletedFiles += fileCount
	}

	return result, nil
}

// dirSize walks path recursively and returns the total size in bytes and the
// number of regular files found, matching the {size, file count} pair the
// GC accumulates before deleting.
func dirSize(path string) (int64, int, error) {
	var total int64
	var count int
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
			count++
		}
		return nil
	})
	return total, count, err
}

// FormatBytes renders n bytes in the largest whole unit (B/KB/MB/GB/TB),
// matching the original implementation's human-readable GC summaries.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	units := "KMGTPE"
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), units[exp])
}
