// Package stats aggregates data-lake profile statistics: local directory
// size and date coverage plus host disk usage, grounded on the original
// implementation's core/data_lake/stats.py.
package stats

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v3/disk"

	"github.com/FireNirva/quants-fleet/pkg/checkpoint"
	"github.com/FireNirva/quants-fleet/pkg/retention"
	"github.com/FireNirva/quants-fleet/pkg/types"
)

// DirStats summarizes one profile's local replica directory tree.
type DirStats struct {
	TotalBytes int64
	FileCount  int
	EarliestDate time.Time
	LatestDate   time.Time
	HasDatedDirs bool
}

// calculateDirStats walks localPath recursively, matching the original
// implementation's rglob-based traversal.
func calculateDirStats(localPath string) (DirStats, error) {
	var s DirStats
	var dates []time.Time

	entries, err := os.ReadDir(localPath)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, err
	}

	for _, e := range entries {
		full := filepath.Join(localPath, e.Name())
		if e.IsDir() {
			sub, err := calculateDirStats(full)
			if err != nil {
				continue
			}
			s.TotalBytes += sub.TotalBytes
			s.FileCount += sub.FileCount
			dates = append(dates, sub.datesSlice()...)
		} else {
			info, err := e.Info()
			if err == nil {
				s.TotalBytes += info.Size()
				s.FileCount++
			}
		}
	}

	if d, ok := dateFromName(filepath.Base(localPath)); ok {
		dates = append(dates, d)
	}

	if len(dates) > 0 {
		sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
		s.EarliestDate = dates[0]
		s.LatestDate = dates[len(dates)-1]
		s.HasDatedDirs = true
	}

	return s, nil
}

func (s DirStats) datesSlice() []time.Time {
	if !s.HasDatedDirs {
		return nil
	}
	return []time.Time{s.EarliestDate, s.LatestDate}
}

// dateFromName delegates to retention's date extraction so the date range
// reported here matches exactly what the GC would treat as that directory's
// age.
func dateFromName(name string) (time.Time, bool) {
	return retention.ExtractDate(name)
}

// ProfileStats is the full picture of a single data-lake profile: its local
// footprint plus the last recorded sync outcome.
type ProfileStats struct {
	Profile      string
	Dir          DirStats
	LastSyncTime time.Time
	LastStatus   types.TransferStatus
}

// GetProfileStats composes a ProfileStats for p from its local directory
// tree and its checkpoint file.
func GetProfileStats(p types.Profile) (ProfileStats, error) {
	dirStats, err := calculateDirStats(p.LocalPath)
	if err != nil {
		return ProfileStats{}, err
	}

	cp, err := checkpoint.Load(p.CheckpointFile)
	if err != nil {
		return ProfileStats{}, err
	}

	return ProfileStats{
		Profile:      p.Name,
		Dir:          dirStats,
		LastSyncTime: cp.LastSyncTime,
		LastStatus:   cp.Status,
	}, nil
}

// DiskUsage reports free/used/total bytes for the filesystem backing path,
// using gopsutil so the same dependency the teacher carries for host
// resource reporting covers data-lake disk pressure too.
type DiskUsage struct {
	TotalBytes uint64
	UsedBytes  uint64
	FreeBytes  uint64
	UsedPercent float64
}

func GetDiskUsage(path string) (DiskUsage, error) {
	u, err := disk.Usage(path)
	if err != nil {
		return DiskUsage{}, err
	}
	return DiskUsage{
		TotalBytes:  u.Total,
		UsedBytes:   u.Used,
		FreeBytes:   u.Free,
		UsedPercent: u.UsedPercent,
	}, nil
}
