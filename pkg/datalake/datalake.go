// Package datalake coordinates one data-lake profile's pull-based sync
// cycle (checkpoint load -> transfer -> checkpoint save -> retention GC) and
// drives the fleet's full set of profiles, grounded on the original
// implementation's core/data_lake/syncer.py at the coordination level.
package datalake

import (
	"context"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/FireNirva/quants-fleet/pkg/checkpoint"
	"github.com/FireNirva/quants-fleet/pkg/log"
	"github.com/FireNirva/quants-fleet/pkg/metrics"
	"github.com/FireNirva/quants-fleet/pkg/retention"
	"github.com/FireNirva/quants-fleet/pkg/transfer"
	"github.com/FireNirva/quants-fleet/pkg/types"
)

// Coordinator runs sync cycles for data-lake profiles.
type Coordinator struct {
	sshUser string
}

// NewCoordinator builds a Coordinator. sshUser is the remote user for every
// profile's transfer; a profile carries no user of its own.
func NewCoordinator(sshUser string) *Coordinator {
	return &Coordinator{sshUser: sshUser}
}

// SyncProfile runs a single sync cycle for p: load the previous checkpoint
// (logged only; the sync always runs), ensure the local directory exists,
// pull new data via rsync, persist the checkpoint, then run retention GC if
// the transfer did not fail outright.
func (c *Coordinator) SyncProfile(ctx context.Context, p types.Profile) types.SyncResult {
	logger := log.WithProfile(p.Name)
	start := time.Now()
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.SyncDuration, p.Name)

	if !p.Enabled {
		logger.Info().Msg("profile disabled, skipping sync")
		metrics.SyncsTotal.WithLabelValues(p.Name, string(types.TransferSkipped)).Inc()
		return types.SyncResult{Profile: p.Name, Status: types.TransferSkipped, Duration: time.Since(start)}
	}

	if prev, err := checkpoint.Load(p.CheckpointFile); err != nil {
		logger.Warn().Err(err).Msg("failed to load previous checkpoint")
	} else if !prev.LastSyncTime.IsZero() {
		logger.Info().Time("last_sync", prev.LastSyncTime).Str("last_status", string(prev.Status)).Msg("previous checkpoint loaded")
	}

	if !p.DryRun {
		if err := os.MkdirAll(p.LocalPath, 0o755); err != nil {
			metrics.SyncsTotal.WithLabelValues(p.Name, "failed").Inc()
			return types.SyncResult{Profile: p.Name, Status: types.TransferFailed, Err: err, Duration: time.Since(start)}
		}
	}

	req := transfer.Request{
		RemoteHost:   p.RemoteHost,
		RemoteRoot:   p.RemoteRoot,
		LocalPath:    p.LocalPath,
		SSHUser:      c.sshUser,
		SSHKeyPath:   p.SSHKeyPath,
		SSHPort:      p.SSHPort,
		TransferArgs: p.TransferArgs,
		DryRun:       p.DryRun,
		Verbose:      true,
	}

	stats, status, transferErr := transfer.Run(ctx, req)

	cp := types.Checkpoint{
		ProfileName:     p.Name,
		LastSyncTime:    time.Now(),
		Status:          status,
		DurationSeconds: time.Since(start).Seconds(),
		FilesSynced:     stats.FilesTransferred,
		BytesSynced:     stats.BytesTransferred,
	}
	if transferErr != nil {
		cp.Errors = []string{transferErr.Error()}
	}

	// A cancelled cycle leaves the previous checkpoint in place.
	if !p.DryRun && ctx.Err() == nil {
		if err := checkpoint.Save(p.CheckpointFile, cp); err != nil {
			logger.Error().Err(err).Msg("failed to save checkpoint")
		}
	}

	metrics.SyncsTotal.WithLabelValues(p.Name, string(status)).Inc()
	metrics.SyncFilesTransferred.WithLabelValues(p.Name).Add(float64(stats.FilesTransferred))
	metrics.SyncBytesTransferred.WithLabelValues(p.Name).Add(float64(stats.BytesTransferred))

	result := types.SyncResult{
		Profile:     p.Name,
		Status:      status,
		FilesSynced: stats.FilesTransferred,
		BytesSynced: stats.BytesTransferred,
		Duration:    time.Since(start),
		Err:         transferErr,
	}

	if status == types.TransferFailed {
		logger.Error().Err(transferErr).Msg("sync failed, skipping retention GC")
		return result
	}

	gcResult, err := retention.Run(p.LocalPath, p.RetentionDays, p.DryRun)
	if err != nil {
		logger.Warn().Err(err).Msg("retention GC failed")
	} else {
		result.RetentionFreedBytes = gcResult.FreedBytes
		metrics.RetentionFreedBytes.WithLabelValues(p.Name).Add(float64(gcResult.FreedBytes))
	}

	logger.Info().
		Str("status", string(status)).
		Int("files", result.FilesSynced).
		Int64("bytes", result.BytesSynced).
		Int64("freed", result.RetentionFreedBytes).
		Msg("sync cycle complete")

	return result
}

// SyncAll runs SyncProfile for every profile, continuing past per-profile
// failures and aggregating them: an explicit decision that a broken data
// feed for one exchange pair must not block replication of the others.
func (c *Coordinator) SyncAll(ctx context.Context, profiles []types.Profile) ([]types.SyncResult, error) {
	results := make([]types.SyncResult, 0, len(profiles))
	var errs *multierror.Error

	for _, p := range profiles {
		result := c.SyncProfile(ctx, p)
		results = append(results, result)
		if result.Err != nil {
			errs = multierror.Append(errs, result.Err)
		}
	}

	return results, errs.ErrorOrNil()
}
