package datalake

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/FireNirva/quants-fleet/pkg/log"
	"github.com/FireNirva/quants-fleet/pkg/types"
)

// Daemon runs SyncAll on a cron schedule, for the `fleetctl data-lake daemon`
// long-running mode.
type Daemon struct {
	coordinator *Coordinator
	cron        *cron.Cron
	profiles    []types.Profile
}

// NewDaemon builds a Daemon that syncs profiles on the given cron
// expression (standard 5-field, e.g. "*/15 * * * *" for every 15 minutes).
func NewDaemon(coordinator *Coordinator, profiles []types.Profile, schedule string) (*Daemon, error) {
	d := &Daemon{
		coordinator: coordinator,
		cron:        cron.New(),
		profiles:    profiles,
	}

	_, err := d.cron.AddFunc(schedule, func() {
		logger := log.WithComponent("datalake-daemon")
		results, err := coordinator.SyncAll(context.Background(), profiles)
		if err != nil {
			logger.Error().Err(err).Msg("sync_all completed with failures")
		}
		for _, r := range results {
			logger.Info().Str("profile", r.Profile).Str("status", string(r.Status)).Msg("scheduled sync finished")
		}
	})
	if err != nil {
		return nil, err
	}

	return d, nil
}

// Start begins the cron scheduler in the background.
func (d *Daemon) Start() { d.cron.Start() }

// Stop stops the scheduler from starting new syncs and returns at once; the
// returned context is done once any in-flight sync has finished.
func (d *Daemon) Stop() context.Context { return d.cron.Stop() }
