package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/FireNirva/quants-fleet/pkg/events"
	"github.com/FireNirva/quants-fleet/pkg/log"
	"github.com/FireNirva/quants-fleet/pkg/metrics"
	"github.com/FireNirva/quants-fleet/pkg/types"
)

const provisionProbeTimeout = 10 * time.Second

// runPlan validates that every host entry in env has a name and an address.
// It does not check service targets; a work item naming an undeclared host
// is reported as failed by the Service phase. It performs no remote calls: a
// plan failure means the environment document itself is broken, not that a
// host is unreachable.
func (o *Orchestrator) runPlan(ctx context.Context, runID string, env *types.Environment) types.PhaseResult {
	result := types.PhaseResult{Phase: types.PhasePlan, StartedAt: time.Now()}
	o.publish(events.EventPhaseStarted, runID, "", "plan")
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.PhaseDuration, string(types.PhasePlan))

	failed := make(map[string]error)
	for _, h := range env.Hosts {
		if h.Name == "" {
			failed["<unnamed>"] = fmt.Errorf("host entry missing name")
			continue
		}
		if h.Address == "" {
			failed[h.Name] = fmt.Errorf("host %s missing address", h.Name)
			continue
		}
		result.HostsOK = append(result.HostsOK, h.Name)
	}

	result.EndedAt = time.Now()
	result.HostsFailed = failed
	metricsPhaseOutcome(types.PhasePlan, failed, len(result.HostsOK))
	if len(failed) > 0 {
		o.publish(events.EventPhaseFailed, runID, "", "plan")
	} else {
		o.publish(events.EventPhaseCompleted, runID, "", "plan")
	}
	return result
}

// runProvision confirms every planned host answers a trivial remote command
// within provisionProbeTimeout, fanning the probes out across hosts.
func (o *Orchestrator) runProvision(ctx context.Context, runID string, env *types.Environment, allowed []string) types.PhaseResult {
	result := types.PhaseResult{Phase: types.PhaseProvision, StartedAt: time.Now()}
	o.publish(events.EventPhaseStarted, runID, "", "provision")
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.PhaseDuration, string(types.PhaseProvision))

	hosts := filterHosts(env, allowed)
	okHosts, failed := o.fanOutHosts(ctx, hosts, func(ctx context.Context, host *types.Host) error {
		_, exitCode, err := o.prober.Run(ctx, host.Name, "true", provisionProbeTimeout)
		if err != nil {
			host.Status = types.HostStatusUnreachable
			o.publish(events.EventHostUnreachable, runID, host.Name, err.Error())
			return err
		}
		if exitCode != 0 {
			host.Status = types.HostStatusUnreachable
			err := fmt.Errorf("probe command exited %d", exitCode)
			o.publish(events.EventHostUnreachable, runID, host.Name, err.Error())
			return err
		}
		host.Status = types.HostStatusReachable
		host.LastSeen = time.Now()
		o.publish(events.EventHostReachable, runID, host.Name, "host reachable")
		return nil
	})

	result.EndedAt = time.Now()
	result.HostsOK = okHosts
	result.HostsFailed = failed
	metricsPhaseOutcome(types.PhaseProvision, failed, len(okHosts))
	if len(failed) > 0 {
		o.publish(events.EventPhaseFailed, runID, "", "provision")
	} else {
		o.publish(events.EventPhaseCompleted, runID, "", "provision")
	}
	return result
}

// runSecure drives the security pipeline across every provisioned host.
func (o *Orchestrator) runSecure(ctx context.Context, runID string, env *types.Environment, allowed []string) types.PhaseResult {
	result := types.PhaseResult{Phase: types.PhaseSecure, StartedAt: time.Now()}
	o.publish(events.EventPhaseStarted, runID, "", "secure")
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.PhaseDuration, string(types.PhaseSecure))

	hosts := filterHosts(env, allowed)
	okHosts, failed := o.fanOutHosts(ctx, hosts, func(ctx context.Context, host *types.Host) error {
		if o.pipeline == nil {
			return fmt.Errorf("no security pipeline configured")
		}
		if err := o.pipeline.Run(ctx, host, env.Security, env.VPN); err != nil {
			return err
		}
		host.Status = types.HostStatusHardened
		o.publish(events.EventHostSecured, runID, host.Name, "host hardened")
		return nil
	})

	result.EndedAt = time.Now()
	result.HostsOK = okHosts
	result.HostsFailed = failed
	metricsPhaseOutcome(types.PhaseSecure, failed, len(okHosts))
	if len(failed) > 0 {
		o.publish(events.EventPhaseFailed, runID, "", "secure")
	} else {
		o.publish(events.EventPhaseCompleted, runID, "", "secure")
	}
	return result
}

// runService deploys every service work item whose target host survived the
// Secure phase, invoking security step 6 (service firewall) for a host right
// after its deploy succeeds, then runs security step 7 (final verify) once
// per surviving host after every deploy has settled. A work item targeting a
// host that failed earlier is skipped and reported as failed, not silently
// dropped.
func (o *Orchestrator) runService(ctx context.Context, runID string, env *types.Environment, allowed []string) types.PhaseResult {
	result := types.PhaseResult{Phase: types.PhaseService, StartedAt: time.Now()}
	o.publish(events.EventPhaseStarted, runID, "", "service")
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.PhaseDuration, string(types.PhaseService))

	allowedSet := make(map[string]bool, len(allowed))
	for _, h := range allowed {
		allowedSet[h] = true
	}

	failed := make(map[string]error)

	type outcome struct {
		host string
		err  error
	}
	results := make(chan outcome, len(env.Services))

	sem := make(chan struct{}, o.concurrencyLimit())

	for _, work := range env.Services {
		work := work
		if !allowedSet[work.Target] {
			results <- outcome{host: work.Target, err: fmt.Errorf("target host did not complete earlier phases")}
			continue
		}
		go func() {
			sem <- struct{}{}
			defer func() { <-sem }()

			var err error
			if o.deployer == nil {
				err = fmt.Errorf("no deployer registry configured")
			} else {
				err = o.deployer.Deploy(ctx, *work)
			}
			if err == nil && o.pipeline != nil {
				if host := findHost(env, work.Target); host != nil {
					if fwErr := o.pipeline.RunServiceFirewall(ctx, host, work.Kind); fwErr != nil {
						err = fmt.Errorf("service firewall for %s: %w", work.Kind, fwErr)
					}
				}
			}
			if err != nil {
				o.publish(events.EventServiceFailed, runID, work.Target, err.Error())
			} else {
				o.publish(events.EventServiceDeployed, runID, work.Target, string(work.Kind))
			}
			results <- outcome{host: work.Target, err: err}
		}()
	}

	collected := 0
	total := len(env.Services)
	for collected < total {
		r := <-results
		collected++
		if r.err != nil {
			failed[r.host] = r.err
		}
	}

	var okHosts []string
	for _, hostName := range allowed {
		if _, alreadyFailed := failed[hostName]; alreadyFailed {
			continue
		}
		host := findHost(env, hostName)
		if host == nil {
			failed[hostName] = fmt.Errorf("final verify: host %s not found in environment", hostName)
			continue
		}
		if o.pipeline == nil {
			failed[hostName] = fmt.Errorf("final verify: no security pipeline configured")
			continue
		}
		if err := o.pipeline.RunVerify(ctx, host, env.Security); err != nil {
			failed[hostName] = fmt.Errorf("final verify: %w", err)
			continue
		}
		okHosts = append(okHosts, hostName)
	}

	result.EndedAt = time.Now()
	result.HostsOK = okHosts
	result.HostsFailed = failed
	metricsPhaseOutcome(types.PhaseService, failed, len(okHosts))
	if len(failed) > 0 {
		o.publish(events.EventPhaseFailed, runID, "", "service")
	} else {
		o.publish(events.EventPhaseCompleted, runID, "", "service")
	}
	return result
}

// findHost resolves name to its *types.Host within env, or nil if no such
// host exists.
func findHost(env *types.Environment, name string) *types.Host {
	for _, h := range env.Hosts {
		if h.Name == name {
			return h
		}
	}
	return nil
}

// runSummarize never fails: it only tallies the preceding phases' results
// for the run's final report.
func (o *Orchestrator) runSummarize(ctx context.Context, runID string, phases []types.PhaseResult) types.PhaseResult {
	result := types.PhaseResult{Phase: types.PhaseSummarize, StartedAt: time.Now()}
	o.publish(events.EventPhaseStarted, runID, "", "summarize")

	logger := log.WithRun(runID)
	for _, p := range phases {
		logger.Info().
			Str("phase", string(p.Phase)).
			Int("hosts_ok", len(p.HostsOK)).
			Int("hosts_failed", len(p.HostsFailed)).
			Dur("duration", p.EndedAt.Sub(p.StartedAt)).
			Msg("phase summary")
		result.HostsOK = append(result.HostsOK, p.HostsOK...)
	}

	result.EndedAt = time.Now()
	o.publish(events.EventPhaseCompleted, runID, "", "summarize")
	return result
}

func (o *Orchestrator) concurrencyLimit() int {
	if o.MaxHostConcurrency > 0 {
		return o.MaxHostConcurrency
	}
	return 8
}
