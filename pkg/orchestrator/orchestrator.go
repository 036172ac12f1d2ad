// Package orchestrator resolves and runs the fleet's declarative deployment
// DAG: Plan -> Provision -> Secure -> Service -> Summarize, fanning work out
// per host within a phase and aggregating partial failures instead of
// aborting the whole run on a single host's failure.
package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/FireNirva/quants-fleet/pkg/deploy"
	"github.com/FireNirva/quants-fleet/pkg/events"
	"github.com/FireNirva/quants-fleet/pkg/ledger"
	"github.com/FireNirva/quants-fleet/pkg/log"
	"github.com/FireNirva/quants-fleet/pkg/metrics"
	"github.com/FireNirva/quants-fleet/pkg/security"
	"github.com/FireNirva/quants-fleet/pkg/types"
)

// Prober is the subset of the remote execution engine used to confirm a
// host is reachable during the Provision phase.
type Prober interface {
	Run(ctx context.Context, host, command string, timeout time.Duration) (stdout string, exitCode int, err error)
}

// Orchestrator runs an Environment through all five phases.
type Orchestrator struct {
	prober   Prober
	pipeline *security.Pipeline
	deployer *deploy.Registry
	ledger   *ledger.Ledger
	broker   *events.Broker

	// MaxHostConcurrency bounds how many hosts are provisioned/secured, or
	// service work items deployed, at once within a phase. Zero means
	// unlimited in Provision and Secure; the Service phase then runs at most
	// 8 deploys at once.
	MaxHostConcurrency int

	// DryRun, when true, runs Plan only and skips every phase with side
	// effects.
	DryRun bool
}

// New builds an Orchestrator from its collaborators.
func New(prober Prober, pipeline *security.Pipeline, deployer *deploy.Registry, led *ledger.Ledger, broker *events.Broker) *Orchestrator {
	return &Orchestrator{
		prober:             prober,
		pipeline:           pipeline,
		deployer:           deployer,
		ledger:             led,
		broker:             broker,
		MaxHostConcurrency: 8,
	}
}

// RunResult is the outcome of a full orchestrator run.
type RunResult struct {
	RunID   string
	Phases  []types.PhaseResult
	Err     error
}

// Run executes every phase of env in order. A phase with per-host failures
// still completes (FleetPartial semantics): later phases proceed only over
// the hosts that succeeded in every phase so far, and the aggregated error
// from all phases is returned at the end via go-multierror so the caller
// sees every host-level failure, not just the first.
func (o *Orchestrator) Run(ctx context.Context, env *types.Environment) RunResult {
	runID := uuid.NewString()
	logger := log.WithRun(runID).With().Str("environment", env.Name).Logger()
	o.publish(events.EventRunStarted, runID, "", fmt.Sprintf("run started for environment %s", env.Name))

	result := RunResult{RunID: runID}
	var errs *multierror.Error

	planResult := o.runPlan(ctx, runID, env)
	result.Phases = append(result.Phases, planResult)
	errs = appendPhaseErrors(errs, planResult)

	if o.DryRun {
		result.Err = errs.ErrorOrNil()
		logger.Info().Msg("dry-run: stopping after plan phase")
		o.publish(events.EventRunCompleted, runID, "", "dry-run complete")
		return result
	}

	liveHosts := hostNames(planResult.HostsOK)

	provisionResult := o.runProvision(ctx, runID, env, liveHosts)
	result.Phases = append(result.Phases, provisionResult)
	errs = appendPhaseErrors(errs, provisionResult)
	liveHosts = provisionResult.HostsOK

	secureResult := o.runSecure(ctx, runID, env, liveHosts)
	result.Phases = append(result.Phases, secureResult)
	errs = appendPhaseErrors(errs, secureResult)
	liveHosts = secureResult.HostsOK

	serviceResult := o.runService(ctx, runID, env, liveHosts)
	result.Phases = append(result.Phases, serviceResult)
	errs = appendPhaseErrors(errs, serviceResult)

	summarizeResult := o.runSummarize(ctx, runID, result.Phases)
	result.Phases = append(result.Phases, summarizeResult)

	result.Err = errs.ErrorOrNil()
	if result.Err != nil {
		o.publish(events.EventRunFailed, runID, "", result.Err.Error())
	} else {
		o.publish(events.EventRunCompleted, runID, "", "run completed")
	}
	return result
}

// Summary renders a human-readable per-phase, per-host report, the
// user-visible counterpart to the run's exit code.
func (r RunResult) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s\n", r.RunID)
	for _, p := range r.Phases {
		fmt.Fprintf(&b, "  %-10s ok=%d failed=%d\n", p.Phase, len(p.HostsOK), len(p.HostsFailed))
		for host, err := range p.HostsFailed {
			fmt.Fprintf(&b, "    - %s: %v\n", host, err)
		}
	}
	if r.Err != nil {
		fmt.Fprintf(&b, "result: FAILED (%v)\n", r.Err)
	} else {
		b.WriteString("result: OK\n")
	}
	return b.String()
}

func appendPhaseErrors(errs *multierror.Error, phase types.PhaseResult) *multierror.Error {
	for host, err := range phase.HostsFailed {
		errs = multierror.Append(errs, fmt.Errorf("%s: host %s: %w", phase.Phase, host, err))
	}
	return errs
}

func hostNames(names []string) []string {
	out := make([]string, len(names))
	copy(out, names)
	return out
}

func (o *Orchestrator) publish(eventType events.EventType, runID, host, message string) {
	if o.broker == nil {
		return
	}
	o.broker.Publish(&events.Event{
		Type:    eventType,
		RunID:   runID,
		Message: message,
		Metadata: map[string]string{
			"host": host,
		},
	})
}

// filterHosts returns the *types.Host entries from env.Hosts whose Name is
// in allowed.
func filterHosts(env *types.Environment, allowed []string) []*types.Host {
	allowedSet := make(map[string]bool, len(allowed))
	for _, h := range allowed {
		allowedSet[h] = true
	}
	var out []*types.Host
	for _, h := range env.Hosts {
		if allowedSet[h.Name] {
			out = append(out, h)
		}
	}
	return out
}

// fanOutHosts runs fn once per host with at most o.MaxHostConcurrency
// goroutines in flight, via errgroup. It never aborts early on a single
// host's error: every host's fn always runs, and failures are collected in
// the returned failed map rather than short-circuiting the group.
func (o *Orchestrator) fanOutHosts(ctx context.Context, hosts []*types.Host, fn func(ctx context.Context, host *types.Host) error) (okHosts []string, failed map[string]error) {
	var g errgroup.Group
	if o.MaxHostConcurrency > 0 {
		g.SetLimit(o.MaxHostConcurrency)
	}

	type outcome struct {
		host string
		err  error
	}
	results := make(chan outcome, len(hosts))

	for _, h := range hosts {
		host := h
		g.Go(func() error {
			err := fn(ctx, host)
			results <- outcome{host: host.Name, err: err}
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	failed = make(map[string]error)
	for r := range results {
		if r.err != nil {
			failed[r.host] = r.err
		} else {
			okHosts = append(okHosts, r.host)
		}
	}
	return okHosts, failed
}

func metricsPhaseOutcome(phase types.PhaseName, failed map[string]error, okCount int) {
	outcome := "ok"
	if len(failed) > 0 {
		if okCount == 0 {
			outcome = "failed"
		} else {
			outcome = "partial"
		}
	}
	metrics.PhaseResultsTotal.WithLabelValues(string(phase), outcome).Inc()
}
