// Package security implements the hardening pipeline: an ordered,
// marker-guarded state machine that takes a freshly provisioned host
// through firewall setup, SSH port migration, fail2ban, VPN and service
// firewall rules, and final verification. Grounded on the original
// implementation's core/security_manager.py.
package security

import (
	"context"
	"fmt"
	"time"

	"github.com/FireNirva/quants-fleet/pkg/config"
	"github.com/FireNirva/quants-fleet/pkg/ledger"
	"github.com/FireNirva/quants-fleet/pkg/log"
	"github.com/FireNirva/quants-fleet/pkg/metrics"
	"github.com/FireNirva/quants-fleet/pkg/types"
)

// Runner is the subset of the remote execution engine the pipeline needs.
type Runner interface {
	Run(ctx context.Context, host, command string, timeout time.Duration) (stdout string, exitCode int, err error)
}

// stepOrder is the fixed sequence Run advances a host through. Order is
// significant: firewall rules must exist before SSH hardening migrates the
// port, and fail2ban must be in place before the VPN firewall rule widens
// access. StepServiceFirewall and StepVerify are not part of this sequence:
// the former runs once per deployed service kind from RunServiceFirewall
// after that service's deployer reports success, and the latter runs once
// per host from RunVerify after the whole Service phase completes, per the
// ordering constraint Secure.5 < Service* < Secure.6 < Secure.7.
var stepOrder = []types.SecurityStep{
	types.StepInitial,
	types.StepFirewallBase,
	types.StepSSHHardening,
	types.StepFail2ban,
	types.StepVPNFirewall,
}

// Pipeline drives a host through stepOrder, skipping any step already
// recorded as complete in the ledger (and, for every step except verify, any
// step whose on-host marker file already exists) so re-running the pipeline
// against an already-hardened host is a no-op.
type Pipeline struct {
	runner    Runner
	ledger    *ledger.Ledger
	clock     Clock
	rulesDir  string
	vpnDriver VPNDriver
}

// New builds a Pipeline. vpnDriver may be nil, in which case StepVPNFirewall
// only opens the VPN network's firewall rule (when a VPN section is given)
// and records its marker; no driver setup runs.
func New(runner Runner, led *ledger.Ledger, clock Clock, rulesDir string, vpnDriver VPNDriver) *Pipeline {
	if clock == nil {
		clock = SystemClock()
	}
	return &Pipeline{runner: runner, ledger: led, clock: clock, rulesDir: rulesDir, vpnDriver: vpnDriver}
}

// Run advances host through every step of stepOrder that has not already
// completed, applying spec's rules-profile-derived configuration. service
// rules, when set, may widen the firewall for a service this host is about
// to run; its SSHPort field is honored only at StepFirewallBase (to
// pre-open the post-migration port) and is always overridden by the host's
// live SSH port from StepServiceFirewall onward.
func (p *Pipeline) Run(ctx context.Context, host *types.Host, spec *types.SecuritySpec, vpn *types.VPNSpec) error {
	var serviceRules *config.RulesProfile
	if spec.RulesProfile != "" && p.rulesDir != "" {
		rules, err := config.LoadRulesProfile(p.rulesDir, spec.RulesProfile)
		if err != nil {
			return fmt.Errorf("load rules profile for %s: %w", host.Name, err)
		}
		serviceRules = rules
	}

	for _, step := range stepOrder {
		step := step
		err := p.runAndRecord(ctx, host, step, func() error {
			return p.runStep(ctx, host, spec, vpn, serviceRules, step)
		})
		if err != nil {
			return err
		}
		if step == types.StepSSHHardening {
			if err := p.enforceCooldown(host, spec); err != nil {
				return err
			}
		}
	}

	return nil
}

// RunServiceFirewall runs (or skips, if already recorded) step 6 of the
// pipeline for host: it loads a rules profile specific to kind (falling back
// to no profile if none exists for that service kind) and merges it into the
// live firewall rules. Called from the Service phase once a service deploy
// on host succeeds, never from Run.
func (p *Pipeline) RunServiceFirewall(ctx context.Context, host *types.Host, kind types.ServiceKind) error {
	var rules *config.RulesProfile
	if p.rulesDir != "" {
		r, err := config.LoadRulesProfile(p.rulesDir, string(kind))
		if err == nil {
			rules = r
		} else {
			log.WithHost(host.Name).Debug().Str("kind", string(kind)).Msg("no service-kind-specific rules profile, proceeding without one")
		}
	}

	return p.runAndRecord(ctx, host, types.StepServiceFirewall, func() error {
		return p.stepServiceFirewall(ctx, host, rules)
	})
}

// RunVerify runs (or skips, if already recorded) step 7 of the pipeline for
// host: the final re-inspection of markers, listening ports, and firewall
// state. Called once per host after the entire Service phase completes.
func (p *Pipeline) RunVerify(ctx context.Context, host *types.Host, spec *types.SecuritySpec) error {
	return p.runAndRecord(ctx, host, types.StepVerify, func() error {
		return p.stepVerify(ctx, host, spec)
	})
}

// runAndRecord consults the ledger for step's local completion marker,
// skipping the step if already recorded, and otherwise times and runs fn,
// recording a fresh marker on success.
func (p *Pipeline) runAndRecord(ctx context.Context, host *types.Host, step types.SecurityStep, fn func() error) error {
	done, err := p.ledger.HasCompleted(host.Name, step)
	if err != nil {
		return fmt.Errorf("check ledger for %s/%s: %w", host.Name, step, err)
	}
	if done {
		log.WithHost(host.Name).Debug().Str("step", string(step)).Msg("step already completed, skipping")
		return nil
	}

	timer := metrics.NewTimer()
	stepErr := fn()
	timer.ObserveDurationVec(metrics.SecurityStepDuration, string(step))

	if stepErr != nil {
		metrics.SecurityStepsTotal.WithLabelValues(string(step), "failed").Inc()
		return fmt.Errorf("security step %s failed on %s: %w", step, host.Name, stepErr)
	}

	metrics.SecurityStepsTotal.WithLabelValues(string(step), "ok").Inc()
	if err := p.ledger.RecordStep(types.SecurityMarker{Host: host.Name, Step: step, AppliedAt: p.clock.Now()}); err != nil {
		return fmt.Errorf("record marker for %s/%s: %w", host.Name, step, err)
	}
	return nil
}

// enforceCooldown waits spec.MinCooldown, but never less than 70s (the
// original implementation's fixed wait), after SSH port migration before the
// pipeline proceeds, giving sshd time to settle on the new port and
// avoiding tripping the remote iptables recent-connections rule with an
// immediate reconnect.
func (p *Pipeline) enforceCooldown(host *types.Host, spec *types.SecuritySpec) error {
	cooldown := spec.MinCooldown
	if cooldown < 70*time.Second {
		cooldown = 70 * time.Second
	}
	log.WithHost(host.Name).Info().Dur("cooldown", cooldown).Msg("waiting for sshd to settle after port migration")
	p.clock.Sleep(cooldown)
	return nil
}
