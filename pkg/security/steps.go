package security

import (
	"context"
	"fmt"
	"time"

	"github.com/FireNirva/quants-fleet/pkg/config"
	"github.com/FireNirva/quants-fleet/pkg/log"
	"github.com/FireNirva/quants-fleet/pkg/types"
)

const stepTimeout = 2 * time.Minute

// markerDir is the on-host directory holding the sentinel files that make
// each security step's completion independently observable on the host
// itself, not just in the operator-side ledger.
const markerDir = "/etc/quants-security"

// markerFile names the on-host marker for every step that writes one.
// StepVerify has none of its own: it only re-inspects the others.
var markerFile = map[types.SecurityStep]string{
	types.StepInitial:         "initial_security_complete",
	types.StepFirewallBase:    "firewall_configured",
	types.StepSSHHardening:    "ssh_hardened",
	types.StepFail2ban:        "fail2ban_installed",
	types.StepVPNFirewall:     "tailscale_firewall_adjusted",
	types.StepServiceFirewall: "service_firewall_adjusted",
}

func markerPath(step types.SecurityStep) string {
	name, ok := markerFile[step]
	if !ok {
		return ""
	}
	return markerDir + "/" + name
}

// withMarker wraps cmd so the marker file is the host-side source of truth
// for completion: if it already exists the step is a no-op (covers a ledger
// that lost its local state reconnecting to an already-hardened host), and
// cmd only ever creates the marker after it has itself succeeded, satisfying
// "marker file exists on host iff step reports success".
func withMarker(marker, cmd string) string {
	return fmt.Sprintf(`test -f %s && exit 0; (%s) && mkdir -p %s && touch %s`, marker, cmd, markerDir, marker)
}

func (p *Pipeline) runStep(ctx context.Context, host *types.Host, spec *types.SecuritySpec, vpn *types.VPNSpec, rules *config.RulesProfile, step types.SecurityStep) error {
	switch step {
	case types.StepInitial:
		return p.stepInitial(ctx, host)
	case types.StepFirewallBase:
		return p.stepFirewallBase(ctx, host, spec, rules)
	case types.StepSSHHardening:
		return p.stepSSHHardening(ctx, host, spec)
	case types.StepFail2ban:
		return p.stepFail2ban(ctx, host, rules)
	case types.StepVPNFirewall:
		return p.stepVPNFirewall(ctx, host, vpn)
	default:
		return fmt.Errorf("unknown security step %q", step)
	}
}

// stepInitial confirms the host is reachable and installs the baseline
// hardening packages (ufw, fail2ban) before any rule is written.
func (p *Pipeline) stepInitial(ctx context.Context, host *types.Host) error {
	cmd := withMarker(markerPath(types.StepInitial), "apt-get update -qq && apt-get install -y -qq ufw fail2ban")
	_, _, err := p.runner.Run(ctx, host.Name, cmd, stepTimeout)
	return err
}

// stepFirewallBase installs the default-deny base firewall policy and opens
// the current SSH port plus, if the service rules profile names a different
// target port, that port too: the only step where a rules-profile-supplied
// ssh_port is honored, since hardening has not migrated the live port yet.
func (p *Pipeline) stepFirewallBase(ctx context.Context, host *types.Host, spec *types.SecuritySpec, rules *config.RulesProfile) error {
	ports := []int{host.SSHPort}
	if rules != nil && rules.SSHPort != 0 && rules.SSHPort != host.SSHPort {
		ports = append(ports, rules.SSHPort)
	}
	if spec.SSHPort != 0 && !containsInt(ports, spec.SSHPort) {
		ports = append(ports, spec.SSHPort)
	}

	cmd := "ufw --force reset && ufw default deny incoming && ufw default allow outgoing"
	for _, port := range ports {
		cmd += fmt.Sprintf(" && ufw allow %d/tcp", port)
	}
	cmd += " && ufw --force enable"

	_, _, err := p.runner.Run(ctx, host.Name, withMarker(markerPath(types.StepFirewallBase), cmd), stepTimeout)
	return err
}

// stepSSHHardening migrates sshd to spec.SSHPort, disables password and root
// login, and restricts auth to public keys. This is the pipeline's most
// dangerous step: it is run while still connected on the host's current
// port, and a failure partway through (sshd restarts before the firewall
// rule for the new port is confirmed) can leave the host unreachable.
// Re-running this step against a host already on spec.SSHPort must be a safe
// no-op, which is why the command checks the live configured port before
// rewriting it.
func (p *Pipeline) stepSSHHardening(ctx context.Context, host *types.Host, spec *types.SecuritySpec) error {
	marker := markerPath(types.StepSSHHardening)
	cmd := fmt.Sprintf(
		`grep -q "^Port %d" /etc/ssh/sshd_config || `+
			`(sed -i 's/^#\?Port .*/Port %d/' /etc/ssh/sshd_config && `+
			`sed -i 's/^#\?PasswordAuthentication .*/PasswordAuthentication no/' /etc/ssh/sshd_config && `+
			`sed -i 's/^#\?PermitRootLogin .*/PermitRootLogin no/' /etc/ssh/sshd_config && `+
			`sed -i 's/^#\?PubkeyAuthentication .*/PubkeyAuthentication yes/' /etc/ssh/sshd_config && `+
			`ufw allow %d/tcp && systemctl restart sshd && mkdir -p %s && touch %s)`,
		spec.SSHPort, spec.SSHPort, spec.SSHPort, markerDir, marker,
	)
	if _, _, err := p.runner.Run(ctx, host.Name, cmd, stepTimeout); err != nil {
		return fmt.Errorf("migrate sshd to port %d: %w", spec.SSHPort, err)
	}

	log.WithHost(host.Name).Info().Int("old_port", host.SSHPort).Int("new_port", spec.SSHPort).Msg("ssh port migrated")
	host.SSHPort = spec.SSHPort
	return nil
}

// stepFail2ban installs jail rules for ssh plus any jails the rules profile
// names.
func (p *Pipeline) stepFail2ban(ctx context.Context, host *types.Host, rules *config.RulesProfile) error {
	jails := []string{"sshd"}
	if rules != nil {
		jails = append(jails, rules.Fail2banJails...)
	}

	cmd := "systemctl enable --now fail2ban"
	for _, jail := range jails {
		cmd += fmt.Sprintf(" && fail2ban-client add %s 2>/dev/null || true", jail)
	}

	_, _, err := p.runner.Run(ctx, host.Name, withMarker(markerPath(types.StepFail2ban), cmd), stepTimeout)
	return err
}

// stepVPNFirewall opens the overlay network's port/CIDR and runs the VPN
// driver's own setup, if one is configured for this environment.
func (p *Pipeline) stepVPNFirewall(ctx context.Context, host *types.Host, vpn *types.VPNSpec) error {
	if vpn == nil {
		return nil
	}

	cmd := fmt.Sprintf("ufw allow from %s", vpn.Network)
	if _, _, err := p.runner.Run(ctx, host.Name, withMarker(markerPath(types.StepVPNFirewall), cmd), stepTimeout); err != nil {
		return fmt.Errorf("open vpn firewall rule: %w", err)
	}

	if p.vpnDriver == nil {
		return nil
	}
	return p.vpnDriver.Setup(ctx, p.runner, host, *vpn)
}

// stepServiceFirewall opens any additional ports the rules profile requests
// for the service this host will run. The live SSH port (host.SSHPort, set
// by stepSSHHardening) is always what gets (re-)allowed here; a stale
// ssh_port value in the rules profile is never honored past this point.
func (p *Pipeline) stepServiceFirewall(ctx context.Context, host *types.Host, rules *config.RulesProfile) error {
	cmd := fmt.Sprintf("ufw allow %d/tcp", host.SSHPort)
	if rules != nil {
		for _, port := range rules.AllowedPorts {
			cmd += fmt.Sprintf(" && ufw allow %d/tcp", port)
		}
	}
	_, _, err := p.runner.Run(ctx, host.Name, withMarker(markerPath(types.StepServiceFirewall), cmd), stepTimeout)
	return err
}

// stepVerify re-inspects the markers of steps 1-4 plus the live firewall and
// sshd state, using the currently effective host.SSHPort rather than
// spec.SSHPort so verification reflects reality even if migration was
// skipped as already-applied on a prior run. It writes no marker of its own.
func (p *Pipeline) stepVerify(ctx context.Context, host *types.Host, spec *types.SecuritySpec) error {
	cmd := fmt.Sprintf(
		"test -f %s && test -f %s && test -f %s && test -f %s && "+
			"ufw status | grep -q 'Status: active' && "+
			"ss -tlnp | grep -q ':%d ' && "+
			"fail2ban-client status sshd >/dev/null 2>&1",
		markerPath(types.StepInitial), markerPath(types.StepFirewallBase),
		markerPath(types.StepSSHHardening), markerPath(types.StepFail2ban),
		host.SSHPort,
	)
	_, exitCode, err := p.runner.Run(ctx, host.Name, cmd, stepTimeout)
	if err != nil {
		return fmt.Errorf("verify security state: %w", err)
	}
	if exitCode != 0 {
		return fmt.Errorf("verify security state: firewall, sshd, or jail not in expected state on port %d", host.SSHPort)
	}
	return nil
}

func containsInt(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
