package security

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/FireNirva/quants-fleet/pkg/log"
	"github.com/FireNirva/quants-fleet/pkg/types"
)

// VPNDriver establishes the overlay network used for inter-host traffic
// once the base firewall and SSH hardening steps have completed. Two
// implementations exist: a legacy WireGuard-style overlay and a zero-config
// mesh overlay; which one runs is a config choice, not a compile-time one.
type VPNDriver interface {
	Name() string
	Setup(ctx context.Context, runner Runner, host *types.Host, spec types.VPNSpec) error
}

// NewVPNDriver selects the VPNDriver implementation for kind.
func NewVPNDriver(kind types.VPNDriverKind) (VPNDriver, error) {
	switch kind {
	case types.VPNDriverLegacyOverlay:
		return legacyOverlayDriver{}, nil
	case types.VPNDriverMesh:
		return meshDriver{}, nil
	default:
		return nil, fmt.Errorf("unknown vpn driver %q", kind)
	}
}

// legacyOverlayDriver configures a WireGuard-style point-to-point overlay,
// grounded on the original implementation's wireguard_port/vpn_network base
// vars (core/security_manager.py._get_base_vars).
type legacyOverlayDriver struct{}

func (legacyOverlayDriver) Name() string { return "legacy-overlay" }

func (d legacyOverlayDriver) Setup(ctx context.Context, runner Runner, host *types.Host, spec types.VPNSpec) error {
	const cmd = "wg-quick up wg0 || (wg genkey | tee /etc/wireguard/wg0.key && systemctl enable --now wg-quick@wg0)"
	if _, _, err := runner.Run(ctx, host.Name, cmd, 30*time.Second); err != nil {
		return fmt.Errorf("legacy overlay setup on %s: %w", host.Name, err)
	}
	log.WithHost(host.Name).Info().Str("vpn", d.Name()).Msg("legacy overlay established")
	return nil
}

// meshDriver configures a zero-config mesh overlay (CIDR 100.64.0.0/10),
// authenticating with an auth key read from the environment variable named
// by spec.AuthKeyEnv. The key is never logged: log.Redact must be used by
// any caller that echoes VPN config fields.
type meshDriver struct{}

func (meshDriver) Name() string { return "mesh" }

func (d meshDriver) Setup(ctx context.Context, runner Runner, host *types.Host, spec types.VPNSpec) error {
	authKey := os.Getenv(spec.AuthKeyEnv)
	if authKey == "" {
		return fmt.Errorf("mesh vpn: environment variable %s is not set", spec.AuthKeyEnv)
	}

	cmd := fmt.Sprintf("tailscale up --authkey=%s --accept-routes", authKey)
	if _, _, err := runner.Run(ctx, host.Name, cmd, 30*time.Second); err != nil {
		return fmt.Errorf("mesh vpn setup on %s: %w", host.Name, err)
	}

	log.WithHost(host.Name).Info().
		Str("vpn", d.Name()).
		Str("auth_key", log.Redact("auth_key", authKey)).
		Msg("mesh overlay established")
	return nil
}
