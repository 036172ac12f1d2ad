package security_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/FireNirva/quants-fleet/pkg/ledger"
	"github.com/FireNirva/quants-fleet/pkg/security"
	"github.com/FireNirva/quants-fleet/pkg/types"
)

type fakeRunner struct {
	commands []string
}

func (f *fakeRunner) Run(_ context.Context, _, command string, _ time.Duration) (string, int, error) {
	f.commands = append(f.commands, command)
	return "", 0, nil
}

type fakeClock struct {
	slept []time.Duration
}

func (c *fakeClock) Now() time.Time { return time.Unix(0, 0) }
func (c *fakeClock) Sleep(d time.Duration) {
	c.slept = append(c.slept, d)
}

func newTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	led, err := ledger.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { led.Close() })
	return led
}

func TestPipelineMigratesSSHPortAndEnforcesCooldown(t *testing.T) {
	runner := &fakeRunner{}
	clock := &fakeClock{}
	led := newTestLedger(t)

	p := security.New(runner, led, clock, "", nil)

	host := &types.Host{Name: "trader-01", SSHPort: 22}
	spec := &types.SecuritySpec{SSHPort: 6677, MinCooldown: 0}

	err := p.Run(context.Background(), host, spec, nil)
	require.NoError(t, err)

	require.Equal(t, 6677, host.SSHPort, "live ssh port must be updated after hardening")
	require.Len(t, clock.slept, 1)
	require.GreaterOrEqual(t, clock.slept[0], 70*time.Second, "cooldown must never be below 70s even if spec requests less")
}

func TestPipelineSkipsAlreadyCompletedSteps(t *testing.T) {
	runner := &fakeRunner{}
	clock := &fakeClock{}
	led := newTestLedger(t)

	host := &types.Host{Name: "trader-01", SSHPort: 6677}
	require.NoError(t, led.RecordStep(types.SecurityMarker{Host: host.Name, Step: types.StepInitial}))
	require.NoError(t, led.RecordStep(types.SecurityMarker{Host: host.Name, Step: types.StepFirewallBase}))
	require.NoError(t, led.RecordStep(types.SecurityMarker{Host: host.Name, Step: types.StepSSHHardening}))
	require.NoError(t, led.RecordStep(types.SecurityMarker{Host: host.Name, Step: types.StepFail2ban}))

	p := security.New(runner, led, clock, "", nil)
	spec := &types.SecuritySpec{SSHPort: 6677}
	vpn := &types.VPNSpec{Network: "10.0.1.0/24"}

	err := p.Run(context.Background(), host, spec, vpn)
	require.NoError(t, err)

	require.Len(t, clock.slept, 0, "cooldown must not re-apply when hardening was already recorded")
	require.Len(t, runner.commands, 1, "only the un-recorded vpn-firewall step should run")
}

func TestRunServiceFirewallIsIdempotent(t *testing.T) {
	runner := &fakeRunner{}
	clock := &fakeClock{}
	led := newTestLedger(t)

	host := &types.Host{Name: "trader-01", SSHPort: 6677}
	p := security.New(runner, led, clock, "", nil)

	require.NoError(t, p.RunServiceFirewall(context.Background(), host, types.ServiceKindDataCollector))
	require.Len(t, runner.commands, 1)

	require.NoError(t, p.RunServiceFirewall(context.Background(), host, types.ServiceKindDataCollector))
	require.Len(t, runner.commands, 1, "second call against an already-recorded host must issue no further commands")
}

func TestRunServiceFirewallWithoutRulesDirStillRuns(t *testing.T) {
	runner := &fakeRunner{}
	clock := &fakeClock{}
	led := newTestLedger(t)

	host := &types.Host{Name: "trader-01", SSHPort: 6677}
	p := security.New(runner, led, clock, "", nil)

	err := p.RunServiceFirewall(context.Background(), host, types.ServiceKindMonitor)
	require.NoError(t, err, "a missing service-kind rules profile must not fail the step")
	require.Len(t, runner.commands, 1)
}

func TestRunVerifyRunsIndependentlyOfRun(t *testing.T) {
	runner := &fakeRunner{}
	clock := &fakeClock{}
	led := newTestLedger(t)

	host := &types.Host{Name: "trader-01", SSHPort: 6677}
	p := security.New(runner, led, clock, "", nil)
	spec := &types.SecuritySpec{SSHPort: 6677}

	require.NoError(t, p.RunVerify(context.Background(), host, spec))
	require.Len(t, runner.commands, 1)

	require.NoError(t, p.RunVerify(context.Background(), host, spec))
	require.Len(t, runner.commands, 1, "verify must not re-run once recorded")
}

func TestPipelineIsIdempotentOnSecondRun(t *testing.T) {
	runner := &fakeRunner{}
	clock := &fakeClock{}
	led := newTestLedger(t)

	p := security.New(runner, led, clock, "", nil)
	host := &types.Host{Name: "trader-01", SSHPort: 22}
	spec := &types.SecuritySpec{SSHPort: 6677}

	require.NoError(t, p.Run(context.Background(), host, spec, nil))
	firstRunCommandCount := len(runner.commands)

	require.NoError(t, p.Run(context.Background(), host, spec, nil))
	require.Equal(t, firstRunCommandCount, len(runner.commands), "re-run against an already-hardened host must issue no further commands")
}
