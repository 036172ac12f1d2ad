package orchestrator_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/FireNirva/quants-fleet/pkg/deploy"
	"github.com/FireNirva/quants-fleet/pkg/events"
	"github.com/FireNirva/quants-fleet/pkg/ledger"
	"github.com/FireNirva/quants-fleet/pkg/orchestrator"
	"github.com/FireNirva/quants-fleet/pkg/security"
	"github.com/FireNirva/quants-fleet/pkg/types"
)

type fakeRunner struct {
	failHosts map[string]bool
}

func (f *fakeRunner) Run(_ context.Context, host, _ string, _ time.Duration) (string, int, error) {
	if f.failHosts[host] {
		return "", 1, nil
	}
	return "", 0, nil
}

func (f *fakeRunner) Put(_ context.Context, _, _, _ string) error { return nil }

type fakeClock struct{}

func (fakeClock) Now() time.Time  { return time.Unix(0, 0) }
func (fakeClock) Sleep(time.Duration) {}

func testEnv() *types.Environment {
	return &types.Environment{
		Name: "trading-fleet",
		Hosts: []*types.Host{
			{Name: "trader-01", Address: "10.0.0.1", SSHPort: 22},
			{Name: "trader-02", Address: "10.0.0.2", SSHPort: 22},
		},
		Security: &types.SecuritySpec{SSHPort: 6677, MinCooldown: 0},
		Services: []*types.ServiceWorkItem{
			{Kind: types.ServiceKindDataCollector, Target: "trader-01"},
		},
	}
}

func newOrchestrator(t *testing.T, runner *fakeRunner) *orchestrator.Orchestrator {
	t.Helper()
	led, err := ledger.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { led.Close() })

	pipeline := security.New(runner, led, fakeClock{}, "", nil)
	registry := deploy.NewRegistry(runner, nil)
	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	return orchestrator.New(runner, pipeline, registry, led, broker)
}

func TestRunSucceedsAcrossAllPhases(t *testing.T) {
	runner := &fakeRunner{failHosts: map[string]bool{}}
	o := newOrchestrator(t, runner)
	o.MaxHostConcurrency = 4

	result := o.Run(context.Background(), testEnv())

	require.NoError(t, result.Err)
	require.Len(t, result.Phases, 5)
	require.Equal(t, types.PhasePlan, result.Phases[0].Phase)
	require.Equal(t, types.PhaseSummarize, result.Phases[4].Phase)

	serviceResult := result.Phases[3]
	require.Equal(t, types.PhaseService, serviceResult.Phase)
	require.Contains(t, serviceResult.HostsOK, "trader-01")
}

func TestRunIsolatesOneHostsProvisionFailure(t *testing.T) {
	runner := &fakeRunner{failHosts: map[string]bool{"trader-02": true}}
	o := newOrchestrator(t, runner)

	result := o.Run(context.Background(), testEnv())

	require.Error(t, result.Err)
	provision := result.Phases[1]
	require.Equal(t, types.PhaseProvision, provision.Phase)
	require.Contains(t, provision.HostsOK, "trader-01")
	require.Contains(t, provision.HostsFailed, "trader-02")

	secure := result.Phases[2]
	require.Contains(t, secure.HostsOK, "trader-01")
	require.NotContains(t, secure.HostsOK, "trader-02")
}

func TestDryRunStopsAfterPlan(t *testing.T) {
	runner := &fakeRunner{}
	o := newOrchestrator(t, runner)
	o.DryRun = true

	result := o.Run(context.Background(), testEnv())

	require.NoError(t, result.Err)
	require.Len(t, result.Phases, 1)
	require.Equal(t, types.PhasePlan, result.Phases[0].Phase)
}

func TestHostResolverResolvesDeclaredHosts(t *testing.T) {
	env := testEnv()
	resolve := orchestrator.HostResolver(env)

	target, err := resolve("trader-01")
	require.NoError(t, err)
	require.Equal(t, "10.0.0.1", target.Address)

	_, err = resolve("does-not-exist")
	require.Error(t, err)
}
