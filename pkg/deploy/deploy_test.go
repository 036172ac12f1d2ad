package deploy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/FireNirva/quants-fleet/pkg/health"
	"github.com/FireNirva/quants-fleet/pkg/types"
)

type noopRunner struct{}

func (noopRunner) Run(_ context.Context, _, _ string, _ time.Duration) (string, int, error) {
	return "", 0, nil
}
func (noopRunner) Put(_ context.Context, _, _, _ string) error { return nil }

func TestRegistryDispatchesByKind(t *testing.T) {
	r := NewRegistry(noopRunner{}, nil)

	_, ok := r.Get(types.ServiceKindMonitor)
	require.True(t, ok)
	_, ok = r.Get(types.ServiceKindDataCollector)
	require.True(t, ok)
	_, ok = r.Get(types.ServiceKindFreqtrade)
	require.True(t, ok)

	err := r.Deploy(context.Background(), types.ServiceWorkItem{Kind: types.ServiceKindDataCollector, Target: "trader-01"})
	require.NoError(t, err)

	err = r.Deploy(context.Background(), types.ServiceWorkItem{Kind: types.ServiceKind("unknown"), Target: "trader-01"})
	require.Error(t, err)
}

func TestAggregateHealth(t *testing.T) {
	require.Equal(t, StatusUnknown, AggregateHealth(nil))

	require.Equal(t, StatusHealthy, AggregateHealth(map[string]health.Result{
		"a": {Healthy: true},
		"b": {Healthy: true},
	}))

	require.Equal(t, StatusDegraded, AggregateHealth(map[string]health.Result{
		"a": {Healthy: true},
		"b": {Healthy: false},
	}))

	require.Equal(t, StatusUnhealthy, AggregateHealth(map[string]health.Result{
		"a": {Healthy: false},
	}))
}
