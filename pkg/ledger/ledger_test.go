package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/FireNirva/quants-fleet/pkg/ledger"
	"github.com/FireNirva/quants-fleet/pkg/types"
)

func TestRecordStepAndHasCompleted(t *testing.T) {
	l, err := ledger.Open(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	done, err := l.HasCompleted("trader-01", types.StepFirewallBase)
	require.NoError(t, err)
	require.False(t, done)

	require.NoError(t, l.RecordStep(types.SecurityMarker{
		Host:      "trader-01",
		Step:      types.StepFirewallBase,
		AppliedAt: time.Now(),
	}))

	done, err = l.HasCompleted("trader-01", types.StepFirewallBase)
	require.NoError(t, err)
	require.True(t, done)

	done, err = l.HasCompleted("trader-02", types.StepFirewallBase)
	require.NoError(t, err)
	require.False(t, done)
}

func TestMarkersForHostScopesByHostPrefix(t *testing.T) {
	l, err := ledger.Open(t.TempDir())
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.RecordStep(types.SecurityMarker{Host: "trader-01", Step: types.StepInitial, AppliedAt: time.Now()}))
	require.NoError(t, l.RecordStep(types.SecurityMarker{Host: "trader-01", Step: types.StepVerify, AppliedAt: time.Now()}))
	require.NoError(t, l.RecordStep(types.SecurityMarker{Host: "trader-010", Step: types.StepInitial, AppliedAt: time.Now()}))

	markers, err := l.MarkersForHost("trader-01")
	require.NoError(t, err)
	require.Len(t, markers, 2)
}

func TestRecordStepPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	l, err := ledger.Open(dir)
	require.NoError(t, err)
	require.NoError(t, l.RecordStep(types.SecurityMarker{Host: "trader-01", Step: types.StepVerify, AppliedAt: time.Now()}))
	require.NoError(t, l.Close())

	l2, err := ledger.Open(dir)
	require.NoError(t, err)
	defer l2.Close()

	done, err := l2.HasCompleted("trader-01", types.StepVerify)
	require.NoError(t, err)
	require.True(t, done)
}
