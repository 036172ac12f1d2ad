package remote_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/FireNirva/quants-fleet/pkg/remote"
)

// fakeTransport lets tests script exactly which calls fail and with what
// Kind, without a live SSH daemon.
type fakeTransport struct {
	execFn func(callNum int) (remote.ExecResult, error)
	calls  atomic.Int32
}

func (f *fakeTransport) Exec(_ context.Context, _ remote.Target, _ string) (remote.ExecResult, error) {
	n := int(f.calls.Add(1))
	return f.execFn(n)
}

func (f *fakeTransport) Put(context.Context, remote.Target, string, string) error { return nil }
func (f *fakeTransport) Close(remote.Target) error                               { return nil }

func resolver(env *remote.Target) remote.HostResolver {
	return func(host string) (remote.Target, error) {
		return remote.Target{Host: host, Address: "10.0.0.1"}, nil
	}
}

func TestExecRetriesOnNetworkFailure(t *testing.T) {
	ft := &fakeTransport{
		execFn: func(n int) (remote.ExecResult, error) {
			if n < 3 {
				return remote.ExecResult{}, remote.NewError(remote.KindNetwork, "trader-01", "exec", errors.New("connection refused"))
			}
			return remote.ExecResult{Stdout: "ok", ExitCode: 0}, nil
		},
	}
	e := remote.NewEngine(ft, resolver(nil), remote.WithRetries(3, time.Millisecond))

	result, err := e.Exec(context.Background(), "trader-01", "true", time.Second)
	require.NoError(t, err)
	require.Equal(t, "ok", result.Stdout)
	require.EqualValues(t, 3, ft.calls.Load())
}

func TestExecDoesNotRetryAuthFailure(t *testing.T) {
	ft := &fakeTransport{
		execFn: func(n int) (remote.ExecResult, error) {
			return remote.ExecResult{}, remote.NewError(remote.KindAuth, "trader-01", "exec", errors.New("permission denied"))
		},
	}
	e := remote.NewEngine(ft, resolver(nil), remote.WithRetries(3, time.Millisecond))

	_, err := e.Exec(context.Background(), "trader-01", "true", time.Second)
	require.Error(t, err)
	require.True(t, remote.IsKind(err, remote.KindAuth))
	require.EqualValues(t, 1, ft.calls.Load())
}

func TestRunSurfacesRemoteNonzeroAsExitCodeNotError(t *testing.T) {
	ft := &fakeTransport{
		execFn: func(n int) (remote.ExecResult, error) {
			return remote.ExecResult{Stdout: "boom", ExitCode: 1}, remote.NewError(remote.KindRemoteNonzero, "trader-01", "exec", errors.New("exit 1"))
		},
	}
	e := remote.NewEngine(ft, resolver(nil), remote.WithRetries(2, time.Millisecond))

	stdout, exitCode, err := e.Run(context.Background(), "trader-01", "false", time.Second)
	require.NoError(t, err)
	require.Equal(t, "boom", stdout)
	require.Equal(t, 1, exitCode)
	require.EqualValues(t, 1, ft.calls.Load())
}

func TestExecStopsRetryingWhenContextCancelled(t *testing.T) {
	ft := &fakeTransport{
		execFn: func(n int) (remote.ExecResult, error) {
			return remote.ExecResult{}, remote.NewError(remote.KindTimeout, "trader-01", "exec", errors.New("timed out"))
		},
	}
	e := remote.NewEngine(ft, resolver(nil), remote.WithRetries(5, 50*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Exec(ctx, "trader-01", "true", time.Second)
	require.Error(t, err)
}
