// Package remote abstracts the fleet's remote execution surface: running a
// command on a host, copying a file to it, and invoking an Ansible
// playbook against an inventory, all with timeouts, with retries for exec
// and put, and with per-host SSH dial rate limiting.
package remote

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/FireNirva/quants-fleet/pkg/inventory"
	"github.com/FireNirva/quants-fleet/pkg/log"
	"github.com/FireNirva/quants-fleet/pkg/metrics"
)

// HostResolver maps a logical host name to the SSH Target used to reach it.
// Implemented by pkg/orchestrator.HostResolver over an environment's hosts.
type HostResolver func(host string) (Target, error)

// Engine is the fleet's remote execution engine: exec, put, and
// run_playbook, each timed out per the caller's deadline. exec and put are
// retried on transient failure; run_playbook runs once.
type Engine struct {
	transport  Transport
	resolve    HostResolver
	maxRetries int
	retryDelay time.Duration

	// ansibleRunnerBin is the external binary invoked for RunPlaybook,
	// normally "ansible-playbook".
	ansibleRunnerBin string
}

// Option configures an Engine.
type Option func(*Engine)

// WithRetries overrides the default retry count for transient failures
// (timeout, network, rate-limited). Auth and remote-nonzero failures are
// never retried.
func WithRetries(n int, delay time.Duration) Option {
	return func(e *Engine) {
		e.maxRetries = n
		e.retryDelay = delay
	}
}

// WithAnsibleRunnerBin overrides the ansible-playbook binary path.
func WithAnsibleRunnerBin(bin string) Option {
	return func(e *Engine) { e.ansibleRunnerBin = bin }
}

// NewEngine builds an Engine over transport, resolving host names via
// resolve.
func NewEngine(transport Transport, resolve HostResolver, opts ...Option) *Engine {
	e := &Engine{
		transport:        transport,
		resolve:          resolve,
		maxRetries:       2,
		retryDelay:       2 * time.Second,
		ansibleRunnerBin: "ansible-playbook",
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// isRetryable reports whether a failure Kind is worth retrying.
func isRetryable(kind Kind) bool {
	switch kind {
	case KindTimeout, KindNetwork, KindRateLimited:
		return true
	default:
		return false
	}
}

// withRetry runs op up to e.maxRetries+1 times, retrying only on a
// retryable *Error and stopping early if ctx is done.
func (e *Engine) withRetry(ctx context.Context, op string, host string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return NewError(KindCancelled, host, op, ctx.Err())
			case <-time.After(e.retryDelay):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var re *Error
		if !errors.As(err, &re) || !isRetryable(re.Kind) {
			return err
		}

		log.WithHost(host).Warn().
			Str("op", op).
			Int("attempt", attempt+1).
			Err(err).
			Msg("remote call failed, retrying")
	}
	return lastErr
}

// Exec runs command on host with the given overall timeout (including
// retries) and returns the full ExecResult.
func (e *Engine) Exec(ctx context.Context, host, command string, timeout time.Duration) (ExecResult, error) {
	target, err := e.resolve(host)
	if err != nil {
		return ExecResult{}, NewError(KindNetwork, host, "exec", err)
	}

	timer := metrics.NewTimer()
	var result ExecResult
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	runErr := e.withRetry(execCtx, "exec", host, func() error {
		r, err := e.transport.Exec(execCtx, target, command)
		result = r
		return err
	})
	timer.ObserveDurationVec(metrics.RemoteCallDuration, "exec")

	kind := "ok"
	if runErr != nil {
		var re *Error
		if errors.As(runErr, &re) {
			kind = string(re.Kind)
		} else {
			kind = "unknown"
		}
	}
	metrics.RemoteCallsTotal.WithLabelValues("exec", kind).Inc()

	return result, runErr
}

// Run adapts Exec to the simpler (stdout, exitCode, err) shape used by
// pkg/health and pkg/deploy, both of which only need the command's outcome,
// not the raw ExecResult.
func (e *Engine) Run(ctx context.Context, host, command string, timeout time.Duration) (string, int, error) {
	result, err := e.Exec(ctx, host, command, timeout)
	if err != nil {
		var re *Error
		if errors.As(err, &re) && re.Kind == KindRemoteNonzero {
			return result.Stdout, result.ExitCode, nil
		}
		return result.Stdout, result.ExitCode, err
	}
	return result.Stdout, result.ExitCode, nil
}

// Put copies localPath to remotePath on host.
func (e *Engine) Put(ctx context.Context, host, localPath, remotePath string) error {
	target, err := e.resolve(host)
	if err != nil {
		return NewError(KindNetwork, host, "put", err)
	}

	timer := metrics.NewTimer()
	runErr := e.withRetry(ctx, "put", host, func() error {
		return e.transport.Put(ctx, target, localPath, remotePath)
	})
	timer.ObserveDurationVec(metrics.RemoteCallDuration, "put")

	kind := "ok"
	if runErr != nil {
		var re *Error
		if errors.As(runErr, &re) {
			kind = string(re.Kind)
		}
	}
	metrics.RemoteCallsTotal.WithLabelValues("put", kind).Inc()
	return runErr
}

// PlaybookRequest describes a single run_playbook invocation.
type PlaybookRequest struct {
	Playbook  string
	Hosts     []inventory.Host
	ExtraVars map[string]string
	Timeout   time.Duration
}

// RunPlaybook materializes an Ansible inventory for req.Hosts, writes it and
// req.ExtraVars to a temp directory, and runs ansible-playbook against it.
// Grounded on the original implementation's ansible_runner.run_playbook,
// which also builds a scratch inventory/extra-vars directory per call.
func (e *Engine) RunPlaybook(ctx context.Context, req PlaybookRequest) error {
	dir, cleanup, err := inventory.WriteTempInventory(req.Hosts, req.ExtraVars)
	if err != nil {
		return NewError(KindRunnerMissing, "", "run_playbook", err)
	}
	defer cleanup()

	timer := metrics.NewTimer()

	runCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	args := []string{
		"-i", dir + "/inventory.yml",
		"-e", "@" + dir + "/extra_vars.yml",
		req.Playbook,
	}
	cmd := exec.CommandContext(runCtx, e.ansibleRunnerBin, args...)

	output, runErr := cmd.CombinedOutput()
	timer.ObserveDurationVec(metrics.RemoteCallDuration, "run_playbook")

	if runErr != nil {
		kind := KindRemoteNonzero
		if runCtx.Err() != nil {
			kind = KindTimeout
		} else if errors.Is(runErr, exec.ErrNotFound) {
			kind = KindRunnerMissing
		}
		metrics.RemoteCallsTotal.WithLabelValues("run_playbook", string(kind)).Inc()
		return NewError(kind, "", "run_playbook", fmt.Errorf("%w: %s", runErr, output))
	}

	metrics.RemoteCallsTotal.WithLabelValues("run_playbook", "ok").Inc()
	return nil
}
