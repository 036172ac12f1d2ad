package remote

import (
	"errors"
	"fmt"
)

// Kind classifies why a remote execution call failed, letting callers
// (retry logic, the security pipeline, the CLI's exit-code mapping) branch
// on failure category without string-matching error text.
type Kind string

const (
	// KindTimeout means the operation did not complete within its deadline.
	KindTimeout Kind = "timeout"

	// KindAuth means the SSH handshake or authentication failed.
	KindAuth Kind = "auth"

	// KindNetwork means the TCP dial or connection was refused/reset/unreachable.
	KindNetwork Kind = "network"

	// KindRemoteNonzero means the remote command ran but exited nonzero.
	KindRemoteNonzero Kind = "remote-nonzero"

	// KindRunnerMissing means a required local tool (rsync, ansible-runner)
	// was not found on PATH.
	KindRunnerMissing Kind = "runner-missing"

	// KindRateLimited means the call was rejected by the per-host connection
	// rate limiter before a dial was even attempted.
	KindRateLimited Kind = "rate-limited"

	// KindCancelled means the caller's context was cancelled.
	KindCancelled Kind = "cancelled"
)

// Error wraps a remote engine failure with its Kind, the host it concerns,
// and the underlying cause, so errors.Is/errors.As keep working across the
// engine boundary.
type Error struct {
	Kind Kind
	Host string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("remote: %s on %s: %s", e.Op, e.Host, e.Kind)
	}
	return fmt.Sprintf("remote: %s on %s: %s: %v", e.Op, e.Host, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an *Error, the constructor every engine method funnels its
// failures through.
func NewError(kind Kind, host, op string, err error) *Error {
	return &Error{Kind: kind, Host: host, Op: op, Err: err}
}

// IsKind reports whether err wraps a *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	var re *Error
	if !errors.As(err, &re) {
		return false
	}
	return re.Kind == kind
}
