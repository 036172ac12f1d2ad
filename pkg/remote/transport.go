package remote

import "context"

// ExecResult is the outcome of running a single command over a Transport.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Transport is the low-level connection the Engine drives. The production
// implementation is sshTransport (a real SSH session per call, grounded on
// the teacher's SSH-based Machine in the corpus); tests substitute an
// in-memory fake so pkg/remote's retry, timeout, and rate-limit logic can be
// exercised without a live sshd.
type Transport interface {
	// Exec runs command on host and returns its captured output and exit code.
	Exec(ctx context.Context, host Target, command string) (ExecResult, error)

	// Put streams the contents of local to remotePath on host.
	Put(ctx context.Context, host Target, localPath, remotePath string) error

	// Close releases any cached connection the transport holds for host.
	Close(host Target) error
}

// Target identifies the SSH endpoint a Transport call addresses.
type Target struct {
	Host    string // logical host name, used for logging/metrics/rate limiting
	Address string // host address to dial; Port is appended when nonzero
	User    string
	KeyPath string
	Port    int
}
