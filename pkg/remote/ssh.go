package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/time/rate"
)

// sshTransport is the production Transport: one cached *ssh.Client per host,
// dialed lazily and rate-limited per host so a misconfigured fleet can't
// trip the remote iptables recent-connections rule while the engine retries.
//
// File transfer is done by piping through a shell session ("cat > path"),
// the same approach the corpus's coreos-assembler Machine.TransferFile uses,
// rather than opening a separate SFTP subsystem.
type sshTransport struct {
	mu      sync.Mutex
	clients map[string]*ssh.Client
	limiter map[string]*rate.Limiter

	// dialTimeout bounds the TCP dial and SSH handshake.
	dialTimeout time.Duration

	// connRate and connBurst configure the per-host dial rate limiter.
	connRate  rate.Limit
	connBurst int
}

// NewSSHTransport builds a Transport that dials real SSH connections,
// caching one client per host and pacing new dials to connRate per second
// with connBurst allowed immediately.
func NewSSHTransport(dialTimeout time.Duration, connRate rate.Limit, connBurst int) Transport {
	if dialTimeout <= 0 {
		dialTimeout = 30 * time.Second
	}
	if connBurst <= 0 {
		connBurst = 1
	}
	return &sshTransport{
		clients:     make(map[string]*ssh.Client),
		limiter:     make(map[string]*rate.Limiter),
		dialTimeout: dialTimeout,
		connRate:    connRate,
		connBurst:   connBurst,
	}
}

func (t *sshTransport) limiterFor(host string) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.limiter[host]
	if !ok {
		l = rate.NewLimiter(t.connRate, t.connBurst)
		t.limiter[host] = l
	}
	return l
}

func (t *sshTransport) client(ctx context.Context, target Target) (*ssh.Client, error) {
	t.mu.Lock()
	if c, ok := t.clients[target.Host]; ok {
		t.mu.Unlock()
		return c, nil
	}
	t.mu.Unlock()

	limiter := t.limiterFor(target.Host)
	if err := limiter.Wait(ctx); err != nil {
		return nil, NewError(KindRateLimited, target.Host, "dial", err)
	}

	signer, err := loadSigner(target.KeyPath)
	if err != nil {
		return nil, NewError(KindAuth, target.Host, "dial", err)
	}

	cfg := &ssh.ClientConfig{
		User:            target.User,
		Auth:            []ssh.AuthMethod{ssh.PublicKeys(signer)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         t.dialTimeout,
	}

	addr := target.Address
	if target.Port != 0 {
		addr = net.JoinHostPort(target.Address, fmt.Sprintf("%d", target.Port))
	}

	client, err := ssh.Dial("tcp", addr, cfg)
	if err != nil {
		return nil, classifyDialError(target.Host, err)
	}

	t.mu.Lock()
	t.clients[target.Host] = client
	t.mu.Unlock()
	return client, nil
}

func classifyDialError(host string, err error) error {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return NewError(KindTimeout, host, "dial", err)
	}
	return NewError(KindNetwork, host, "dial", err)
}

func loadSigner(keyPath string) (ssh.Signer, error) {
	data, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key %s: %w", keyPath, err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err != nil {
		return nil, fmt.Errorf("parse private key %s: %w", keyPath, err)
	}
	return signer, nil
}

func (t *sshTransport) Exec(ctx context.Context, target Target, command string) (ExecResult, error) {
	client, err := t.client(ctx, target)
	if err != nil {
		return ExecResult{}, err
	}

	session, err := client.NewSession()
	if err != nil {
		return ExecResult{}, NewError(KindNetwork, target.Host, "exec", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() { done <- session.Run(command) }()

	select {
	case <-ctx.Done():
		session.Signal(ssh.SIGKILL)
		return ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}, NewError(KindTimeout, target.Host, "exec", ctx.Err())
	case err := <-done:
		result := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
		if err == nil {
			result.ExitCode = 0
			return result, nil
		}
		if exitErr, ok := err.(*ssh.ExitError); ok {
			result.ExitCode = exitErr.ExitStatus()
			return result, NewError(KindRemoteNonzero, target.Host, "exec", err)
		}
		return result, NewError(KindNetwork, target.Host, "exec", err)
	}
}

// sshPipe streams bytes written to it into the stdin of a remote `cat >
// path` session, mirroring the corpus's sshPipe helper for file transfer
// without SFTP.
type sshPipe struct {
	w       io.WriteCloser
	session *ssh.Session
}

func (p *sshPipe) Write(b []byte) (int, error) { return p.w.Write(b) }

func (p *sshPipe) Close() error {
	p.w.Close()
	err := p.session.Wait()
	p.session.Close()
	return err
}

func (t *sshTransport) Put(ctx context.Context, target Target, localPath, remotePath string) error {
	client, err := t.client(ctx, target)
	if err != nil {
		return err
	}

	session, err := client.NewSession()
	if err != nil {
		return NewError(KindNetwork, target.Host, "put", err)
	}

	stdin, err := session.StdinPipe()
	if err != nil {
		session.Close()
		return NewError(KindNetwork, target.Host, "put", err)
	}

	if err := session.Start(fmt.Sprintf("cat > %s", remotePath)); err != nil {
		session.Close()
		return NewError(KindNetwork, target.Host, "put", err)
	}

	pipe := &sshPipe{w: stdin, session: session}

	f, err := os.Open(localPath)
	if err != nil {
		pipe.Close()
		return NewError(KindRunnerMissing, target.Host, "put", err)
	}
	defer f.Close()

	copyDone := make(chan error, 1)
	go func() {
		_, copyErr := io.Copy(pipe, f)
		copyDone <- pipe.Close()
		_ = copyErr
	}()

	select {
	case <-ctx.Done():
		return NewError(KindTimeout, target.Host, "put", ctx.Err())
	case err := <-copyDone:
		if err != nil {
			return NewError(KindNetwork, target.Host, "put", err)
		}
		return nil
	}
}

func (t *sshTransport) Close(target Target) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.clients[target.Host]
	if !ok {
		return nil
	}
	delete(t.clients, target.Host)
	return c.Close()
}
