// Package transfer drives rsync over SSH for the data-lake syncer's pull
// replication, grounded on the original implementation's
// core/data_lake/syncer.py._build_rsync_command and _parse_rsync_output.
package transfer

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/FireNirva/quants-fleet/pkg/types"
)

// DefaultTimeout bounds a single rsync invocation, matching the original
// implementation's fixed 3600-second ceiling.
const DefaultTimeout = time.Hour

// Request describes a single pull from a remote host/path into a local
// directory.
type Request struct {
	RemoteHost   string
	RemoteRoot   string
	LocalPath    string
	SSHUser      string
	SSHKeyPath   string
	SSHPort      int
	TransferArgs []string
	DryRun       bool
	Verbose      bool
	Timeout      time.Duration
}

// rsyncBin is overridable in tests.
var rsyncBin = "rsync"

// DefaultRsyncArgs mirrors the original implementation's default rsync
// argument set (syncer.py), used whenever a profile does not supply its own
// rsync_args.
var DefaultRsyncArgs = []string{"-az", "--partial", "--inplace"}

// ensureTrailingSlash mirrors the original implementation's normalization of
// both remote_root and local_path: rsync treats "a/b" and "a/b/" as the
// contents-vs-directory distinction, and this syncer always wants the
// contents-of copied, never nested one level deeper.
func ensureTrailingSlash(path string) string {
	if strings.HasSuffix(path, "/") {
		return path
	}
	return path + "/"
}

func buildArgs(req Request) []string {
	base := req.TransferArgs
	if len(base) == 0 {
		base = DefaultRsyncArgs
	}
	args := append([]string{}, base...)
	args = append(args, "--stats")
	if req.Verbose {
		args = append(args, "--verbose", "--progress")
	}
	if req.DryRun {
		args = append(args, "--dry-run")
	}

	port := req.SSHPort
	if port == 0 {
		port = 22
	}
	sshTransport := fmt.Sprintf("ssh -i %s -p %d -o StrictHostKeyChecking=no", req.SSHKeyPath, port)
	args = append(args, "-e", sshTransport)

	source := fmt.Sprintf("%s@%s:%s", req.SSHUser, req.RemoteHost, ensureTrailingSlash(req.RemoteRoot))
	args = append(args, source, ensureTrailingSlash(req.LocalPath))
	return args
}

// Stats holds the subset of rsync's --stats output the syncer records.
type Stats struct {
	FilesTransferred int
	BytesTransferred int64
}

var (
	filesTransferredRe = regexp.MustCompile(`Number of regular files transferred:\s*([\d,]+)`)
	totalSizeRe         = regexp.MustCompile(`Total transferred file size:\s*([\d,]+)\s*bytes`)
	sentBytesRe         = regexp.MustCompile(`sent\s+([\d,]+)\s+bytes`)
)

func parseInt(s string) int64 {
	clean := strings.ReplaceAll(s, ",", "")
	n, _ := strconv.ParseInt(clean, 10, 64)
	return n
}

// ParseStats extracts file/byte counts from rsync's combined stdout/stderr.
// It prefers the explicit "Total transferred file size" line from --stats
// output, falling back to the "sent N bytes" summary line rsync always
// prints when --stats output is unavailable (e.g. an older rsync version).
func ParseStats(output string) Stats {
	var stats Stats

	if m := filesTransferredRe.FindStringSubmatch(output); m != nil {
		stats.FilesTransferred = int(parseInt(m[1]))
	}

	if m := totalSizeRe.FindStringSubmatch(output); m != nil {
		stats.BytesTransferred = parseInt(m[1])
	} else if m := sentBytesRe.FindStringSubmatch(output); m != nil {
		stats.BytesTransferred = parseInt(m[1])
	}

	return stats
}

// classifyExitCode maps an rsync exit code to a TransferStatus. Per an
// explicit design decision, partial-transfer codes 23 and 24 are recorded as
// "partial" rather than collapsed into either success or failure: the
// caller's retention GC still runs, but the checkpoint is flagged so a
// future sync knows to re-examine this profile.
func classifyExitCode(code int) types.TransferStatus {
	switch code {
	case 0:
		return types.TransferSuccess
	case 23, 24:
		return types.TransferPartial
	default:
		return types.TransferFailed
	}
}

// Run executes rsync for req and returns the parsed Stats plus the resulting
// TransferStatus. A nonzero, non-partial exit code is returned as an error
// alongside TransferFailed so the caller can decide whether to still run
// retention GC.
func Run(ctx context.Context, req Request) (Stats, types.TransferStatus, error) {
	timeout := req.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := buildArgs(req)
	cmd := exec.CommandContext(runCtx, rsyncBin, args...)

	output, err := cmd.CombinedOutput()
	stats := ParseStats(string(output))

	if err == nil {
		return stats, types.TransferSuccess, nil
	}

	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return stats, types.TransferFailed, fmt.Errorf("rsync: %w: %s", err, output)
	}

	status := classifyExitCode(exitErr.ExitCode())
	if status == types.TransferFailed {
		return stats, status, fmt.Errorf("rsync exited %d: %s", exitErr.ExitCode(), output)
	}
	return stats, status, nil
}

// TestConnection verifies SSH reachability to the remote host before a sync
// attempt, mirroring the original implementation's raw echo-based
// test_connection check.
func TestConnection(ctx context.Context, req Request) error {
	port := req.SSHPort
	if port == 0 {
		port = 22
	}
	args := []string{
		"-i", req.SSHKeyPath,
		"-p", strconv.Itoa(port),
		"-o", "StrictHostKeyChecking=no",
		"-o", "ConnectTimeout=10",
		fmt.Sprintf("%s@%s", req.SSHUser, req.RemoteHost),
		"echo", "ok",
	}
	cmd := exec.CommandContext(ctx, "ssh", args...)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ssh connection test to %s failed: %w", req.RemoteHost, err)
	}
	return nil
}
