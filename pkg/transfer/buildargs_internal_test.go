package transfer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildArgsUsesProfileRsyncArgsOverDefault(t *testing.T) {
	req := Request{
		RemoteHost: "data-01",
		RemoteRoot: "/data/btc",
		LocalPath:  "/local/btc",
		SSHUser:    "deploy",
		SSHKeyPath: "/home/deploy/.ssh/id_ed25519",
		TransferArgs: []string{"-rlt", "--delete"},
	}
	args := buildArgs(req)
	require.Equal(t, "-rlt", args[0])
	require.Equal(t, "--delete", args[1])
	require.Contains(t, args, "--stats")
}

func TestBuildArgsFallsBackToDefaultRsyncArgs(t *testing.T) {
	req := Request{
		RemoteHost: "data-01",
		RemoteRoot: "/data/btc",
		LocalPath:  "/local/btc",
		SSHUser:    "deploy",
		SSHKeyPath: "/home/deploy/.ssh/id_ed25519",
	}
	args := buildArgs(req)
	require.Equal(t, strings.Join(DefaultRsyncArgs, " "), strings.Join(args[:len(DefaultRsyncArgs)], " "))
}
