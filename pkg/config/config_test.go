package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/FireNirva/quants-fleet/pkg/config"
	"github.com/FireNirva/quants-fleet/pkg/types"
)

func writeEnv(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "env.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesSecurityDefaults(t *testing.T) {
	path := writeEnv(t, `
name: prod
hosts:
  - name: trader-01
    address: 10.1.2.3
    ssh_user: deploy
`)
	env, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 6677, env.Security.SSHPort)
	require.Equal(t, 51820, env.Security.WireguardPort)
	require.Equal(t, "10.0.0.0/24", env.Security.VPNNetwork)
	require.Equal(t, int64(70), int64(env.Security.MinCooldown.Seconds()))
}

func TestLoadDefaultsProfileEnabledAndHonorsRsyncArgs(t *testing.T) {
	path := writeEnv(t, `
name: prod
hosts:
  - name: trader-01
    address: 10.1.2.3
data_lake:
  - name: btc
    remote_host: data-01
    remote_root: /data/btc
    local_subdir: btc
    retention_days: 30
  - name: eth
    remote_host: data-02
    remote_root: /data/eth
    local_subdir: eth
    retention_days: 30
    enabled: false
    rsync_args: ["-rlt", "--delete"]
`)
	env, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, env.DataLake, 2)
	require.True(t, env.DataLake[0].Enabled, "a profile with no enabled key defaults to enabled")
	require.False(t, env.DataLake[1].Enabled)
	require.Equal(t, []string{"-rlt", "--delete"}, env.DataLake[1].TransferArgs)
}

func TestLoadRejectsInvalidRetentionDays(t *testing.T) {
	path := writeEnv(t, `
name: prod
hosts:
  - name: trader-01
    address: 10.1.2.3
data_lake:
  - name: btc
    remote_host: data-01
    remote_root: /data/btc
    local_subdir: btc
    retention_days: 0
`)
	_, err := config.Load(path)
	require.Error(t, err)
}

func TestLoadRejectsPathTraversalInLocalSubdir(t *testing.T) {
	path := writeEnv(t, `
name: prod
hosts:
  - name: trader-01
    address: 10.1.2.3
data_lake:
  - name: btc
    remote_host: data-01
    remote_root: /data/btc
    local_subdir: ../../etc
    retention_days: 30
`)
	_, err := config.Load(path)
	require.Error(t, err)
}

func TestLoadRejectsServiceTargetingUnknownHost(t *testing.T) {
	path := writeEnv(t, `
name: prod
hosts:
  - name: trader-01
    address: 10.1.2.3
services:
  - kind: monitor
    target: ghost-host
`)
	_, err := config.Load(path)
	require.Error(t, err)
}

func TestLoadRulesProfileFallsBackToUnderscoreSuffix(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "monitor_rules.yml"), []byte(`
allowed_ports: [9090, 3000]
`), 0o644))

	profile, err := config.LoadRulesProfile(dir, "monitor")
	require.NoError(t, err)
	require.Equal(t, []int{9090, 3000}, profile.AllowedPorts)
}

func TestLoadRulesProfilePrefersBareName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "monitor.yml"), []byte(`
allowed_ports: [9090]
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "monitor_rules.yml"), []byte(`
allowed_ports: [9999]
`), 0o644))

	profile, err := config.LoadRulesProfile(dir, "monitor")
	require.NoError(t, err)
	require.Equal(t, []int{9090}, profile.AllowedPorts)
}

func TestServiceWorkItemKindMatchesConstant(t *testing.T) {
	require.Equal(t, types.ServiceKind("monitor"), types.ServiceKindMonitor)
}
