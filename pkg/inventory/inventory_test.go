package inventory_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/FireNirva/quants-fleet/pkg/inventory"
)

func TestBuildGroupsHostsByGroupFallingBackToAll(t *testing.T) {
	hosts := []inventory.Host{
		{Name: "mon-01", Address: "10.0.0.1", Group: "monitor"},
		{Name: "dc-01", Address: "10.0.0.2", Group: "monitor"},
		{Name: "trader-01", Address: "10.0.0.3"},
	}

	built := inventory.Build(hosts)

	monitorGroup, ok := built["monitor"].(map[string]any)
	require.True(t, ok)
	monitorHosts, ok := monitorGroup["hosts"].(map[string]any)
	require.True(t, ok)
	require.Len(t, monitorHosts, 2)
	require.Contains(t, monitorHosts, "mon-01")
	require.Contains(t, monitorHosts, "dc-01")

	allGroup, ok := built["all"].(map[string]any)
	require.True(t, ok)
	allHosts, ok := allGroup["hosts"].(map[string]any)
	require.True(t, ok)
	require.Contains(t, allHosts, "trader-01")
}

func TestWriteTempInventoryRoundTrip(t *testing.T) {
	hosts := []inventory.Host{{Name: "trader-01", Address: "10.0.0.1", SSHUser: "ops", SSHPort: 6677}}
	extraVars := map[string]string{"environment": "production"}

	dir, cleanup, err := inventory.WriteTempInventory(hosts, extraVars)
	require.NoError(t, err)
	defer cleanup()

	invBytes, err := os.ReadFile(filepath.Join(dir, "inventory.yml"))
	require.NoError(t, err)
	require.Contains(t, string(invBytes), "trader-01")
	require.Contains(t, string(invBytes), "ansible_user: ops")

	varsBytes, err := os.ReadFile(filepath.Join(dir, "extra_vars.yml"))
	require.NoError(t, err)
	require.Contains(t, string(varsBytes), "environment: production")

	cleanup()
	_, err = os.Stat(dir)
	require.True(t, os.IsNotExist(err))
}
