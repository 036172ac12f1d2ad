// Package inventory builds Ansible-style inventories for the remote
// execution engine's run_playbook operation, grounded on the original
// implementation's ansible_manager._create_inventory.
package inventory

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Host is the subset of fleet host data an Ansible inventory entry needs.
type Host struct {
	Name       string
	Address    string
	SSHUser    string
	SSHPort    int
	SSHKeyPath string
	Group      string // e.g. "monitor", "data_collector", "vpn"
}

// inventoryHostVars mirrors the per-host variable block Ansible expects
// under hosts:.
type inventoryHostVars struct {
	AnsibleHost                string `yaml:"ansible_host"`
	AnsibleUser                string `yaml:"ansible_user"`
	AnsiblePort                int    `yaml:"ansible_port"`
	AnsibleSSHPrivateKeyFile   string `yaml:"ansible_ssh_private_key_file"`
	AnsibleSSHCommonArgs       string `yaml:"ansible_ssh_common_args"`
}

// Build renders hosts into the nested map structure ansible-playbook's -i
// flag expects when pointed at a YAML inventory file, grouping hosts by
// Host.Group (falling back to "all" when Group is empty).
func Build(hosts []Host) map[string]any {
	groups := make(map[string]map[string]any)
	for _, h := range hosts {
		group := h.Group
		if group == "" {
			group = "all"
		}
		g, ok := groups[group]
		if !ok {
			g = map[string]any{"hosts": map[string]any{}}
			groups[group] = g
		}
		g["hosts"].(map[string]any)[h.Name] = inventoryHostVars{
			AnsibleHost:              h.Address,
			AnsibleUser:              h.SSHUser,
			AnsiblePort:              h.SSHPort,
			AnsibleSSHPrivateKeyFile: h.SSHKeyPath,
			AnsibleSSHCommonArgs:     "-o StrictHostKeyChecking=no",
		}
	}

	all := make(map[string]any, len(groups))
	for name, g := range groups {
		all[name] = g
	}
	return all
}

// WriteTempInventory writes a scratch directory containing inventory.yml
// (from hosts) and extra_vars.yml (from extraVars), for a single
// run_playbook invocation. The caller must invoke the returned cleanup func
// once the playbook run completes.
func WriteTempInventory(hosts []Host, extraVars map[string]string) (dir string, cleanup func(), err error) {
	dir, err = os.MkdirTemp("", "fleet-playbook-*")
	if err != nil {
		return "", nil, fmt.Errorf("create scratch dir: %w", err)
	}
	cleanup = func() { os.RemoveAll(dir) }

	inv := Build(hosts)
	invBytes, err := yaml.Marshal(inv)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("marshal inventory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "inventory.yml"), invBytes, 0o600); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("write inventory: %w", err)
	}

	varsBytes, err := yaml.Marshal(extraVars)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("marshal extra vars: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "extra_vars.yml"), varsBytes, 0o600); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("write extra vars: %w", err)
	}

	return dir, cleanup, nil
}
