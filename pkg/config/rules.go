package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// RulesProfile is the YAML shape of a per-service security rules file:
// extra firewall ports, fail2ban jails, and the ssh_port a service profile
// may request (subject to the security pipeline overriding it, never the
// other way around, once hardening has already picked the live port).
type RulesProfile struct {
	Name         string   `yaml:"name"`
	AllowedPorts []int    `yaml:"allowed_ports"`
	Fail2banJails []string `yaml:"fail2ban_jails"`
	SSHPort      int      `yaml:"ssh_port"`
}

// LoadRulesProfile loads the rules file for name from dir, trying
// "${name}.yml" first and falling back to "${name}_rules.yml", matching the
// original implementation's _load_security_rules dual-name lookup (some
// profiles were authored with the "_rules" suffix, some without).
func LoadRulesProfile(dir, name string) (*RulesProfile, error) {
	candidates := []string{
		filepath.Join(dir, name+".yml"),
		filepath.Join(dir, name+"_rules.yml"),
	}

	var lastErr error
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			lastErr = err
			continue
		}
		var profile RulesProfile
		if err := yaml.Unmarshal(data, &profile); err != nil {
			return nil, fmt.Errorf("parse rules profile %s: %w", path, err)
		}
		if profile.Name == "" {
			profile.Name = name
		}
		return &profile, nil
	}

	return nil, fmt.Errorf("rules profile %q not found in %s (tried %s): %w",
		name, dir, strings.Join(candidates, ", "), lastErr)
}
