// Package config loads and validates the YAML environment, data-lake
// profile, and security rules documents that drive a fleetctl run.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/FireNirva/quants-fleet/pkg/types"
)

// HostDoc is the YAML shape of one host entry in an environment file.
type HostDoc struct {
	Name       string            `yaml:"name"`
	Address    string            `yaml:"address"`
	SSHUser    string            `yaml:"ssh_user"`
	SSHPort    int               `yaml:"ssh_port"`
	SSHKeyPath string            `yaml:"ssh_key_path"`
	Roles      []string          `yaml:"roles"`
	Labels     map[string]string `yaml:"labels"`
}

// ServiceDoc is the YAML shape of one service entry in an environment file.
type ServiceDoc struct {
	Kind   string            `yaml:"kind"`
	Target string            `yaml:"target"`
	Config map[string]string `yaml:"config"`
}

// ProfileDoc is the YAML shape of one data-lake profile.
type ProfileDoc struct {
	Name           string   `yaml:"name"`
	Enabled        *bool    `yaml:"enabled"`
	RemoteHost     string   `yaml:"remote_host"`
	RemoteRoot     string   `yaml:"remote_root"`
	LocalSubdir    string   `yaml:"local_subdir"`
	RetentionDays  int      `yaml:"retention_days"`
	CheckpointFile string   `yaml:"checkpoint_file"`
	SSHKeyPath     string   `yaml:"ssh_key_path"`
	SSHPort        int      `yaml:"ssh_port"`
	RsyncArgs      []string `yaml:"rsync_args"`
}

// SecurityDoc is the YAML shape of the security section.
type SecurityDoc struct {
	RulesProfile  string `yaml:"rules_profile"`
	SSHPort       int    `yaml:"ssh_port"`
	WireguardPort int    `yaml:"wireguard_port"`
	VPNNetwork    string `yaml:"vpn_network"`
	MinCooldownS  int    `yaml:"min_cooldown_seconds"`
}

// VPNDoc is the YAML shape of the VPN section.
type VPNDoc struct {
	Driver     string `yaml:"driver"` // "legacy-overlay" or "mesh"
	Network    string `yaml:"network"`
	AuthKeyEnv string `yaml:"auth_key_env"`
}

// EnvironmentDoc is the top-level YAML document describing a deployment
// target.
type EnvironmentDoc struct {
	Name     string       `yaml:"name"`
	DataRoot string       `yaml:"data_root"` // base dir profiles' local_subdir is relative to
	Hosts    []HostDoc    `yaml:"hosts"`
	Security SecurityDoc  `yaml:"security"`
	VPN      VPNDoc       `yaml:"vpn"`
	Services []ServiceDoc `yaml:"services"`
	DataLake []ProfileDoc `yaml:"data_lake"`
}

// defaults mirror the original implementation's _get_base_vars.
const (
	defaultSSHPort       = 6677
	defaultWireguardPort = 51820
	defaultVPNNetwork    = "10.0.0.0/24"
	defaultMinCooldownS  = 70
)

// Load reads and validates an environment document from path.
func Load(path string) (*types.Environment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read environment file %s: %w", path, err)
	}

	var doc EnvironmentDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse environment file %s: %w", path, err)
	}

	return fromDoc(doc)
}

func fromDoc(doc EnvironmentDoc) (*types.Environment, error) {
	if doc.Name == "" {
		return nil, fmt.Errorf("environment: name is required")
	}
	if len(doc.Hosts) == 0 {
		return nil, fmt.Errorf("environment %s: at least one host is required", doc.Name)
	}

	env := &types.Environment{Name: doc.Name}

	seen := make(map[string]bool, len(doc.Hosts))
	for _, h := range doc.Hosts {
		if h.Name == "" {
			return nil, fmt.Errorf("environment %s: host entry missing name", doc.Name)
		}
		if seen[h.Name] {
			return nil, fmt.Errorf("environment %s: duplicate host name %q", doc.Name, h.Name)
		}
		seen[h.Name] = true

		sshPort := h.SSHPort
		if sshPort == 0 {
			sshPort = 22
		}

		env.Hosts = append(env.Hosts, &types.Host{
			Name:       h.Name,
			Address:    h.Address,
			SSHPort:    sshPort,
			SSHUser:    h.SSHUser,
			SSHKeyPath: expandTilde(h.SSHKeyPath),
			Roles:      h.Roles,
			Labels:     h.Labels,
			Status:     types.HostStatusPlanned,
		})
	}

	sec := doc.Security
	sshPort := sec.SSHPort
	if sshPort == 0 {
		sshPort = defaultSSHPort
	}
	wgPort := sec.WireguardPort
	if wgPort == 0 {
		wgPort = defaultWireguardPort
	}
	vpnNetwork := sec.VPNNetwork
	if vpnNetwork == "" {
		vpnNetwork = defaultVPNNetwork
	}
	cooldown := sec.MinCooldownS
	if cooldown == 0 {
		cooldown = defaultMinCooldownS
	}
	env.Security = &types.SecuritySpec{
		RulesProfile:  sec.RulesProfile,
		SSHPort:       sshPort,
		WireguardPort: wgPort,
		VPNNetwork:    vpnNetwork,
		MinCooldown:   time.Duration(cooldown) * time.Second,
	}

	if doc.VPN.Driver != "" {
		driver := types.VPNDriverKind(doc.VPN.Driver)
		if driver != types.VPNDriverLegacyOverlay && driver != types.VPNDriverMesh {
			return nil, fmt.Errorf("environment %s: unknown vpn driver %q", doc.Name, doc.VPN.Driver)
		}
		env.VPN = &types.VPNSpec{
			Driver:     driver,
			Network:    doc.VPN.Network,
			AuthKeyEnv: doc.VPN.AuthKeyEnv,
		}
	}

	for _, s := range doc.Services {
		kind := types.ServiceKind(s.Kind)
		switch kind {
		case types.ServiceKindMonitor, types.ServiceKindDataCollector, types.ServiceKindFreqtrade:
		default:
			return nil, fmt.Errorf("environment %s: unknown service kind %q", doc.Name, s.Kind)
		}
		if s.Target == "" {
			return nil, fmt.Errorf("environment %s: service %q missing target host", doc.Name, s.Kind)
		}
		if !seen[s.Target] {
			return nil, fmt.Errorf("environment %s: service %q targets unknown host %q", doc.Name, s.Kind, s.Target)
		}
		env.Services = append(env.Services, &types.ServiceWorkItem{
			Kind:   kind,
			Target: s.Target,
			Config: s.Config,
		})
	}

	for _, p := range doc.DataLake {
		profile, err := profileFromDoc(p, doc.DataRoot)
		if err != nil {
			return nil, fmt.Errorf("environment %s: %w", doc.Name, err)
		}
		env.DataLake = append(env.DataLake, profile)
	}

	return env, nil
}

func profileFromDoc(p ProfileDoc, dataRoot string) (*types.Profile, error) {
	if p.Name == "" {
		return nil, fmt.Errorf("data_lake profile missing name")
	}
	if p.RetentionDays <= 0 {
		return nil, fmt.Errorf("profile %s: retention_days must be > 0", p.Name)
	}
	if p.LocalSubdir == "" {
		return nil, fmt.Errorf("profile %s: local_subdir is required", p.Name)
	}
	if strings.Contains(p.LocalSubdir, "..") {
		return nil, fmt.Errorf("profile %s: local_subdir must not contain '..'", p.Name)
	}

	localPath := p.LocalSubdir
	if dataRoot != "" && !filepath.IsAbs(localPath) {
		localPath = filepath.Join(expandTilde(dataRoot), p.LocalSubdir)
	} else {
		localPath = expandTilde(localPath)
	}

	checkpointFile := p.CheckpointFile
	if checkpointFile == "" {
		checkpointFile = filepath.Join(localPath, ".checkpoint.json")
	} else {
		checkpointFile = expandTilde(checkpointFile)
	}

	sshPort := p.SSHPort
	if sshPort == 0 {
		sshPort = 22
	}

	enabled := true
	if p.Enabled != nil {
		enabled = *p.Enabled
	}

	return &types.Profile{
		Name:           p.Name,
		Enabled:        enabled,
		RemoteHost:     p.RemoteHost,
		RemoteRoot:     p.RemoteRoot,
		LocalPath:      localPath,
		RetentionDays:  p.RetentionDays,
		CheckpointFile: checkpointFile,
		SSHKeyPath:     expandTilde(p.SSHKeyPath),
		SSHPort:        sshPort,
		TransferArgs:   p.RsyncArgs,
	}, nil
}

func expandTilde(path string) string {
	if path == "" || path[0] != '~' {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

