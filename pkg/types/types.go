package types

import (
	"net"
	"time"
)

// Environment represents the full declarative description of a fleet
// deployment target: the hosts that make up it, the security rules profile
// to apply, the services to run, and the data-lake sync profiles it serves.
type Environment struct {
	Name       string
	Hosts      []*Host
	Security   *SecuritySpec
	Services   []*ServiceWorkItem
	DataLake   []*Profile
	VPN        *VPNSpec
	CreatedAt  time.Time
}

// Host represents a single remote machine under fleet management.
type Host struct {
	Name        string
	Address     string // current reachable address (DNS name or IP)
	SSHPort     int    // the live, currently-effective SSH port
	SSHUser     string
	SSHKeyPath  string
	OverlayIP   net.IP // mesh/overlay address once VPN is established
	Roles       []string
	Labels      map[string]string
	Status      HostStatus
	LastSeen    time.Time
	CreatedAt   time.Time
}

// HostStatus is the lifecycle state of a host as the orchestrator advances
// it through the Plan -> Provision -> Secure -> Service phases.
type HostStatus string

const (
	HostStatusPlanned       HostStatus = "planned"
	HostStatusProvisioned   HostStatus = "provisioned"
	HostStatusReachable     HostStatus = "reachable"
	HostStatusHardened      HostStatus = "hardened"
	HostStatusServiceBearing HostStatus = "service-bearing"
	HostStatusUnreachable   HostStatus = "unreachable"
	HostStatusDestroyed     HostStatus = "destroyed"
)

// SecuritySpec names the rules profile and cooldown parameters applied by
// the security pipeline.
type SecuritySpec struct {
	RulesProfile  string // e.g. "monitor" -> monitor.yml or monitor_rules.yml
	SSHPort       int    // target SSH port after hardening
	WireguardPort int
	VPNNetwork    string // CIDR, e.g. 10.0.0.0/24
	MinCooldown   time.Duration
}

// VPNDriverKind selects which VPNDriver implementation secures inter-host
// traffic.
type VPNDriverKind string

const (
	VPNDriverLegacyOverlay VPNDriverKind = "legacy-overlay" // WireGuard-style
	VPNDriverMesh          VPNDriverKind = "mesh"           // zero-config mesh overlay
)

// VPNSpec describes the virtual network layered over the fleet.
type VPNSpec struct {
	Driver     VPNDriverKind
	Network    string // CIDR
	AuthKeyEnv string // name of the env var carrying the mesh auth key; never logged
}

// ServiceKind identifies one of the known service deployers.
type ServiceKind string

const (
	ServiceKindMonitor       ServiceKind = "monitor"
	ServiceKindDataCollector ServiceKind = "data-collector"
	ServiceKindFreqtrade     ServiceKind = "freqtrade"
)

// ServiceWorkItem binds a deployer kind to its target host and config, the
// unit of work the Service phase fans out over.
type ServiceWorkItem struct {
	Kind   ServiceKind
	Target string // host name
	Config map[string]string
}

// Profile describes one data-lake replication profile: a pull-based rsync
// job from a single remote host/path into a local retained directory tree.
type Profile struct {
	Name           string
	Enabled        bool
	RemoteHost     string
	RemoteRoot     string
	LocalPath      string
	RetentionDays  int
	CheckpointFile string
	SSHKeyPath     string
	SSHPort        int
	TransferArgs   []string
	DryRun         bool
}

// Checkpoint records the outcome of the most recent sync attempt for a
// profile, persisted atomically to CheckpointFile between runs. Status is
// the tri-state outcome (success/partial/failed; a skipped profile writes no
// checkpoint), not a collapsed bool, so a partial transfer is never mistaken
// for a clean one on the next load.
type Checkpoint struct {
	ProfileName     string         `json:"profile_name"`
	LastSyncTime    time.Time      `json:"last_sync_time"`
	Status          TransferStatus `json:"status"`
	DurationSeconds float64        `json:"duration_seconds"`
	FilesSynced     int            `json:"files_synced"`
	BytesSynced     int64          `json:"bytes_synced"`
	Errors          []string       `json:"errors,omitempty"`
	SavedAt         time.Time      `json:"saved_at"`
}

// TransferStatus is the outcome of a single rsync invocation.
type TransferStatus string

const (
	TransferSuccess TransferStatus = "success"
	TransferPartial TransferStatus = "partial"
	TransferFailed  TransferStatus = "failed"
	// TransferSkipped marks a profile that was not run at all, e.g. because
	// it is disabled in config.
	TransferSkipped TransferStatus = "skipped"
)

// SyncResult is the outcome of one profile sync cycle, combining the
// transfer statistics with the retention GC that followed it.
type SyncResult struct {
	Profile       string
	Status        TransferStatus
	FilesSynced   int
	BytesSynced   int64
	Duration      time.Duration
	RetentionFreedBytes int64
	Err           error
}

// SecurityStep identifies one of the ordered, marker-guarded steps of the
// hardening pipeline.
type SecurityStep string

const (
	StepInitial          SecurityStep = "initial"
	StepFirewallBase     SecurityStep = "firewall-base"
	StepSSHHardening     SecurityStep = "ssh-hardening"
	StepFail2ban         SecurityStep = "fail2ban"
	StepVPNFirewall      SecurityStep = "vpn-firewall"
	StepServiceFirewall  SecurityStep = "service-firewall"
	StepVerify           SecurityStep = "verify"
)

// SecurityMarker is the on-host record (and local ledger mirror) proving a
// security step has already completed for a given host, making re-runs
// idempotent.
type SecurityMarker struct {
	Host      string
	Step      SecurityStep
	AppliedAt time.Time
}

// PhaseName identifies one of the orchestrator's top-level phases.
type PhaseName string

const (
	PhasePlan      PhaseName = "plan"
	PhaseProvision PhaseName = "provision"
	PhaseSecure    PhaseName = "secure"
	PhaseService   PhaseName = "service"
	PhaseSummarize PhaseName = "summarize"
)

// PhaseResult captures the outcome of running one phase across all target
// hosts, including any partial failures.
type PhaseResult struct {
	Phase     PhaseName
	StartedAt time.Time
	EndedAt   time.Time
	HostsOK   []string
	HostsFailed map[string]error
}

// RunEvent mirrors Event from the teacher's cluster streaming API, adapted
// to report orchestrator run/phase/host progress instead of cluster state
// changes.
type RunEvent struct {
	Type      string
	Timestamp time.Time
	RunID     string
	Phase     PhaseName
	Host      string
	Message   string
	Data      map[string]string
}
