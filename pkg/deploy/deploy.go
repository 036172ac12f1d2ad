package deploy

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/FireNirva/quants-fleet/pkg/health"
	"github.com/FireNirva/quants-fleet/pkg/log"
	"github.com/FireNirva/quants-fleet/pkg/types"
)

// Runner is the subset of the remote execution engine the deployers need:
// running a command on a host and copying a file to it. pkg/remote's Engine
// satisfies this interface.
type Runner interface {
	Run(ctx context.Context, host, command string, timeout time.Duration) (stdout string, exitCode int, err error)
	Put(ctx context.Context, host, localPath, remotePath string) error
}

// Status is the aggregate health of a deployed service.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusUnknown   Status = "unknown"
)

// HealthReport is the result of a deployer's HealthCheck call: an overall
// Status plus the individual check results that produced it.
type HealthReport struct {
	Status  Status
	Checks  map[string]health.Result
	Message string
}

// Deployer is the capability interface every service deployer implements.
// A registry of Deployer values replaces what an inheritance hierarchy would
// have done in an object-oriented rewrite: each service kind provides its
// own Deploy/Start/Stop/HealthCheck/GetLogs without a shared base type.
type Deployer interface {
	// Deploy installs and configures the service on host per work.Config.
	Deploy(ctx context.Context, host string, work types.ServiceWorkItem) error

	// Start brings up the service's containers.
	Start(ctx context.Context, host string) error

	// Stop tears down the service's containers.
	Stop(ctx context.Context, host string) error

	// HealthCheck probes the service and returns an aggregate report.
	HealthCheck(ctx context.Context, host string) (HealthReport, error)

	// GetLogs returns the tail of the service's logs.
	GetLogs(ctx context.Context, host string, lines int) (string, error)

	// Kind returns the ServiceKind this deployer handles.
	Kind() types.ServiceKind
}

// ScrapeTargetAdder is implemented by deployers that can register scrape
// targets at runtime (currently only the monitor stack). A call replaces
// every prior target registered under the same job name; an empty targets
// slice removes the job entirely.
type ScrapeTargetAdder interface {
	AddScrapeTarget(ctx context.Context, host, job string, targets []string, labels map[string]string) error
}

// Registry dispatches a ServiceWorkItem to the Deployer registered for its
// Kind.
type Registry struct {
	deployers map[types.ServiceKind]Deployer
}

// NewRegistry builds a Registry with the standard set of deployers wired to
// the given Runner.
func NewRegistry(runner Runner, httpClient *http.Client) *Registry {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	r := &Registry{deployers: make(map[types.ServiceKind]Deployer)}
	r.Register(newMonitorDeployer(runner, httpClient))
	r.Register(newCollectorDeployer(runner, httpClient))
	r.Register(newFreqtradeDeployer(runner, httpClient))
	return r
}

// Register adds or replaces the deployer for its Kind.
func (r *Registry) Register(d Deployer) {
	r.deployers[d.Kind()] = d
}

// Get returns the deployer registered for kind, or false if none is
// registered.
func (r *Registry) Get(kind types.ServiceKind) (Deployer, bool) {
	d, ok := r.deployers[kind]
	return d, ok
}

// Deploy dispatches work to the deployer registered for its Kind.
func (r *Registry) Deploy(ctx context.Context, work types.ServiceWorkItem) error {
	d, ok := r.Get(work.Kind)
	if !ok {
		return fmt.Errorf("deploy: no deployer registered for kind %q", work.Kind)
	}
	logger := log.WithHost(work.Target)
	logger.Info().Str("kind", string(work.Kind)).Msg("deploying service")
	if err := d.Deploy(ctx, work.Target, work); err != nil {
		return fmt.Errorf("deploy %s on %s: %w", work.Kind, work.Target, err)
	}
	return nil
}

// AggregateHealth folds individual check results into an overall Status
// following: all healthy -> healthy, some healthy -> degraded, none healthy
// -> unhealthy.
func AggregateHealth(checks map[string]health.Result) Status {
	if len(checks) == 0 {
		return StatusUnknown
	}
	healthyCount := 0
	for _, r := range checks {
		if r.Healthy {
			healthyCount++
		}
	}
	switch {
	case healthyCount == len(checks):
		return StatusHealthy
	case healthyCount > 0:
		return StatusDegraded
	default:
		return StatusUnhealthy
	}
}

// dockerTail builds a `docker logs --tail N <name>` command, the common
// shape every deployer's GetLogs uses against its own container name.
func dockerTail(container string, lines int) string {
	if lines <= 0 {
		lines = 200
	}
	return fmt.Sprintf("docker logs --tail %d %s", lines, container)
}

// runOrErr wraps a Runner.Run call, turning a nonzero exit code into an
// error carrying the command's stdout for diagnosis.
func runOrErr(ctx context.Context, runner Runner, host, command string, timeout time.Duration) (string, error) {
	stdout, exitCode, err := runner.Run(ctx, host, command, timeout)
	if err != nil {
		return "", fmt.Errorf("run %q on %s: %w", command, host, err)
	}
	if exitCode != 0 {
		return stdout, fmt.Errorf("run %q on %s: exit code %d: %s", command, host, exitCode, strings.TrimSpace(stdout))
	}
	return stdout, nil
}
