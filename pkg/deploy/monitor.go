package deploy

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/FireNirva/quants-fleet/pkg/health"
	"github.com/FireNirva/quants-fleet/pkg/log"
	"github.com/FireNirva/quants-fleet/pkg/types"
)

const (
	prometheusPort    = 9090
	grafanaPort       = 3000
	alertmanagerPort  = 9093
)

// monitorDeployer manages the Prometheus/Grafana/Alertmanager monitoring
// stack, started on a host via docker compose.
type monitorDeployer struct {
	runner Runner
	client *http.Client
}

func newMonitorDeployer(runner Runner, client *http.Client) *monitorDeployer {
	return &monitorDeployer{runner: runner, client: client}
}

func (m *monitorDeployer) Kind() types.ServiceKind { return types.ServiceKindMonitor }

func (m *monitorDeployer) Deploy(ctx context.Context, host string, work types.ServiceWorkItem) error {
	composePath := work.Config["compose_path"]
	if composePath == "" {
		composePath = "/opt/fleet/monitor/docker-compose.yml"
	}
	local, ok := work.Config["compose_file"]
	if ok && local != "" {
		if err := m.runner.Put(ctx, host, local, composePath); err != nil {
			return fmt.Errorf("upload compose file: %w", err)
		}
	}
	if _, err := runOrErr(ctx, m.runner, host, fmt.Sprintf("docker compose -f %s pull", composePath), 5*time.Minute); err != nil {
		return err
	}
	return m.Start(ctx, host)
}

func (m *monitorDeployer) Start(ctx context.Context, host string) error {
	_, err := runOrErr(ctx, m.runner, host, "docker compose -f /opt/fleet/monitor/docker-compose.yml up -d", 2*time.Minute)
	return err
}

func (m *monitorDeployer) Stop(ctx context.Context, host string) error {
	_, err := runOrErr(ctx, m.runner, host, "docker compose -f /opt/fleet/monitor/docker-compose.yml down", time.Minute)
	return err
}

func (m *monitorDeployer) HealthCheck(ctx context.Context, host string) (HealthReport, error) {
	checks := map[string]health.Result{
		"prometheus": health.NewHTTPChecker(fmt.Sprintf("http://%s:%d/-/healthy", host, prometheusPort)).Check(ctx),
		"grafana":    health.NewHTTPChecker(fmt.Sprintf("http://%s:%d/api/health", host, grafanaPort)).Check(ctx),
		"alertmanager": health.NewHTTPChecker(fmt.Sprintf("http://%s:%d/-/healthy", host, alertmanagerPort)).Check(ctx),
	}
	status := AggregateHealth(checks)
	return HealthReport{Status: status, Checks: checks}, nil
}

func (m *monitorDeployer) GetLogs(ctx context.Context, host string, lines int) (string, error) {
	return runOrErr(ctx, m.runner, host, dockerTail("prometheus", lines), 30*time.Second)
}

// staticConfig is one static_configs entry under a Prometheus scrape job.
type staticConfig struct {
	Targets []string          `yaml:"targets"`
	Labels  map[string]string `yaml:"labels,omitempty"`
}

// scrapeJob is one entry of prometheus.yml's scrape_configs list.
type scrapeJob struct {
	JobName       string                 `yaml:"job_name"`
	StaticConfigs []staticConfig         `yaml:"static_configs"`
	Rest          map[string]interface{} `yaml:",inline"`
}

// prometheusConfig models only the parts of prometheus.yml this deployer
// needs to rewrite; everything else round-trips through Rest unmodified.
type prometheusConfig struct {
	ScrapeConfigs []scrapeJob            `yaml:"scrape_configs"`
	Rest          map[string]interface{} `yaml:",inline"`
}

const monitorConfigPath = "/opt/fleet/monitor/prometheus.yml"

// AddScrapeTarget rewrites prometheus.yml on host so job's static targets
// become exactly targets, replacing whatever that job name previously held,
// and triggers a hot reload via /-/reload. An empty targets slice removes
// the job entirely.
func (m *monitorDeployer) AddScrapeTarget(ctx context.Context, host, job string, targets []string, labels map[string]string) error {
	stdout, exitCode, err := m.runner.Run(ctx, host, "cat "+monitorConfigPath, 15*time.Second)
	if err != nil {
		return fmt.Errorf("read prometheus config: %w", err)
	}
	if exitCode != 0 {
		return fmt.Errorf("read prometheus config: exit code %d", exitCode)
	}

	var cfg prometheusConfig
	if err := yaml.Unmarshal([]byte(stdout), &cfg); err != nil {
		return fmt.Errorf("parse prometheus config: %w", err)
	}

	kept := cfg.ScrapeConfigs[:0]
	for _, j := range cfg.ScrapeConfigs {
		if j.JobName != job {
			kept = append(kept, j)
		}
	}
	cfg.ScrapeConfigs = kept
	if len(targets) > 0 {
		cfg.ScrapeConfigs = append(cfg.ScrapeConfigs, scrapeJob{
			JobName:       job,
			StaticConfigs: []staticConfig{{Targets: targets, Labels: labels}},
		})
	}

	updated, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("render prometheus config: %w", err)
	}

	tmp, err := os.CreateTemp("", "prometheus-*.yml")
	if err != nil {
		return fmt.Errorf("stage updated config: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(updated); err != nil {
		tmp.Close()
		return fmt.Errorf("write staged config: %w", err)
	}
	tmp.Close()

	if err := m.runner.Put(ctx, host, tmp.Name(), monitorConfigPath); err != nil {
		return fmt.Errorf("upload updated config: %w", err)
	}

	return m.reloadPrometheus(ctx, host)
}

// prometheusReloadURL builds the reload endpoint's URL; overridable in
// tests to point at an httptest server instead of the real prometheusPort.
var prometheusReloadURL = func(host string) string {
	return fmt.Sprintf("http://%s:%d/-/reload", host, prometheusPort)
}

func (m *monitorDeployer) reloadPrometheus(ctx context.Context, host string) error {
	url := prometheusReloadURL(host)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(nil))
	if err != nil {
		return fmt.Errorf("build reload request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("reload prometheus: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("reload prometheus: unexpected status %d", resp.StatusCode)
	}
	log.WithHost(host).Info().Str("component", "monitor").Msg("prometheus config reloaded")
	return nil
}
