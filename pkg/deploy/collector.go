package deploy

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/FireNirva/quants-fleet/pkg/health"
	"github.com/FireNirva/quants-fleet/pkg/types"
)

const collectorMetricsPort = 8000

// collectorDeployer manages the order book data collector container, which
// exposes Prometheus metrics directly (no separate exporter).
type collectorDeployer struct {
	runner Runner
	client *http.Client
}

func newCollectorDeployer(runner Runner, client *http.Client) *collectorDeployer {
	return &collectorDeployer{runner: runner, client: client}
}

func (c *collectorDeployer) Kind() types.ServiceKind { return types.ServiceKindDataCollector }

func (c *collectorDeployer) Deploy(ctx context.Context, host string, work types.ServiceWorkItem) error {
	image := work.Config["image"]
	if image == "" {
		image = "quants-fleet/data-collector:latest"
	}
	pullCmd := fmt.Sprintf("docker pull %s", image)
	if _, err := runOrErr(ctx, c.runner, host, pullCmd, 5*time.Minute); err != nil {
		return err
	}
	return c.Start(ctx, host)
}

func (c *collectorDeployer) Start(ctx context.Context, host string) error {
	cmd := fmt.Sprintf("docker start data-collector || docker run -d --name data-collector -p %d:%d --restart unless-stopped quants-fleet/data-collector:latest", collectorMetricsPort, collectorMetricsPort)
	_, err := runOrErr(ctx, c.runner, host, cmd, time.Minute)
	return err
}

func (c *collectorDeployer) Stop(ctx context.Context, host string) error {
	_, err := runOrErr(ctx, c.runner, host, "docker stop data-collector", 30*time.Second)
	return err
}

func (c *collectorDeployer) HealthCheck(ctx context.Context, host string) (HealthReport, error) {
	checker := health.NewHTTPChecker(fmt.Sprintf("http://%s:%d/metrics", host, collectorMetricsPort))
	result := checker.Check(ctx)
	checks := map[string]health.Result{"data-collector": result}
	return HealthReport{Status: AggregateHealth(checks), Checks: checks}, nil
}

func (c *collectorDeployer) GetLogs(ctx context.Context, host string, lines int) (string, error) {
	return runOrErr(ctx, c.runner, host, dockerTail("data-collector", lines), 30*time.Second)
}
