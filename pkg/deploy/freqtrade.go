package deploy

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/FireNirva/quants-fleet/pkg/health"
	"github.com/FireNirva/quants-fleet/pkg/types"
)

const freqtradeAPIPort = 8080

// freqtradeDeployer manages the freqtrade trading bot container. Its REST
// API answers 401 when authentication is required, which is treated as
// liveness evidence just like a 200: the process is up and serving.
type freqtradeDeployer struct {
	runner Runner
	client *http.Client
}

func newFreqtradeDeployer(runner Runner, client *http.Client) *freqtradeDeployer {
	return &freqtradeDeployer{runner: runner, client: client}
}

func (f *freqtradeDeployer) Kind() types.ServiceKind { return types.ServiceKindFreqtrade }

func (f *freqtradeDeployer) Deploy(ctx context.Context, host string, work types.ServiceWorkItem) error {
	configPath := work.Config["config_path"]
	localConfig := work.Config["config_file"]
	if configPath != "" && localConfig != "" {
		if err := f.runner.Put(ctx, host, localConfig, configPath); err != nil {
			return fmt.Errorf("upload freqtrade config: %w", err)
		}
	}
	image := work.Config["image"]
	if image == "" {
		image = "freqtradeorg/freqtrade:stable"
	}
	if _, err := runOrErr(ctx, f.runner, host, fmt.Sprintf("docker pull %s", image), 5*time.Minute); err != nil {
		return err
	}
	return f.Start(ctx, host)
}

func (f *freqtradeDeployer) Start(ctx context.Context, host string) error {
	cmd := fmt.Sprintf("docker start freqtrade || docker run -d --name freqtrade -p %d:%d --restart unless-stopped freqtradeorg/freqtrade:stable trade", freqtradeAPIPort, freqtradeAPIPort)
	_, err := runOrErr(ctx, f.runner, host, cmd, time.Minute)
	return err
}

func (f *freqtradeDeployer) Stop(ctx context.Context, host string) error {
	_, err := runOrErr(ctx, f.runner, host, "docker stop freqtrade", 30*time.Second)
	return err
}

func (f *freqtradeDeployer) HealthCheck(ctx context.Context, host string) (HealthReport, error) {
	checker := health.NewHTTPChecker(fmt.Sprintf("http://%s:%d/api/v1/ping", host, freqtradeAPIPort)).
		WithStatusRange(200, 401)
	result := checker.Check(ctx)
	checks := map[string]health.Result{"freqtrade": result}
	return HealthReport{Status: AggregateHealth(checks), Checks: checks}, nil
}

func (f *freqtradeDeployer) GetLogs(ctx context.Context, host string, lines int) (string, error) {
	return runOrErr(ctx, f.runner, host, dockerTail("freqtrade", lines), 30*time.Second)
}
