package deploy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeMonitorRunner models the host's prometheus.yml as an in-memory file so
// AddScrapeTarget's read-modify-write cycle can be exercised without a real
// remote host.
type fakeMonitorRunner struct {
	config string
}

func (f *fakeMonitorRunner) Run(_ context.Context, _, command string, _ time.Duration) (string, int, error) {
	if strings.HasPrefix(command, "cat ") {
		return f.config, 0, nil
	}
	return "", 0, nil
}

func (f *fakeMonitorRunner) Put(_ context.Context, _, localPath, _ string) error {
	b, err := os.ReadFile(localPath)
	if err != nil {
		return err
	}
	f.config = string(b)
	return nil
}

func newTestMonitorDeployer(t *testing.T, runner *fakeMonitorRunner) *monitorDeployer {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)

	prev := prometheusReloadURL
	prometheusReloadURL = func(string) string { return srv.URL }
	t.Cleanup(func() { prometheusReloadURL = prev })

	return newMonitorDeployer(runner, srv.Client())
}

func TestAddScrapeTargetReplacesSameJob(t *testing.T) {
	runner := &fakeMonitorRunner{config: "global:\n  scrape_interval: 15s\nscrape_configs: []\n"}
	m := newTestMonitorDeployer(t, runner)

	err := m.AddScrapeTarget(context.Background(), "monitor-01", "dc", []string{"10.0.0.5:8000"}, nil)
	require.NoError(t, err)
	require.Contains(t, runner.config, "10.0.0.5:8000")

	err = m.AddScrapeTarget(context.Background(), "monitor-01", "dc", []string{"10.0.0.6:8000", "10.0.0.7:8000"}, nil)
	require.NoError(t, err)
	require.NotContains(t, runner.config, "10.0.0.5:8000")
	require.Contains(t, runner.config, "10.0.0.6:8000")
	require.Contains(t, runner.config, "10.0.0.7:8000")
}

func TestAddScrapeTargetWithNoTargetsRemovesJob(t *testing.T) {
	runner := &fakeMonitorRunner{config: "scrape_configs:\n  - job_name: dc\n    static_configs:\n      - targets: [\"10.0.0.5:8000\"]\n"}
	m := newTestMonitorDeployer(t, runner)

	err := m.AddScrapeTarget(context.Background(), "monitor-01", "dc", nil, nil)
	require.NoError(t, err)
	require.NotContains(t, runner.config, "job_name: dc")
}
