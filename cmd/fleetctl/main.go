package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/spf13/cobra"

	"github.com/FireNirva/quants-fleet/pkg/config"
	"github.com/FireNirva/quants-fleet/pkg/deploy"
	"github.com/FireNirva/quants-fleet/pkg/events"
	"github.com/FireNirva/quants-fleet/pkg/ledger"
	"github.com/FireNirva/quants-fleet/pkg/log"
	"github.com/FireNirva/quants-fleet/pkg/metrics"
	"github.com/FireNirva/quants-fleet/pkg/orchestrator"
	"github.com/FireNirva/quants-fleet/pkg/remote"
	"github.com/FireNirva/quants-fleet/pkg/security"
	"github.com/FireNirva/quants-fleet/pkg/types"
)

var (
	// Version information, set via ldflags during build.
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// errUsage marks an error as a bad-arguments/missing-required-field failure,
// mapped to exit code 2. Every other error maps to exit code 1.
var errUsage = errors.New("usage error")

func usageErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fleetctl",
	Short: "fleetctl manages the quant-trading fleet's infrastructure, security, and data-lake replication",
	Long: `fleetctl provisions trading hosts, hardens them through an idempotent
security pipeline, deploys the monitor/data-collector/freqtrade service
stack, and keeps each host's market-data directory synced to a retained
local data lake.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("fleetctl version %s\ncommit: %s\nbuilt: %s\n", Version, Commit, BuildTime))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("data-dir", "./fleet-data", "Local state directory (ledger db, temp files)")
	rootCmd.PersistentFlags().String("rules-dir", "./security-rules", "Directory holding per-profile security rules YAML")
	rootCmd.PersistentFlags().String("ssh-user", "ops", "Default SSH user for hosts that don't override it")
	rootCmd.PersistentFlags().String("metrics-addr", "", "If set, serve Prometheus metrics on this address while the command runs")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(deployEnvironmentCmd)
	rootCmd.AddCommand(infraCmd)
	rootCmd.AddCommand(securityCmd)
	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(dataCollectorCmd)
	rootCmd.AddCommand(freqtradeCmd)
	rootCmd.AddCommand(dataLakeCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// fleet bundles the collaborators every subcommand needs, built once per
// invocation from the loaded environment document.
type fleet struct {
	env      *types.Environment
	engine   *remote.Engine
	ledger   *ledger.Ledger
	pipeline *security.Pipeline
	registry *deploy.Registry
	broker   *events.Broker
	orch     *orchestrator.Orchestrator
}

func (f *fleet) Close() {
	if f.ledger != nil {
		f.ledger.Close()
	}
	if f.broker != nil {
		f.broker.Stop()
	}
}

// buildFleet loads the environment document at configPath and wires every
// core package against it: the SSH transport, the retrying remote engine,
// the local ledger, the security pipeline, the deployer registry, and the
// orchestrator. Every CLI subcommand goes through this so none of them
// construct their own ad hoc wiring.
func buildFleet(cmd *cobra.Command, configPath string) (*fleet, error) {
	if configPath == "" {
		return nil, usageErrorf("--config is required")
	}
	env, err := config.Load(configPath)
	if err != nil {
		return nil, usageErrorf("load config: %v", err)
	}

	dataDir, _ := cmd.Flags().GetString("data-dir")
	rulesDir, _ := cmd.Flags().GetString("rules-dir")
	sshUser, _ := cmd.Flags().GetString("ssh-user")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	led, err := ledger.Open(dataDir)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	// Connection attempts are paced below the 4-per-60s ceiling the
	// Security Pipeline's firewall rules allow, so the engine's own retries
	// never trip the remote recent-connections rule it is racing against.
	transport := remote.NewSSHTransport(30*time.Second, rate.Limit(4.0/60.0), 1)
	engine := remote.NewEngine(transport, orchestrator.HostResolver(env), remote.WithRetries(2, 2*time.Second))

	var vpnDriver security.VPNDriver
	if env.VPN != nil {
		vpnDriver, err = security.NewVPNDriver(env.VPN.Driver)
		if err != nil {
			led.Close()
			return nil, usageErrorf("%v", err)
		}
	}
	pipeline := security.New(engine, led, security.SystemClock(), rulesDir, vpnDriver)
	registry := deploy.NewRegistry(engine, nil)

	broker := events.NewBroker()
	broker.Start()

	orch := orchestrator.New(engine, pipeline, registry, led, broker)

	_ = sshUser // unused here: the data-lake commands read --ssh-user themselves

	return &fleet{
		env:      env,
		engine:   engine,
		ledger:   led,
		pipeline: pipeline,
		registry: registry,
		broker:   broker,
		orch:     orch,
	}, nil
}

// maybeServeMetrics starts a background Prometheus endpoint if --metrics-addr
// was given, and does nothing otherwise. The server runs until the process
// exits; no shutdown func is returned.
func maybeServeMetrics(cmd *cobra.Command) {
	addr, _ := cmd.Flags().GetString("metrics-addr")
	if addr == "" {
		return
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.WithComponent("fleetctl").Warn().Err(err).Msg("metrics server stopped")
		}
	}()
}

func ctxFromCommand(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithCancel(cmd.Context())
}
