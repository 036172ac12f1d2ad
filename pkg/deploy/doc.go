/*
Package deploy implements the fleet's service deployers: the capability
interface each service kind satisfies, and the registry that dispatches a
ServiceWorkItem to the right one.

Rather than a shared inheritance hierarchy, each service kind (monitor,
data-collector, freqtrade) implements the Deployer interface independently.
A service that needs an extra capability (the monitor stack's scrape target
registration) implements an additional narrow interface instead of growing
the shared base type.

# Architecture

	┌─────────────── SERVICE DEPLOYERS ────────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Registry                       │          │
	│  │  - map[ServiceKind]Deployer                  │          │
	│  │  - Deploy(ctx, work) dispatches by Kind      │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│      ┌──────────────┼──────────────┐                      │
	│      ▼              ▼              ▼                      │
	│  ┌────────┐    ┌──────────┐   ┌───────────┐               │
	│  │monitor │    │collector │   │ freqtrade │               │
	│  │Deployer│    │ Deployer │   │ Deployer  │               │
	│  └────────┘    └──────────┘   └───────────┘               │
	│   Prometheus     metrics :8000   API :8080                 │
	│   Grafana        (no auth)      200 or 401 = alive          │
	│   Alertmanager                                              │
	└────────────────────────────────────────────────────────┘

# Deployer Interface

Every deployer implements:

  - Deploy: install/configure the service (pull image, upload config, start)
  - Start / Stop: bring the service's containers up or down
  - HealthCheck: probe the service and return a HealthReport
  - GetLogs: tail the service's container logs
  - Kind: identify which ServiceKind this deployer handles

All remote work goes through the Runner interface (a narrow view of the
remote execution engine: Run and Put), so deployers never hold an SSH
connection directly and can be tested against a fake Runner.

# Health Aggregation

HealthCheck returns a HealthReport combining individual health.Result values
(one per sub-component, e.g. Prometheus/Grafana/Alertmanager for the monitor
deployer) into a single Status via AggregateHealth:

  - all checks healthy    -> StatusHealthy
  - some checks healthy   -> StatusDegraded
  - no checks healthy     -> StatusUnhealthy
  - HealthCheck itself errors -> StatusUnknown (caller maps the error)

# Monitor Stack Scrape Targets

The monitor deployer additionally implements ScrapeTargetAdder: it rewrites
the scrape_configs block of prometheus.yml on the remote host and issues a
POST to Prometheus's /-/reload endpoint, which re-reads the config file in
place without a container restart.
*/
package deploy
