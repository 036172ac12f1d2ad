/*
Package health provides health check mechanisms for monitoring deployed
fleet services (monitoring stack, data collector, trading bot).

This package implements three types of health checks: HTTP, TCP, and Exec.
Deployers use these checkers to decide whether a just-deployed service has
come up healthy and to aggregate per-service health into the fleet-wide
status the orchestrator reports at the end of a run.

# Architecture

	┌─────────────────────────────────────────────────────────────┐
	│                   Health Check System                       │
	└─────┬──────────────────────────────────────────────────────┘
	      │
	      ▼
	┌──────────────────────────────────────────────────────────────┐
	│                     Checker Interface                        │
	│  • Check(ctx) Result                                         │
	│  • Type() CheckType                                          │
	└────────┬─────────────────────────────────────────────────────┘
	         │
	    ┌────┴──────┬──────────┐
	    ▼           ▼          ▼
	┌────────┐  ┌──────┐  ┌────────┐
	│  HTTP  │  │ TCP  │  │  Exec  │
	│Checker │  │Checker│ │Checker │
	└────────┘  └──────┘  └────────┘
	     │          │          │
	     ▼          ▼          ▼
	  GET /     Connect     Run cmd
	  /-/healthy  :port      over SSH

## Health Check Flow

 1. Deployer deploys a service → builds the matching Checker (Prometheus's
    /-/healthy, Grafana's /api/health, the data collector's metrics port, the
    freqtrade API port).
 2. Check runs whenever the deployer's HealthCheck is called (fleetctl's
    service commands call it); Deploy itself does not run a check.
 3. Status tracks ConsecutiveFailures/ConsecutiveSuccesses so a single flaky
    probe doesn't flip the reported state (hysteresis).
 4. The deployer registry aggregates per-service Result into the fleet-wide
    health summary: all healthy -> healthy, some healthy -> degraded, none
    healthy -> unhealthy, checker error -> unknown.

# Health Check Types

## HTTP Health Checks

HTTP checks perform HTTP requests to verify application health, used for
Prometheus, Grafana, Alertmanager, and the freqtrade REST API (which treats
both 200 and 401 as evidence of liveness via a custom status range).

## TCP Health Checks

TCP checks verify that a port accepts connections, useful for services that
expose no HTTP health endpoint.

## Exec Health Checks

Exec checks run a command over the remote execution engine and treat a zero
exit code as healthy, mirroring how the original shell-script health probes
worked before being formalized into this package.

# Design Patterns

  - Strategy: Checker is implemented by HTTPChecker, TCPChecker, and
    ExecChecker; callers depend only on the interface.
  - Hysteresis: Status.Update requires Config.Retries consecutive failures
    before flipping Healthy to false, avoiding flapping on a single bad probe.
  - Context cancellation: every Check takes a context.Context so a deploy
    operation's overall timeout bounds the health probe too.
*/
package health
