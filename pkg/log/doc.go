/*
Package log provides structured logging for the fleet orchestration engine
using zerolog.

The log package wraps zerolog to provide JSON-structured logging with
scope-specific child loggers, configurable levels, and helpers for common
logging patterns. Logs include timestamps and support filtering by severity
for production debugging of long-running orchestration runs.

# Architecture

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │            Global Logger                    │          │
	│  │  - zerolog instance, set via log.Init()      │          │
	│  │  - thread-safe for concurrent per-host use   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Configuration                     │          │
	│  │  - Level: debug/info/warn/error             │          │
	│  │  - Format: JSON or console                  │          │
	│  │  - Output: stdout, file, or custom writer   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │           Scoped Loggers                    │          │
	│  │  - WithComponent("security")                │          │
	│  │  - WithRun(runID)                           │          │
	│  │  - WithHost("trader-01")                    │          │
	│  │  - WithProfile("orderbook-btc")             │          │
	│  │  - WithStep("ssh-hardening")                │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            Log Output                       │          │
	│  │                                              │          │
	│  │  JSON: {"level":"info","component":"security",         │
	│  │         "host":"trader-01","step":"ssh-hardening",      │
	│  │         "message":"step completed"}          │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Scoped loggers

Each phase of an orchestration run attaches the identifiers relevant to its
unit of work so that a run can be filtered end to end by run_id, by host, or
by security step across every log line it produced:

  - WithRun wraps the orchestrator run identifier (a uuid), present on every
    log line emitted during that run.
  - WithHost wraps the fleet host currently being provisioned, secured, or
    serviced.
  - WithProfile wraps the data-lake sync profile name.
  - WithStep wraps the current security pipeline step name.

These compose: a security-pipeline log line typically carries run, host, and
step fields together.

# Secret redaction

Extra variables passed into the remote execution engine and rules-profile
fields loaded from YAML may carry credentials (a mesh VPN auth key, an SSH
passphrase). IsSensitiveField and Redact give callers that build log events
from arbitrary string-keyed maps a single place to decide whether a value is
safe to print. A field name containing "auth_key", "token", "password",
"secret", or "private_key" (case-insensitive) is always redacted. Never log
raw extra_vars or rules-profile maps without routing them through Redact.

# Thread Safety

zerolog loggers are safe for concurrent use from multiple goroutines, which
matters here: the orchestrator fans out per-host work with errgroup, and each
goroutine logs through its own WithHost-scoped logger without additional
synchronization.
*/
package log
