/*
Package types defines the core data structures used throughout the fleet
orchestration engine.

This package contains the domain model shared by every other package: the
environment spec, hosts, security pipeline state, service work items,
data-lake profiles and checkpoints, and the run/phase/host event stream.
These types carry no behavior of their own; they are the vocabulary the
orchestrator, security pipeline, deployers, and data-lake syncer all speak.

# Architecture

The types package defines:

  - Environment topology (Environment, Host, HostStatus)
  - Security pipeline state (SecuritySpec, SecurityStep, SecurityMarker)
  - VPN configuration (VPNSpec, VPNDriverKind)
  - Service deployment (ServiceKind, ServiceWorkItem)
  - Data-lake replication (Profile, Checkpoint, TransferStatus, SyncResult)
  - Orchestrator phases (PhaseName, PhaseResult, RunEvent)

All types are designed to be:
  - Serializable to YAML (config) and JSON (checkpoints)
  - Self-documenting with clear field names
  - Safe to pass across goroutine boundaries (plain data, no embedded locks)

# Core Types

Environment Topology:
  - Environment: the full declarative description of a deployment target
  - Host: a single remote machine and its current lifecycle state
  - HostStatus: planned, provisioned, reachable, hardened, service-bearing,
    unreachable, destroyed

Security Pipeline:
  - SecuritySpec: rules profile name and cooldown parameters
  - SecurityStep: the seven ordered, marker-guarded hardening steps
  - SecurityMarker: proof a step has already run for a host, for idempotence

Service Deployment:
  - ServiceKind: monitor, data-collector, freqtrade
  - ServiceWorkItem: binds a kind to a target host and its config

Data-Lake Replication:
  - Profile: one pull-based rsync replication job
  - Checkpoint: the persisted outcome of the most recent sync attempt
  - SyncResult: the outcome of one sync cycle (transfer + retention GC)

Orchestrator:
  - PhaseName: plan, provision, secure, service, summarize
  - PhaseResult: per-phase outcome across all target hosts
  - RunEvent: a single run/phase/host progress event

# Relationship to other packages

pkg/config loads YAML into Environment. pkg/remote operates on a Host.
pkg/security advances a Host through SecurityStep in order, recording a
SecurityMarker per step. pkg/deploy dispatches a ServiceWorkItem to the
Deployer registered for its Kind. pkg/checkpoint, pkg/transfer, and
pkg/retention operate on a Profile and produce a Checkpoint/SyncResult.
pkg/orchestrator ties all of the above together phase by phase, publishing
RunEvent through pkg/events as it goes.
*/
package types
