/*
Package events provides an in-memory event broker for orchestrator run
progress.

The events package implements a lightweight event bus for broadcasting
run/phase/host events to interested subscribers. It supports asynchronous,
non-blocking delivery to multiple consumers of the same run: a CLI progress
renderer, the metrics recorder, and a future audit sink can each subscribe
independently without coupling to each other or to the orchestrator.

# Architecture

	┌──────────────────── EVENT BROKER ────────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              Event Broker                    │          │
	│  │  - in-memory message bus, one per run       │          │
	│  │  - non-blocking fan-out to subscribers      │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          Event Distribution                 │          │
	│  │                                              │          │
	│  │  Orchestrator → Event Channel (buffer: 100) │          │
	│  │       ↓                                      │          │
	│  │  Broadcast Loop                              │          │
	│  │       ↓                                      │          │
	│  │  Subscriber Channels (buffer: 50 each)       │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────┘

# Event Types

The orchestrator publishes lifecycle events at three granularities:

  - Run-level: EventRunStarted, EventRunCompleted, EventRunFailed
  - Phase-level: EventPhaseStarted, EventPhaseCompleted, EventPhaseFailed
  - Host/step-level: EventHostProvisioned, EventHostReachable,
    EventHostSecured, EventHostUnreachable, EventSecurityStepDone,
    EventServiceDeployed, EventServiceFailed, EventSyncCompleted,
    EventSyncFailed

# Delivery guarantees

Publish queues the event on the broker's 100-slot event channel and blocks
while that channel is full, until the broker is stopped. Fan-out is
non-blocking: if a subscriber's buffered channel is full, the event is
dropped for that subscriber rather than stalling the broadcast loop.
This favors forward progress of the run over complete event history; a
subscriber that needs a durable log should persist events as they arrive
rather than relying on replay.

# Usage

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	go func() {
		for evt := range sub {
			fmt.Printf("[%s] %s: %s\n", evt.RunID, evt.Type, evt.Message)
		}
	}()

	broker.Publish(&events.Event{
		Type:    events.EventPhaseStarted,
		RunID:   runID,
		Message: "provisioning hosts",
	})
*/
package events
