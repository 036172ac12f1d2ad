// Package report is a thin, optional formatter over pkg/events: it turns
// the run/phase/host event stream into single-line human-readable output.
// It is a collaborator, not core — the orchestrator never depends on it,
// and nothing downstream depends on its exact wording.
package report

import (
	"fmt"
	"io"

	"github.com/FireNirva/quants-fleet/pkg/events"
)

// Printer writes a one-line rendering of every event it receives to w,
// until the broker it subscribes to is stopped.
type Printer struct {
	w io.Writer
}

// NewPrinter builds a Printer writing to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Follow subscribes to broker and renders events until sub is closed by
// broker.Unsubscribe or broker.Stop. Run it in its own goroutine.
func (p *Printer) Follow(broker *events.Broker) {
	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	for evt := range sub {
		p.render(evt)
	}
}

func (p *Printer) render(evt *events.Event) {
	host := evt.Metadata["host"]
	ts := evt.Timestamp.Format("15:04:05")
	if host != "" {
		fmt.Fprintf(p.w, "[%s] %-24s %-16s %s\n", ts, evt.Type, host, evt.Message)
		return
	}
	fmt.Fprintf(p.w, "[%s] %-24s %s\n", ts, evt.Type, evt.Message)
}
