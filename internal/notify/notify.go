// Package notify delivers supervisor alerts for presence events (forced
// disconnects, daily digests) to chat platforms. Delivery is best-effort:
// a failed alert is logged and dropped, never allowed to block or fail the
// presence operation that produced it.
package notify

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Severity levels for alerts.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Alert is one supervisor-facing notification.
type Alert struct {
	Title     string
	Body      string
	Severity  string
	AgentID   string
	Timestamp time.Time
}

// Adapter is implemented by each chat platform.
type Adapter interface {
	// Send delivers the alert to the platform's configured channel.
	Send(ctx context.Context, alert Alert) error

	// Close shuts down the adapter connection.
	Close() error
}

// Notifier fans alerts out to all configured adapters.
type Notifier struct {
	adapters []Adapter
}

// New returns a Notifier over the given adapters. A Notifier with no
// adapters is valid and discards everything.
func New(adapters ...Adapter) *Notifier {
	return &Notifier{adapters: adapters}
}

// Send delivers the alert through every adapter, logging failures.
func (n *Notifier) Send(ctx context.Context, alert Alert) {
	if n == nil {
		return
	}
	for _, a := range n.adapters {
		if err := a.Send(ctx, alert); err != nil {
			log.Printf("notify: send %q: %v", alert.Title, err)
		}
	}
}

// Close closes all adapters, returning the first error.
func (n *Notifier) Close() error {
	var first error
	for _, a := range n.adapters {
		if err := a.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// ForcedDisconnect builds the alert for a session closed out from under an
// agent. The reason is one of the wire reasons: superseded, inactivity,
// forced.
func ForcedDisconnect(agentID, reason string, at time.Time) Alert {
	severity := SeverityWarning
	var body string
	switch reason {
	case "superseded":
		severity = SeverityInfo
		body = fmt.Sprintf("Agent %s signed in from a second location; the older session was closed.", agentID)
	case "inactivity":
		body = fmt.Sprintf("Agent %s went silent past the liveness timeout; their session was reclaimed.", agentID)
	case "forced":
		body = fmt.Sprintf("Agent %s was disconnected by an administrator.", agentID)
	default:
		body = fmt.Sprintf("Agent %s was disconnected (%s).", agentID, reason)
	}
	return Alert{
		Title:     fmt.Sprintf("Session closed: %s (%s)", agentID, reason),
		Body:      body,
		Severity:  severity,
		AgentID:   agentID,
		Timestamp: at,
	}
}
