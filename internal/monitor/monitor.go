// Package monitor detects silently-dead connections whose clients never
// sent an explicit disconnect (crashed tab, lost network) and reclaims
// their sessions.
package monitor

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/dialflow/floorwatch/internal/heartbeat"
	"github.com/dialflow/floorwatch/internal/ledger"
)

// Default timings. The timeout must stay a small multiple of the client
// heartbeat interval or a single dropped packet reclaims a live session.
const (
	DefaultTick    = 10 * time.Second
	DefaultTimeout = 45 * time.Second
)

// SessionCloser is the close path shared with explicit disconnects. The
// presence hub implements it; on success it removes the heartbeat entry
// and pushes the forced-disconnect notification.
type SessionCloser interface {
	Disconnect(agentID, reason string) error
}

// Monitor sweeps the heartbeat store on a fixed tick and closes sessions
// whose heartbeat has gone silent past the timeout.
type Monitor struct {
	heartbeats *heartbeat.Store
	closer     SessionCloser
	timeout    time.Duration
	tick       time.Duration

	// afterScan runs between the stale scan and the per-agent re-check,
	// letting tests interleave a late heartbeat.
	afterScan func(agentID string)
}

// New returns a Monitor. Zero durations fall back to the defaults.
func New(hb *heartbeat.Store, closer SessionCloser, timeout, tick time.Duration) (*Monitor, error) {
	if hb == nil {
		return nil, fmt.Errorf("monitor: heartbeat store is required")
	}
	if closer == nil {
		return nil, fmt.Errorf("monitor: session closer is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Monitor{heartbeats: hb, closer: closer, timeout: timeout, tick: tick}, nil
}

// Run loops until ctx is cancelled, sweeping every tick.
func (m *Monitor) Run(ctx context.Context, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	fmt.Fprintf(out, "Liveness monitor starting (tick %s, timeout %s)...\n", m.tick, m.timeout)

	ticker := time.NewTicker(m.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(out, "Liveness monitor stopped.\n")
			return nil
		case <-ticker.C:
			m.sweep(time.Now())
		}
	}
}

// sweep closes sessions for agents whose heartbeat is older than the
// timeout. Liveness wins ties: each agent's last-seen time is re-checked
// against a fresh cutoff immediately before acting, not against the
// snapshot taken at the start of the sweep.
func (m *Monitor) sweep(now time.Time) {
	for _, agentID := range m.heartbeats.StaleBefore(now.Add(-m.timeout)) {
		if m.afterScan != nil {
			m.afterScan(agentID)
		}
		if !m.stillStale(agentID, time.Now()) {
			continue
		}
		// The closer removes the heartbeat entry only when the ledger
		// close succeeds, so a persistence failure here is retried on
		// the next tick instead of being forgotten.
		if err := m.closer.Disconnect(agentID, ledger.ReasonInactivity); err != nil {
			log.Printf("monitor: reclaim session for %s: %v", agentID, err)
		}
	}
}

// stillStale re-reads the agent's last-seen time. An entry that vanished
// was reclaimed by another path; a refreshed entry means the agent is
// alive again.
func (m *Monitor) stillStale(agentID string, now time.Time) bool {
	last, ok := m.heartbeats.LastSeen(agentID)
	if !ok {
		return false
	}
	return now.Sub(last) > m.timeout
}
