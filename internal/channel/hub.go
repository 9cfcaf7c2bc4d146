package channel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dialflow/floorwatch/internal/heartbeat"
	"github.com/dialflow/floorwatch/internal/ledger"
	"github.com/dialflow/floorwatch/internal/notify"
	"github.com/dialflow/floorwatch/internal/status"
)

// Conn is one client transport handle. The hub only ever pushes events and
// closes; reading is the transport handler's job.
type Conn interface {
	Send(ServerEvent) error
	Close() error
}

// Hub routes presence operations for all connected agents. It holds the
// authoritative connection registry: at most one Conn per agent identity,
// with old-handle eviction as an explicit step on register.
type Hub struct {
	mu    sync.Mutex
	conns map[string]Conn

	heartbeats *heartbeat.Store
	ledger     *ledger.Ledger
	notifier   *notify.Notifier

	// now is swappable for tests.
	now func() time.Time
}

// NewHub returns a Hub over the given collaborators. notifier may be nil.
func NewHub(hb *heartbeat.Store, l *ledger.Ledger, notifier *notify.Notifier) *Hub {
	return &Hub{
		conns:      make(map[string]Conn),
		heartbeats: hb,
		ledger:     l,
		notifier:   notifier,
		now:        time.Now,
	}
}

// Register installs c as the authoritative connection for the agent. If
// another connection is registered, it is told it has been superseded and
// closed; the underlying session stays open for the new connection to
// inherit. A session is opened in initialStatus when none exists. Returns
// the welcome snapshot of today's totals.
func (h *Hub) Register(agentID string, c Conn, initialStatus string) (*ledger.Snapshot, error) {
	if agentID == "" {
		return nil, fmt.Errorf("channel: agentID is required")
	}
	if initialStatus == "" {
		initialStatus = status.Available
	}
	if !status.Valid(initialStatus) {
		return nil, fmt.Errorf("%w: %q", ledger.ErrInvalidStatus, initialStatus)
	}

	now := h.now()

	// Evict any older handle for the same identity. The session is not
	// closed: the new connection refreshes it.
	h.mu.Lock()
	old := h.conns[agentID]
	h.conns[agentID] = c
	h.mu.Unlock()

	if old != nil && old != c {
		evt := ServerEvent{
			Type:    EventForcedDisconnect,
			Reason:  ReasonSuperseded,
			Message: reasonMessage(ReasonSuperseded),
		}
		if err := old.Send(evt); err != nil {
			log.Printf("channel: notify superseded conn for %s: %v", agentID, err)
		}
		old.Close()
		h.notify(notify.ForcedDisconnect(agentID, ReasonSuperseded, now))
	}

	// Open a session unless one is already running.
	if _, err := h.ledger.Open(agentID, initialStatus, now); err != nil && !errors.Is(err, ledger.ErrAlreadyOpen) {
		h.Unregister(agentID, c)
		return nil, err
	}

	h.heartbeats.Mark(agentID, now)

	snap, err := h.ledger.DailyTotals(agentID, now)
	if err != nil {
		// The handler closes the socket on a failed register; a dead
		// handle must not stay in the registry. The heartbeat entry
		// stays so the monitor reclaims the session it opened.
		h.Unregister(agentID, c)
		return nil, err
	}
	return snap, nil
}

// Heartbeat records a heartbeat. Duplicates are harmless.
func (h *Hub) Heartbeat(agentID string) {
	if agentID == "" {
		return
	}
	h.heartbeats.Mark(agentID, h.now())
}

// StatusChange moves the agent to newStatus, closing the old time slice and
// opening a new one, and returns the updated daily totals snapshot. Status
// is agent-private; nothing is broadcast.
func (h *Hub) StatusChange(agentID, newStatus string) (*ledger.Snapshot, error) {
	now := h.now()
	if _, err := h.ledger.ChangeStatus(agentID, newStatus, now); err != nil {
		return nil, err
	}
	h.heartbeats.Mark(agentID, now)
	return h.ledger.DailyTotals(agentID, now)
}

// Disconnect closes the agent's session with the given reason. The ledger
// close happens first; the heartbeat entry is only removed once it
// succeeds, so a failed close is retried by the liveness monitor instead
// of being forgotten. For involuntary reasons the client is told why
// before its transport is closed.
func (h *Hub) Disconnect(agentID, reason string) error {
	if agentID == "" {
		return fmt.Errorf("channel: agentID is required")
	}
	now := h.now()

	err := h.ledger.Close(agentID, now, reason)
	if err != nil && !errors.Is(err, ledger.ErrNoOpenSession) {
		return fmt.Errorf("channel: disconnect %s: %w", agentID, err)
	}
	alreadyClosed := errors.Is(err, ledger.ErrNoOpenSession)

	h.heartbeats.Remove(agentID)

	h.mu.Lock()
	c := h.conns[agentID]
	delete(h.conns, agentID)
	h.mu.Unlock()

	involuntary := reason == ReasonInactivity || reason == ReasonForced
	if c != nil {
		if involuntary {
			evt := ServerEvent{
				Type:    EventForcedDisconnect,
				Reason:  reason,
				Message: reasonMessage(reason),
			}
			if sendErr := c.Send(evt); sendErr != nil {
				// Best effort: the transport may already be gone.
				log.Printf("channel: notify forced disconnect for %s: %v", agentID, sendErr)
			}
		}
		c.Close()
	}

	if involuntary && !alreadyClosed {
		h.notify(notify.ForcedDisconnect(agentID, reason, now))
	}
	return nil
}

// Unregister removes c from the registry without touching the session or
// heartbeat state, but only when c is still the registered handle. A
// superseded connection's reader calls this after eviction and must not
// disturb the successor.
func (h *Hub) Unregister(agentID string, c Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[agentID] != c {
		return false
	}
	delete(h.conns, agentID)
	return true
}

// Connected reports whether the agent has a registered transport.
func (h *Hub) Connected(agentID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.conns[agentID]
	return ok
}

// ConnectedCount returns the number of registered transports.
func (h *Hub) ConnectedCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) notify(alert notify.Alert) {
	if h.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	h.notifier.Send(ctx, alert)
}
