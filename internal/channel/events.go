// Package channel is the realtime transport between agent clients and the
// presence core. It owns the registry mapping each agent identity to the
// single authoritative connection, relays heartbeats and status changes,
// and pushes forced-disconnect notifications.
package channel

import "github.com/dialflow/floorwatch/internal/ledger"

// Client-to-server event types.
const (
	EventHeartbeat    = "heartbeat"
	EventStatusChange = "status_change"
	EventDisconnect   = "disconnect"
)

// Server-to-client event types.
const (
	EventWelcome          = "welcome"
	EventTotals           = "totals"
	EventForcedDisconnect = "forced_disconnect"
	EventError            = "error"
)

// Forced-disconnect reasons carried on the wire.
const (
	ReasonSuperseded = ledger.ReasonSuperseded
	ReasonInactivity = ledger.ReasonInactivity
	ReasonForced     = ledger.ReasonForced
	ReasonLogout     = ledger.ReasonLogout
)

// ClientEvent is a message from an agent client.
type ClientEvent struct {
	Type    string `json:"type"`
	AgentID string `json:"agent_id"`
	Status  string `json:"status,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// ServerEvent is a message to an agent client. Snapshot carries the
// server-confirmed daily totals on welcome and totals events; clients
// replace their local cache with it.
type ServerEvent struct {
	Type     string           `json:"type"`
	Reason   string           `json:"reason,omitempty"`
	Message  string           `json:"message,omitempty"`
	Snapshot *ledger.Snapshot `json:"snapshot,omitempty"`
}

// reasonMessage returns the human-readable explanation surfaced to the
// agent before their local state is cleared.
func reasonMessage(reason string) string {
	switch reason {
	case ReasonSuperseded:
		return "You signed in from another location; this session has been closed."
	case ReasonInactivity:
		return "Your connection went silent and the session was closed for inactivity."
	case ReasonForced:
		return "An administrator has disconnected your session."
	default:
		return "Your session has been closed."
	}
}
