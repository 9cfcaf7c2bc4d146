package channel

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/dialflow/floorwatch/internal/ledger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Agent clients are served from the CRM origin; the reverse proxy in
	// front of this service enforces origin policy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler returns the gin handler for the presence websocket endpoint.
// Clients connect with ?agent=<id>&status=<initial status>.
func Handler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		agentID := c.Query("agent")
		if agentID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "agent is required"})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error.
			log.Printf("channel: upgrade for %s: %v", agentID, err)
			return
		}

		conn := newWSConn(ws)
		snap, err := hub.Register(agentID, conn, c.Query("status"))
		if err != nil {
			conn.Send(ServerEvent{Type: EventError, Message: err.Error()})
			conn.Close()
			return
		}
		conn.Send(ServerEvent{Type: EventWelcome, Snapshot: snap})

		readLoop(hub, agentID, conn, ws)
	}
}

// readLoop serializes one agent's operations in arrival order. It returns
// when the transport closes; if this connection is still the authoritative
// one at that point, the close is treated as the explicit disconnect path.
func readLoop(hub *Hub, agentID string, conn *wsConn, ws *websocket.Conn) {
	for {
		var evt ClientEvent
		if err := ws.ReadJSON(&evt); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("channel: read for %s: %v", agentID, err)
			}
			// Superseded connections were already unregistered by their
			// successor; their session must be left alone.
			if hub.Unregister(agentID, conn) {
				if err := hub.Disconnect(agentID, ReasonLogout); err != nil {
					log.Printf("channel: close on transport drop for %s: %v", agentID, err)
				}
			}
			return
		}

		// Events are bound to the authenticated connection identity; a
		// payload naming another agent is malformed and rejected.
		if evt.AgentID != "" && evt.AgentID != agentID {
			log.Printf("channel: event for %q on connection of %q rejected", evt.AgentID, agentID)
			conn.Send(ServerEvent{Type: EventError, Message: "agent mismatch"})
			continue
		}

		switch evt.Type {
		case EventHeartbeat:
			hub.Heartbeat(agentID)

		case EventStatusChange:
			snap, err := hub.StatusChange(agentID, evt.Status)
			if err != nil {
				if errors.Is(err, ledger.ErrInvalidStatus) {
					conn.Send(ServerEvent{Type: EventError, Message: "invalid status"})
					continue
				}
				// Persistence failure: surface it and leave the client
				// unsynced so it retries on its next heartbeat cycle.
				log.Printf("channel: status change for %s: %v", agentID, err)
				conn.Send(ServerEvent{Type: EventError, Message: "status change failed"})
				continue
			}
			conn.Send(ServerEvent{Type: EventTotals, Snapshot: snap})

		case EventDisconnect:
			reason := evt.Reason
			if reason == "" {
				reason = ReasonLogout
			}
			hub.Unregister(agentID, conn)
			if err := hub.Disconnect(agentID, reason); err != nil {
				log.Printf("channel: disconnect for %s: %v", agentID, err)
			}
			conn.Close()
			return

		default:
			log.Printf("channel: unknown event %q from %s", evt.Type, agentID)
			conn.Send(ServerEvent{Type: EventError, Message: "unknown event type"})
		}
	}
}
