package api

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dialflow/floorwatch/internal/ledger"
)

// presenceEvent is one SSE payload for the supervisor wallboard.
type presenceEvent struct {
	AgentID   string `json:"agent_id"`
	Status    string `json:"status,omitempty"`
	OldStatus string `json:"old_status,omitempty"`
	Kind      string `json:"kind"` // connected, status_changed, disconnected
	Count     int    `json:"count"`
}

// handleSSE streams presence changes. It polls the open sessions: the
// wallboard needs second-scale freshness, not event-exact delivery.
func handleSSE(l *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		// Send connected event.
		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()

		// Last known status per agent for change detection.
		known := map[string]string{}
		if sessions, err := l.OnlineAgents(); err == nil {
			for _, s := range sessions {
				known[s.AgentID] = s.Status
			}
		}

		ctx := c.Request.Context()
		ticker := time.NewTicker(3 * time.Second)
		keepalive := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		defer keepalive.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-keepalive.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				sessions, err := l.OnlineAgents()
				if err != nil {
					continue
				}

				current := make(map[string]string, len(sessions))
				for _, s := range sessions {
					current[s.AgentID] = s.Status
				}

				flushed := false
				for agentID, st := range current {
					old, ok := known[agentID]
					switch {
					case !ok:
						writeSSE(c.Writer, "presence", presenceEvent{
							AgentID: agentID, Status: st, Kind: "connected", Count: len(current),
						})
						flushed = true
					case old != st:
						writeSSE(c.Writer, "presence", presenceEvent{
							AgentID: agentID, Status: st, OldStatus: old, Kind: "status_changed", Count: len(current),
						})
						flushed = true
					}
				}
				for agentID := range known {
					if _, ok := current[agentID]; !ok {
						writeSSE(c.Writer, "presence", presenceEvent{
							AgentID: agentID, Kind: "disconnected", Count: len(current),
						})
						flushed = true
					}
				}

				known = current
				if flushed {
					c.Writer.Flush()
				}
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
