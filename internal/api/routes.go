package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dialflow/floorwatch/internal/channel"
	"github.com/dialflow/floorwatch/internal/heartbeat"
	"github.com/dialflow/floorwatch/internal/ledger"
)

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, opts StartOpts) {
	// Agent client transport.
	router.GET("/ws", channel.Handler(opts.Hub))

	api := router.Group("/api")
	api.GET("/agents/online", handleOnline(opts.Ledger, opts.Heartbeats, opts.Hub))
	api.GET("/agents/:id/presence", handlePresence(opts.Ledger, opts.Hub))
	api.GET("/agents/:id/totals", handleRangeTotals(opts.Ledger))
	api.POST("/agents/:id/disconnect", handleAdminDisconnect(opts.Hub, opts.Ledger))
	api.GET("/events", handleSSE(opts.Ledger))
}

// handlePresence returns the live status plus today's per-status seconds.
func handlePresence(l *ledger.Ledger, hub *channel.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		agentID := c.Param("id")
		snap, err := l.DailyTotals(agentID, time.Now())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"agent_id":  agentID,
			"day":       snap.Day,
			"totals":    snap.Totals,
			"live":      snap.Live,
			"status":    snap.Status,
			"connected": hub.Connected(agentID),
		})
	}
}

// handleRangeTotals returns per-status seconds over ?from=...&to=...
// (inclusive, YYYY-MM-DD).
func handleRangeTotals(l *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		agentID := c.Param("id")
		from, err := time.Parse("2006-01-02", c.Query("from"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be YYYY-MM-DD"})
			return
		}
		to, err := time.Parse("2006-01-02", c.Query("to"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "to must be YYYY-MM-DD"})
			return
		}

		totals, err := l.RangeTotals(agentID, from, to, time.Now())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"agent_id": agentID,
			"from":     from.Format("2006-01-02"),
			"to":       to.Format("2006-01-02"),
			"totals":   totals,
		})
	}
}

// onlineAgent is one row of the supervisor roster.
type onlineAgent struct {
	AgentID   string     `json:"agent_id"`
	Status    string     `json:"status"`
	StartedAt time.Time  `json:"started_at"`
	LastSeen  *time.Time `json:"last_seen,omitempty"`
	Connected bool       `json:"connected"`
}

// handleOnline lists agents with an open session, joined with heartbeat
// and transport state.
func handleOnline(l *ledger.Ledger, hb *heartbeat.Store, hub *channel.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessions, err := l.OnlineAgents()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		seen := hb.Snapshot()
		agents := make([]onlineAgent, 0, len(sessions))
		for _, s := range sessions {
			row := onlineAgent{
				AgentID:   s.AgentID,
				Status:    s.Status,
				StartedAt: s.StartedAt,
				Connected: hub.Connected(s.AgentID),
			}
			if t, ok := seen[s.AgentID]; ok {
				lastSeen := t
				row.LastSeen = &lastSeen
			}
			agents = append(agents, row)
		}
		c.JSON(http.StatusOK, gin.H{"count": len(agents), "agents": agents})
	}
}

// handleAdminDisconnect is the administrator force-logout boundary. The
// agent's client receives the forced-disconnect notification with reason
// "forced" before its transport closes.
func handleAdminDisconnect(hub *channel.Hub, l *ledger.Ledger) gin.HandlerFunc {
	return func(c *gin.Context) {
		agentID := c.Param("id")
		if _, err := l.OpenSession(agentID); err != nil {
			if errors.Is(err, ledger.ErrNoOpenSession) {
				c.JSON(http.StatusNotFound, gin.H{"error": "no open session"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if err := hub.Disconnect(agentID, channel.ReasonForced); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"agent_id": agentID, "disconnected": true})
	}
}
