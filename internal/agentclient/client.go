// Package agentclient is the client-side presence agent: it keeps the
// local per-status timers an agent sees in their tray app, restores them
// across restarts, feeds heartbeats to the server, and reconciles local
// display state with server-confirmed totals. The server is always the
// source of truth; the local timers are a cache, replaced (never merged)
// whenever a server snapshot arrives.
package agentclient

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dialflow/floorwatch/internal/channel"
	"github.com/dialflow/floorwatch/internal/status"
)

// State is the client lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateRestoring
	StateSyncing
	StateLive
)

// String returns the state name for logs and displays.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRestoring:
		return "restoring"
	case StateSyncing:
		return "syncing"
	case StateLive:
		return "live"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DefaultHeartbeatInterval matches the server's expected cadence.
const DefaultHeartbeatInterval = 5 * time.Second

// Options configures a Client.
type Options struct {
	ServerURL         string // e.g. "ws://crm.internal:8090"
	AgentID           string
	InitialStatus     string
	CachePath         string
	HeartbeatInterval time.Duration

	// OnForcedDisconnect surfaces the human-readable reason to the user
	// before local state is cleared.
	OnForcedDisconnect func(reason, message string)
}

// Client is the presence agent for one identity.
type Client struct {
	opts Options

	mu        sync.Mutex
	state     State
	curStatus string
	changedAt time.Time        // start of the elapsed clock for curStatus
	buckets   map[string]int64 // local per-status seconds, display cache
	now       func() time.Time

	ws      *websocket.Conn
	writeMu sync.Mutex
}

// New returns a Client in the Uninitialized state.
func New(opts Options) (*Client, error) {
	if opts.ServerURL == "" {
		return nil, fmt.Errorf("agentclient: server URL is required")
	}
	if opts.AgentID == "" {
		return nil, fmt.Errorf("agentclient: agentID is required")
	}
	if opts.InitialStatus == "" {
		opts.InitialStatus = status.Available
	}
	if !status.Valid(opts.InitialStatus) {
		return nil, fmt.Errorf("agentclient: unknown status %q", opts.InitialStatus)
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	return &Client{
		opts:    opts,
		state:   StateUninitialized,
		buckets: make(map[string]int64),
		now:     time.Now,
	}, nil
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Status returns the current status code, empty before the first sync.
func (c *Client) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.curStatus
}

// Totals returns the local display totals: cached buckets plus the elapsed
// time of the in-progress status. Approximate until the next server
// snapshot replaces the cache.
func (c *Client) Totals() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.bucketsCopy()
	if c.state == StateLive && c.curStatus != "" {
		out[c.curStatus] += int64(c.now().Sub(c.changedAt) / time.Second)
	}
	return out
}

// Restore loads the local cache, if any, moving Uninitialized → Restoring.
// The restored buckets are display-only until the first server snapshot.
func (c *Client) Restore() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateUninitialized {
		return fmt.Errorf("agentclient: restore from state %s", c.state)
	}
	c.state = StateRestoring

	if c.opts.CachePath == "" {
		return nil
	}
	cache, err := loadCache(c.opts.CachePath, c.opts.AgentID, c.now())
	if err != nil {
		// A corrupt cache never blocks startup.
		log.Printf("agentclient: %v", err)
		return nil
	}
	if cache != nil {
		c.buckets = cache.Buckets
		c.curStatus = cache.Status
	}
	return nil
}

// Run connects to the server and processes events until ctx is cancelled,
// the server force-disconnects us, or the transport fails. It drives the
// Restoring → Syncing → Live transitions.
func (c *Client) Run(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateRestoring {
		c.mu.Unlock()
		return fmt.Errorf("agentclient: run from state %s, want restoring", c.state)
	}
	c.state = StateSyncing
	c.mu.Unlock()

	wsURL, err := c.endpoint()
	if err != nil {
		return err
	}
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		c.setState(StateRestoring) // retryable; cache is intact
		return fmt.Errorf("agentclient: dial %s: %w", wsURL, err)
	}

	c.mu.Lock()
	c.ws = ws
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.ws = nil
		c.mu.Unlock()
		ws.Close()
	}()

	// The heartbeat ticker and the socket watcher live on a per-connection
	// context cancelled when Run returns, so neither goroutine outlives
	// the connection under a long-lived parent ctx.
	connCtx, cancelConn := context.WithCancel(ctx)
	defer cancelConn()
	go c.heartbeatLoop(connCtx, ws)

	// Close the socket when the context ends so ReadJSON unblocks.
	go func() {
		<-connCtx.Done()
		ws.Close()
	}()

	for {
		var evt channel.ServerEvent
		if err := ws.ReadJSON(&evt); err != nil {
			if ctx.Err() != nil {
				c.persist()
				return nil
			}
			c.setState(StateRestoring)
			return fmt.Errorf("agentclient: read: %w", err)
		}

		switch evt.Type {
		case channel.EventWelcome, channel.EventTotals:
			c.applySnapshot(evt)

		case channel.EventForcedDisconnect:
			c.handleForcedDisconnect(evt)
			return nil

		case channel.EventError:
			log.Printf("agentclient: server error: %s", evt.Message)

		default:
			log.Printf("agentclient: unknown event %q", evt.Type)
		}
	}
}

// SetStatus performs the optimistic local transition and tells the server.
// The elapsed time of the old status is finalized into its local bucket and
// the elapsed clock resets; the server's totals response then replaces the
// whole cache.
func (c *Client) SetStatus(newStatus string) error {
	if !status.Valid(newStatus) {
		return fmt.Errorf("agentclient: unknown status %q", newStatus)
	}

	c.mu.Lock()
	ws := c.ws
	now := c.now()
	if c.state == StateLive && c.curStatus != "" {
		c.buckets[c.curStatus] += int64(now.Sub(c.changedAt) / time.Second)
	}
	c.curStatus = newStatus
	c.changedAt = now
	c.mu.Unlock()
	c.persist()

	if ws == nil {
		return fmt.Errorf("agentclient: not connected")
	}
	return c.send(ws, channel.ClientEvent{Type: channel.EventStatusChange, Status: newStatus})
}

// Logout sends the voluntary disconnect event. The server closes the
// session and the transport; Run returns when the socket drops.
func (c *Client) Logout() error {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return fmt.Errorf("agentclient: not connected")
	}
	return c.send(ws, channel.ClientEvent{Type: channel.EventDisconnect, Reason: channel.ReasonLogout})
}

// applySnapshot replaces local buckets with the server-confirmed totals.
func (c *Client) applySnapshot(evt channel.ServerEvent) {
	if evt.Snapshot == nil {
		return
	}
	c.mu.Lock()
	buckets := make(map[string]int64, len(evt.Snapshot.Totals))
	for k, v := range evt.Snapshot.Totals {
		buckets[k] = v
	}
	c.buckets = buckets
	if evt.Snapshot.Live {
		c.curStatus = evt.Snapshot.Status
	}
	// The snapshot already includes the live slice up to server "now";
	// restart the local clock from here to avoid counting it twice.
	c.changedAt = c.now()
	c.state = StateLive
	c.mu.Unlock()
	c.persist()
}

// handleForcedDisconnect surfaces the reason, clears all local timer state,
// and returns the client to Uninitialized.
func (c *Client) handleForcedDisconnect(evt channel.ServerEvent) {
	if c.opts.OnForcedDisconnect != nil {
		c.opts.OnForcedDisconnect(evt.Reason, evt.Message)
	}

	c.mu.Lock()
	c.state = StateUninitialized
	c.curStatus = ""
	c.buckets = make(map[string]int64)
	c.mu.Unlock()

	if c.opts.CachePath != "" {
		if err := clearCache(c.opts.CachePath); err != nil {
			log.Printf("agentclient: %v", err)
		}
	}
}

// heartbeatLoop emits heartbeats at the configured cadence.
func (c *Client) heartbeatLoop(ctx context.Context, ws *websocket.Conn) {
	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.send(ws, channel.ClientEvent{Type: channel.EventHeartbeat}); err != nil {
				return
			}
		}
	}
}

// send serializes websocket writes; gorilla allows one writer at a time.
func (c *Client) send(ws *websocket.Conn, evt channel.ClientEvent) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteJSON(evt)
}

// persist writes the display cache; failures are logged only.
func (c *Client) persist() {
	if c.opts.CachePath == "" {
		return
	}
	c.mu.Lock()
	cache := &Cache{
		AgentID: c.opts.AgentID,
		Day:     c.now().Format("2006-01-02"),
		Status:  c.curStatus,
		Buckets: c.bucketsCopy(),
		SavedAt: c.now(),
	}
	c.mu.Unlock()
	if err := saveCache(c.opts.CachePath, cache); err != nil {
		log.Printf("agentclient: %v", err)
	}
}

// bucketsCopy copies the bucket map; caller holds c.mu.
func (c *Client) bucketsCopy() map[string]int64 {
	out := make(map[string]int64, len(c.buckets))
	for k, v := range c.buckets {
		out[k] = v
	}
	return out
}

// setState sets the lifecycle state.
func (c *Client) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// endpoint builds the websocket URL with identity and initial status.
func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.opts.ServerURL)
	if err != nil {
		return "", fmt.Errorf("agentclient: parse server URL: %w", err)
	}
	u.Path = "/ws"
	q := u.Query()
	q.Set("agent", c.opts.AgentID)
	q.Set("status", c.opts.InitialStatus)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
