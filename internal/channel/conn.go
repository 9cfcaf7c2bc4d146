package channel

import (
	"sync"

	"github.com/gorilla/websocket"
)

// wsConn adapts a gorilla websocket connection to the hub's Conn interface.
// Writes are serialized: gorilla allows at most one concurrent writer, and
// both the reader goroutine and the hub push events.
type wsConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func newWSConn(ws *websocket.Conn) *wsConn {
	return &wsConn{ws: ws}
}

// Send writes the event as a JSON text message.
func (c *wsConn) Send(evt ServerEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(evt)
}

// Close closes the underlying websocket.
func (c *wsConn) Close() error {
	return c.ws.Close()
}
