package realtime

import (
	"time"

	"github.com/gofiber/contrib/websocket"
)

const (
	writeWait  = 10 * time.Second
	sendBuffer = 32
)

// Client is one authenticated websocket session. A session subscribes to
// at most one match room at a time.
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan outboundEvent
	userID   string
	username string

	// guarded by hub.mu
	matchID string
	closed  bool
}

// writePump drains the send buffer onto the wire. It is the only writer
// on the connection; it exits when the hub closes the channel.
func (c *Client) writePump() {
	for ev := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(ev); err != nil {
			break
		}
	}
	c.conn.Close()
}

// trySend enqueues without blocking. A full buffer means the client has
// stopped draining; the caller decides whether to drop it.
func (c *Client) trySend(ev outboundEvent) bool {
	c.hub.mu.Lock()
	defer c.hub.mu.Unlock()
	return c.trySendLocked(ev)
}

// trySendLocked requires hub.mu. The closed check keeps a racing
// broadcast from writing to a channel the hub already closed.
func (c *Client) trySendLocked(ev outboundEvent) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}
