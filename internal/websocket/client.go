package websocket

import (
	"context"
	"sync"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
	// The feed is one-way; anything a subscriber sends is read and dropped.
	readLimit = 4096
)

// Client is one change-feed subscriber.
type Client struct {
	hub    *Hub
	conn   *ws.Conn
	remote string
	send   chan []byte

	// stopped is closed when the hub wants the connection closed with
	// stopCode.
	stopped    chan struct{}
	stopOnce   sync.Once
	stopCode   ws.StatusCode
	stopReason string
}

// NewClient creates a Client tied to the given hub and connection.
func NewClient(hub *Hub, conn *ws.Conn, remote string) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		remote:  remote,
		send:    make(chan []byte, sendBufferSize),
		stopped: make(chan struct{}),
	}
}

func (c *Client) stop(code ws.StatusCode, reason string) {
	c.stopOnce.Do(func() {
		c.stopCode, c.stopReason = code, reason
		close(c.stopped)
	})
}

func (c *Client) markLagged() {
	c.stop(ws.StatusPolicyViolation, "change feed lagged, reload state")
}

// Run registers the client and pumps messages until the connection closes.
func (c *Client) Run(ctx context.Context) {
	c.conn.SetReadLimit(readLimit)
	c.hub.Register(c)
	defer c.hub.Unregister(c)
	c.hub.logger.Debug("subscriber connected", "remote", c.remote)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx, cancel)
	c.readPump(ctx)
	c.hub.logger.Debug("subscriber disconnected", "remote", c.remote)
}

func (c *Client) readPump(ctx context.Context) {
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			return
		}
	}
}

// writePump writes queued messages and pings. A subscriber that fell behind
// is closed so it reconnects and reloads the schedule.
func (c *Client) writePump(ctx context.Context, cancel context.CancelFunc) {
	defer cancel()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-c.stopped:
			if c.stopCode == ws.StatusPolicyViolation {
				c.hub.logger.Warn("closing lagging subscriber", "remote", c.remote)
			}
			c.conn.Close(c.stopCode, c.stopReason)
			return
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
