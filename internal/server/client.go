package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Default outbound queue / timeout constants, overridden by config.
const (
	defaultSendQueueSize = 64
	defaultWriteTimeout  = 5 * time.Second
)

// client wraps a websocket connection with a bounded outbound queue and a
// dedicated writer goroutine. It implements session.Transport.
//
// Back-pressure policy: a saturated queue means a recipient that cannot
// keep up, and the broadcaster must never stall on it. Enqueue fails fast
// and closes the client; lifecycle cleanup follows from the read loop.
type client struct {
	conn *websocket.Conn
	addr string

	sendCh    chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once

	writeTimeout time.Duration
}

func newClient(conn *websocket.Conn, addr string, queueSize int, writeTimeout time.Duration) *client {
	if queueSize <= 0 {
		queueSize = defaultSendQueueSize
	}
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}
	return &client{
		conn:         conn,
		addr:         addr,
		sendCh:       make(chan []byte, queueSize),
		closeCh:      make(chan struct{}),
		writeTimeout: writeTimeout,
	}
}

// writePump is the single writer goroutine for this connection. Frames
// leave in submission order, which is the per-recipient ordering guarantee.
func (c *client) writePump() {
	for {
		select {
		case msg, ok := <-c.sendCh:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
			err := c.conn.Write(ctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				slog.Warn("write failed", "client", c.addr, "error", err)
				c.CloseAsync()
				return
			}
		case <-c.closeCh:
			return
		}
	}
}

// Enqueue queues a frame for async delivery. Non-blocking: a full queue
// disconnects the slow client and returns an error.
func (c *client) Enqueue(msg []byte) error {
	select {
	case <-c.closeCh:
		return fmt.Errorf("client closed")
	default:
	}

	select {
	case c.sendCh <- msg:
		return nil
	default:
		slog.Warn("send queue full, disconnecting slow client", "client", c.addr)
		c.CloseAsync()
		return fmt.Errorf("send queue full")
	}
}

// CloseAsync signals the writePump to stop without blocking. Safe to call
// multiple times.
func (c *client) CloseAsync() {
	c.closeOnce.Do(func() {
		close(c.closeCh)
	})
}

// Close stops the writer and closes the connection.
func (c *client) Close() error {
	c.CloseAsync()
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
