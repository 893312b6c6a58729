// Package transport adapts websocket connections to the session layer
// and hosts the HTTP upgrade endpoint that turns a request into a live
// session. Route dispatch and static assets stay outside the core.
package transport

import (
	"time"

	"github.com/gorilla/websocket"
)

// WSConn wraps a gorilla websocket connection behind session.Conn.
// The session's write pump is the only caller of WriteFrame/WritePing,
// which keeps the one-concurrent-writer rule of the underlying library;
// control replies from the ping handler go through WriteControl, which
// is safe to use concurrently.
type WSConn struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func NewWSConn(conn *websocket.Conn, maxFrameSize int64, writeTimeout time.Duration) *WSConn {
	conn.SetReadLimit(maxFrameSize)
	return &WSConn{conn: conn, writeTimeout: writeTimeout}
}

// OnLiveness installs fn as the liveness callback: both pong answers to
// our probes and unsolicited pings from the client count as signals.
func (c *WSConn) OnLiveness(fn func()) {
	c.conn.SetPongHandler(func(string) error {
		fn()
		return nil
	})
	c.conn.SetPingHandler(func(appData string) error {
		fn()
		return c.conn.WriteControl(websocket.PongMessage,
			[]byte(appData), time.Now().Add(c.writeTimeout))
	})
}

// ReadFrame returns the next inbound text frame. Non-text frames are
// skipped: the wire protocol is UTF-8 JSON only.
func (c *WSConn) ReadFrame() ([]byte, error) {
	for {
		msgType, payload, err := c.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if msgType != websocket.TextMessage {
			continue
		}
		return payload, nil
	}
}

func (c *WSConn) WriteFrame(payload []byte) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

func (c *WSConn) WritePing() error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

func (c *WSConn) Close() error {
	return c.conn.Close()
}
