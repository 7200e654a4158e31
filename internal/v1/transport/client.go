// Package transport is the realtime WebSocket adapter: it owns the
// connection lifecycle (upgrade, read/write pumps, origin checks) and drives
// a room.Room purely through its exported hooks (OnAuth/OnJoin/OnMessage/
// OnLeave). Grounded on the teacher's internal/v1/transport client.go/hub.go
// (read/write pump split, buffered send channel, gorilla/websocket), adapted
// from binary protobuf framing to the JSON event envelope §4.F's message
// table expects.
package transport

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/AGIoffice/SkyOffice/internal/v1/logging"
	"github.com/AGIoffice/SkyOffice/internal/v1/room"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
	sendBufferSize = 64
)

// wsConnection is the subset of *websocket.Conn a Client drives, narrowed so
// tests can substitute a fake.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(string) error)
	Close() error
}

// inboundEnvelope is the wire shape of a client-to-server message: an event
// name plus an opaque JSON payload routed to room.Room.OnMessage.
type inboundEnvelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// outboundEnvelope is the wire shape of a server-to-client message.
type outboundEnvelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Client is one connected WebSocket session bound to a room.Room. It
// satisfies room.ClientHandle.
type Client struct {
	conn wsConnection
	rm   *room.Room
	key  string

	mu     sync.Mutex
	closed bool
	send   chan outboundEnvelope
}

func newClient(conn wsConnection, rm *room.Room, key string) *Client {
	return &Client{
		conn: conn,
		rm:   rm,
		key:  key,
		send: make(chan outboundEnvelope, sendBufferSize),
	}
}

// SessionKey satisfies room.ClientHandle.
func (c *Client) SessionKey() string { return c.key }

// Send satisfies room.ClientHandle: it enqueues a message for writePump,
// dropping it if the client's buffer is full or it has already closed.
func (c *Client) Send(event string, payload any) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return
	}
	select {
	case c.send <- outboundEnvelope{Event: event, Payload: payload}:
	default:
		logging.Warn(context.Background(), "transport: dropping message to full send buffer", zap.String("sessionKey", c.key), zap.String("event", event))
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump decodes inbound JSON envelopes and hands them to the room until
// the connection errors or closes, then runs the room's leave hook exactly
// once.
func (c *Client) readPump(ctx context.Context, auth *room.AuthResult) {
	defer func() {
		c.rm.OnLeave(ctx, c, auth)
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var env inboundEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			logging.Warn(ctx, "transport: malformed inbound envelope", zap.String("sessionKey", c.key), zap.Error(err))
			continue
		}
		c.rm.OnMessage(ctx, c, env.Event, env.Payload)
	}
}

// writePump drains the send buffer to the wire and sends periodic pings,
// mirroring the teacher's ticker-driven keepalive.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(env)
			if err != nil {
				log.Printf("transport: failed to marshal outbound envelope: %v", err)
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
