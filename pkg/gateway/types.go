package gateway

import (
	"sync"
	"time"

	"github.com/briansrls/the-circle/internal/config"
	"github.com/briansrls/the-circle/pkg/relay"
	"github.com/gorilla/websocket"
)

// Socket message types. Clients send relay and cancel; the server sends the
// rest.
const (
	MessageRelay  = "relay"
	MessageCancel = "cancel"
	MessageEvent  = "event"
	MessageResult = "result"
	MessageError  = "error"
)

// ClientMessage is a request received over the WebSocket. A relay request
// with Agents runs that roster instead of the configured one.
type ClientMessage struct {
	Type    string               `json:"type"`
	Rounds  *int                 `json:"rounds,omitempty"`
	Message string               `json:"message,omitempty"`
	Agents  []config.AgentConfig `json:"agents,omitempty"`
}

// ServerMessage is pushed to a WebSocket client. Exactly one of Event,
// Result or Error is set.
type ServerMessage struct {
	Type      string        `json:"type"`
	RelayID   string        `json:"relay_id,omitempty"`
	Event     *relay.Event  `json:"event,omitempty"`
	Result    *relay.Result `json:"result,omitempty"`
	Error     *ErrorBody    `json:"error,omitempty"`
	Timestamp int64         `json:"timestamp"`
}

// ErrorBody carries an HTTP-style status code and a message.
type ErrorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// HealthStatus is the /healthz body.
type HealthStatus struct {
	Status        string       `json:"status"`
	ActiveRelays  int          `json:"active_relays"`
	TrackedIPs    int          `json:"tracked_clients"`
	SocketClients int          `json:"socket_clients"`
	Clients       []ClientInfo `json:"clients"`
}

// ClientInfo describes a connected WebSocket client.
type ClientInfo struct {
	ID           string    `json:"id"`
	ConnectedAt  time.Time `json:"connectedAt"`
	LastActivity time.Time `json:"lastActivity"`
	IPAddress    string    `json:"ipAddress"`
	Relaying     bool      `json:"relaying"`
	Idle         bool      `json:"idle"`
}

// Client is a connected WebSocket client. A client runs at most one relay
// at a time.
type Client struct {
	ID           string
	Conn         *websocket.Conn
	ConnectedAt  time.Time
	LastActivity time.Time
	IPAddress    string

	writeMu sync.Mutex

	relayMu     sync.Mutex
	cancelRelay func()
}

// WriteJSON serializes writes; gorilla connections allow one writer at a time.
func (c *Client) WriteJSON(msg ServerMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixMilli()
	}
	return c.Conn.WriteJSON(msg)
}

// WriteClose sends a close frame with the given reason.
func (c *Client) WriteClose(code int, reason string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	msg := websocket.FormatCloseMessage(code, reason)
	return c.Conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

// beginRelay marks the client busy. It reports false if a relay is already
// running.
func (c *Client) beginRelay(cancel func()) bool {
	c.relayMu.Lock()
	defer c.relayMu.Unlock()

	if c.cancelRelay != nil {
		return false
	}
	c.cancelRelay = cancel
	return true
}

func (c *Client) endRelay() {
	c.relayMu.Lock()
	c.cancelRelay = nil
	c.relayMu.Unlock()
}

// stopRelay cancels the running relay, if any.
func (c *Client) stopRelay() bool {
	c.relayMu.Lock()
	defer c.relayMu.Unlock()

	if c.cancelRelay == nil {
		return false
	}
	c.cancelRelay()
	return true
}

func (c *Client) relaying() bool {
	c.relayMu.Lock()
	defer c.relayMu.Unlock()
	return c.cancelRelay != nil
}
