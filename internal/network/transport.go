// Package network carries JSON text frames between the server and its
// clients over WebSocket, replacing the length-prefixed TCP framing an
// earlier prototype of this codebase used.
package network

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// readTimeout bounds how long a connection may go without a pong
	// before it is considered dead; client data frames do not extend it.
	readTimeout = 60 * time.Second
	// pingInterval must stay below readTimeout so a live-but-quiet client
	// gets pinged before its deadline expires.
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
	maxFrameSize = 4096
)

// Connection is a single client-server text-frame connection.
type Connection interface {
	Send(data []byte) error
	Recv() ([]byte, error)
	Close() error
	RemoteAddr() string
}

// IsAllowedOrigin reports whether r's Origin header is acceptable.
// An empty allowed list means "allow all" (the default, open-CORS mode);
// a request with no Origin header (a non-browser client) is always allowed.
func IsAllowedOrigin(r *http.Request, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	for _, a := range allowed {
		if strings.EqualFold(a, origin) || strings.EqualFold(a, originURL.Host) {
			return true
		}
	}
	return false
}

// NewUpgrader builds a websocket.Upgrader whose CheckOrigin enforces
// allowedOrigins.
func NewUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  maxFrameSize,
		WriteBufferSize: maxFrameSize,
		CheckOrigin: func(r *http.Request) bool {
			return IsAllowedOrigin(r, allowedOrigins)
		},
	}
}

// Upgrade promotes an HTTP request to a WebSocket connection.
func Upgrade(w http.ResponseWriter, r *http.Request, allowedOrigins []string) (*WSConnection, error) {
	upgrader := NewUpgrader(allowedOrigins)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newWSConnection(conn), nil
}

// Dial opens a client-side WebSocket connection to addr (a ws:// or wss://
// URL), used by the load-test binary.
func Dial(addr string) (*WSConnection, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, err
	}
	return newWSConnection(conn), nil
}

// WSConnection implements Connection over a gorilla/websocket socket,
// exchanging JSON text frames.
type WSConnection struct {
	conn *websocket.Conn
}

func newWSConnection(conn *websocket.Conn) *WSConnection {
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})
	return &WSConnection{conn: conn}
}

// Send writes data as a single text frame.
func (c *WSConnection) Send(data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Ping writes a protocol-level ping frame, used by the server's writer loop
// to keep idle connections alive.
func (c *WSConnection) Ping() error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.PingMessage, nil)
}

// Recv blocks for the next text frame.
func (c *WSConnection) Recv() ([]byte, error) {
	_, data, err := c.conn.ReadMessage()
	return data, err
}

// Close closes the underlying socket.
func (c *WSConnection) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the remote peer's address.
func (c *WSConnection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// PingInterval exposes the server's keepalive cadence for callers that run
// their own writer-loop ticker.
func PingInterval() time.Duration {
	return pingInterval
}
