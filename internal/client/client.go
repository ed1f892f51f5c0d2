package client

// Config holds the options needed to join a sphere deep-space server.
type Config struct {
	ServerAddr  string // ws:// or wss:// URL of the server's /ws route
	ResumeToken string // empty on first join
}

// Client is the network-facing half of the game client: it records the
// session identity and resume token from welcome and owns the snapshot
// interpolation buffer. It opens no connection and decodes no frames itself.
type Client struct {
	config      Config
	connected   bool
	selfID      uint32
	resumeToken string
	net         *NetState
}

// New creates a disconnected client with an empty interpolation buffer.
func New(cfg Config) *Client {
	return &Client{
		config:      cfg,
		resumeToken: cfg.ResumeToken,
		net:         NewNetState(),
	}
}

// NetState exposes the interpolation buffer so a renderer can pull frames.
func (c *Client) NetState() *NetState {
	return c.net
}

// SelfID returns the id assigned to this client by the server's welcome
// message, once connected.
func (c *Client) SelfID() uint32 {
	return c.selfID
}

// Connected reports whether the client currently holds an open session.
func (c *Client) Connected() bool {
	return c.connected
}

// ResumeToken returns the token to present on reconnect.
func (c *Client) ResumeToken() string {
	return c.resumeToken
}

// ApplyWelcome records the identity and resume token handed out by the
// server. Called once a welcome frame is decoded.
func (c *Client) ApplyWelcome(selfID uint32, resumeToken string) {
	c.selfID = selfID
	c.resumeToken = resumeToken
	c.connected = true
}

// Disconnect marks the session closed. The transport owns actually closing
// the socket.
func (c *Client) Disconnect() {
	c.connected = false
}
