package ws

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/peerhub-dev/peerhub/pkg/protocol"
	"github.com/peerhub-dev/peerhub/pkg/transport"
)

// channel carries protocol frames over one WebSocket connection.
type channel struct {
	conn   *websocket.Conn
	cfg    *Config
	token  string
	logger *slog.Logger

	codec protocol.Codec
	cb    transport.Callbacks

	writeMu sync.Mutex
	closed  atomic.Bool
}

func newChannel(conn *websocket.Conn, cfg *Config, token string, logger *slog.Logger) *channel {
	return &channel{
		conn:   conn,
		cfg:    cfg,
		token:  token,
		logger: logger.With("component", "ws_channel", "token", token),
	}
}

// Bind implements transport.Channel.
func (c *channel) Bind(codec protocol.Codec, cb transport.Callbacks) {
	c.codec = codec
	c.cb = cb
}

// Start implements transport.Channel.
func (c *channel) Start() {
	go c.readLoop()
}

// Disconnect implements transport.Channel. The disconnect callback fires
// once, from whichever of Disconnect or the read loop finishes first.
func (c *channel) Disconnect() error {
	c.writeMu.Lock()
	deadline := time.Now().Add(c.cfg.WriteTimeout)
	c.conn.SetWriteDeadline(deadline)
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()

	c.finish(nil)
	return nil
}

// Send implements transport.Channel.
func (c *channel) Send(m protocol.Message) error {
	data, err := c.codec.Encode(m)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return transport.ErrChannelClosed
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return c.conn.WriteMessage(websocket.BinaryMessage, data)
}

// RemoteAddr implements transport.Channel.
func (c *channel) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Token implements transport.Channel.
func (c *channel) Token() string {
	return c.token
}

// readLoop reads frames until the connection ends, surfacing heartbeat
// and data frames through the bound callbacks.
func (c *channel) readLoop() {
	c.conn.SetReadLimit(c.cfg.MaxMessageSize)

	for {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway) {
				c.finish(nil)
				return
			}
			if c.closed.Load() {
				// Local Disconnect already delivered the signal.
				return
			}
			c.logger.Debug("read error", "error", err)
			c.finish(err)
			return
		}

		m, err := c.codec.Decode(data)
		if err != nil {
			c.logger.Warn("frame decode error", "error", err)
			continue
		}

		switch m.Type {
		case protocol.FrameHeartbeat:
			if c.cb.OnHeartbeat != nil {
				c.cb.OnHeartbeat()
			}

		case protocol.FrameGoodbye:
			c.finish(nil)
			return

		default:
			if c.cb.OnMessage != nil {
				c.cb.OnMessage(m)
			}
		}
	}
}

// finish closes the connection and raises the disconnect signal exactly
// once.
func (c *channel) finish(err error) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.conn.Close()

	if c.cb.OnDisconnect != nil {
		c.cb.OnDisconnect(err)
	}
}

var _ transport.Channel = (*channel)(nil)
