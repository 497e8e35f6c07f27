package tcp

import (
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/peerhub-dev/peerhub/pkg/protocol"
	"github.com/peerhub-dev/peerhub/pkg/transport"
)

// channel carries protocol frames over one TCP connection.
//
// Framing happens at the transport layer here: frames are read with
// protocol.ReadFrame, then the header-plus-payload bytes are handed to
// the bound codec so custom codecs see the same input as on other
// transports.
type channel struct {
	conn   net.Conn
	cfg    *Config
	token  string
	logger *slog.Logger

	codec protocol.Codec
	cb    transport.Callbacks

	writeMu sync.Mutex
	closed  atomic.Bool
}

func newChannel(conn net.Conn, cfg *Config, token string, logger *slog.Logger) *channel {
	return &channel{
		conn:   conn,
		cfg:    cfg,
		token:  token,
		logger: logger.With("component", "tcp_channel", "token", token),
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

// Disconnect implements transport.Channel. The goodbye frame is best
// effort and only possible once a codec has been bound.
func (c *channel) Disconnect() error {
	if c.codec != nil {
		c.Send(protocol.Goodbye())
	}
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
	_, err = c.conn.Write(data)
	return err
}

// RemoteAddr implements transport.Channel.
func (c *channel) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// Token implements transport.Channel.
func (c *channel) Token() string {
	return c.token
}

func (c *channel) readLoop() {
	for {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))

		f, err := protocol.ReadFrame(c.conn)
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.logger.Debug("read error", "error", err)
			c.finish(err)
			return
		}

		m, err := c.codec.Decode(f.Encode())
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
