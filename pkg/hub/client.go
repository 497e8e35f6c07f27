package hub

import (
	"time"

	"github.com/peerhub-dev/peerhub/pkg/protocol"
	"github.com/peerhub-dev/peerhub/pkg/transport"
)

// Client is the hub's handle for one connected peer: an immutable
// identity, the owned channel, and the wire-protocol instance created
// for this connection. A client is created exactly once when the
// listener reports a new channel and destroyed exactly once when its
// disconnect signal is processed.
type Client struct {
	id          uint64
	channel     transport.Channel
	codec       protocol.Codec
	connectedAt time.Time
}

func newClient(id uint64, ch transport.Channel, codec protocol.Codec) *Client {
	return &Client{
		id:          id,
		channel:     ch,
		codec:       codec,
		connectedAt: time.Now(),
	}
}

// ID returns the process-unique identity assigned at connection time.
func (c *Client) ID() uint64 {
	return c.id
}

// Channel returns the underlying channel.
func (c *Client) Channel() transport.Channel {
	return c.channel
}

// Codec returns the wire-protocol instance bound to this connection.
func (c *Client) Codec() protocol.Codec {
	return c.codec
}

// ConnectedAt returns when the client was registered.
func (c *Client) ConnectedAt() time.Time {
	return c.connectedAt
}

// RemoteAddr returns the peer's network address.
func (c *Client) RemoteAddr() string {
	return c.channel.RemoteAddr()
}

// Send writes one message to the peer.
func (c *Client) Send(m protocol.Message) error {
	return c.channel.Send(m)
}
