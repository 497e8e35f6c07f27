// Package transport defines the seam between the hub and the code that
// owns sockets: a Listener accepts connections and surfaces them as
// Channels, and a Channel carries framed messages to and from one peer.
//
// The hub never touches bytes. It binds a codec and callbacks to each
// accepted channel, then tells the channel to start its I/O loops. The
// channel raises the heartbeat and disconnect signals the hub's liveness
// tracking is built on.
package transport

import (
	"errors"

	"github.com/peerhub-dev/peerhub/pkg/protocol"
)

// ErrChannelClosed is returned by Send after the channel has ended.
var ErrChannelClosed = errors.New("transport: channel closed")

// Callbacks are the signals a channel raises toward its owner.
// All callbacks may be invoked from the channel's own goroutines and
// must not block.
type Callbacks struct {
	// OnHeartbeat is invoked for every heartbeat frame received.
	OnHeartbeat func()

	// OnMessage is invoked for every data frame received.
	OnMessage func(m protocol.Message)

	// OnDisconnect is invoked exactly once when the channel ends,
	// whether from a read error, a peer goodbye, or Disconnect.
	// err is nil for orderly closes.
	OnDisconnect func(err error)
}

// Channel is one established bidirectional connection to a peer.
//
// Bind must be called before Start; signals arriving before the owner
// has subscribed would otherwise be lost.
type Channel interface {
	// Bind supplies the codec and callbacks for this channel.
	Bind(codec protocol.Codec, cb Callbacks)

	// Start begins the channel's read/write loops. It does not block.
	Start()

	// Disconnect requests closure. The disconnect callback fires as a
	// result, exactly once, even if Disconnect is called repeatedly.
	Disconnect() error

	// Send writes one message to the peer.
	Send(m protocol.Message) error

	// RemoteAddr returns the peer's network address for logging.
	RemoteAddr() string

	// Token returns the opaque per-connection token assigned at accept
	// time, used for log correlation before an identity exists.
	Token() string
}

// Listener accepts raw connections and surfaces them as channels.
type Listener interface {
	// OnChannel registers the accept callback. Must be called before
	// Start.
	OnChannel(fn func(Channel))

	// Start begins accepting. A bind failure is returned synchronously.
	Start() error

	// Stop stops accepting new connections. Channels already handed to
	// the accept callback keep operating until individually disconnected.
	Stop() error
}
