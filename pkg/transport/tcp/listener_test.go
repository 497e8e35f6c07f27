package tcp

import (
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/peerhub-dev/peerhub/pkg/protocol"
	"github.com/peerhub-dev/peerhub/pkg/transport"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func startListener(t *testing.T) (*Listener, chan transport.Channel) {
	t.Helper()
	accepted := make(chan transport.Channel, 8)

	l := NewListener(&Config{Addr: "127.0.0.1:0"}, testLogger())
	l.OnChannel(func(ch transport.Channel) { accepted <- ch })
	if err := l.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { l.Stop() })
	return l, accepted
}

func waitChannel(t *testing.T, accepted chan transport.Channel) transport.Channel {
	t.Helper()
	select {
	case ch := <-accepted:
		return ch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accepted channel")
		return nil
	}
}

func TestListenerAcceptsChannel(t *testing.T) {
	l, accepted := startListener(t)

	conn, err := net.Dial("tcp", l.Addr())
	if err != nil {
		t.Fatalf("Dial(%s) error = %v", l.Addr(), err)
	}
	defer conn.Close()

	ch := waitChannel(t, accepted)
	if ch.Token() == "" {
		t.Error("accepted channel should carry a token")
	}
	if ch.RemoteAddr() == "" {
		t.Error("accepted channel should report a remote address")
	}
}

func TestListenerStartTwice(t *testing.T) {
	l, _ := startListener(t)
	if err := l.Start(); err != nil {
		t.Errorf("second Start() error = %v, want nil no-op", err)
	}
}

func TestListenerStopStopsAccepting(t *testing.T) {
	l, _ := startListener(t)
	addr := l.Addr()

	if err := l.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := l.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}

	if conn, err := net.Dial("tcp", addr); err == nil {
		conn.Close()
		t.Error("dial after Stop should fail")
	}
}

// pipeChannel builds a channel over an in-memory pipe; the returned conn
// is the peer's end.
func pipeChannel() (*channel, net.Conn) {
	server, client := net.Pipe()
	ch := newChannel(server, DefaultConfig(), "pipe-token", testLogger())
	return ch, client
}

func TestChannelHeartbeatSignal(t *testing.T) {
	ch, peer := pipeChannel()
	defer peer.Close()

	beats := make(chan struct{}, 1)
	ch.Bind(&protocol.BinaryCodec{}, transport.Callbacks{
		OnHeartbeat:  func() { beats <- struct{}{} },
		OnDisconnect: func(error) {},
	})
	ch.Start()

	if err := protocol.WriteFrame(peer, protocol.NewFrame(protocol.FrameHeartbeat, nil)); err != nil {
		t.Fatalf("write heartbeat: %v", err)
	}

	select {
	case <-beats:
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat signal not raised")
	}
}

func TestChannelMessageSignal(t *testing.T) {
	ch, peer := pipeChannel()
	defer peer.Close()

	msgs := make(chan protocol.Message, 1)
	ch.Bind(&protocol.BinaryCodec{}, transport.Callbacks{
		OnMessage:    func(m protocol.Message) { msgs <- m },
		OnDisconnect: func(error) {},
	})
	ch.Start()

	if err := protocol.WriteFrame(peer, protocol.NewFrame(protocol.FrameData, []byte("hello"))); err != nil {
		t.Fatalf("write data frame: %v", err)
	}

	select {
	case m := <-msgs:
		if string(m.Payload) != "hello" {
			t.Errorf("payload = %q, want hello", m.Payload)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("message signal not raised")
	}
}

func TestChannelGoodbyeDisconnects(t *testing.T) {
	ch, peer := pipeChannel()
	defer peer.Close()

	disconnects := make(chan error, 1)
	ch.Bind(&protocol.BinaryCodec{}, transport.Callbacks{
		OnDisconnect: func(err error) { disconnects <- err },
	})
	ch.Start()

	if err := protocol.WriteFrame(peer, protocol.NewFrame(protocol.FrameGoodbye, nil)); err != nil {
		t.Fatalf("write goodbye: %v", err)
	}

	select {
	case err := <-disconnects:
		if err != nil {
			t.Errorf("orderly goodbye disconnect err = %v, want nil", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect signal not raised")
	}
}

func TestChannelPeerCloseDisconnectsWithError(t *testing.T) {
	ch, peer := pipeChannel()

	disconnects := make(chan error, 1)
	ch.Bind(&protocol.BinaryCodec{}, transport.Callbacks{
		OnDisconnect: func(err error) { disconnects <- err },
	})
	ch.Start()

	peer.Close()

	select {
	case err := <-disconnects:
		if err == nil {
			t.Error("abrupt peer close should surface a non-nil error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect signal not raised")
	}
}

func TestChannelSend(t *testing.T) {
	ch, peer := pipeChannel()
	defer peer.Close()

	ch.Bind(&protocol.BinaryCodec{}, transport.Callbacks{
		OnDisconnect: func(error) {},
	})

	done := make(chan error, 1)
	go func() {
		done <- ch.Send(protocol.Message{Type: protocol.FrameData, Payload: []byte("pong")})
	}()

	f, err := protocol.ReadFrame(peer)
	if err != nil {
		t.Fatalf("peer read error = %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if f.Type != protocol.FrameData || string(f.Payload) != "pong" {
		t.Errorf("peer received %v %q, want Data pong", f.Type, f.Payload)
	}
}

func TestChannelSendAfterDisconnect(t *testing.T) {
	ch, peer := pipeChannel()
	defer peer.Close()

	ch.Bind(&protocol.BinaryCodec{}, transport.Callbacks{
		OnDisconnect: func(error) {},
	})

	go io.Copy(io.Discard, peer)
	ch.Disconnect()

	if err := ch.Send(protocol.Heartbeat()); err != transport.ErrChannelClosed {
		t.Errorf("Send() after Disconnect error = %v, want ErrChannelClosed", err)
	}
}

func TestChannelDisconnectSignalsOnce(t *testing.T) {
	ch, peer := pipeChannel()
	defer peer.Close()

	var count int
	disconnects := make(chan struct{}, 2)
	ch.Bind(&protocol.BinaryCodec{}, transport.Callbacks{
		OnDisconnect: func(error) {
			count++
			disconnects <- struct{}{}
		},
	})

	go io.Copy(io.Discard, peer)
	ch.Disconnect()
	ch.Disconnect()

	select {
	case <-disconnects:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect signal not raised")
	}
	if count != 1 {
		t.Errorf("disconnect signal raised %d times, want 1", count)
	}
}
