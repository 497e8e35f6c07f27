package ws

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/peerhub-dev/peerhub/pkg/protocol"
	"github.com/peerhub-dev/peerhub/pkg/transport"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// channelCollector gathers accepted channels for assertions.
type channelCollector struct {
	mu       sync.Mutex
	channels []transport.Channel
	notify   chan transport.Channel
}

func newChannelCollector() *channelCollector {
	return &channelCollector{notify: make(chan transport.Channel, 8)}
}

func (cc *channelCollector) accept(ch transport.Channel) {
	cc.mu.Lock()
	cc.channels = append(cc.channels, ch)
	cc.mu.Unlock()
	cc.notify <- ch
}

func (cc *channelCollector) wait(t *testing.T) transport.Channel {
	t.Helper()
	select {
	case ch := <-cc.notify:
		return ch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for accepted channel")
		return nil
	}
}

func startListener(t *testing.T, cc *channelCollector) *Listener {
	t.Helper()
	l := NewListener(&Config{Addr: "127.0.0.1:0"}, testLogger())
	l.OnChannel(cc.accept)
	if err := l.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { l.Stop() })
	return l
}

func dial(t *testing.T, l *Listener) *websocket.Conn {
	t.Helper()
	url := "ws://" + l.Addr() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial(%s) error = %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestListenerAcceptsChannel(t *testing.T) {
	cc := newChannelCollector()
	l := startListener(t, cc)

	dial(t, l)
	ch := cc.wait(t)

	if ch.Token() == "" {
		t.Error("accepted channel should carry a token")
	}
	if ch.RemoteAddr() == "" {
		t.Error("accepted channel should report a remote address")
	}
}

func TestListenerUniqueTokens(t *testing.T) {
	cc := newChannelCollector()
	l := startListener(t, cc)

	dial(t, l)
	dial(t, l)

	a := cc.wait(t)
	b := cc.wait(t)
	if a.Token() == b.Token() {
		t.Error("each channel should get a distinct token")
	}
}

func TestListenerHealthz(t *testing.T) {
	l := startListener(t, newChannelCollector())

	resp, err := http.Get("http://" + l.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", resp.StatusCode)
	}
}

func TestListenerStartBindFailure(t *testing.T) {
	cc := newChannelCollector()
	a := startListener(t, cc)

	b := NewListener(&Config{Addr: a.Addr()}, testLogger())
	b.OnChannel(cc.accept)
	if err := b.Start(); err == nil {
		b.Stop()
		t.Fatal("Start() on an occupied address should fail")
	}
}

// Stop can run before the serve goroutine has been scheduled; the
// listener must survive that without touching shared server state.
func TestListenerImmediateStop(t *testing.T) {
	for i := 0; i < 10; i++ {
		l := NewListener(&Config{Addr: "127.0.0.1:0"}, testLogger())
		l.OnChannel(func(transport.Channel) {})
		if err := l.Start(); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if err := l.Stop(); err != nil {
			t.Fatalf("Stop() error = %v", err)
		}
	}
}

func TestListenerStopIdempotent(t *testing.T) {
	l := startListener(t, newChannelCollector())
	if err := l.Stop(); err != nil {
		t.Errorf("first Stop() error = %v", err)
	}
	if err := l.Stop(); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func TestChannelHeartbeatSignal(t *testing.T) {
	cc := newChannelCollector()
	l := startListener(t, cc)

	conn := dial(t, l)
	ch := cc.wait(t)

	beats := make(chan struct{}, 1)
	ch.Bind(&protocol.BinaryCodec{}, transport.Callbacks{
		OnHeartbeat:  func() { beats <- struct{}{} },
		OnDisconnect: func(error) {},
	})
	ch.Start()

	hb, _ := (&protocol.BinaryCodec{}).Encode(protocol.Heartbeat())
	if err := conn.WriteMessage(websocket.BinaryMessage, hb); err != nil {
		t.Fatalf("write heartbeat: %v", err)
	}

	select {
	case <-beats:
	case <-time.After(2 * time.Second):
		t.Fatal("heartbeat signal not raised")
	}
}

func TestChannelMessageSignal(t *testing.T) {
	cc := newChannelCollector()
	l := startListener(t, cc)

	conn := dial(t, l)
	ch := cc.wait(t)

	msgs := make(chan protocol.Message, 1)
	ch.Bind(&protocol.BinaryCodec{}, transport.Callbacks{
		OnMessage:    func(m protocol.Message) { msgs <- m },
		OnDisconnect: func(error) {},
	})
	ch.Start()

	data, _ := (&protocol.BinaryCodec{}).Encode(protocol.Message{
		Type:    protocol.FrameData,
		Payload: []byte("hello"),
	})
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
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
	cc := newChannelCollector()
	l := startListener(t, cc)

	conn := dial(t, l)
	ch := cc.wait(t)

	disconnects := make(chan error, 1)
	ch.Bind(&protocol.BinaryCodec{}, transport.Callbacks{
		OnDisconnect: func(err error) { disconnects <- err },
	})
	ch.Start()

	gb, _ := (&protocol.BinaryCodec{}).Encode(protocol.Goodbye())
	if err := conn.WriteMessage(websocket.BinaryMessage, gb); err != nil {
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

func TestChannelPeerCloseDisconnectsOnce(t *testing.T) {
	cc := newChannelCollector()
	l := startListener(t, cc)

	conn := dial(t, l)
	ch := cc.wait(t)

	var mu sync.Mutex
	var count int
	disconnects := make(chan struct{}, 2)
	ch.Bind(&protocol.BinaryCodec{}, transport.Callbacks{
		OnDisconnect: func(error) {
			mu.Lock()
			count++
			mu.Unlock()
			disconnects <- struct{}{}
		},
	})
	ch.Start()

	conn.Close()

	select {
	case <-disconnects:
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect signal not raised")
	}

	// A second Disconnect must not raise a second signal.
	ch.Disconnect()
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if count != 1 {
		t.Errorf("disconnect signal raised %d times, want 1", count)
	}
}

func TestChannelSend(t *testing.T) {
	cc := newChannelCollector()
	l := startListener(t, cc)

	conn := dial(t, l)
	ch := cc.wait(t)

	ch.Bind(&protocol.BinaryCodec{}, transport.Callbacks{
		OnDisconnect: func(error) {},
	})
	ch.Start()

	want := protocol.Message{Type: protocol.FrameData, Payload: []byte("pong")}
	if err := ch.Send(want); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("client read error = %v", err)
	}
	got, err := (&protocol.BinaryCodec{}).Decode(data)
	if err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if got.Type != protocol.FrameData || string(got.Payload) != "pong" {
		t.Errorf("received %+v, want %+v", got, want)
	}
}

func TestChannelSendAfterDisconnect(t *testing.T) {
	cc := newChannelCollector()
	l := startListener(t, cc)

	dial(t, l)
	ch := cc.wait(t)

	ch.Bind(&protocol.BinaryCodec{}, transport.Callbacks{
		OnDisconnect: func(error) {},
	})
	ch.Start()
	ch.Disconnect()

	if err := ch.Send(protocol.Heartbeat()); err != transport.ErrChannelClosed {
		t.Errorf("Send() after Disconnect error = %v, want ErrChannelClosed", err)
	}
}

func TestSameOriginCheck(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		host   string
		want   bool
	}{
		{"no_origin", "", "example.com", true},
		{"matching", "http://example.com", "example.com", true},
		{"mismatched", "http://evil.com", "example.com", false},
		{"malformed", "://bad", "example.com", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			r.Host = tc.host
			if tc.origin != "" {
				r.Header.Set("Origin", tc.origin)
			}
			if got := SameOriginCheck(r); got != tc.want {
				t.Errorf("SameOriginCheck(origin=%q host=%q) = %v, want %v",
					tc.origin, tc.host, got, tc.want)
			}
		})
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := (&Config{Addr: ":7777"}).withDefaults()
	if cfg.Addr != ":7777" {
		t.Errorf("Addr = %q, want :7777", cfg.Addr)
	}
	if cfg.Path != "/ws" {
		t.Errorf("Path = %q, want /ws", cfg.Path)
	}
	if cfg.ReadTimeout != 120*time.Second {
		t.Errorf("ReadTimeout = %v, want 120s", cfg.ReadTimeout)
	}
	if cfg.MaxMessageSize != 64*1024 {
		t.Errorf("MaxMessageSize = %d, want 65536", cfg.MaxMessageSize)
	}

	var nilCfg *Config
	if nilCfg.withDefaults().Addr != ":9000" {
		t.Error("nil config should use the default address")
	}
}
