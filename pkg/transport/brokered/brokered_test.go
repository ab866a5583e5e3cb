package brokered

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/giongto35/touchcoop/pkg/config"
	"github.com/giongto35/touchcoop/pkg/logger"
	"github.com/giongto35/touchcoop/pkg/network/webrtc"
	"github.com/giongto35/touchcoop/pkg/relay"
	"github.com/giongto35/touchcoop/pkg/transport"
	"github.com/gorilla/websocket"
)

func newRelay(t *testing.T) (*relay.Server, string) {
	t.Helper()
	rs := relay.NewServer(logger.Nop())
	srv := httptest.NewServer(rs)
	t.Cleanup(srv.Close)
	return rs, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func newFactory(t *testing.T) *webrtc.ApiFactory {
	t.Helper()
	f, err := webrtc.NewApiFactory(config.Webrtc{LogLevel: 3}, logger.Nop(), nil)
	if err != nil {
		t.Fatal(err)
	}
	return f.NoIceServers()
}

func TestInviteUsesRelayId(t *testing.T) {
	_, addr := newRelay(t)
	h := NewHost(newFactory(t), addr, "https://x.io/pad", Options{}, logger.Nop())
	defer func() { _ = h.Close() }()

	inv, err := h.Invite(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	id := transport.TokenFromURL(inv.URL, TokenKey)
	if id == "" || !strings.HasPrefix(inv.URL, "https://x.io/pad?hostPeerId=") {
		t.Errorf("bad invitation %+v", inv)
	}
	again, _ := h.Invite(context.Background())
	if again.URL != inv.URL {
		t.Errorf("invitation changed %v != %v", again.URL, inv.URL)
	}
}

func TestInviteRelayDown(t *testing.T) {
	h := NewHost(newFactory(t), "ws://127.0.0.1:1/peer", "https://x.io/pad",
		Options{IdentityTimeout: 100 * time.Millisecond}, logger.Nop())
	defer func() { _ = h.Close() }()

	if _, err := h.Invite(context.Background()); !errors.Is(err, transport.ErrTimeout) {
		t.Errorf("Invite() = %v", err)
	}
}

func TestClientRedialKeepsId(t *testing.T) {
	rs, addr := newRelay(t)
	got := make(chan relay.Message, 1)
	c := Connect(addr, func(m relay.Message) { got <- m }, logger.Nop())
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	id, err := c.Identity(ctx)
	if err != nil {
		t.Fatal(err)
	}

	rs.Close()

	other := Connect(addr, func(relay.Message) {}, logger.Nop())
	defer func() { _ = other.Close() }()
	if _, err := other.Identity(ctx); err != nil {
		t.Fatal(err)
	}
	// keep poking until the first client is back under the same id
	for {
		_ = other.Send(relay.Message{Type: relay.TypeOffer, Dst: id, Payload: []byte(`{}`)})
		select {
		case m := <-got:
			if m.Type != relay.TypeOffer {
				t.Errorf("got %+v", m)
			}
			return
		case <-time.After(100 * time.Millisecond):
		case <-ctx.Done():
			t.Fatal("client didn't come back")
		}
	}
}

func TestClientGivesUpOnTakenId(t *testing.T) {
	dials := make(chan struct{}, 10)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials <- struct{}{}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer func() { _ = conn.Close() }()
		_ = conn.WriteMessage(websocket.TextMessage, relay.Message{Type: relay.TypeIdTaken}.Marshal())
	}))
	defer srv.Close()

	c := Connect("ws"+strings.TrimPrefix(srv.URL, "http"), func(relay.Message) {}, logger.Nop())
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := c.Identity(ctx); !errors.Is(err, ErrIdTaken) {
		t.Errorf("Identity() = %v", err)
	}
	if len(dials) != 1 {
		t.Errorf("relay dialed %v times", len(dials))
	}
}

func TestDialUnknownHost(t *testing.T) {
	if testing.Short() {
		t.Skip("opens real UDP sockets")
	}
	_, addr := newRelay(t)
	d := NewDialer(newFactory(t), addr, Options{}, logger.Nop())
	defer func() { _ = d.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if _, err := d.Dial(ctx, "nobody", transport.ListenerFuncs{}); !errors.Is(err, transport.ErrUnknownPeer) {
		t.Errorf("Dial() = %v", err)
	}
	if _, err := d.Dial(ctx, "", transport.ListenerFuncs{}); !errors.Is(err, transport.ErrBadToken) {
		t.Errorf("Dial(empty) = %v", err)
	}
}

func TestDialHost(t *testing.T) {
	if testing.Short() {
		t.Skip("opens real UDP sockets")
	}
	_, addr := newRelay(t)
	h := NewHost(newFactory(t), addr, "https://x.io/pad", Options{}, logger.Nop())
	defer func() { _ = h.Close() }()

	opened := make(chan transport.Conn, 1)
	got := make(chan string, 1)
	closed := make(chan struct{}, 1)
	h.Listen(transport.ListenerFuncs{
		Open:    func(c transport.Conn) { opened <- c },
		Message: func(_ transport.Conn, data []byte) { got <- string(data) },
		Closed:  func(transport.Conn) { closed <- struct{}{} },
		Error:   func(transport.Conn, error) { closed <- struct{}{} },
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	inv, err := h.Invite(ctx)
	if err != nil {
		t.Fatal(err)
	}

	d := NewDialer(newFactory(t), addr, Options{}, logger.Nop())
	conn, err := d.Dial(ctx, transport.TokenFromURL(inv.URL, TokenKey), transport.ListenerFuncs{})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	select {
	case <-opened:
	case <-ctx.Done():
		t.Fatal("host channel didn't open")
	}
	if err := conn.Send([]byte("ping")); err != nil {
		t.Fatal(err)
	}
	select {
	case m := <-got:
		if m != "ping" {
			t.Errorf("got %v", m)
		}
	case <-ctx.Done():
		t.Fatal("no message")
	}

	_ = d.Close()
	select {
	case <-closed:
	case <-ctx.Done():
		t.Fatal("host wasn't told about the close")
	}
}
