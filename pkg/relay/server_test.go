package relay

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/giongto35/touchcoop/pkg/logger"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func dial(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http")
	if id != "" {
		u += "?" + IdParam + "=" + id
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func recv(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	m, err := Parse(data)
	if err != nil {
		t.Fatalf("parse %s: %v", data, err)
	}
	return m
}

func send(t *testing.T, conn *websocket.Conn, m Message) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, m.Marshal()); err != nil {
		t.Fatal(err)
	}
}

func open(t *testing.T, srv *httptest.Server, id string) (*websocket.Conn, string) {
	t.Helper()
	conn := dial(t, srv, id)
	m := recv(t, conn)
	if m.Type != TypeOpen || m.Dst == "" {
		t.Fatalf("expected open, got %+v", m)
	}
	return conn, m.Dst
}

func TestAssignsIds(t *testing.T) {
	srv := httptest.NewServer(NewServer(logger.Nop()))
	defer srv.Close()

	_, a := open(t, srv, "")
	_, b := open(t, srv, "")
	if a == b {
		t.Errorf("same id %v", a)
	}
	_, c := open(t, srv, "host-1")
	if c != "host-1" {
		t.Errorf("requested id not granted: %v", c)
	}

	taken := dial(t, srv, "host-1")
	if m := recv(t, taken); m.Type != TypeIdTaken {
		t.Errorf("expected id-taken, got %+v", m)
	}
}

func TestRouting(t *testing.T) {
	srv := httptest.NewServer(NewServer(logger.Nop()))
	defer srv.Close()

	host, hostId := open(t, srv, "")
	player, playerId := open(t, srv, "")

	send(t, player, Message{Type: TypeOffer, Src: "forged", Dst: hostId, Payload: []byte(`{"sdp":"x"}`)})
	m := recv(t, host)
	if m.Type != TypeOffer || m.Src != playerId || string(m.Payload) != `{"sdp":"x"}` {
		t.Errorf("host got %+v", m)
	}

	send(t, host, Message{Type: TypeAnswer, Dst: playerId, Payload: []byte(`{"sdp":"y"}`)})
	if m := recv(t, player); m.Type != TypeAnswer || m.Src != hostId {
		t.Errorf("player got %+v", m)
	}

	send(t, player, Message{Type: TypeOffer, Dst: "nobody"})
	if m := recv(t, player); m.Type != TypeExpire || m.Src != "nobody" {
		t.Errorf("expected expire, got %+v", m)
	}

	// garbage is skipped and the connection stays up
	if err := player.WriteMessage(websocket.TextMessage, []byte("garbage")); err != nil {
		t.Fatal(err)
	}
	send(t, player, Message{Type: TypeOffer, Dst: hostId})
	if m := recv(t, host); m.Type != TypeOffer {
		t.Errorf("host got %+v", m)
	}
}

func TestLeaveNotifiesContacts(t *testing.T) {
	rs := NewServer(logger.Nop())
	srv := httptest.NewServer(rs)
	defer srv.Close()

	host, hostId := open(t, srv, "")
	player, playerId := open(t, srv, "")
	_, _ = open(t, srv, "")

	send(t, player, Message{Type: TypeOffer, Dst: hostId})
	_ = recv(t, host)

	_ = player.Close()
	m := recv(t, host)
	if m.Type != TypeLeave || m.Src != playerId {
		t.Errorf("expected leave, got %+v", m)
	}

	deadline := time.Now().Add(2 * time.Second)
	for rs.Peers() != 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if rs.Peers() != 2 {
		t.Errorf("peers = %v", rs.Peers())
	}
}

func TestUnknownTypesShareOneLabel(t *testing.T) {
	srv := httptest.NewServer(NewServer(logger.Nop()))
	defer srv.Close()

	host, hostId := open(t, srv, "")
	player, _ := open(t, srv, "")
	for i := 0; i < 100; i++ {
		send(t, player, Message{Type: fmt.Sprintf("junk-%d", i)})
	}
	// messages are routed in order, so the junk is counted once this arrives
	send(t, player, Message{Type: TypeOffer, Dst: hostId})
	if m := recv(t, host); m.Type != TypeOffer {
		t.Fatalf("host got %+v", m)
	}

	if n := testutil.CollectAndCount(messagesTotal); n > 8 {
		t.Errorf("%v message type series", n)
	}
	if v := testutil.ToFloat64(messagesTotal.WithLabelValues("other")); v < 100 {
		t.Errorf("other = %v", v)
	}
}

func TestTypeLabel(t *testing.T) {
	tests := []struct{ in, want string }{
		{in: TypeOffer, want: TypeOffer},
		{in: TypeAnswer, want: TypeAnswer},
		{in: TypeLeave, want: TypeLeave},
		{in: "junk", want: "other"},
		{in: "", want: "other"},
	}
	for _, test := range tests {
		if got := typeLabel(test.in); got != test.want {
			t.Errorf("typeLabel(%q) = %v, want %v", test.in, got, test.want)
		}
	}
}
