package player_test

import (
	"context"
	"testing"
	"time"

	"github.com/giongto35/touchcoop/pkg/api"
	"github.com/giongto35/touchcoop/pkg/bus"
	"github.com/giongto35/touchcoop/pkg/config"
	"github.com/giongto35/touchcoop/pkg/logger"
	"github.com/giongto35/touchcoop/pkg/network/webrtc"
	"github.com/giongto35/touchcoop/pkg/player"
	"github.com/giongto35/touchcoop/pkg/session"
	"github.com/giongto35/touchcoop/pkg/transport"
	"github.com/giongto35/touchcoop/pkg/transport/direct"
)

func recv(t *testing.T, events chan api.PlayerEvent) api.PlayerEvent {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-time.After(15 * time.Second):
		t.Fatal("no event")
	}
	return api.PlayerEvent{}
}

func TestDirectSession(t *testing.T) {
	if testing.Short() {
		t.Skip("opens real UDP sockets")
	}
	factory, err := webrtc.NewApiFactory(config.Webrtc{LogLevel: 3}, logger.Nop(), nil)
	if err != nil {
		t.Fatal(err)
	}
	factory = factory.NoIceServers()
	topic := bus.NewLocal()
	defer func() { _ = topic.Close() }()

	events := make(chan api.PlayerEvent, 16)
	s, err := session.New("https://x.io/pad", func(e api.PlayerEvent) { events <- e },
		func(baseURL string) (transport.Host, error) {
			return direct.NewHost(context.Background(), factory, topic, baseURL, logger.Nop())
		}, logger.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Destroy()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	inv, err := s.IssueInvitation(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if s.Status(inv.PlayerId) != session.Pending {
		t.Errorf("status = %v", s.Status(inv.PlayerId))
	}

	p := player.New(direct.NewDialer(factory, topic, 0, logger.Nop()), logger.Nop())
	if err := p.Join(ctx, inv.ShareURL, "Ada"); err != nil {
		t.Fatal(err)
	}
	if p.Identity() != inv.PlayerId {
		t.Errorf("player id %v, invited %v", p.Identity(), inv.PlayerId)
	}

	e := recv(t, events)
	if e.Action != api.Join || e.PlayerId != inv.PlayerId || e.PlayerName != "Ada" {
		t.Errorf("join = %+v", e)
	}
	if s.Status(inv.PlayerId) != session.Accepted {
		t.Errorf("status = %v", s.Status(inv.PlayerId))
	}

	if err := p.SendMove("A"); err != nil {
		t.Fatal(err)
	}
	e = recv(t, events)
	if e.Action != api.Move || e.Button != "A" || e.PlayerName != "Ada" {
		t.Errorf("move = %+v", e)
	}

	p.Destroy()
	if e = recv(t, events); e.Action != api.Leave || e.PlayerId != inv.PlayerId {
		t.Errorf("leave = %+v", e)
	}
}
