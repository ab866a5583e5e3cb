package brokered

import (
	"context"
	"fmt"
	"sync"

	"github.com/giongto35/touchcoop/pkg/api"
	"github.com/giongto35/touchcoop/pkg/logger"
	"github.com/giongto35/touchcoop/pkg/network/webrtc"
	"github.com/giongto35/touchcoop/pkg/relay"
	"github.com/giongto35/touchcoop/pkg/transport"
	"github.com/goccy/go-json"
)

// Dialer sends an offer to the host relay id and waits for the answer.
// Its own relay id is the player id.
type Dialer struct {
	client  *Client
	factory *webrtc.ApiFactory
	opts    Options
	log     *logger.Logger

	mu     sync.Mutex
	host   string
	reply  chan relay.Message
	peer   *webrtc.Peer
	closed bool
}

func NewDialer(factory *webrtc.ApiFactory, relayAddr string, opts Options, log *logger.Logger) *Dialer {
	d := &Dialer{
		factory: factory,
		opts:    opts.withDefaults(),
		log:     log.Extend(log.With().Str(logger.BackendField, "brokered")),
	}
	d.client = Connect(relayAddr, d.handle, d.log)
	return d
}

func (d *Dialer) TokenKey() string { return TokenKey }

func (d *Dialer) Identity(ctx context.Context) (string, error) { return d.client.Identity(ctx) }

func (d *Dialer) Dial(ctx context.Context, hostId string, l transport.Listener) (transport.Conn, error) {
	if hostId == "" {
		return nil, transport.ErrBadToken
	}
	reply := make(chan relay.Message, 1)
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, transport.ErrClosed
	}
	d.host, d.reply = hostId, reply
	d.mu.Unlock()

	// the offer can go out only over a live relay connection
	if _, err := d.client.Identity(ctx); err != nil {
		return nil, err
	}

	peer, err := webrtc.NewPeer(d.factory, l, d.log.Extend(d.log.With().Str("host", hostId)))
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.peer = peer
	d.mu.Unlock()

	fail := func(err error) (transport.Conn, error) { _ = peer.Close(); return nil, err }

	gctx, cancel := context.WithTimeout(ctx, d.opts.GatherTimeout)
	offer, err := peer.Offer(gctx)
	cancel()
	if err != nil {
		return fail(err)
	}
	payload, _ := json.Marshal(offer)
	if err := d.client.Send(relay.Message{Type: relay.TypeOffer, Dst: hostId, Payload: payload}); err != nil {
		return fail(err)
	}

	select {
	case m := <-reply:
		if m.Type == relay.TypeExpire {
			return fail(fmt.Errorf("%w: %v", transport.ErrUnknownPeer, hostId))
		}
		var answer api.Description
		if err := json.Unmarshal(m.Payload, &answer); err != nil {
			return fail(fmt.Errorf("bad answer: %w", err))
		}
		if err := peer.SetRemote(answer); err != nil {
			return fail(err)
		}
	case <-ctx.Done():
		return fail(fmt.Errorf("%w: answer", transport.ErrTimeout))
	}

	select {
	case <-peer.Opened():
		return peer, nil
	case <-peer.Done():
		return fail(fmt.Errorf("channel failed to open: %w", peer.Err()))
	case <-ctx.Done():
		return fail(fmt.Errorf("%w: channel open", transport.ErrTimeout))
	}
}

func (d *Dialer) handle(m relay.Message) {
	d.mu.Lock()
	host, reply := d.host, d.reply
	d.mu.Unlock()
	if host == "" || m.Src != host {
		return
	}
	switch m.Type {
	case relay.TypeAnswer, relay.TypeExpire:
		select {
		case reply <- m:
		default:
		}
	case relay.TypeLeave:
		d.log.Debug().Msg("host left the relay")
	}
}

func (d *Dialer) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	peer := d.peer
	d.mu.Unlock()
	if peer != nil {
		_ = peer.Close()
	}
	return d.client.Close()
}
