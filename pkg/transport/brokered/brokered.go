// Package brokered connects players to a host through the relay.
//
// The relay id of the host is the invitation: players send a complete
// offer to that id, the host answers through the relay, and the data
// channel then runs peer to peer.
package brokered

import (
	"context"
	"sync"
	"time"

	"github.com/giongto35/touchcoop/pkg/api"
	"github.com/giongto35/touchcoop/pkg/logger"
	"github.com/giongto35/touchcoop/pkg/network/webrtc"
	"github.com/giongto35/touchcoop/pkg/relay"
	"github.com/giongto35/touchcoop/pkg/transport"
	"github.com/goccy/go-json"
)

// TokenKey is the share URL param with the host relay id.
const TokenKey = "hostPeerId"

const (
	DefaultIdentityTimeout = 10 * time.Second
	DefaultGatherTimeout   = 10 * time.Second
)

type Options struct {
	IdentityTimeout time.Duration
	GatherTimeout   time.Duration
}

func (o Options) withDefaults() Options {
	if o.IdentityTimeout <= 0 {
		o.IdentityTimeout = DefaultIdentityTimeout
	}
	if o.GatherTimeout <= 0 {
		o.GatherTimeout = DefaultGatherTimeout
	}
	return o
}

// Host accepts every offer that comes through the relay.
type Host struct {
	client  *Client
	factory *webrtc.ApiFactory
	baseURL string
	opts    Options
	log     *logger.Logger

	mu     sync.Mutex
	l      transport.Listener
	peers  map[string]*webrtc.Peer
	closed bool
}

func NewHost(factory *webrtc.ApiFactory, relayAddr, baseURL string, opts Options, log *logger.Logger) *Host {
	h := &Host{
		factory: factory,
		baseURL: baseURL,
		opts:    opts.withDefaults(),
		log:     log.Extend(log.With().Str(logger.BackendField, "brokered")),
		l:       transport.ListenerFuncs{},
		peers:   make(map[string]*webrtc.Peer),
	}
	h.client = Connect(relayAddr, h.handle, h.log)
	return h
}

func (h *Host) Listen(l transport.Listener) { h.mu.Lock(); h.l = l; h.mu.Unlock() }

func (h *Host) listener() transport.Listener { h.mu.Lock(); defer h.mu.Unlock(); return h.l }

// Invite waits for the relay id and puts it into the share link.
// The same link serves every player.
func (h *Host) Invite(ctx context.Context) (transport.Invitation, error) {
	ctx, cancel := context.WithTimeout(ctx, h.opts.IdentityTimeout)
	defer cancel()
	id, err := h.client.Identity(ctx)
	if err != nil {
		return transport.Invitation{}, err
	}
	link, err := transport.ShareURL(h.baseURL, TokenKey, id)
	if err != nil {
		return transport.Invitation{}, err
	}
	return transport.Invitation{URL: link}, nil
}

func (h *Host) handle(m relay.Message) {
	switch m.Type {
	case relay.TypeOffer:
		var offer api.Description
		if err := json.Unmarshal(m.Payload, &offer); err != nil || m.Src == "" {
			h.log.Warn().Str("src", m.Src).Msg("malformed offer")
			return
		}
		go h.accept(m.Src, offer)
	case relay.TypeExpire:
		h.log.Debug().Str("peer", m.Src).Msg("peer expired")
	case relay.TypeLeave:
		h.log.Debug().Str("peer", m.Src).Msg("peer left the relay")
	}
}

func (h *Host) accept(src string, offer api.Description) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.mu.Unlock()

	peer, err := webrtc.NewPeer(h.factory, &connListener{h: h}, h.log.Extend(h.log.With().Str("src", src)))
	if err != nil {
		h.log.Error().Err(err).Msg("peer")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), h.opts.GatherTimeout)
	defer cancel()
	answer, err := peer.Answer(ctx, offer)
	if err != nil {
		h.log.Warn().Err(err).Str("src", src).Msg("couldn't answer")
		_ = peer.Close()
		return
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = peer.Close()
		return
	}
	h.peers[peer.Id()] = peer
	h.mu.Unlock()

	payload, _ := json.Marshal(answer)
	if err := h.client.Send(relay.Message{Type: relay.TypeAnswer, Dst: src, Payload: payload}); err != nil {
		h.log.Warn().Err(err).Str("src", src).Msg("couldn't send the answer")
		h.forget(peer)
		_ = peer.Close()
	}
}

func (h *Host) forget(c transport.Conn) { h.mu.Lock(); delete(h.peers, c.Id()); h.mu.Unlock() }

func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	peers := h.peers
	h.peers = make(map[string]*webrtc.Peer)
	h.mu.Unlock()

	for _, p := range peers {
		_ = p.Close()
	}
	return h.client.Close()
}

type connListener struct{ h *Host }

func (c *connListener) OnOpen(conn transport.Conn) { c.h.listener().OnOpen(conn) }
func (c *connListener) OnMessage(conn transport.Conn, data []byte) {
	c.h.listener().OnMessage(conn, data)
}
func (c *connListener) OnClose(conn transport.Conn) { c.h.forget(conn); c.h.listener().OnClose(conn) }
func (c *connListener) OnError(conn transport.Conn, err error) {
	c.h.forget(conn)
	c.h.listener().OnError(conn, err)
}
func (c *connListener) OnAccept(string) {}
