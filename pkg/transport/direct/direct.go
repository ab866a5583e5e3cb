// Package direct connects hosts and players with no server at all.
//
// The host puts a complete offer into the share link through the offer codec.
// The player answers on the broadcast topic with a plain base64 answer that
// the inviting host picks out by player id.
package direct

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/giongto35/touchcoop/pkg/api"
	"github.com/giongto35/touchcoop/pkg/bus"
	"github.com/giongto35/touchcoop/pkg/codec"
	"github.com/giongto35/touchcoop/pkg/logger"
	"github.com/giongto35/touchcoop/pkg/network/webrtc"
	"github.com/giongto35/touchcoop/pkg/transport"
	"github.com/goccy/go-json"
	"github.com/gofrs/uuid"
)

// TokenKey is the share URL param with the encoded offer.
const TokenKey = "remoteSDP"

const DefaultGatherTimeout = 10 * time.Second

type Host struct {
	factory *webrtc.ApiFactory
	bus     bus.Bus
	baseURL string
	gather  time.Duration
	log     *logger.Logger

	mu sync.Mutex
	l  transport.Listener
	// pending offers waiting for an answer, by player id
	pending map[string]*webrtc.Peer
	peers   map[string]*webrtc.Peer
	unsub   func()
	closed  bool
}

type Option func(h *Host)

func WithGatherTimeout(d time.Duration) Option {
	return func(h *Host) {
		if d > 0 {
			h.gather = d
		}
	}
}

// NewHost subscribes to the broadcast topic for answers.
func NewHost(ctx context.Context, factory *webrtc.ApiFactory, b bus.Bus, baseURL string, log *logger.Logger, opts ...Option) (*Host, error) {
	h := &Host{
		factory: factory,
		bus:     b,
		baseURL: baseURL,
		gather:  DefaultGatherTimeout,
		log:     log.Extend(log.With().Str(logger.BackendField, "direct")),
		l:       transport.ListenerFuncs{},
		pending: make(map[string]*webrtc.Peer),
		peers:   make(map[string]*webrtc.Peer),
	}
	for _, opt := range opts {
		opt(h)
	}
	unsub, err := b.Subscribe(ctx, h.handleBroadcast)
	if err != nil {
		return nil, fmt.Errorf("broadcast topic: %w", err)
	}
	h.unsub = unsub
	return h, nil
}

func (h *Host) Listen(l transport.Listener) { h.mu.Lock(); h.l = l; h.mu.Unlock() }

func (h *Host) listener() transport.Listener { h.mu.Lock(); defer h.mu.Unlock(); return h.l }

// Invite mints a player id and a complete offer for it.
func (h *Host) Invite(ctx context.Context) (transport.Invitation, error) {
	var inv transport.Invitation
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return inv, transport.ErrClosed
	}

	playerId := uuid.Must(uuid.NewV4()).String()
	peer, err := webrtc.NewPeer(h.factory, &connListener{h: h}, h.log.Extend(h.log.With().Str(logger.PlayerField, playerId)))
	if err != nil {
		return inv, err
	}
	gctx, cancel := context.WithTimeout(ctx, h.gather)
	defer cancel()
	offer, err := peer.Offer(gctx)
	if err != nil {
		_ = peer.Close()
		return inv, err
	}
	payload, err := json.Marshal(api.Signal{PlayerId: playerId, SDP: offer})
	if err != nil {
		_ = peer.Close()
		return inv, err
	}
	token, err := codec.Encode(string(payload))
	if err != nil {
		_ = peer.Close()
		return inv, err
	}
	link, err := transport.ShareURL(h.baseURL, TokenKey, token)
	if err != nil {
		_ = peer.Close()
		return inv, err
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = peer.Close()
		return inv, transport.ErrClosed
	}
	h.pending[playerId] = peer
	h.peers[peer.Id()] = peer
	h.mu.Unlock()

	h.log.Debug().Str(logger.PlayerField, playerId).Int("token", len(token)).Msg("Invitation ready")
	return transport.Invitation{PlayerId: playerId, URL: link}, nil
}

// handleBroadcast applies answers meant for this host.
// Everything else on the topic is dropped quietly.
func (h *Host) handleBroadcast(data []byte) {
	notice, err := api.ParseAnswerNotice(data)
	if err != nil {
		return
	}
	h.mu.Lock()
	peer, ok := h.pending[notice.PlayerId]
	h.mu.Unlock()
	if !ok {
		return
	}
	answer, err := notice.Answer()
	if err != nil || answer.PlayerId != notice.PlayerId {
		h.log.Debug().Str(logger.PlayerField, notice.PlayerId).Msg("Skipped a broken answer")
		return
	}
	if err := peer.SetRemote(answer.SDP); err != nil {
		h.log.Warn().Err(err).Str(logger.PlayerField, notice.PlayerId).Msg("Answer rejected")
		return
	}

	h.mu.Lock()
	if h.closed || h.pending[notice.PlayerId] != peer {
		h.mu.Unlock()
		return
	}
	delete(h.pending, notice.PlayerId)
	l := h.l
	h.mu.Unlock()

	h.log.Info().Str(logger.PlayerField, notice.PlayerId).Msg("Answer accepted")
	l.OnAccept(notice.PlayerId)
}

// Pending returns the number of offers waiting for an answer.
func (h *Host) Pending() int { h.mu.Lock(); defer h.mu.Unlock(); return len(h.pending) }

func (h *Host) forget(c transport.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, c.Id())
	for id, p := range h.pending {
		if p.Id() == c.Id() {
			delete(h.pending, id)
		}
	}
}

func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	peers := h.peers
	h.peers = make(map[string]*webrtc.Peer)
	h.pending = make(map[string]*webrtc.Peer)
	unsub := h.unsub
	h.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	for _, p := range peers {
		_ = p.Close()
	}
	return nil
}

// connListener forwards peer notifications to the current host listener.
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
