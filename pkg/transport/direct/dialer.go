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
)

// Dialer answers an offer from a share link.
// The player id comes with the offer.
type Dialer struct {
	factory *webrtc.ApiFactory
	bus     bus.Bus
	gather  time.Duration
	log     *logger.Logger

	mu      sync.Mutex
	id      string
	idReady chan struct{}
	peer    *webrtc.Peer
	closed  bool
}

func NewDialer(factory *webrtc.ApiFactory, b bus.Bus, gather time.Duration, log *logger.Logger) *Dialer {
	if gather <= 0 {
		gather = DefaultGatherTimeout
	}
	return &Dialer{
		factory: factory,
		bus:     b,
		gather:  gather,
		log:     log.Extend(log.With().Str(logger.BackendField, "direct")),
		idReady: make(chan struct{}),
	}
}

func (d *Dialer) TokenKey() string { return TokenKey }

func (d *Dialer) Identity(ctx context.Context) (string, error) {
	select {
	case <-d.idReady:
		d.mu.Lock()
		defer d.mu.Unlock()
		return d.id, nil
	case <-ctx.Done():
		return "", fmt.Errorf("%w: player id", transport.ErrTimeout)
	}
}

// ParseOffer decodes an offer token.
func ParseOffer(token string) (api.Signal, error) {
	var s api.Signal
	text, err := codec.Decode(token)
	if err != nil {
		return s, fmt.Errorf("%w: %v", transport.ErrBadToken, err)
	}
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		return s, fmt.Errorf("%w: %v", transport.ErrBadToken, err)
	}
	if s.PlayerId == "" || s.SDP.SDP == "" {
		return s, fmt.Errorf("%w: incomplete offer", transport.ErrBadToken)
	}
	return s, nil
}

func (d *Dialer) Dial(ctx context.Context, token string, l transport.Listener) (transport.Conn, error) {
	offer, err := ParseOffer(token)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, transport.ErrClosed
	}
	if d.id == "" {
		d.id = offer.PlayerId
		close(d.idReady)
	}
	d.mu.Unlock()

	log := d.log.Extend(d.log.With().Str(logger.PlayerField, offer.PlayerId))
	peer, err := webrtc.NewPeer(d.factory, l, log)
	if err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.peer = peer
	d.mu.Unlock()

	gctx, cancel := context.WithTimeout(ctx, d.gather)
	answer, err := peer.Answer(gctx, offer.SDP)
	cancel()
	if err != nil {
		_ = peer.Close()
		return nil, err
	}
	notice, err := api.NewAnswerNotice(api.Signal{PlayerId: offer.PlayerId, SDP: answer})
	if err != nil {
		_ = peer.Close()
		return nil, err
	}
	if err := d.bus.Publish(ctx, notice); err != nil {
		_ = peer.Close()
		return nil, fmt.Errorf("publish answer: %w", err)
	}
	log.Debug().Msg("Answer published")

	select {
	case <-peer.Opened():
		return peer, nil
	case <-peer.Done():
		_ = peer.Close()
		return nil, fmt.Errorf("channel failed to open: %w", peer.Err())
	case <-ctx.Done():
		_ = peer.Close()
		return nil, fmt.Errorf("%w: channel open", transport.ErrTimeout)
	}
}

func (d *Dialer) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if d.peer != nil {
		return d.peer.Close()
	}
	return nil
}
