// Package webrtc wraps pion peer connections into data-channel-only
// connections with vanilla (non-trickle) ICE: a description is handed out
// only after candidate gathering is complete, so it travels in one message.
package webrtc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/giongto35/touchcoop/pkg/api"
	"github.com/giongto35/touchcoop/pkg/com"
	"github.com/giongto35/touchcoop/pkg/logger"
	"github.com/giongto35/touchcoop/pkg/transport"
	"github.com/pion/webrtc/v3"
)

const dataLabel = "data"

var ErrConnectionFailed = errors.New("webrtc connection failed")

// Peer is one data channel over its own peer connection.
// It implements transport.Conn.
type Peer struct {
	id   string
	conn *webrtc.PeerConnection
	l    transport.Listener
	log  *logger.Logger

	mu sync.Mutex
	d  *webrtc.DataChannel

	open     atomic.Bool
	opened   chan struct{}
	openOnce sync.Once
	// stopped is set once the peer is closed locally or remotely
	stopped atomic.Bool
	end     sync.Once
	done    chan struct{}
	failure error
}

func NewPeer(factory *ApiFactory, l transport.Listener, log *logger.Logger) (*Peer, error) {
	uid := com.NewUid()
	p := &Peer{
		id:     uid.String(),
		l:      l,
		log:    log.Extend(log.With().Str(logger.ConnField, uid.Short())),
		opened: make(chan struct{}),
		done:   make(chan struct{}),
	}
	conn, err := factory.NewPeerConnection()
	if err != nil {
		return nil, err
	}
	p.conn = conn
	conn.OnICECandidate(p.handleICECandidate)
	conn.OnConnectionStateChange(p.handleState)
	// the answering side gets its channel from the offer
	conn.OnDataChannel(func(ch *webrtc.DataChannel) {
		if ch.Label() != dataLabel {
			p.log.Warn().Msgf("Unexpected data channel [%v]", ch.Label())
			return
		}
		p.bind(ch)
	})
	return p, nil
}

func (p *Peer) Id() string              { return p.id }
func (p *Peer) IsOpen() bool            { return p.open.Load() && !p.stopped.Load() }
func (p *Peer) Opened() <-chan struct{} { return p.opened }

// Done is closed when the connection has ended, opened or not.
func (p *Peer) Done() <-chan struct{} { return p.done }

// Err is why the connection ended, valid after Done.
func (p *Peer) Err() error {
	if p.failure != nil {
		return p.failure
	}
	return transport.ErrClosed
}

// Offer makes a complete offer with a data channel.
func (p *Peer) Offer(ctx context.Context) (api.Description, error) {
	ch, err := p.conn.CreateDataChannel(dataLabel, nil)
	if err != nil {
		return api.Description{}, err
	}
	p.bind(ch)
	offer, err := p.conn.CreateOffer(nil)
	if err != nil {
		return api.Description{}, err
	}
	return p.setLocal(ctx, offer)
}

// Answer applies the remote offer and makes a complete answer.
func (p *Peer) Answer(ctx context.Context, offer api.Description) (api.Description, error) {
	if offer.Type != "offer" {
		return api.Description{}, fmt.Errorf("can't answer a description of type %q", offer.Type)
	}
	if err := p.SetRemote(offer); err != nil {
		return api.Description{}, err
	}
	answer, err := p.conn.CreateAnswer(nil)
	if err != nil {
		return api.Description{}, err
	}
	return p.setLocal(ctx, answer)
}

func (p *Peer) SetRemote(d api.Description) error {
	switch d.Type {
	case "offer", "answer", "pranswer", "rollback":
	default:
		return fmt.Errorf("bad description type %q", d.Type)
	}
	sdp := webrtc.SessionDescription{Type: webrtc.NewSDPType(d.Type), SDP: d.SDP}
	if err := p.conn.SetRemoteDescription(sdp); err != nil {
		p.log.Error().Err(err).Msg("Set remote description from peer failed")
		return err
	}
	p.log.Debug().Msgf("Set remote %v", d.Type)
	return nil
}

// setLocal waits until all the candidates are in the description.
func (p *Peer) setLocal(ctx context.Context, sdp webrtc.SessionDescription) (api.Description, error) {
	gathered := webrtc.GatheringCompletePromise(p.conn)
	if err := p.conn.SetLocalDescription(sdp); err != nil {
		return api.Description{}, err
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return api.Description{}, fmt.Errorf("%w: candidate gathering: %v", transport.ErrTimeout, ctx.Err())
	}
	local := p.conn.LocalDescription()
	if local == nil {
		return api.Description{}, transport.ErrClosed
	}
	return api.Description{Type: local.Type.String(), SDP: local.SDP}, nil
}

func (p *Peer) Send(data []byte) error {
	if !p.IsOpen() {
		return transport.ErrNotOpen
	}
	p.mu.Lock()
	d := p.d
	p.mu.Unlock()
	return d.SendText(string(data))
}

// Close tears the connection down without notifying the listener.
func (p *Peer) Close() error {
	if p.stopped.Swap(true) {
		return nil
	}
	p.open.Store(false)
	p.log.Debug().Msg("WebRTC stop")
	return p.conn.Close()
}

func (p *Peer) bind(ch *webrtc.DataChannel) {
	p.mu.Lock()
	p.d = ch
	p.mu.Unlock()
	ch.OnOpen(func() {
		if p.stopped.Load() {
			return
		}
		p.openOnce.Do(func() {
			p.log.Debug().Str("label", ch.Label()).Msg("Data channel opened")
			p.open.Store(true)
			close(p.opened)
			p.l.OnOpen(p)
		})
	})
	ch.OnMessage(func(m webrtc.DataChannelMessage) {
		if len(m.Data) == 0 || p.stopped.Load() {
			return
		}
		p.l.OnMessage(p, m.Data)
	})
	ch.OnClose(func() { p.finish(nil) })
	ch.OnError(func(err error) { p.finish(err) })
}

func (p *Peer) handleICECandidate(ice *webrtc.ICECandidate) {
	// ICE gathering finish condition
	if ice == nil {
		p.log.Debug().Msg("ICE gathering is complete")
		return
	}
	p.log.Debug().Str("candidate", ice.String()).Msg("ICE")
}

func (p *Peer) handleState(state webrtc.PeerConnectionState) {
	p.log.Debug().Str(".state", state.String()).Msg("Connection")
	switch state {
	case webrtc.PeerConnectionStateFailed:
		p.finish(ErrConnectionFailed)
	case webrtc.PeerConnectionStateClosed, webrtc.PeerConnectionStateDisconnected:
		p.finish(nil)
	}
}

// finish delivers the one terminal notification of a remote close or error.
func (p *Peer) finish(err error) {
	p.end.Do(func() {
		p.failure = err
		defer close(p.done)
		if p.stopped.Swap(true) {
			return
		}
		p.open.Store(false)
		if err != nil {
			p.log.Warn().Err(err).Msg("Connection error")
			p.l.OnError(p, err)
		} else {
			p.log.Debug().Msg("Connection closed")
			p.l.OnClose(p)
		}
		go func() { _ = p.conn.Close() }()
	})
}
