// Package player is the gamepad side: it joins a host session from a
// share link and sends button presses over the data channel.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/giongto35/touchcoop/pkg/api"
	"github.com/giongto35/touchcoop/pkg/logger"
	"github.com/giongto35/touchcoop/pkg/transport"
)

var (
	ErrNoInvitationFound   = errors.New("no invitation found")
	ErrConnectionTimeout   = errors.New("connection timeout")
	ErrNotConnected        = errors.New("not connected")
	ErrIdentityNotResolved = errors.New("player id is not resolved")
	ErrAlreadyJoined       = errors.New("already joined")
	ErrDestroyed           = errors.New("player destroyed")
)

const (
	DefaultConnectTimeout  = 15 * time.Second
	DefaultIdentityTimeout = 10 * time.Second
)

type Player struct {
	dialer          transport.Dialer
	connectTimeout  time.Duration
	identityTimeout time.Duration
	onHost          func([]byte)
	log             *logger.Logger

	mu     sync.Mutex
	conn   transport.Conn
	id     string
	lastTs int64
	closed bool
}

type Option func(p *Player)

func WithConnectTimeout(d time.Duration) Option {
	return func(p *Player) {
		if d > 0 {
			p.connectTimeout = d
		}
	}
}

func WithIdentityTimeout(d time.Duration) Option {
	return func(p *Player) {
		if d > 0 {
			p.identityTimeout = d
		}
	}
}

// WithHostMessages receives whatever the host sends back.
func WithHostMessages(fn func(data []byte)) Option { return func(p *Player) { p.onHost = fn } }

func New(dialer transport.Dialer, log *logger.Logger, opts ...Option) *Player {
	p := &Player{
		dialer:          dialer,
		connectTimeout:  DefaultConnectTimeout,
		identityTimeout: DefaultIdentityTimeout,
		log:             log.Tag("player"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Join connects to the host named in the share link and says JOIN.
// When the channel opens before the player id is known, JOIN waits
// for the id.
func (p *Player) Join(ctx context.Context, shareURL string, name string) error {
	token := transport.TokenFromURL(shareURL, p.dialer.TokenKey())
	if token == "" {
		return ErrNoInvitationFound
	}
	p.mu.Lock()
	switch {
	case p.closed:
		p.mu.Unlock()
		return ErrDestroyed
	case p.conn != nil:
		p.mu.Unlock()
		return ErrAlreadyJoined
	}
	p.mu.Unlock()

	cctx, cancel := context.WithTimeout(ctx, p.connectTimeout)
	conn, err := p.dialer.Dial(cctx, token, transport.ListenerFuncs{
		Message: p.onMessage,
		Closed:  p.onClose,
		Error:   p.onError,
	})
	timedOut := cctx.Err() != nil
	cancel()
	switch {
	case errors.Is(err, transport.ErrBadToken), errors.Is(err, transport.ErrUnknownPeer):
		return fmt.Errorf("%w: %v", ErrNoInvitationFound, err)
	case err != nil && (timedOut || errors.Is(err, transport.ErrTimeout)):
		return fmt.Errorf("%w: %v", ErrConnectionTimeout, err)
	case err != nil:
		return err
	}

	ictx, cancel := context.WithTimeout(ctx, p.identityTimeout)
	id, err := p.dialer.Identity(ictx)
	cancel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("%w: %v", ErrIdentityNotResolved, err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		_ = conn.Close()
		return ErrDestroyed
	}
	// the host may have gone while the id was pending
	if !conn.IsOpen() {
		p.mu.Unlock()
		_ = conn.Close()
		return ErrNotConnected
	}
	p.conn, p.id = conn, id
	ev := api.NewJoin(id, name, p.stamp())
	p.mu.Unlock()

	if err := p.send(conn, ev); err != nil {
		p.drop(conn)
		_ = conn.Close()
		return err
	}
	p.log.Info().Str(logger.PlayerField, id).Msg("JOIN sent, data channel open")
	return nil
}

// SendMove sends a button press.
func (p *Player) SendMove(button string) error {
	p.mu.Lock()
	conn, id := p.conn, p.id
	if conn == nil || !conn.IsOpen() {
		p.mu.Unlock()
		return ErrNotConnected
	}
	if id == "" {
		p.mu.Unlock()
		return ErrIdentityNotResolved
	}
	ev := api.NewMove(id, button, p.stamp())
	p.mu.Unlock()
	return p.send(conn, ev)
}

func (p *Player) send(conn transport.Conn, ev api.PlayerEvent) error {
	data, err := ev.Marshal()
	if err != nil {
		return err
	}
	if err := conn.Send(data); err != nil {
		return fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	return nil
}

// stamp keeps timestamps non-decreasing when the wall clock steps back.
func (p *Player) stamp() int64 {
	ts := api.Now()
	if ts < p.lastTs {
		ts = p.lastTs
	}
	p.lastTs = ts
	return ts
}

func (p *Player) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn != nil && p.conn.IsOpen()
}

// Identity is the player id, "" before Join.
func (p *Player) Identity() string { p.mu.Lock(); defer p.mu.Unlock(); return p.id }

// Destroy tries to say LEAVE, then closes the connection.
// Send failures are ignored.
func (p *Player) Destroy() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	conn, id := p.conn, p.id
	p.conn = nil
	var ev api.PlayerEvent
	if id != "" {
		ev = api.NewLeave(id, "", p.stamp())
	}
	p.mu.Unlock()

	if conn != nil {
		if id != "" && conn.IsOpen() {
			if err := p.send(conn, ev); err != nil {
				p.log.Warn().Err(err).Msg("Failed to send LEAVE")
			}
		}
		_ = conn.Close()
	}
	if err := p.dialer.Close(); err != nil {
		p.log.Debug().Err(err).Msg("dialer close")
	}
}

func (p *Player) onMessage(_ transport.Conn, data []byte) {
	p.log.Info().Str("data", string(data)).Msg("Received from host")
	if p.onHost != nil {
		p.onHost(data)
	}
}

func (p *Player) onClose(c transport.Conn) {
	p.log.Info().Msg("Data channel closed by host")
	p.drop(c)
}

func (p *Player) onError(c transport.Conn, err error) {
	p.log.Warn().Err(err).Msg("Data channel failed")
	p.drop(c)
}

func (p *Player) drop(c transport.Conn) {
	p.mu.Lock()
	if p.conn != nil && p.conn.Id() == c.Id() {
		p.conn = nil
	}
	p.mu.Unlock()
}
