// Package session is the host side of a game: it issues invitations,
// keeps track of the players that came through them, and turns whatever
// they send into one ordered stream of player events.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/giongto35/touchcoop/pkg/api"
	"github.com/giongto35/touchcoop/pkg/com"
	"github.com/giongto35/touchcoop/pkg/logger"
	"github.com/giongto35/touchcoop/pkg/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ErrRendezvousUnavailable = errors.New("rendezvous unavailable")
	ErrInvitationRender      = errors.New("invitation render failed")
	ErrDestroyed             = errors.New("session destroyed")
)

var (
	invitationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "touchcoop_session_invitations_total",
		Help: "Invitations issued by host sessions.",
	})
	playersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "touchcoop_session_players",
		Help: "Players bound to host sessions.",
	})
	droppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "touchcoop_session_dropped_messages_total",
		Help: "Malformed player messages dropped by host sessions.",
	})
)

type Status int

const (
	Unknown Status = iota
	Pending
	Accepted
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Accepted:
		return "accepted"
	default:
		return "unknown"
	}
}

// EventHandler receives player events in arrival order.
type EventHandler func(api.PlayerEvent)

// Backend opens the transport that invitations to baseURL go through.
type Backend func(baseURL string) (transport.Host, error)

// Player is a currently connected player.
type Player struct {
	Id   string
	Name string
}

type Session struct {
	baseURL string
	host    transport.Host
	render  Renderer
	events  *emitter
	log     *logger.Logger

	mu      sync.Mutex
	closed  bool
	invites map[string]bool
	players *bindings
}

type Option func(s *Session)

func WithRenderer(r Renderer) Option {
	return func(s *Session) {
		if r != nil {
			s.render = r
		}
	}
}

// New starts a session with its own backend.
// The handler stays bound until Destroy.
func New(baseURL string, onEvent EventHandler, backend Backend, log *logger.Logger, opts ...Option) (*Session, error) {
	host, err := backend(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRendezvousUnavailable, err)
	}
	s := &Session{
		baseURL: baseURL,
		host:    host,
		render:  QrRenderer{Size: 256, Level: RecoveryLevel("M")},
		events:  newEmitter(onEvent),
		log:     log.Tag("session"),
		invites: make(map[string]bool),
		players: newBindings(),
	}
	for _, opt := range opts {
		opt(s)
	}
	host.Listen(transport.ListenerFuncs{
		Open:    s.onOpen,
		Message: s.onMessage,
		Closed:  s.onClose,
		Error:   s.onError,
		Accept:  s.onAccept,
	})
	return s, nil
}

var sessions = com.NewMap[string, *Session]()

// Acquire returns the live session for the share link or starts one.
// The handler and the backend of an existing session are kept.
// The backend is built outside the registry lock, a session that
// loses the race for the link is destroyed.
func Acquire(baseURL string, onEvent EventHandler, backend Backend, log *logger.Logger, opts ...Option) (*Session, error) {
	if s, err := sessions.Find(baseURL); err == nil {
		return s, nil
	}
	s, err := New(baseURL, onEvent, backend, log, opts...)
	if err != nil {
		return nil, err
	}
	live, ok := sessions.PutIfAbsent(baseURL, s)
	if !ok {
		s.Destroy()
	}
	return live, nil
}

// IssueInvitation makes a new share link with its QR image.
func (s *Session) IssueInvitation(ctx context.Context) (ShareableInvitation, error) {
	var out ShareableInvitation
	if s.isClosed() {
		return out, ErrDestroyed
	}
	inv, err := s.host.Invite(ctx)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrRendezvousUnavailable, err)
	}
	img, err := s.render.Render(inv.URL)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvitationRender, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return out, ErrDestroyed
	}
	if inv.PlayerId != "" {
		if _, ok := s.invites[inv.PlayerId]; !ok {
			s.invites[inv.PlayerId] = false
		}
	}
	s.mu.Unlock()

	invitationsTotal.Inc()
	s.log.Info().Str(logger.PlayerField, inv.PlayerId).Msgf("Invitation: %v", inv.URL)
	return ShareableInvitation{PlayerId: inv.PlayerId, ShareURL: inv.URL, Image: img}, nil
}

// Status tells where the invitation of the player stands.
func (s *Session) Status(playerId string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	accepted, ok := s.invites[playerId]
	switch {
	case !ok:
		return Unknown
	case accepted:
		return Accepted
	default:
		return Pending
	}
}

// Players lists bound players ordered by id.
func (s *Session) Players() []Player {
	s.mu.Lock()
	all := s.players.all()
	s.mu.Unlock()
	out := make([]Player, 0, len(all))
	for _, b := range all {
		out = append(out, Player{Id: b.playerId, Name: b.name})
	}
	slices.SortFunc(out, func(a, b Player) int { return strings.Compare(a.Id, b.Id) })
	return out
}

// Destroy closes every connection and forgets all players.
// Calling it again does nothing.
func (s *Session) Destroy() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	bound := s.players.clear()
	clear(s.invites)
	s.mu.Unlock()

	playersGauge.Sub(float64(len(bound)))
	s.events.stop()
	for _, b := range bound {
		_ = b.conn.Close()
	}
	if err := s.host.Close(); err != nil {
		s.log.Warn().Err(err).Msg("backend close")
	}
	sessions.RemoveIf(s.baseURL, func(v *Session) bool { return v == s })
	s.log.Debug().Msg("Session destroyed")
}

func (s *Session) isClosed() bool { s.mu.Lock(); defer s.mu.Unlock(); return s.closed }

func (s *Session) onOpen(c transport.Conn) {
	s.log.Debug().Str(logger.ConnField, c.Id()).Msg("Connection open")
}

func (s *Session) onMessage(c transport.Conn, data []byte) {
	e, err := api.Parse(data)
	if err != nil {
		droppedTotal.Inc()
		s.log.Warn().Err(err).Str(logger.ConnField, c.Id()).Msg("Dropped player message")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	switch e.Action {
	case api.Join:
		before := s.players.len()
		for _, old := range s.players.bind(c, e.PlayerId, e.PlayerName) {
			delete(s.invites, old.playerId)
		}
		playersGauge.Add(float64(s.players.len() - before))
		s.invites[e.PlayerId] = true
		s.log.Info().Str(logger.PlayerField, e.PlayerId).Str("name", e.PlayerName).Msg("Player joined")
	case api.Move:
		e.PlayerName = ""
		if b := s.players.player(e.PlayerId); b != nil {
			e.PlayerName = b.name
		}
	case api.Leave:
		// only the player's own connection can release it
		if b := s.players.player(e.PlayerId); b != nil && b.conn.Id() == c.Id() {
			s.players.drop(b)
			delete(s.invites, e.PlayerId)
			playersGauge.Dec()
			s.log.Info().Str(logger.PlayerField, e.PlayerId).Msg("Player left")
		}
	}
	s.events.push(e)
}

func (s *Session) onClose(c transport.Conn) { s.disconnect(c, nil) }

func (s *Session) onError(c transport.Conn, err error) { s.disconnect(c, err) }

// disconnect is the only source of LEAVE for players that didn't say goodbye.
func (s *Session) disconnect(c transport.Conn, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	b := s.players.releaseConn(c.Id())
	if b == nil {
		s.log.Debug().Err(err).Str(logger.ConnField, c.Id()).Msg("Connection closed for unknown player")
		return
	}
	delete(s.invites, b.playerId)
	playersGauge.Dec()
	if err != nil {
		s.log.Warn().Err(err).Str(logger.PlayerField, b.playerId).Msg("Player connection failed")
	} else {
		s.log.Info().Str(logger.PlayerField, b.playerId).Msg("Player disconnected")
	}
	s.events.push(api.NewLeave(b.playerId, b.name, api.Now()))
}

func (s *Session) onAccept(playerId string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if _, ok := s.invites[playerId]; ok {
		s.invites[playerId] = true
	}
}
