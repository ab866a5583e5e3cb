// Package transport is the contract between sessions and connection backends.
//
// A backend turns a rendezvous token (a relay id or an encoded offer) into
// an open data channel. Both the host and the player sides see a
// connection as a Conn and learn about its life through a Listener.
package transport

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

var (
	ErrClosed      = errors.New("transport closed")
	ErrTimeout     = errors.New("timeout")
	ErrUnknownPeer = errors.New("unknown peer")
	ErrNotOpen     = errors.New("channel is not open")
)

// Conn is one data channel between a host and a player.
type Conn interface {
	// Id is a local handle of the connection, unique per process.
	Id() string
	Send(data []byte) error
	Close() error
	IsOpen() bool
}

// Listener receives connection notifications.
// For each connection OnClose or OnError is called at most once and
// nothing is called after that.
type Listener interface {
	OnOpen(c Conn)
	OnMessage(c Conn, data []byte)
	OnClose(c Conn)
	OnError(c Conn, err error)
	// OnAccept reports a verified answer for an issued invitation.
	OnAccept(playerId string)
}

// Invitation is a rendezvous token ready to be shared.
type Invitation struct {
	// PlayerId is known up front only for backends that mint it.
	PlayerId string
	URL      string
}

// Host is the inviting side of a backend.
type Host interface {
	Listen(l Listener)
	Invite(ctx context.Context) (Invitation, error)
	Close() error
}

// Dialer is the joining side of a backend.
type Dialer interface {
	// TokenKey is the share URL query param holding the rendezvous token.
	TokenKey() string
	// Identity blocks until the local player id is known.
	Identity(ctx context.Context) (string, error)
	// Dial opens a channel to the host named by the token.
	Dial(ctx context.Context, token string, l Listener) (Conn, error)
	Close() error
}

// ListenerFuncs adapts plain functions to a Listener, nil ones are skipped.
type ListenerFuncs struct {
	Open    func(c Conn)
	Message func(c Conn, data []byte)
	Closed  func(c Conn)
	Error   func(c Conn, err error)
	Accept  func(playerId string)
}

func (f ListenerFuncs) OnOpen(c Conn) {
	if f.Open != nil {
		f.Open(c)
	}
}

func (f ListenerFuncs) OnMessage(c Conn, data []byte) {
	if f.Message != nil {
		f.Message(c, data)
	}
}

func (f ListenerFuncs) OnClose(c Conn) {
	if f.Closed != nil {
		f.Closed(c)
	}
}

func (f ListenerFuncs) OnError(c Conn, err error) {
	if f.Error != nil {
		f.Error(c, err)
	}
}

func (f ListenerFuncs) OnAccept(playerId string) {
	if f.Accept != nil {
		f.Accept(playerId)
	}
}

// ErrBadToken marks a rendezvous token that can't be used.
var ErrBadToken = errors.New("bad rendezvous token")

// ShareURL appends the token to the base URL under the key.
func ShareURL(base, key, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set(key, token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// TokenFromURL extracts the token under the key, "" if there is none.
func TokenFromURL(raw, key string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(u.Query().Get(key))
}
