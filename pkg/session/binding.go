package session

import "github.com/giongto35/touchcoop/pkg/transport"

// binding ties an open connection to the player that joined over it.
type binding struct {
	conn     transport.Conn
	playerId string
	name     string
}

// bindings is the one table of connected players,
// keyed by player id with a lookup by connection handle.
// Not safe for concurrent use, the session lock guards it.
type bindings struct {
	byPlayer map[string]*binding
	byConn   map[string]*binding
}

func newBindings() *bindings {
	return &bindings{byPlayer: make(map[string]*binding), byConn: make(map[string]*binding)}
}

// bind replaces whatever the player id or the connection were bound to.
// Returns the released bindings.
func (b *bindings) bind(c transport.Conn, playerId, name string) (released []*binding) {
	if old := b.byConn[c.Id()]; old != nil && old.playerId != playerId {
		released = append(released, b.drop(old))
	}
	if old := b.byPlayer[playerId]; old != nil && old.conn.Id() != c.Id() {
		released = append(released, b.drop(old))
	}
	nb := &binding{conn: c, playerId: playerId, name: name}
	b.byPlayer[playerId] = nb
	b.byConn[c.Id()] = nb
	return
}

func (b *bindings) drop(x *binding) *binding {
	if b.byPlayer[x.playerId] == x {
		delete(b.byPlayer, x.playerId)
	}
	if b.byConn[x.conn.Id()] == x {
		delete(b.byConn, x.conn.Id())
	}
	return x
}

func (b *bindings) player(playerId string) *binding { return b.byPlayer[playerId] }

// releaseConn removes the binding of the connection, nil if it had none.
func (b *bindings) releaseConn(connId string) *binding {
	x := b.byConn[connId]
	if x == nil {
		return nil
	}
	return b.drop(x)
}

func (b *bindings) len() int { return len(b.byPlayer) }

func (b *bindings) all() []*binding {
	out := make([]*binding, 0, len(b.byPlayer))
	for _, x := range b.byPlayer {
		out = append(out, x)
	}
	return out
}

func (b *bindings) clear() []*binding {
	out := b.all()
	clear(b.byPlayer)
	clear(b.byConn)
	return out
}
