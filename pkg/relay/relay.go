// Package relay is the broker of the brokered backend.
//
// Each websocket peer gets a globally unique id on connect. Peers then
// exchange signaling messages addressed by id:
//
//	{"type":"offer","dst":"<peer id>","payload":{...}}
//
// The relay rewrites src to the sender's id and forwards the message.
// Server generated messages:
//
//	open    - dst is the id assigned to the new peer;
//	id-taken - the requested id is in use, the socket is closed;
//	expire  - src is a destination that doesn't exist;
//	leave   - src is a peer that has gone away.
package relay

import (
	"github.com/goccy/go-json"
)

const (
	TypeOpen    = "open"
	TypeIdTaken = "id-taken"
	TypeExpire  = "expire"
	TypeLeave   = "leave"
	TypeOffer   = "offer"
	TypeAnswer  = "answer"
	TypeError   = "error"
)

// IdParam is the query param a peer may use to ask for a specific id.
const IdParam = "id"

type Message struct {
	Type    string          `json:"type"`
	Src     string          `json:"src,omitempty"`
	Dst     string          `json:"dst,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func (m Message) Marshal() []byte {
	b, _ := json.Marshal(m)
	return b
}

func Parse(data []byte) (Message, error) {
	var m Message
	err := json.Unmarshal(data, &m)
	return m, err
}
