package api

import (
	"encoding/base64"
	"errors"

	"github.com/goccy/go-json"
)

// Description is a connection description (offer or answer) in the
// browser's RTCSessionDescription JSON shape.
type Description struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Signal binds a connection description to the player it was made for.
// Offers travel as Offer Codec tokens, answers as plain base64.
type Signal struct {
	PlayerId string      `json:"playerId"`
	SDP      Description `json:"sdp"`
}

const AnswerType = "answer"

// AnswerNotice is published on the broadcast topic by a joining player.
type AnswerNotice struct {
	Type         string `json:"type"`
	PlayerId     string `json:"playerId"`
	Base64Answer string `json:"base64Answer"`
}

var ErrBadSignal = errors.New("bad signal")

// NewAnswerNotice wraps an answer for the broadcast topic.
func NewAnswerNotice(s Signal) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return json.Marshal(AnswerNotice{
		Type:         AnswerType,
		PlayerId:     s.PlayerId,
		Base64Answer: base64.StdEncoding.EncodeToString(b),
	})
}

// ParseAnswerNotice reads a broadcast message.
// Anything that isn't a complete answer notice fails with ErrBadSignal.
func ParseAnswerNotice(data []byte) (AnswerNotice, error) {
	var n AnswerNotice
	if err := json.Unmarshal(data, &n); err != nil {
		return n, ErrBadSignal
	}
	if n.Type != AnswerType || n.PlayerId == "" || n.Base64Answer == "" {
		return n, ErrBadSignal
	}
	return n, nil
}

// Answer decodes the signal carried by the notice.
func (n AnswerNotice) Answer() (Signal, error) {
	var s Signal
	b, err := base64.StdEncoding.DecodeString(n.Base64Answer)
	if err != nil {
		return s, ErrBadSignal
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return s, ErrBadSignal
	}
	if s.PlayerId == "" || s.SDP.SDP == "" {
		return s, ErrBadSignal
	}
	return s, nil
}
