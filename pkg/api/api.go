// Package api defines the messages exchanged between a host session and its players.
//
// Every message on an open data channel is a JSON object:
//
//	    playerId - (required) non-empty id of the sender;
//	   timestamp - (required) sender wall clock in ms since epoch;
//	      action - (required) one of JOIN, LEAVE, MOVE;
//	      button - (MOVE only, required) free-form button label;
//	  playerName - (optional) display name, "" when absent.
//
// Example:
//
//	{"playerId":"d7f1...","timestamp":1700000000000,"action":"MOVE","button":"A"}
package api

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/goccy/go-json"
)

type Action string

const (
	Join  Action = "JOIN"
	Leave Action = "LEAVE"
	Move  Action = "MOVE"
)

func (a Action) IsValid() bool { return a == Join || a == Leave || a == Move }

// PlayerEvent is a single protocol message.
type PlayerEvent struct {
	PlayerId   string `json:"playerId"`
	Timestamp  int64  `json:"timestamp"`
	Action     Action `json:"action"`
	Button     string `json:"button,omitempty"`
	PlayerName string `json:"playerName,omitempty"`
}

// ErrMalformedMessage marks any payload that doesn't pass validation.
// Receivers drop such messages and keep the connection.
var ErrMalformedMessage = errors.New("malformed message")

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedMessage, fmt.Sprintf(format, args...))
}

// Now returns the protocol timestamp for t.
func Now() int64 { return time.Now().UnixMilli() }

func NewJoin(playerId, name string, ts int64) PlayerEvent {
	return PlayerEvent{PlayerId: playerId, Timestamp: ts, Action: Join, PlayerName: name}
}

func NewLeave(playerId, name string, ts int64) PlayerEvent {
	return PlayerEvent{PlayerId: playerId, Timestamp: ts, Action: Leave, PlayerName: name}
}

func NewMove(playerId, button string, ts int64) PlayerEvent {
	return PlayerEvent{PlayerId: playerId, Timestamp: ts, Action: Move, Button: button}
}

// Marshal validates and serializes the event.
func (e PlayerEvent) Marshal() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(e)
}

func (e PlayerEvent) Validate() error {
	if e.PlayerId == "" {
		return malformed("empty playerId")
	}
	if !e.Action.IsValid() {
		return malformed("unknown action %q", e.Action)
	}
	if e.Action == Move && e.Button == "" {
		return malformed("MOVE without button")
	}
	return nil
}

// Parse reads one protocol message.
// The payload is either a JSON object or a JSON string holding one
// (text sent by clients that serialize twice).
func Parse(data []byte) (PlayerEvent, error) {
	ev, err := parse(data)
	if err == nil {
		return ev, nil
	}
	var text string
	if json.Unmarshal(data, &text) == nil {
		return parse([]byte(text))
	}
	return ev, err
}

func parse(data []byte) (PlayerEvent, error) {
	var ev PlayerEvent
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return ev, malformed("not a json object")
	}
	if fields == nil {
		return ev, malformed("null")
	}

	id, ok, err := stringField(fields, "playerId")
	if err != nil || !ok || id == "" {
		return ev, malformed("playerId must be a non-empty string")
	}
	action, ok, err := stringField(fields, "action")
	if err != nil || !ok {
		return ev, malformed("action must be a string")
	}
	if !Action(action).IsValid() {
		return ev, malformed("unknown action %q", action)
	}
	rawTs, ok := fields["timestamp"]
	if !ok {
		return ev, malformed("no timestamp")
	}
	var ts float64
	if err := json.Unmarshal(rawTs, &ts); err != nil || math.IsNaN(ts) || math.IsInf(ts, 0) {
		return ev, malformed("timestamp must be a number")
	}
	button, hasButton, err := stringField(fields, "button")
	if err != nil {
		return ev, malformed("button must be a string")
	}
	if Action(action) == Move && (!hasButton || button == "") {
		return ev, malformed("MOVE without button")
	}
	name, _, err := stringField(fields, "playerName")
	if err != nil {
		return ev, malformed("playerName must be a string")
	}

	ev = PlayerEvent{
		PlayerId:   id,
		Timestamp:  int64(ts),
		Action:     Action(action),
		PlayerName: name,
	}
	if ev.Action == Move {
		ev.Button = button
	}
	return ev, nil
}

// stringField reads an optional string, null counts as absent.
func stringField(fields map[string]json.RawMessage, key string) (string, bool, error) {
	raw, ok := fields[key]
	if !ok || string(raw) == "null" {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false, err
	}
	return s, true, nil
}
