// Package domain contains core concepts of the chat relay.
// This file defines the wire protocol exchanged with clients.
// Frames are UTF-8 JSON objects discriminated by a "type" field.
package domain

import (
	"encoding/json"
	"fmt"

	apperrors "chat-relay/errors"
)

// Inbound is the closed set of commands a client may send.
// Unknown discriminators decode into UnrecognizedCommand so the
// session can answer with an error frame instead of dropping the link.
type Inbound interface {
	isInbound()
}

type JoinCommand struct {
	Room string
}

type MessageCommand struct {
	Text string
}

type LeaveCommand struct{}

type NameCommand struct {
	Name string
}

type UnrecognizedCommand struct {
	Type string
}

func (JoinCommand) isInbound()         {}
func (MessageCommand) isInbound()      {}
func (LeaveCommand) isInbound()        {}
func (NameCommand) isInbound()         {}
func (UnrecognizedCommand) isInbound() {}

// inboundEnvelope is the superset of all inbound payload fields.
type inboundEnvelope struct {
	Type string `json:"type"`
	Room string `json:"room"`
	Text string `json:"text"`
	Name string `json:"name"`
}

// DecodeInbound parses a raw text frame into one of the Inbound variants.
// A frame that is not valid JSON is a decode fault (ErrMalformedFrame),
// fatal to the session. A valid frame with an unknown type is returned
// as UnrecognizedCommand and left to the dispatcher to reject politely.
func DecodeInbound(data []byte) (Inbound, error) {
	var env inboundEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrMalformedFrame, err)
	}

	switch env.Type {
	case "join":
		return JoinCommand{Room: env.Room}, nil
	case "message":
		return MessageCommand{Text: env.Text}, nil
	case "leave":
		return LeaveCommand{}, nil
	case "name":
		return NameCommand{Name: env.Name}, nil
	default:
		return UnrecognizedCommand{Type: env.Type}, nil
	}
}

// MessageFrame is a chat message relayed to the members of a room.
// From is nil when the sender never announced a display name.
type MessageFrame struct {
	Type string  `json:"type"`
	From *string `json:"from"`
	Room string  `json:"room"`
	Text string  `json:"text"`
}

type ErrorFrame struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type JoinedFrame struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

func NewMessageFrame(from *string, room, text string) MessageFrame {
	return MessageFrame{Type: "message", From: from, Room: room, Text: text}
}

func NewErrorFrame(reason string) ErrorFrame {
	return ErrorFrame{Type: "error", Reason: reason}
}

func NewJoinedFrame(room string) JoinedFrame {
	return JoinedFrame{Type: "joined", Room: room}
}

// EncodeFrame serializes an outbound frame to its wire form.
func EncodeFrame(frame any) ([]byte, error) {
	return json.Marshal(frame)
}
