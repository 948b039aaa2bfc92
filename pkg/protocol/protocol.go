// Package protocol defines the websocket message envelope and the command
// payloads exchanged between huddle clients and the server.
//
// Every inbound frame is a ClientMessage and every outbound frame is a
// ServerMessage. The shape of Data is determined by Cmd; the typed payload
// structs in payloads.go cover every command. Call-setup payloads
// (pc_description, candidate) are opaque to the server and carried as raw
// JSON.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Command tags a message envelope. The command set is closed; anything else
// is a protocol error.
type Command string

const (
	// Bidirectional commands.
	CmdError        Command = "error"
	CmdMsg          Command = "msg"
	CmdSnapshot     Command = "snapshot"
	CmdOfferVideo   Command = "offer_video"
	CmdAcceptVideo  Command = "accept_video"
	CmdIceCandidate Command = "ice_candidate"
	CmdStopVideo    Command = "stop_video"
	CmdUserInfo     Command = "user_info"
	CmdKick         Command = "kick"
	CmdMute         Command = "mute"

	// Server-to-client only.
	CmdJoin     Command = "join"
	CmdLeave    Command = "leave"
	CmdGroup    Command = "group"
	CmdRoomInfo Command = "room_info"
)

// ClientCommandValid reports whether cmd is one a client may send.
func ClientCommandValid(cmd Command) bool {
	switch cmd {
	case CmdError, CmdMsg, CmdSnapshot, CmdOfferVideo, CmdAcceptVideo,
		CmdIceCandidate, CmdStopVideo, CmdUserInfo, CmdKick, CmdMute:
		return true
	default:
		return false
	}
}

// ClientMessage is the inbound envelope. ReqID is chosen by the client and
// echoed back as ResID on direct responses; a missing ReqID is rejected.
type ClientMessage struct {
	ReqID string          `json:"req_id"`
	Cmd   Command         `json:"cmd"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ServerMessage is the outbound envelope. ResID is set only when the message
// is a direct response to a client request.
type ServerMessage struct {
	ResID string  `json:"res_id,omitempty"`
	Cmd   Command `json:"cmd"`
	Data  any     `json:"data,omitempty"`
}

// DecodeClientMessage parses a raw websocket frame into an envelope.
// A frame that does not parse is fatal to the sending connection.
func DecodeClientMessage(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("protocol: decode envelope: %w", err)
	}
	return &msg, nil
}

// DecodeData unmarshals an envelope's Data into the payload struct for its
// command. dst must be a pointer.
func DecodeData(raw json.RawMessage, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("protocol: decode payload: %w", err)
	}
	return nil
}

// Error builds an error envelope with a human-readable message.
// No structured error codes are part of the wire format.
func Error(msg string) *ServerMessage {
	return &ServerMessage{Cmd: CmdError, Data: msg}
}
