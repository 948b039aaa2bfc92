package protocol

import "encoding/json"

// User is the identity summary other participants see.
type User struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// ----- Chat and presence -----

// ChatEvent is the server-side payload for CmdMsg. The client-side payload
// is a bare JSON string.
type ChatEvent struct {
	User User   `json:"user"`
	Msg  string `json:"msg"`
}

// SnapshotEvent is the server-side payload for CmdSnapshot. The client-side
// payload is a bare base64 string.
type SnapshotEvent struct {
	UserID   string `json:"user_id"`
	Snapshot string `json:"snapshot"`
}

// NameChange is the client payload for CmdUserInfo.
type NameChange struct {
	Name string `json:"name"`
}

// NameChangeEvent is the server payload for CmdUserInfo.
type NameChangeEvent struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// ----- Call setup -----

// OfferVideoInfo is the client payload for CmdOfferVideo.
type OfferVideoInfo struct {
	To            string          `json:"to"`
	PCDescription json.RawMessage `json:"pc_description"`
}

// OfferVideoEvent is the relayed server payload for CmdOfferVideo.
type OfferVideoEvent struct {
	From          string          `json:"from"`
	To            string          `json:"to"`
	PCDescription json.RawMessage `json:"pc_description"`
}

// AcceptVideoInfo is the client payload for CmdAcceptVideo.
type AcceptVideoInfo struct {
	To            string          `json:"to"`
	PCDescription json.RawMessage `json:"pc_description"`
}

// AcceptVideoEvent is the relayed server payload for CmdAcceptVideo.
type AcceptVideoEvent struct {
	From          string          `json:"from"`
	To            string          `json:"to"`
	PCDescription json.RawMessage `json:"pc_description"`
}

// IceCandidateInfo is the client payload for CmdIceCandidate.
type IceCandidateInfo struct {
	To        string          `json:"to"`
	Candidate json.RawMessage `json:"candidate"`
}

// IceCandidateEvent is the relayed server payload for CmdIceCandidate.
type IceCandidateEvent struct {
	From      string          `json:"from"`
	To        string          `json:"to"`
	Candidate json.RawMessage `json:"candidate"`
}

// StopVideoInfo is the client payload for CmdStopVideo.
type StopVideoInfo struct {
	To string `json:"to"`
}

// StopVideoEvent is the relayed server payload for CmdStopVideo.
type StopVideoEvent struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// GroupEvent announces the full membership of one video-chat group.
// An empty Users slice means the group was dissolved.
type GroupEvent struct {
	ID    string   `json:"id"`
	Users []string `json:"users"`
}

// ----- Moderation -----

// KickInfo is the payload for CmdKick in both directions. Ban is carried for
// the auth layer to act on; the server itself does not enforce bans.
type KickInfo struct {
	UserID string `json:"user_id"`
	Ban    bool   `json:"ban"`
}

// MuteInfo is the payload for CmdMute in both directions.
type MuteInfo struct {
	UserID string `json:"user_id"`
	Mute   bool   `json:"mute"`
}

// ----- Room state -----

// RoomUser is one member's full presence state inside a RoomInfo dump.
// Group is empty when the member is not in a video chat.
type RoomUser struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Snapshot string `json:"snapshot"`
	Group    string `json:"group"`
	Muted    bool   `json:"muted"`
}

// RoomInfo is the full-state dump sent to a connection right after it joins.
// You is the recipient's own server-assigned user id.
type RoomInfo struct {
	Name   string              `json:"name"`
	You    string              `json:"you"`
	Users  map[string]RoomUser `json:"users"`
	Groups map[string][]string `json:"groups"`
}
