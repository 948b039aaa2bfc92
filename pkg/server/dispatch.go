package server

import (
	"log/slog"

	"github.com/NicolasHaas/huddle/pkg/protocol"
)

// handleMessage validates an inbound envelope and dispatches it to the
// appropriate room operation. Envelope-level violations (missing req_id,
// unknown command) get an error response; a payload that doesn't match its
// command's shape gets an error response as well. Only an unparseable frame
// is fatal, and that is handled in readPump before we get here.
func (c *Conn) handleMessage(msg *protocol.ClientMessage) {
	if msg.ReqID == "" {
		c.reg.metrics.ProtocolErrors.Add(1)
		c.enqueue(protocol.Error("Unknown command. No req_id."))
		return
	}

	switch msg.Cmd {
	case protocol.CmdError:
		slog.Error("error reported by client", "user", c.id, "remote", c.remote)

	case protocol.CmdMsg:
		var text string
		if !c.decode(msg, &text) {
			return
		}
		c.room.Chat(c, text)

	case protocol.CmdSnapshot:
		var snapshot string
		if !c.decode(msg, &snapshot) {
			return
		}
		c.room.Snapshot(c, snapshot)

	case protocol.CmdOfferVideo:
		var ovi protocol.OfferVideoInfo
		if !c.decode(msg, &ovi) {
			return
		}
		c.room.OfferVideo(c, ovi)

	case protocol.CmdAcceptVideo:
		var avi protocol.AcceptVideoInfo
		if !c.decode(msg, &avi) {
			return
		}
		c.room.AcceptVideo(c, avi)

	case protocol.CmdIceCandidate:
		var ici protocol.IceCandidateInfo
		if !c.decode(msg, &ici) {
			return
		}
		c.room.IceCandidate(c, ici)

	case protocol.CmdStopVideo:
		var svi protocol.StopVideoInfo
		if !c.decode(msg, &svi) {
			return
		}
		c.room.StopVideo(c, svi)

	case protocol.CmdUserInfo:
		var nc protocol.NameChange
		if !c.decode(msg, &nc) {
			return
		}
		c.room.Rename(c, nc.Name)

	case protocol.CmdKick:
		var ki protocol.KickInfo
		if !c.decode(msg, &ki) {
			return
		}
		c.room.Kick(c, ki)

	case protocol.CmdMute:
		var mi protocol.MuteInfo
		if !c.decode(msg, &mi) {
			return
		}
		c.room.Mute(c, mi)

	default:
		c.reg.metrics.ProtocolErrors.Add(1)
		c.respond(msg.ReqID, protocol.Error("Unknown command"))
	}
}

// decode unmarshals the envelope's data for its command, reporting a
// non-fatal error to the client on mismatch.
func (c *Conn) decode(msg *protocol.ClientMessage, dst any) bool {
	if err := protocol.DecodeData(msg.Data, dst); err != nil {
		c.reg.metrics.ProtocolErrors.Add(1)
		slog.Debug("bad payload", "user", c.id, "cmd", msg.Cmd, "err", err)
		c.respond(msg.ReqID, protocol.Error("Malformed payload for command "+string(msg.Cmd)+"."))
		return false
	}
	return true
}
