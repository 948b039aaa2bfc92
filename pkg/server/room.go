package server

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/NicolasHaas/huddle/pkg/model"
	"github.com/NicolasHaas/huddle/pkg/protocol"
)

var (
	// ErrRoomClosed means the room emptied and was torn down between
	// resolution and join; the caller should resolve again.
	ErrRoomClosed = errors.New("server: room closed")

	// ErrRoomFull means the room's preset capacity is reached.
	ErrRoomFull = errors.New("server: room full")
)

// Room is one isolated namespace of participants. It owns the membership
// map, the video-chat group table and the group id counter.
//
// All operations that touch room state are serialized by mu; different rooms
// are fully independent. Connection fields that other participants can see
// (name, snapshot, group, muted) are mutated only by Room operations while
// mu is held.
type Room struct {
	reg      *Registry
	key      string // path-derived identifier
	name     string // display name (preset or key)
	maxUsers int    // 0 = unlimited

	mu       sync.Mutex
	conns    map[string]*Conn
	groups   map[string][]string
	groupSeq int
	closed   bool
}

func newRoom(reg *Registry, key, name string, maxUsers int) *Room {
	return &Room{
		reg:      reg,
		key:      key,
		name:     name,
		maxUsers: maxUsers,
		conns:    make(map[string]*Conn),
		groups:   make(map[string][]string),
	}
}

// Key returns the room's path-derived identifier.
func (r *Room) Key() string { return r.key }

func (r *Room) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// broadcastLocked delivers msg to every current member except exclude.
// Delivery is best-effort per member's outbound queue; there is no ordering
// guarantee across members. Callers must hold r.mu.
func (r *Room) broadcastLocked(msg *protocol.ServerMessage, exclude string) {
	for id, c := range r.conns {
		if id == exclude {
			continue
		}
		c.enqueue(msg)
	}
}

// Join registers c as a member and returns the room_info snapshot for it.
// The join event is broadcast to the members present before insertion, so
// existing members never see themselves listed as new; the returned snapshot
// reflects membership after insertion.
func (r *Room) Join(c *Conn) (*protocol.RoomInfo, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, ErrRoomClosed
	}
	if r.maxUsers > 0 && len(r.conns) >= r.maxUsers {
		r.mu.Unlock()
		return nil, ErrRoomFull
	}

	r.broadcastLocked(&protocol.ServerMessage{
		Cmd:  protocol.CmdJoin,
		Data: protocol.User{UserID: c.id, Name: c.name},
	}, "")
	r.conns[c.id] = c
	c.roomMu.Lock()
	c.room = r
	c.roomMu.Unlock()

	info := r.infoLocked(c.id)
	r.mu.Unlock()

	if err := r.reg.history.RecordEvent(r.key, model.EventJoin, c.id, c.name); err != nil {
		slog.Warn("history record failed", "room", r.key, "err", err)
	}
	return info, nil
}

// infoLocked builds the full-state dump. Callers must hold r.mu.
func (r *Room) infoLocked(you string) *protocol.RoomInfo {
	users := make(map[string]protocol.RoomUser, len(r.conns))
	for id, c := range r.conns {
		users[id] = protocol.RoomUser{
			UserID:   c.id,
			Name:     c.name,
			Snapshot: c.snapshot,
			Group:    c.group,
			Muted:    c.muted,
		}
	}
	groups := make(map[string][]string, len(r.groups))
	for id, members := range r.groups {
		groups[id] = append([]string(nil), members...)
	}
	return &protocol.RoomInfo{
		Name:   r.name,
		You:    you,
		Users:  users,
		Groups: groups,
	}
}

// Remove takes c out of the room. Safe to call more than once; the leave
// event is broadcast at most once. Removing the last member closes the room
// and unregisters it before any new join to the same key is admitted.
func (r *Room) Remove(c *Conn) {
	r.mu.Lock()
	if _, ok := r.conns[c.id]; !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, c.id)
	r.leaveGroupLocked(c)
	r.broadcastLocked(&protocol.ServerMessage{
		Cmd:  protocol.CmdLeave,
		Data: protocol.User{UserID: c.id, Name: c.name},
	}, "")

	empty := len(r.conns) == 0
	if empty {
		r.closed = true
	}
	r.mu.Unlock()

	if empty {
		r.reg.remove(r)
	}
	if err := r.reg.history.RecordEvent(r.key, model.EventLeave, c.id, c.name); err != nil {
		slog.Warn("history record failed", "room", r.key, "err", err)
	}
}

// leaveGroupLocked drops a departing member from its group, dissolving the
// group if it would fall below two members. Callers must hold r.mu.
func (r *Room) leaveGroupLocked(c *Conn) {
	if c.group == "" {
		return
	}
	gid := c.group
	c.group = ""
	remaining := removeUser(r.groups[gid], c.id)
	if len(remaining) < 2 {
		for _, uid := range remaining {
			if member, ok := r.conns[uid]; ok {
				member.group = ""
			}
		}
		delete(r.groups, gid)
		r.reg.metrics.GroupsDeleted.Add(1)
		r.broadcastLocked(&protocol.ServerMessage{
			Cmd:  protocol.CmdGroup,
			Data: protocol.GroupEvent{ID: gid, Users: []string{}},
		}, "")
		return
	}
	r.groups[gid] = remaining
	r.broadcastLocked(&protocol.ServerMessage{
		Cmd:  protocol.CmdGroup,
		Data: protocol.GroupEvent{ID: gid, Users: append([]string(nil), remaining...)},
	}, "")
}

// Chat broadcasts a chat message to the whole room, sender included, so the
// sender's own log sees the same event everyone else does.
func (r *Room) Chat(from *Conn, text string) {
	text = model.SanitizeText(text)

	r.mu.Lock()
	r.broadcastLocked(&protocol.ServerMessage{
		Cmd: protocol.CmdMsg,
		Data: protocol.ChatEvent{
			User: protocol.User{UserID: from.id, Name: from.name},
			Msg:  text,
		},
	}, "")
	r.mu.Unlock()

	r.reg.metrics.ChatMessages.Add(1)
	if err := r.reg.history.RecordMessage(r.key, from.id, from.name, text); err != nil {
		slog.Warn("history record failed", "room", r.key, "err", err)
	}
}

// Snapshot stores the sender's latest presence image and broadcasts it to
// everyone else.
func (r *Room) Snapshot(from *Conn, snapshot string) {
	r.mu.Lock()
	from.snapshot = snapshot
	r.broadcastLocked(&protocol.ServerMessage{
		Cmd:  protocol.CmdSnapshot,
		Data: protocol.SnapshotEvent{UserID: from.id, Snapshot: snapshot},
	}, from.id)
	r.mu.Unlock()
	r.reg.metrics.Snapshots.Add(1)
}

// Rename changes the sender's display name and broadcasts it to the room.
func (r *Room) Rename(from *Conn, name string) {
	name = model.SanitizeText(name)
	if err := model.ValidateName(name); err != nil {
		from.enqueue(protocol.Error(err.Error()))
		return
	}

	r.mu.Lock()
	from.name = name
	r.broadcastLocked(&protocol.ServerMessage{
		Cmd:  protocol.CmdUserInfo,
		Data: protocol.NameChangeEvent{UserID: from.id, Name: name},
	}, "")
	r.mu.Unlock()
}

// Mute sets any member's mute flag and broadcasts the new state.
func (r *Room) Mute(from *Conn, mi protocol.MuteInfo) {
	r.mu.Lock()
	target, ok := r.conns[mi.UserID]
	if !ok {
		r.mu.Unlock()
		from.enqueue(protocol.Error(fmt.Sprintf("mute: user %s doesn't exist", mi.UserID)))
		return
	}
	target.muted = mi.Mute
	r.broadcastLocked(&protocol.ServerMessage{
		Cmd:  protocol.CmdMute,
		Data: protocol.MuteInfo{UserID: mi.UserID, Mute: mi.Mute},
	}, "")
	r.mu.Unlock()
}

// Kick notifies the target, waits a bounded time for its outbound queue to
// drain, then destroys it regardless of drain outcome. The wait runs in its
// own goroutine so neither the room nor other heartbeats are ever blocked.
// Ban is carried in the notification for the auth layer; it is not enforced
// here.
func (r *Room) Kick(from *Conn, ki protocol.KickInfo) {
	r.mu.Lock()
	target, ok := r.conns[ki.UserID]
	if !ok {
		r.mu.Unlock()
		from.enqueue(protocol.Error(fmt.Sprintf("kick: user %s doesn't exist", ki.UserID)))
		return
	}
	target.enqueue(&protocol.ServerMessage{
		Cmd:  protocol.CmdKick,
		Data: protocol.KickInfo{UserID: ki.UserID, Ban: ki.Ban},
	})
	r.mu.Unlock()

	slog.Info("kicking user", "room", r.key, "target", ki.UserID, "by", from.id, "ban", ki.Ban)
	r.reg.metrics.KickCount.Add(1)

	kind := model.EventKick
	if ki.Ban {
		kind = model.EventBan
	}
	if err := r.reg.history.RecordEvent(r.key, kind, ki.UserID, "by "+from.id); err != nil {
		slog.Warn("history record failed", "room", r.key, "err", err)
	}

	cfg := r.reg.cfg
	go func() {
		// Give pending outbound traffic a chance to flush before the
		// forcible close; proceed unconditionally after the bound.
		target.awaitDrain(cfg.KickDrainChecks, cfg.KickDrainInterval)
		target.destroy()
	}()
}

// OfferVideo runs the group-merge algorithm for an offer from one member to
// another, broadcasts the resulting group membership to the whole room, and
// relays the offer to the target.
func (r *Room) OfferVideo(from *Conn, ovi protocol.OfferVideoInfo) {
	// A self-directed offer would put the same user into a group twice.
	if ovi.To == from.id {
		from.enqueue(protocol.Error("Can't offer video to yourself."))
		return
	}

	r.mu.Lock()
	target, ok := r.conns[ovi.To]
	if !ok {
		r.mu.Unlock()
		from.enqueue(protocol.Error("User does not exist."))
		return
	}

	switch {
	case from.group != "" && target.group != "":
		if from.group != target.group {
			// Members of two different calls tried to connect. There is no
			// merge policy yet; refuse the offer and leave all state alone.
			r.mu.Unlock()
			slog.Warn("video offer between different groups refused",
				"room", r.key, "from", from.id, "from_group", from.group,
				"to", target.id, "to_group", target.group)
			from.enqueue(protocol.Error("Can't offer video: both users are already in different video chats."))
			return
		}
		// Already in the same group; nothing to mutate.
	case from.group != "":
		r.groups[from.group] = append(r.groups[from.group], target.id)
		target.group = from.group
	case target.group != "":
		r.groups[target.group] = append(r.groups[target.group], from.id)
		from.group = target.group
	default:
		gid := strconv.Itoa(r.groupSeq)
		r.groupSeq++
		r.groups[gid] = []string{target.id, from.id}
		target.group = gid
		from.group = gid
		r.reg.metrics.GroupsCreated.Add(1)
	}

	// Everyone's view of call composition must stay consistent, so the group
	// goes to the whole room, not just the two parties.
	r.broadcastLocked(&protocol.ServerMessage{
		Cmd: protocol.CmdGroup,
		Data: protocol.GroupEvent{
			ID:    from.group,
			Users: append([]string(nil), r.groups[from.group]...),
		},
	}, "")

	target.enqueue(&protocol.ServerMessage{
		Cmd: protocol.CmdOfferVideo,
		Data: protocol.OfferVideoEvent{
			From:          from.id,
			To:            ovi.To,
			PCDescription: ovi.PCDescription,
		},
	})
	r.mu.Unlock()
	r.reg.metrics.SignalsRelayed.Add(1)
}

// AcceptVideo relays an accept to the target. The group was already
// established by the offer, so there is no state mutation.
func (r *Room) AcceptVideo(from *Conn, avi protocol.AcceptVideoInfo) {
	r.mu.Lock()
	target, ok := r.conns[avi.To]
	if !ok {
		r.mu.Unlock()
		from.enqueue(protocol.Error("User does not exist."))
		return
	}
	target.enqueue(&protocol.ServerMessage{
		Cmd: protocol.CmdAcceptVideo,
		Data: protocol.AcceptVideoEvent{
			From:          from.id,
			To:            avi.To,
			PCDescription: avi.PCDescription,
		},
	})
	r.mu.Unlock()
	r.reg.metrics.SignalsRelayed.Add(1)
}

// IceCandidate relays an opaque ICE candidate to the target. No state
// mutation.
func (r *Room) IceCandidate(from *Conn, ici protocol.IceCandidateInfo) {
	r.mu.Lock()
	target, ok := r.conns[ici.To]
	if !ok {
		r.mu.Unlock()
		from.enqueue(protocol.Error("User does not exist."))
		return
	}
	target.enqueue(&protocol.ServerMessage{
		Cmd: protocol.CmdIceCandidate,
		Data: protocol.IceCandidateEvent{
			From:      from.id,
			To:        ici.To,
			Candidate: ici.Candidate,
		},
	})
	r.mu.Unlock()
	r.reg.metrics.SignalsRelayed.Add(1)
}

// StopVideo relays the stop to the target, then takes both parties out of
// their shared group. If the parties don't share a group the relay still
// happens but the sender gets an error and no state changes.
func (r *Room) StopVideo(from *Conn, svi protocol.StopVideoInfo) {
	r.mu.Lock()
	target, ok := r.conns[svi.To]
	if !ok {
		r.mu.Unlock()
		from.enqueue(protocol.Error("User does not exist."))
		return
	}

	target.enqueue(&protocol.ServerMessage{
		Cmd:  protocol.CmdStopVideo,
		Data: protocol.StopVideoEvent{From: from.id, To: svi.To},
	})
	r.reg.metrics.SignalsRelayed.Add(1)

	if from.group == "" || target.group == "" {
		r.mu.Unlock()
		from.enqueue(protocol.Error("Can't stop video for users who aren't video chatting."))
		return
	}
	if from.group != target.group {
		r.mu.Unlock()
		from.enqueue(protocol.Error("Can't stop video for two users who aren't in the same video chat."))
		return
	}

	gid := from.group
	from.group = ""
	target.group = ""
	remaining := removeUser(removeUser(r.groups[gid], from.id), target.id)
	if len(remaining) < 2 {
		for _, uid := range remaining {
			if member, ok := r.conns[uid]; ok {
				member.group = ""
			}
		}
		delete(r.groups, gid)
		r.reg.metrics.GroupsDeleted.Add(1)
		r.broadcastLocked(&protocol.ServerMessage{
			Cmd:  protocol.CmdGroup,
			Data: protocol.GroupEvent{ID: gid, Users: []string{}},
		}, "")
		r.mu.Unlock()
		return
	}
	r.groups[gid] = remaining
	r.broadcastLocked(&protocol.ServerMessage{
		Cmd:  protocol.CmdGroup,
		Data: protocol.GroupEvent{ID: gid, Users: append([]string(nil), remaining...)},
	}, "")
	r.mu.Unlock()
}

// memberCount returns the current number of members.
func (r *Room) memberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

// removeUser returns users without id, preserving order.
func removeUser(users []string, id string) []string {
	out := users[:0]
	for _, u := range users {
		if u != id {
			out = append(out, u)
		}
	}
	return out
}
