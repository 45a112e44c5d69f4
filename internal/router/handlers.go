package router

import (
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/nocoldiz/hypernet-explorer-signaling-server/internal/party"
	"github.com/nocoldiz/hypernet-explorer-signaling-server/internal/room"
	"github.com/nocoldiz/hypernet-explorer-signaling-server/internal/session"
	"github.com/nocoldiz/hypernet-explorer-signaling-server/pkg/protocol"
)

var (
	errProtocolViolation = errors.New("protocol violation: message before join")
	errRoomClosed        = errors.New("room closed")
)

// --- handshake ---

func (r *Router) handleLogin(p *session.Player, raw []byte) {
	var msg protocol.Login
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.dropMalformed(p, protocol.KindLogin, err)
		return
	}
	if !r.registry.Bind(p.ID, msg.PlayerInfo) {
		r.logger.Debug("duplicate login ignored", slog.Int("playerID", p.ID))
		return
	}
	r.registry.MarkGlobal(p.ID)
	r.send(p, protocol.NewLoginSuccess(p.ID, r.world.FullSnapshot(), r.globalSnapshot(p.ID)))
	r.broadcastGlobal(p.ID, r.mustEncode(protocol.NewPlayerJoined(p.ID, p.Info)))
}

func (r *Router) handleCreateRoom(p *session.Player, raw []byte) {
	var msg protocol.CreateRoom
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.dropMalformed(p, protocol.KindCreateRoom, err)
		return
	}
	if msg.RoomID == "" {
		r.sendError(p, "room id must not be empty")
		return
	}
	if _, inRoom := r.rooms.RoomOf(p.ID); inRoom {
		r.sendError(p, "already in a room")
		return
	}
	if _, err := r.rooms.Create(msg.RoomID, p.ID); err != nil {
		r.sendError(p, "room already exists")
		return
	}
	// Creating a room completes the join handshake for the creator.
	r.registry.Bind(p.ID, p.Info)
	r.send(p, protocol.NewRoomCreated(msg.RoomID))
}

func (r *Router) handleJoinRoom(p *session.Player, raw []byte) {
	var msg protocol.JoinRoom
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.dropMalformed(p, protocol.KindJoinRoom, err)
		return
	}
	if _, inRoom := r.rooms.RoomOf(p.ID); inRoom {
		r.sendError(p, "already in a room")
		return
	}
	rm, seat, err := r.rooms.Join(msg.RoomID, p.ID)
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		r.sendError(p, "room not found")
		return
	case errors.Is(err, room.ErrRoomFull):
		r.sendError(p, "room is full")
		return
	case err != nil:
		r.sendError(p, "failed to join room")
		return
	}

	if !r.registry.Bind(p.ID, msg.PlayerInfo) {
		r.registry.ReplaceInfo(p.ID, msg.PlayerInfo)
	}

	// The creator never announced a player info, so joiners do not list
	// them; the creator learns of each newcomer and opens signaling
	// toward them instead.
	others := make([]protocol.PlayerEntry, 0, rm.Count()-1)
	for _, occ := range rm.Occupants() {
		if occ.PlayerID == p.ID || rm.IsLeaderSeat(occ.Seat) {
			continue
		}
		if peer, ok := r.registry.Get(occ.PlayerID); ok {
			others = append(others, protocol.PlayerEntry{PlayerID: occ.Seat, PlayerInfo: peer.Info})
		}
	}
	r.send(p, protocol.NewRoomJoined(rm.ID, seat, others, rm.Persistent))
	if rm.Persistent && r.plaza != nil {
		r.send(p, protocol.NewPlazaFullState(r.plaza.Switches(), r.plaza.Variables()))
	}
	r.broadcastRoom(rm, seat, r.mustEncode(protocol.NewPlayerJoined(seat, p.Info)))
}

// --- state sync ---

func (r *Router) handlePlayerMove(p *session.Player, raw []byte) {
	var msg protocol.PlayerMove
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.dropMalformed(p, protocol.KindPlayerMove, err)
		return
	}
	r.registry.UpdatePosition(p.ID, msg.X, msg.Y, msg.Direction)
	r.broadcastScoped(p, raw)
}

func (r *Router) handlePlayerMeta(p *session.Player, raw []byte) {
	var msg protocol.PlayerMeta
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.dropMalformed(p, protocol.KindPlayerMeta, err)
		return
	}
	r.registry.ReplaceInfo(p.ID, msg.Info)
	r.broadcastScoped(p, raw)
}

func (r *Router) handleMapTransfer(p *session.Player, raw []byte) {
	var msg protocol.MapTransfer
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.dropMalformed(p, protocol.KindMapTransfer, err)
		return
	}
	r.registry.UpdateMap(p.ID, msg.MapID)
	r.broadcastScoped(p, raw)

	// Party members follow their leader between maps.
	if !r.parties.IsLeader(p.ID) {
		return
	}
	pt, _ := r.parties.PartyOf(p.ID)
	teleport := r.mustEncode(protocol.NewForceTeleport(msg.MapID, p.Info.X, p.Info.Y, p.Info.Direction))
	for _, member := range pt.Members {
		if member == p.ID {
			continue
		}
		if follower, ok := r.registry.Get(member); ok {
			follower.Conn.Send(teleport)
		}
	}
}

func (r *Router) handlePlayerState(p *session.Player, raw []byte) {
	// Opaque player state: relayed, never interpreted.
	r.broadcastScoped(p, raw)
}

func (r *Router) handleSwitchChange(p *session.Player, raw []byte) {
	var msg protocol.SwitchChange
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.dropMalformed(p, protocol.KindSwitchChange, err)
		return
	}
	r.world.SetSwitch(msg.ID, msg.Value)
	r.broadcastGlobal(p.ID, r.annotate(p, raw))
}

func (r *Router) handleVariableChange(p *session.Player, raw []byte) {
	var msg protocol.VariableChange
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.dropMalformed(p, protocol.KindVariableChange, err)
		return
	}
	r.world.SetVariable(msg.ID, msg.Value)
	r.broadcastGlobal(p.ID, r.annotate(p, raw))
}

func (r *Router) handleSelfSwitchChange(p *session.Player, raw []byte) {
	var msg protocol.SelfSwitchChange
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.dropMalformed(p, protocol.KindSelfSwitchChange, err)
		return
	}
	r.world.SetSelfSwitch(msg.MapID, msg.EventID, msg.SwitchType, msg.Value)
	r.broadcastGlobal(p.ID, r.annotate(p, raw))
}

// --- parties ---

func (r *Router) handlePartyInvite(p *session.Player, raw []byte) {
	var msg protocol.PartyInvite
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.dropMalformed(p, protocol.KindPartyInvite, err)
		return
	}
	target, ok := r.registry.Get(msg.TargetID)
	if !ok || !target.Bound {
		r.sendError(p, "target not found")
		return
	}
	switch err := r.parties.CheckInvite(p.ID, msg.TargetID); {
	case errors.Is(err, party.ErrAlreadyInParty):
		r.sendError(p, "target is already in a party")
		return
	case errors.Is(err, party.ErrPartyFull):
		r.sendError(p, "party is full")
		return
	}
	r.send(target, protocol.NewPartyInviteRequest(p.ID, p.Info.Name))
}

func (r *Router) handlePartyAccept(p *session.Player, raw []byte) {
	var msg protocol.PartyAccept
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.dropMalformed(p, protocol.KindPartyAccept, err)
		return
	}
	inviter, ok := r.registry.Get(msg.InviterID)
	if !ok || !inviter.Bound {
		r.sendError(p, "inviter not found")
		return
	}
	pt, err := r.parties.Accept(p.ID, msg.InviterID)
	switch {
	case errors.Is(err, party.ErrAlreadyInParty):
		r.sendError(p, "already in a party")
		return
	case err != nil:
		// Capacity may have been exhausted between invite and accept.
		r.sendError(p, "failed to join party")
		return
	}
	r.notifyParty(pt)
}

func (r *Router) handlePartyLeave(p *session.Player, _ []byte) {
	remaining, _, wasMember := r.parties.Leave(p.ID)
	if !wasMember {
		r.sendError(p, "not in a party")
		return
	}
	r.send(p, protocol.NewPartyDisband())
	if remaining != nil {
		r.notifyParty(remaining)
	}
}

// notifyParty sends the current party snapshot to every member.
func (r *Router) notifyParty(pt *party.Party) {
	update := r.mustEncode(protocol.NewPartyUpdate(pt.LeaderID, pt.Members))
	for _, member := range pt.Members {
		if p, ok := r.registry.Get(member); ok {
			p.Conn.Send(update)
		}
	}
}

// --- rooms ---

func (r *Router) handleListRooms(p *session.Player, _ []byte) {
	summaries := r.rooms.List()
	rooms := make([]protocol.RoomSummary, 0, len(summaries))
	for _, s := range summaries {
		rooms = append(rooms, protocol.RoomSummary{
			ID:         s.ID,
			Players:    s.Players,
			MaxPlayers: s.MaxPlayers,
			IsFull:     s.IsFull,
		})
	}
	r.send(p, protocol.NewRoomList(rooms))
}

// handleRelay forwards a peer-negotiation payload to a single seat in the
// sender's room. The payload is opaque to the server; an absent recipient
// means the message is silently dropped.
func (r *Router) handleRelay(p *session.Player, raw []byte) {
	rm, ok := r.rooms.RoomOf(p.ID)
	if !ok {
		return
	}
	to, ok := protocol.RelayTarget(raw)
	if !ok {
		r.dropMalformed(p, protocol.Kind(raw), errors.New("missing 'to' field"))
		return
	}
	targetID, ok := rm.PlayerAt(to)
	if !ok {
		return
	}
	target, ok := r.registry.Get(targetID)
	if !ok {
		return
	}
	senderSeat, _ := rm.SeatOf(p.ID)
	out, err := protocol.Annotate(raw, senderSeat)
	if err != nil {
		r.dropMalformed(p, protocol.Kind(raw), err)
		return
	}
	target.Conn.Send(out)
}

// --- plaza state ---

func (r *Router) handlePlazaSwitch(p *session.Player, raw []byte) {
	rm, ok := r.plazaRoomOf(p)
	if !ok {
		return
	}
	var msg protocol.SwitchChange
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.dropMalformed(p, protocol.KindPlazaSwitch, err)
		return
	}
	r.plaza.SetSwitch(msg.ID, msg.Value)
	seat, _ := rm.SeatOf(p.ID)
	r.broadcastRoom(rm, seat, r.mustEncode(protocol.NewPlazaSyncSwitch(msg.ID, msg.Value)))
}

func (r *Router) handlePlazaVariable(p *session.Player, raw []byte) {
	rm, ok := r.plazaRoomOf(p)
	if !ok {
		return
	}
	var msg protocol.VariableChange
	if err := json.Unmarshal(raw, &msg); err != nil {
		r.dropMalformed(p, protocol.KindPlazaVariable, err)
		return
	}
	r.plaza.SetVariable(msg.ID, msg.Value)
	seat, _ := rm.SeatOf(p.ID)
	r.broadcastRoom(rm, seat, r.mustEncode(protocol.NewPlazaSyncVariable(msg.ID, msg.Value)))
}

// plazaRoomOf returns the plaza room when the sender occupies it.
func (r *Router) plazaRoomOf(p *session.Player) (*room.Room, bool) {
	if r.plaza == nil {
		return nil, false
	}
	rm, ok := r.rooms.RoomOf(p.ID)
	if !ok || !rm.Persistent {
		r.sendError(p, "not in the plaza")
		return nil, false
	}
	return rm, true
}

// --- fan-out helpers ---

// broadcastScoped fans a raw message out to the sender's scope, annotated
// with the sender's protocol id (seat inside a room, player id globally).
func (r *Router) broadcastScoped(p *session.Player, raw []byte) {
	if rm, ok := r.rooms.RoomOf(p.ID); ok {
		seat, _ := rm.SeatOf(p.ID)
		out, err := protocol.Annotate(raw, seat)
		if err != nil {
			r.dropMalformed(p, protocol.Kind(raw), err)
			return
		}
		r.broadcastRoom(rm, seat, out)
		return
	}
	r.broadcastGlobal(p.ID, r.annotate(p, raw))
}

// broadcastGlobal sends to every bound player outside any room, except the
// given id.
func (r *Router) broadcastGlobal(excludeID int, msg []byte) {
	if msg == nil {
		return
	}
	r.registry.Each(func(peer *session.Player) {
		if peer.ID == excludeID {
			return
		}
		if _, inRoom := r.rooms.RoomOf(peer.ID); inRoom {
			return
		}
		peer.Conn.Send(msg)
	})
}

// broadcastRoom sends to every occupant of a room except the given seat.
func (r *Router) broadcastRoom(rm *room.Room, excludeSeat int, msg []byte) {
	if msg == nil {
		return
	}
	for _, occ := range rm.Occupants() {
		if occ.Seat == excludeSeat {
			continue
		}
		if peer, ok := r.registry.Get(occ.PlayerID); ok {
			peer.Conn.Send(msg)
		}
	}
}

// globalSnapshot lists bound players outside any room, except the given id.
func (r *Router) globalSnapshot(excludeID int) []protocol.PlayerEntry {
	entries := r.registry.Snapshot(excludeID)
	out := entries[:0]
	for _, e := range entries {
		if _, inRoom := r.rooms.RoomOf(e.PlayerID); !inRoom {
			out = append(out, e)
		}
	}
	return out
}

func (r *Router) send(p *session.Player, v any) {
	msg, err := protocol.Encode(v)
	if err != nil {
		r.logger.Error("failed to encode message", slog.Any("error", err))
		return
	}
	p.Conn.Send(msg)
}

func (r *Router) sendError(p *session.Player, message string) {
	r.send(p, protocol.NewError(message))
}

// mustEncode marshals a server-originated message; nil on failure, which
// the fan-out helpers treat as a no-op.
func (r *Router) mustEncode(v any) []byte {
	msg, err := protocol.Encode(v)
	if err != nil {
		r.logger.Error("failed to encode message", slog.Any("error", err))
		return nil
	}
	return msg
}

// annotate wraps protocol.Annotate with malformed-payload logging.
func (r *Router) annotate(p *session.Player, raw []byte) []byte {
	out, err := protocol.Annotate(raw, p.ID)
	if err != nil {
		r.dropMalformed(p, protocol.Kind(raw), err)
		return nil
	}
	return out
}

func (r *Router) dropMalformed(p *session.Player, kind string, err error) {
	r.logger.Warn("malformed payload dropped",
		slog.Int("playerID", p.ID),
		slog.String("kind", kind),
		slog.Any("error", err),
	)
}
