// Package router dispatches inbound messages to their handlers and owns
// all shared mutable state. Every mutation and fan-out runs on a single
// goroutine, so the managers it drives need no locks; the only thing a
// handler may block on is handing a frame to the transport layer, which is
// buffered and non-blocking.
package router

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nocoldiz/hypernet-explorer-signaling-server/internal/party"
	"github.com/nocoldiz/hypernet-explorer-signaling-server/internal/room"
	"github.com/nocoldiz/hypernet-explorer-signaling-server/internal/session"
	"github.com/nocoldiz/hypernet-explorer-signaling-server/internal/world"
	"github.com/nocoldiz/hypernet-explorer-signaling-server/pkg/protocol"
)

// resetCheckInterval is how often the plaza staleness check runs.
const resetCheckInterval = time.Minute

type eventKind int

const (
	evConnect eventKind = iota
	evMessage
	evClose
)

type event struct {
	kind   eventKind
	conn   session.Conn
	connID uuid.UUID
	data   []byte
	err    error
}

type handlerFunc func(p *session.Player, raw []byte)

// Router is the single-threaded message dispatcher.
type Router struct {
	logger   *slog.Logger
	registry *session.Registry
	world    *world.Store
	plaza    *world.Store // nil when the plaza is disabled
	rooms    *room.Manager
	parties  *party.Manager

	events   chan event
	stopped  chan struct{}
	handlers map[string]handlerFunc
}

func New(logger *slog.Logger, registry *session.Registry, worldStore, plazaStore *world.Store, rooms *room.Manager, parties *party.Manager) *Router {
	r := &Router{
		logger:   logger.With(slog.String("component", "router")),
		registry: registry,
		world:    worldStore,
		plaza:    plazaStore,
		rooms:    rooms,
		parties:  parties,
		events:   make(chan event, 1024),
		stopped:  make(chan struct{}),
	}
	r.handlers = map[string]handlerFunc{
		protocol.KindLogin:            r.handleLogin,
		protocol.KindPlayerMove:       r.handlePlayerMove,
		protocol.KindPlayerMeta:       r.handlePlayerMeta,
		protocol.KindMapTransfer:      r.handleMapTransfer,
		protocol.KindPlayerState:      r.handlePlayerState,
		protocol.KindSwitchChange:     r.handleSwitchChange,
		protocol.KindVariableChange:   r.handleVariableChange,
		protocol.KindSelfSwitchChange: r.handleSelfSwitchChange,
		protocol.KindPartyInvite:      r.handlePartyInvite,
		protocol.KindPartyAccept:      r.handlePartyAccept,
		protocol.KindPartyLeave:       r.handlePartyLeave,
		protocol.KindCreateRoom:       r.handleCreateRoom,
		protocol.KindJoinRoom:         r.handleJoinRoom,
		protocol.KindListRooms:        r.handleListRooms,
		protocol.KindWebRTCOffer:      r.handleRelay,
		protocol.KindWebRTCAnswer:     r.handleRelay,
		protocol.KindWebRTCCandidate:  r.handleRelay,
		protocol.KindPlazaSwitch:      r.handlePlazaSwitch,
		protocol.KindPlazaVariable:    r.handlePlazaVariable,
	}
	return r
}

// Run processes events until the context is cancelled. It must be running
// before any connection is attached.
func (r *Router) Run(ctx context.Context) {
	defer close(r.stopped)
	ticker := time.NewTicker(resetCheckInterval)
	defer ticker.Stop()

	r.logger.Info("router running")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("router stopped")
			return
		case ev := <-r.events:
			r.dispatch(ev)
		case now := <-ticker.C:
			r.checkPlazaReset(now)
		}
	}
}

func (r *Router) enqueue(ev event) {
	select {
	case r.events <- ev:
	case <-r.stopped:
	}
}

// Connect registers a new connection with the router. The player identity
// is allocated immediately; the connection stays invisible to broadcasts
// until the join handshake completes.
func (r *Router) Connect(conn session.Conn) {
	r.enqueue(event{kind: evConnect, conn: conn})
}

// HandleMessage is the transport's message callback.
func (r *Router) HandleMessage(_ context.Context, connID uuid.UUID, msg []byte) {
	r.enqueue(event{kind: evMessage, connID: connID, data: msg})
}

// HandleClose is the transport's close callback. A close can originate on
// the router goroutine itself (room eviction), so it must never block on a
// full queue.
func (r *Router) HandleClose(connID uuid.UUID, err error) {
	ev := event{kind: evClose, connID: connID, err: err}
	select {
	case r.events <- ev:
	default:
		go r.enqueue(ev)
	}
}

func (r *Router) dispatch(ev event) {
	switch ev.kind {
	case evConnect:
		p := r.registry.Register(ev.conn)
		r.logger.Debug("connection attached", slog.Int("playerID", p.ID))
	case evMessage:
		r.handleMessage(ev.connID, ev.data)
	case evClose:
		r.reconcileDisconnect(ev.connID, ev.err)
	}
}

// handleMessage enforces the per-connection state machine and routes the
// message to its handler.
func (r *Router) handleMessage(connID uuid.UUID, data []byte) {
	p, ok := r.registry.GetByConn(connID)
	if !ok {
		r.logger.Debug("message from unknown connection", slog.String("connID", connID.String()))
		return
	}

	kind := protocol.Kind(data)
	if kind == "" {
		r.logger.Warn("malformed message dropped", slog.Int("playerID", p.ID))
		return
	}

	if !p.Bound && !isHandshakeKind(kind) {
		// Shared state must never be touched before the join handshake.
		r.logger.Warn("message before join, terminating connection",
			slog.Int("playerID", p.ID), slog.String("kind", kind))
		p.Conn.Close(errProtocolViolation)
		return
	}

	h, ok := r.handlers[kind]
	if !ok {
		r.logger.Warn("unrecognized message kind ignored", slog.String("kind", kind), slog.Int("playerID", p.ID))
		return
	}
	h(p, data)
}

func isHandshakeKind(kind string) bool {
	switch kind {
	case protocol.KindLogin, protocol.KindJoinRoom, protocol.KindCreateRoom:
		return true
	}
	return false
}

// checkPlazaReset runs the periodic staleness check against the plaza
// store and notifies its occupants when a reset fires.
func (r *Router) checkPlazaReset(now time.Time) {
	if r.plaza == nil {
		return
	}
	if !r.plaza.MaybeReset(now) {
		return
	}
	plazaRoom, ok := r.rooms.Plaza()
	if !ok {
		return
	}
	reset, err := protocol.Encode(protocol.NewPlazaStateReset("The plaza has been reset for the week."))
	if err != nil {
		r.logger.Error("failed to encode reset notice", slog.Any("error", err))
		return
	}
	full, err := protocol.Encode(protocol.NewPlazaFullState(r.plaza.Switches(), r.plaza.Variables()))
	if err != nil {
		r.logger.Error("failed to encode plaza state", slog.Any("error", err))
		return
	}
	for _, occ := range plazaRoom.Occupants() {
		if occupant, ok := r.registry.Get(occ.PlayerID); ok {
			occupant.Conn.Send(reset)
			occupant.Conn.Send(full)
		}
	}
}

// reconcileDisconnect unwinds a closed connection from every manager and
// notifies the peers that remain.
func (r *Router) reconcileDisconnect(connID uuid.UUID, err error) {
	p, ok := r.registry.GetByConn(connID)
	if !ok {
		return
	}
	r.logger.Info("player disconnected", slog.Int("playerID", p.ID), slog.Any("reason", err))

	// Party first: remaining members learn about the departure.
	if remaining, _, was := r.parties.Leave(p.ID); was && remaining != nil {
		r.notifyParty(remaining)
	}

	// Room next: leader exit closes the room and evicts everyone.
	rm, seat, closed, remaining := r.rooms.Leave(p.ID)
	switch {
	case rm != nil && closed:
		r.evictRoom(remaining)
	case rm != nil:
		r.broadcastRoom(rm, seat, r.mustEncode(protocol.NewPlayerLeft(seat)))
	case p.Global:
		// Players who went straight into a room were only ever announced
		// by seat; global peers never saw their id and get no notice.
		r.broadcastGlobal(p.ID, r.mustEncode(protocol.NewPlayerLeft(p.ID)))
	}

	r.registry.Unregister(p.ID)
}

// evictRoom notifies and disconnects everyone left in a closing room.
func (r *Router) evictRoom(remaining []room.Occupant) {
	closing := r.mustEncode(protocol.NewError("room closed"))
	for _, occ := range remaining {
		occupant, ok := r.registry.Get(occ.PlayerID)
		if !ok {
			continue
		}
		occupant.Conn.Send(closing)
		occupant.Conn.Close(errRoomClosed)
	}
}
