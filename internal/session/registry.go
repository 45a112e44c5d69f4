// Package session tracks live connections and their player identities.
package session

import (
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/nocoldiz/hypernet-explorer-signaling-server/pkg/protocol"
)

// Conn is the transport surface the session layer needs. Satisfied by
// *transport.Connection.
type Conn interface {
	ID() uuid.UUID
	Send(message []byte)
	Close(err error)
}

// Player is the registry's view of one connection. A player becomes visible
// to broadcasts only after Bind completes the join handshake.
type Player struct {
	ID    int
	Conn  Conn
	Info  protocol.PlayerInfo
	Bound bool

	// Global records that the player's arrival was broadcast to the
	// global scope. Departure notices go global only for such players;
	// peers never told about an arrival get no player-left for it.
	Global bool
}

// Registry maps live connections to numeric player identities. It is owned
// by the router goroutine; all access is serialized there.
type Registry struct {
	nextID int
	byID   map[int]*Player
	byConn map[uuid.UUID]*Player
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		nextID: 1,
		byID:   make(map[int]*Player),
		byConn: make(map[uuid.UUID]*Player),
		logger: logger.With(slog.String("component", "session_registry")),
	}
}

// Register allocates the next player id for a connection. Ids are never
// reused within the process lifetime.
func (r *Registry) Register(conn Conn) *Player {
	p := &Player{ID: r.nextID, Conn: conn}
	r.nextID++
	r.byID[p.ID] = p
	r.byConn[conn.ID()] = p
	r.logger.Debug("player registered", slog.Int("playerID", p.ID), slog.String("connID", conn.ID().String()))
	return p
}

// Bind completes the join handshake, making the player visible to
// broadcasts. Binding twice is ignored.
func (r *Registry) Bind(id int, info protocol.PlayerInfo) bool {
	p, ok := r.byID[id]
	if !ok || p.Bound {
		return false
	}
	p.Info = info
	p.Bound = true
	r.logger.Debug("player bound", slog.Int("playerID", id), slog.String("name", info.Name))
	return true
}

// MarkGlobal records that the player was announced to the global scope.
func (r *Registry) MarkGlobal(id int) {
	if p, ok := r.byID[id]; ok {
		p.Global = true
	}
}

// ReplaceInfo replaces the player's whole metadata object.
func (r *Registry) ReplaceInfo(id int, info protocol.PlayerInfo) {
	if p, ok := r.byID[id]; ok {
		p.Info = info
	}
}

// UpdatePosition replaces only the positional subset of the metadata.
func (r *Registry) UpdatePosition(id int, x, y float64, direction int) {
	if p, ok := r.byID[id]; ok {
		p.Info.X = x
		p.Info.Y = y
		p.Info.Direction = direction
	}
}

// UpdateMap replaces only the player's current map.
func (r *Registry) UpdateMap(id int, mapID int) {
	if p, ok := r.byID[id]; ok {
		p.Info.MapID = mapID
	}
}

// Unregister removes a player. Idempotent.
func (r *Registry) Unregister(id int) {
	p, ok := r.byID[id]
	if !ok {
		return
	}
	delete(r.byID, id)
	delete(r.byConn, p.Conn.ID())
	r.logger.Debug("player unregistered", slog.Int("playerID", id))
}

// Get returns the player with the given id.
func (r *Registry) Get(id int) (*Player, bool) {
	p, ok := r.byID[id]
	return p, ok
}

// GetByConn returns the player behind a transport connection.
func (r *Registry) GetByConn(connID uuid.UUID) (*Player, bool) {
	p, ok := r.byConn[connID]
	return p, ok
}

// Snapshot lists every bound player except the given id, in id order.
// Used to seed a newly joined client's view of its peers.
func (r *Registry) Snapshot(excludeID int) []protocol.PlayerEntry {
	entries := make([]protocol.PlayerEntry, 0, len(r.byID))
	for _, p := range r.byID {
		if !p.Bound || p.ID == excludeID {
			continue
		}
		entries = append(entries, protocol.PlayerEntry{PlayerID: p.ID, PlayerInfo: p.Info})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].PlayerID < entries[j].PlayerID })
	return entries
}

// Each calls fn for every bound player.
func (r *Registry) Each(fn func(*Player)) {
	for _, p := range r.byID {
		if p.Bound {
			fn(p)
		}
	}
}
