// Package room manages named, capacity-bounded sessions used for
// peer-to-peer grouping, including the persistent plaza room.
package room

import (
	"errors"
	"log/slog"
	"sort"
)

var (
	ErrRoomExists   = errors.New("room already exists")
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
)

// leaderSeat is reserved for the creator of a non-persistent room.
const leaderSeat = 1

// Room is one session. Seats, not player ids, are the externally visible
// peer identifiers within a room.
type Room struct {
	ID         string
	Capacity   int
	Persistent bool

	seats   map[int]int // seat -> player id
	players map[int]int // player id -> seat
}

func newRoom(id string, capacity int, persistent bool) *Room {
	return &Room{
		ID:         id,
		Capacity:   capacity,
		Persistent: persistent,
		seats:      make(map[int]int),
		players:    make(map[int]int),
	}
}

// startSeat is the first seat handed to regular joiners.
func (r *Room) startSeat() int {
	if r.Persistent {
		return 1
	}
	return leaderSeat + 1
}

// freeSeat picks the lowest available seat in the joiner range.
func (r *Room) freeSeat() (int, bool) {
	for seat := r.startSeat(); seat <= r.Capacity; seat++ {
		if _, taken := r.seats[seat]; !taken {
			return seat, true
		}
	}
	return 0, false
}

func (r *Room) seatPlayer(seat, playerID int) {
	r.seats[seat] = playerID
	r.players[playerID] = seat
}

// SeatOf returns the seat held by a player in this room.
func (r *Room) SeatOf(playerID int) (int, bool) {
	seat, ok := r.players[playerID]
	return seat, ok
}

// IsLeaderSeat reports whether a seat belongs to the room's creator.
// The plaza has no creator seat.
func (r *Room) IsLeaderSeat(seat int) bool {
	return !r.Persistent && seat == leaderSeat
}

// PlayerAt returns the player holding a seat.
func (r *Room) PlayerAt(seat int) (int, bool) {
	playerID, ok := r.seats[seat]
	return playerID, ok
}

// Count returns current occupancy.
func (r *Room) Count() int {
	return len(r.seats)
}

// IsFull reports whether no joiner seat remains.
func (r *Room) IsFull() bool {
	_, free := r.freeSeat()
	return !free
}

// Occupant is one seat binding.
type Occupant struct {
	Seat     int
	PlayerID int
}

// Occupants lists seat bindings in seat order.
func (r *Room) Occupants() []Occupant {
	out := make([]Occupant, 0, len(r.seats))
	for seat, playerID := range r.seats {
		out = append(out, Occupant{Seat: seat, PlayerID: playerID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seat < out[j].Seat })
	return out
}

// Summary describes a room for listings.
type Summary struct {
	ID         string
	Players    int
	MaxPlayers int
	IsFull     bool
}

// Manager owns all rooms. It is owned by the router goroutine; all access
// is serialized there.
type Manager struct {
	rooms      map[string]*Room
	memberRoom map[int]*Room // player id -> room
	capacity   int
	plaza      *Room
	logger     *slog.Logger
}

func NewManager(logger *slog.Logger, capacity int) *Manager {
	return &Manager{
		rooms:      make(map[string]*Room),
		memberRoom: make(map[int]*Room),
		capacity:   capacity,
		logger:     logger.With(slog.String("component", "room_manager")),
	}
}

// EnablePlaza creates the persistent room at startup. It is never closed
// and its seat numbering starts at 1.
func (m *Manager) EnablePlaza(roomID string, capacity int) *Room {
	m.plaza = newRoom(roomID, capacity, true)
	m.rooms[roomID] = m.plaza
	m.logger.Info("plaza room ready", slog.String("roomID", roomID), slog.Int("capacity", capacity))
	return m.plaza
}

// Plaza returns the persistent room, if enabled.
func (m *Manager) Plaza() (*Room, bool) {
	return m.plaza, m.plaza != nil
}

// Create makes a new room with the creator seated at the leader seat.
func (m *Manager) Create(roomID string, creatorID int) (*Room, error) {
	if _, exists := m.rooms[roomID]; exists {
		return nil, ErrRoomExists
	}
	r := newRoom(roomID, m.capacity, false)
	r.seatPlayer(leaderSeat, creatorID)
	m.rooms[roomID] = r
	m.memberRoom[creatorID] = r
	m.logger.Info("room created", slog.String("roomID", roomID), slog.Int("creator", creatorID))
	return r, nil
}

// Join seats a player in an existing room at the lowest free seat.
func (m *Manager) Join(roomID string, playerID int) (*Room, int, error) {
	r, ok := m.rooms[roomID]
	if !ok {
		return nil, 0, ErrRoomNotFound
	}
	seat, free := r.freeSeat()
	if !free {
		return nil, 0, ErrRoomFull
	}
	r.seatPlayer(seat, playerID)
	m.memberRoom[playerID] = r
	m.logger.Info("player joined room", slog.String("roomID", roomID), slog.Int("playerID", playerID), slog.Int("seat", seat))
	return r, seat, nil
}

// RoomOf returns the room a player currently occupies.
func (m *Manager) RoomOf(playerID int) (*Room, bool) {
	r, ok := m.memberRoom[playerID]
	return r, ok
}

// Leave removes a player's seat binding. A non-persistent room closes when
// its leader seat empties or when nobody remains; the remaining occupants
// are returned so the caller can notify and disconnect them. The room entry
// is deleted as part of closing.
func (m *Manager) Leave(playerID int) (r *Room, seat int, closed bool, remaining []Occupant) {
	r, ok := m.memberRoom[playerID]
	if !ok {
		return nil, 0, false, nil
	}
	seat = r.players[playerID]
	delete(r.seats, seat)
	delete(r.players, playerID)
	delete(m.memberRoom, playerID)

	if r.Persistent {
		return r, seat, false, nil
	}

	if seat == leaderSeat || r.Count() == 0 {
		remaining = r.Occupants()
		for _, occ := range remaining {
			delete(m.memberRoom, occ.PlayerID)
		}
		delete(m.rooms, r.ID)
		m.logger.Info("room closed", slog.String("roomID", r.ID), slog.Int("evicted", len(remaining)))
		return r, seat, true, remaining
	}
	return r, seat, false, nil
}

// List summarizes every room except the plaza.
func (m *Manager) List() []Summary {
	out := make([]Summary, 0, len(m.rooms))
	for _, r := range m.rooms {
		if r.Persistent {
			continue
		}
		out = append(out, Summary{
			ID:         r.ID,
			Players:    r.Count(),
			MaxPlayers: r.Capacity,
			IsFull:     r.IsFull(),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
