// Package party groups already-connected players under a leader with a
// fixed size cap, independent of rooms.
package party

import (
	"errors"
	"log/slog"
)

var (
	ErrAlreadyInParty = errors.New("player already belongs to a party")
	ErrPartyFull      = errors.New("party is full")
)

// Party is a leader-led group. Members is kept in join order with the
// current leader always present.
type Party struct {
	ID       int
	LeaderID int
	Members  []int
}

func (p *Party) Size() int {
	return len(p.Members)
}

func (p *Party) HasMember(playerID int) bool {
	for _, m := range p.Members {
		if m == playerID {
			return true
		}
	}
	return false
}

// Manager owns all parties. It is owned by the router goroutine; all
// access is serialized there.
type Manager struct {
	parties  map[int]*Party
	byMember map[int]*Party // player id -> party
	nextID   int
	maxSize  int
	logger   *slog.Logger
}

func NewManager(logger *slog.Logger, maxSize int) *Manager {
	return &Manager{
		parties:  make(map[int]*Party),
		byMember: make(map[int]*Party),
		nextID:   1,
		maxSize:  maxSize,
		logger:   logger.With(slog.String("component", "party_manager")),
	}
}

// PartyOf returns the party a player currently belongs to.
func (m *Manager) PartyOf(playerID int) (*Party, bool) {
	p, ok := m.byMember[playerID]
	return p, ok
}

// CheckInvite validates an invitation. This check is advisory: the
// authoritative capacity check happens again at accept time.
func (m *Manager) CheckInvite(inviterID, targetID int) error {
	if _, partied := m.byMember[targetID]; partied {
		return ErrAlreadyInParty
	}
	if p, ok := m.byMember[inviterID]; ok && p.Size() >= m.maxSize {
		return ErrPartyFull
	}
	return nil
}

// Accept adds the accepter to the inviter's party, creating the party with
// the inviter as leader if they have none.
func (m *Manager) Accept(accepterID, inviterID int) (*Party, error) {
	if _, partied := m.byMember[accepterID]; partied {
		return nil, ErrAlreadyInParty
	}
	p, ok := m.byMember[inviterID]
	if ok && p.Size() >= m.maxSize {
		return nil, ErrPartyFull
	}
	if !ok {
		// A fresh party must hold both the inviter and the accepter.
		if m.maxSize < 2 {
			return nil, ErrPartyFull
		}
		p = &Party{ID: m.nextID, LeaderID: inviterID, Members: []int{inviterID}}
		m.nextID++
		m.parties[p.ID] = p
		m.byMember[inviterID] = p
		m.logger.Info("party created", slog.Int("partyID", p.ID), slog.Int("leader", inviterID))
	}
	p.Members = append(p.Members, accepterID)
	m.byMember[accepterID] = p
	m.logger.Info("player joined party", slog.Int("partyID", p.ID), slog.Int("playerID", accepterID))
	return p, nil
}

// Leave removes a player from their party. When members remain and the
// leaver was leader, leadership passes to the earliest remaining joiner.
// The party is deleted when its last member leaves.
func (m *Manager) Leave(playerID int) (remaining *Party, leaderChanged bool, wasMember bool) {
	p, ok := m.byMember[playerID]
	if !ok {
		return nil, false, false
	}
	delete(m.byMember, playerID)
	for i, member := range p.Members {
		if member == playerID {
			p.Members = append(p.Members[:i], p.Members[i+1:]...)
			break
		}
	}

	if p.Size() == 0 {
		delete(m.parties, p.ID)
		m.logger.Info("party disbanded", slog.Int("partyID", p.ID))
		return nil, false, true
	}
	if p.LeaderID == playerID {
		p.LeaderID = p.Members[0]
		leaderChanged = true
		m.logger.Info("party leadership transferred", slog.Int("partyID", p.ID), slog.Int("newLeader", p.LeaderID))
	}
	return p, leaderChanged, true
}

// IsLeader reports whether a player leads their party.
func (m *Manager) IsLeader(playerID int) bool {
	p, ok := m.byMember[playerID]
	return ok && p.LeaderID == playerID
}
