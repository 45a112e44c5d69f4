package party_test

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/nocoldiz/hypernet-explorer-signaling-server/internal/party"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func TestAcceptCreatesPartyWithInviterAsLeader(t *testing.T) {
	m := party.NewManager(newTestLogger(), 4)

	p, err := m.Accept(2, 1)
	if err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if p.LeaderID != 1 {
		t.Errorf("leader: got %d, want 1", p.LeaderID)
	}
	if len(p.Members) != 2 || p.Members[0] != 1 || p.Members[1] != 2 {
		t.Errorf("members: got %v, want [1 2]", p.Members)
	}
}

func TestCheckInvite(t *testing.T) {
	m := party.NewManager(newTestLogger(), 2)
	m.Accept(2, 1) // party {1,2} at capacity

	if err := m.CheckInvite(1, 2); !errors.Is(err, party.ErrAlreadyInParty) {
		t.Errorf("expected ErrAlreadyInParty, got %v", err)
	}
	if err := m.CheckInvite(1, 3); !errors.Is(err, party.ErrPartyFull) {
		t.Errorf("expected ErrPartyFull, got %v", err)
	}
	if err := m.CheckInvite(3, 4); err != nil {
		t.Errorf("invite between free players should pass, got %v", err)
	}
}

func TestAcceptCapacityRecheck(t *testing.T) {
	m := party.NewManager(newTestLogger(), 2)
	m.Accept(2, 1)

	// Capacity filled between invite and accept: the accept-time check
	// is authoritative.
	if _, err := m.Accept(3, 1); !errors.Is(err, party.ErrPartyFull) {
		t.Errorf("expected ErrPartyFull, got %v", err)
	}
}

func TestRejectedAcceptLeavesNoParty(t *testing.T) {
	m := party.NewManager(newTestLogger(), 1)

	if _, err := m.Accept(2, 1); !errors.Is(err, party.ErrPartyFull) {
		t.Fatalf("expected ErrPartyFull, got %v", err)
	}
	if _, ok := m.PartyOf(1); ok {
		t.Error("failed accept left the inviter in a party")
	}
	if _, ok := m.PartyOf(2); ok {
		t.Error("failed accept left the accepter in a party")
	}
}

func TestAcceptWhileAlreadyPartied(t *testing.T) {
	m := party.NewManager(newTestLogger(), 4)
	m.Accept(2, 1)

	if _, err := m.Accept(2, 3); !errors.Is(err, party.ErrAlreadyInParty) {
		t.Errorf("expected ErrAlreadyInParty, got %v", err)
	}
}

func TestPartyExclusivity(t *testing.T) {
	m := party.NewManager(newTestLogger(), 4)
	m.Accept(2, 1)
	m.Accept(4, 3)

	p1, _ := m.PartyOf(1)
	p3, _ := m.PartyOf(3)
	for _, member := range p1.Members {
		if p3.HasMember(member) {
			t.Errorf("player %d belongs to two parties", member)
		}
	}
}

func TestLeaderSuccessionByJoinOrder(t *testing.T) {
	m := party.NewManager(newTestLogger(), 4)
	m.Accept(2, 1)
	m.Accept(3, 1)

	remaining, leaderChanged, wasMember := m.Leave(1)
	if !wasMember || remaining == nil {
		t.Fatal("leader leave lost the party")
	}
	if !leaderChanged {
		t.Error("expected leadership change")
	}
	if remaining.LeaderID != 2 {
		t.Errorf("new leader: got %d, want earliest joiner 2", remaining.LeaderID)
	}
	if !m.IsLeader(2) {
		t.Error("IsLeader disagrees with succession")
	}
}

func TestNonLeaderLeave(t *testing.T) {
	m := party.NewManager(newTestLogger(), 4)
	m.Accept(2, 1)
	m.Accept(3, 1)

	remaining, leaderChanged, _ := m.Leave(2)
	if leaderChanged {
		t.Error("non-leader leave must not change leadership")
	}
	if remaining.LeaderID != 1 || len(remaining.Members) != 2 {
		t.Errorf("unexpected party after leave: %+v", remaining)
	}
}

func TestLastMemberLeaveDeletesParty(t *testing.T) {
	m := party.NewManager(newTestLogger(), 4)
	m.Accept(2, 1)
	m.Leave(1)

	remaining, _, wasMember := m.Leave(2)
	if !wasMember {
		t.Fatal("player 2 should still have been a member")
	}
	if remaining != nil {
		t.Error("party should be deleted when its last member leaves")
	}
	if _, ok := m.PartyOf(2); ok {
		t.Error("player still mapped to a deleted party")
	}
}

func TestLeaveWithoutParty(t *testing.T) {
	m := party.NewManager(newTestLogger(), 4)
	if _, _, wasMember := m.Leave(9); wasMember {
		t.Error("Leave reported membership for a partyless player")
	}
}
