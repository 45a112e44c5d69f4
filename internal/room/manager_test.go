package room_test

import (
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/nocoldiz/hypernet-explorer-signaling-server/internal/room"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func newTestManager(capacity int) *room.Manager {
	return room.NewManager(newTestLogger(), capacity)
}

func TestCreateSeatsLeaderAtOne(t *testing.T) {
	m := newTestManager(4)

	r, err := m.Create("abc", 1)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	seat, ok := r.SeatOf(1)
	if !ok || seat != 1 {
		t.Errorf("creator seat: got %d, %v", seat, ok)
	}

	if _, err := m.Create("abc", 2); !errors.Is(err, room.ErrRoomExists) {
		t.Errorf("expected ErrRoomExists, got %v", err)
	}

	if !r.IsLeaderSeat(1) || r.IsLeaderSeat(2) {
		t.Error("only seat 1 is the leader seat")
	}
}

func TestJoinAssignsLowestFreeSeatFromTwo(t *testing.T) {
	m := newTestManager(4)
	m.Create("abc", 1)

	_, seatB, err := m.Join("abc", 2)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if seatB != 2 {
		t.Errorf("first joiner seat: got %d, want 2", seatB)
	}
	_, seatC, _ := m.Join("abc", 3)
	if seatC != 3 {
		t.Errorf("second joiner seat: got %d, want 3", seatC)
	}

	// Freeing a middle seat makes it the next assignment.
	m.Leave(2)
	_, seatD, _ := m.Join("abc", 4)
	if seatD != 2 {
		t.Errorf("reassigned seat: got %d, want 2", seatD)
	}
}

func TestJoinErrors(t *testing.T) {
	m := newTestManager(3)
	m.Create("abc", 1)
	m.Join("abc", 2)
	m.Join("abc", 3)

	if _, _, err := m.Join("nope", 9); !errors.Is(err, room.ErrRoomNotFound) {
		t.Errorf("expected ErrRoomNotFound, got %v", err)
	}
	if _, _, err := m.Join("abc", 4); !errors.Is(err, room.ErrRoomFull) {
		t.Errorf("expected ErrRoomFull, got %v", err)
	}
}

func TestSeatRangeInvariant(t *testing.T) {
	m := newTestManager(4)
	r, _ := m.Create("abc", 1)
	m.Join("abc", 2)
	m.Join("abc", 3)
	m.Join("abc", 4)

	seen := make(map[int]bool)
	for _, occ := range r.Occupants() {
		if occ.Seat < 1 || occ.Seat > 4 {
			t.Errorf("seat %d outside [1,4]", occ.Seat)
		}
		if seen[occ.Seat] {
			t.Errorf("seat %d assigned twice", occ.Seat)
		}
		seen[occ.Seat] = true
	}
}

func TestLeaderLeaveClosesRoom(t *testing.T) {
	m := newTestManager(4)
	m.Create("abc", 1)
	m.Join("abc", 2)
	m.Join("abc", 3)

	r, seat, closed, remaining := m.Leave(1)
	if r == nil || seat != 1 {
		t.Fatalf("Leave returned room=%v seat=%d", r, seat)
	}
	if !closed {
		t.Fatal("leader leave must close the room")
	}
	if len(remaining) != 2 {
		t.Fatalf("expected 2 evicted occupants, got %d", len(remaining))
	}

	// The room is gone: members, listings and joins all miss it.
	if _, _, err := m.Join("abc", 9); !errors.Is(err, room.ErrRoomNotFound) {
		t.Errorf("room still joinable after close: %v", err)
	}
	if len(m.List()) != 0 {
		t.Error("closed room still listed")
	}
	if _, ok := m.RoomOf(2); ok {
		t.Error("evicted occupant still mapped to a room")
	}
}

func TestLastMemberLeaveClosesRoom(t *testing.T) {
	m := newTestManager(4)
	m.Create("abc", 1)
	m.Join("abc", 2)

	m.Leave(2) // non-leader leaves, room stays
	if len(m.List()) != 1 {
		t.Fatal("room closed on non-leader leave")
	}

	_, _, closed, remaining := m.Leave(1)
	if !closed || len(remaining) != 0 {
		t.Errorf("empty room must close silently: closed=%v remaining=%d", closed, len(remaining))
	}
}

func TestPlazaSeatsFromOneAndNeverCloses(t *testing.T) {
	m := newTestManager(4)
	m.EnablePlaza("plaza", 100)

	_, seat, err := m.Join("plaza", 1)
	if err != nil {
		t.Fatalf("plaza join failed: %v", err)
	}
	if seat != 1 {
		t.Errorf("plaza first seat: got %d, want 1", seat)
	}
	m.Join("plaza", 2)

	plaza, _ := m.Plaza()
	if plaza.IsLeaderSeat(1) {
		t.Error("plaza seat 1 must not be a leader seat")
	}

	// Seat 1 leaving a persistent room never closes it.
	_, _, closed, _ := m.Leave(1)
	if closed {
		t.Fatal("plaza closed on seat-1 leave")
	}
	_, _, closed, _ = m.Leave(2)
	if closed {
		t.Fatal("plaza closed when emptied")
	}
	if _, _, err := m.Join("plaza", 3); err != nil {
		t.Errorf("plaza not joinable after emptying: %v", err)
	}
}

func TestCreateCollidingWithPlazaID(t *testing.T) {
	m := newTestManager(4)
	m.EnablePlaza("plaza", 100)

	if _, err := m.Create("plaza", 1); !errors.Is(err, room.ErrRoomExists) {
		t.Errorf("expected ErrRoomExists for reserved id, got %v", err)
	}
}

func TestListExcludesPlaza(t *testing.T) {
	m := newTestManager(2)
	m.EnablePlaza("plaza", 100)
	m.Create("abc", 1)
	m.Join("abc", 2)
	m.Create("xyz", 3)

	list := m.List()
	if len(list) != 2 {
		t.Fatalf("expected 2 rooms listed, got %d", len(list))
	}
	if list[0].ID != "abc" || list[1].ID != "xyz" {
		t.Errorf("unexpected listing order: %+v", list)
	}
	if !list[0].IsFull {
		t.Error("abc should be full at capacity 2")
	}
	if list[1].IsFull {
		t.Error("xyz should not be full")
	}
	if list[0].Players != 2 || list[0].MaxPlayers != 2 {
		t.Errorf("abc summary wrong: %+v", list[0])
	}
}
