package session_test

import (
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/nocoldiz/hypernet-explorer-signaling-server/internal/session"
	"github.com/nocoldiz/hypernet-explorer-signaling-server/pkg/protocol"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

type fakeConn struct {
	id     uuid.UUID
	sent   [][]byte
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: uuid.New()}
}

func (c *fakeConn) ID() uuid.UUID       { return c.id }
func (c *fakeConn) Send(message []byte) { c.sent = append(c.sent, message) }
func (c *fakeConn) Close(err error)     { c.closed = true }

func TestRegisterAssignsUniqueMonotonicIDs(t *testing.T) {
	r := session.NewRegistry(newTestLogger())

	seen := make(map[int]bool)
	var last int
	for i := 0; i < 10; i++ {
		p := r.Register(newFakeConn())
		if seen[p.ID] {
			t.Fatalf("id %d assigned twice", p.ID)
		}
		if p.ID <= last {
			t.Fatalf("ids not monotonic: got %d after %d", p.ID, last)
		}
		seen[p.ID] = true
		last = p.ID

		// Ids are never reused, even after the holder leaves.
		if i%2 == 0 {
			r.Unregister(p.ID)
		}
	}
}

func TestBindOnce(t *testing.T) {
	r := session.NewRegistry(newTestLogger())
	p := r.Register(newFakeConn())

	if !r.Bind(p.ID, protocol.PlayerInfo{Name: "alice"}) {
		t.Fatal("first Bind failed")
	}
	if r.Bind(p.ID, protocol.PlayerInfo{Name: "mallory"}) {
		t.Error("second Bind should be ignored")
	}
	got, _ := r.Get(p.ID)
	if got.Info.Name != "alice" {
		t.Errorf("expected name alice after duplicate bind, got %q", got.Info.Name)
	}
}

func TestSnapshotExcludesSelfAndUnbound(t *testing.T) {
	r := session.NewRegistry(newTestLogger())
	a := r.Register(newFakeConn())
	b := r.Register(newFakeConn())
	c := r.Register(newFakeConn()) // never binds

	r.Bind(a.ID, protocol.PlayerInfo{Name: "a"})
	r.Bind(b.ID, protocol.PlayerInfo{Name: "b"})

	snap := r.Snapshot(a.ID)
	if len(snap) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(snap))
	}
	if snap[0].PlayerID != b.ID {
		t.Errorf("expected entry for player %d, got %d", b.ID, snap[0].PlayerID)
	}
	_ = c
}

func TestMetadataUpdates(t *testing.T) {
	r := session.NewRegistry(newTestLogger())
	p := r.Register(newFakeConn())
	r.Bind(p.ID, protocol.PlayerInfo{Name: "a", X: 1, Y: 2, Direction: 8, MapID: 3})

	r.UpdatePosition(p.ID, 10, 20, 2)
	got, _ := r.Get(p.ID)
	if got.Info.X != 10 || got.Info.Y != 20 || got.Info.Direction != 2 {
		t.Errorf("position subset not applied: %+v", got.Info)
	}
	if got.Info.Name != "a" || got.Info.MapID != 3 {
		t.Errorf("position update must not touch other fields: %+v", got.Info)
	}

	r.UpdateMap(p.ID, 7)
	got, _ = r.Get(p.ID)
	if got.Info.MapID != 7 {
		t.Errorf("expected map 7, got %d", got.Info.MapID)
	}

	r.ReplaceInfo(p.ID, protocol.PlayerInfo{Name: "b"})
	got, _ = r.Get(p.ID)
	if got.Info.Name != "b" || got.Info.X != 0 || got.Info.MapID != 0 {
		t.Errorf("whole-object replace not applied: %+v", got.Info)
	}
}

func TestUnregisterIdempotent(t *testing.T) {
	r := session.NewRegistry(newTestLogger())
	conn := newFakeConn()
	p := r.Register(conn)

	r.Unregister(p.ID)
	r.Unregister(p.ID) // must not panic or disturb anything
	if _, found := r.Get(p.ID); found {
		t.Error("player still present after Unregister")
	}
	if _, found := r.GetByConn(conn.ID()); found {
		t.Error("connection mapping still present after Unregister")
	}
}
