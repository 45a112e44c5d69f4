package world_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nocoldiz/hypernet-explorer-signaling-server/internal/world"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func TestSetAndSnapshot(t *testing.T) {
	s := world.NewStore(newTestLogger(), world.Options{})

	s.SetSwitch(7, true)
	s.SetVariable(12, float64(42))
	s.SetSelfSwitch(1, 5, "A", true)

	if v, ok := s.Switch(7); !ok || v != true {
		t.Errorf("switch 7: got %v, %v", v, ok)
	}
	if v, ok := s.Variable(12); !ok || v != float64(42) {
		t.Errorf("variable 12: got %v, %v", v, ok)
	}
	if v, ok := s.SelfSwitch(1, 5, "A"); !ok || v != true {
		t.Errorf("self switch (1,5,A): got %v, %v", v, ok)
	}

	snap := s.FullSnapshot()
	if snap.Switches[7] != true {
		t.Error("snapshot missing switch 7")
	}
	if snap.Variables[12] != float64(42) {
		t.Error("snapshot missing variable 12")
	}
	if snap.SelfSwitches["1:5:A"] != true {
		t.Error("snapshot missing self switch 1:5:A")
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	s := world.NewStore(newTestLogger(), world.Options{})
	s.SetSwitch(1, true)

	snap := s.FullSnapshot()
	snap.Switches[1] = false

	if v, _ := s.Switch(1); v != true {
		t.Error("mutating a snapshot leaked into the store")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	s := world.NewStore(newTestLogger(), world.Options{Path: path})
	s.SetSwitch(3, true)
	s.SetSwitch(9, false)
	s.SetVariable(1, float64(100))

	reloaded := world.NewStore(newTestLogger(), world.Options{Path: path})
	if v, ok := reloaded.Switch(3); !ok || v != true {
		t.Errorf("switch 3 after reload: got %v, %v", v, ok)
	}
	if v, ok := reloaded.Switch(9); !ok || v != false {
		t.Errorf("switch 9 after reload: got %v, %v", v, ok)
	}
	if v, ok := reloaded.Variable(1); !ok || v != float64(100) {
		t.Errorf("variable 1 after reload: got %v, %v", v, ok)
	}
}

func TestLoadMissingFileFallsBackToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "does-not-exist.json")
	s := world.NewStore(newTestLogger(), world.Options{Path: path})

	if len(s.Switches()) != 0 || len(s.Variables()) != 0 {
		t.Error("expected empty state for missing file")
	}
}

func TestLoadCorruptFileFallsBackToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := world.NewStore(newTestLogger(), world.Options{Path: path})
	if len(s.Switches()) != 0 || len(s.Variables()) != 0 {
		t.Error("expected empty state for corrupt file")
	}
}

func TestMaybeResetIdempotence(t *testing.T) {
	interval := 7 * 24 * time.Hour
	s := world.NewStore(newTestLogger(), world.Options{ResetInterval: interval})
	s.SetSwitch(1, true)
	s.SetVariable(2, float64(5))
	s.SetSelfSwitch(1, 1, "A", true)

	baseline := s.LastReset()

	if s.MaybeReset(baseline.Add(interval - time.Minute)) {
		t.Fatal("reset fired before the interval elapsed")
	}
	if v, _ := s.Switch(1); v != true {
		t.Fatal("early check must be a no-op")
	}

	firing := baseline.Add(interval + time.Minute)
	if !s.MaybeReset(firing) {
		t.Fatal("reset did not fire after the interval elapsed")
	}
	if len(s.Switches()) != 0 || len(s.Variables()) != 0 {
		t.Error("switches/variables not cleared by reset")
	}
	if _, ok := s.SelfSwitch(1, 1, "A"); !ok {
		t.Error("self switches must survive a reset")
	}
	if !s.LastReset().Equal(firing) {
		t.Errorf("reset timestamp not updated: %v", s.LastReset())
	}

	// Exactly once: an immediate second check is a no-op.
	if s.MaybeReset(firing.Add(time.Minute)) {
		t.Error("reset fired twice")
	}
}

func TestResetDisabledWithoutInterval(t *testing.T) {
	s := world.NewStore(newTestLogger(), world.Options{})
	s.SetSwitch(1, true)

	if s.MaybeReset(time.Now().Add(365 * 24 * time.Hour)) {
		t.Error("reset fired with no interval configured")
	}
}
