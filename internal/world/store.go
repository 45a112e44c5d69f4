// Package world holds the authoritative shared game state: switches,
// variables and self-switches, with optional JSON-file durability and a
// scheduled wholesale reset.
package world

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"
)

// SelfSwitchKey identifies a per-map-event switch.
type SelfSwitchKey struct {
	MapID      int
	EventID    int
	SwitchType string
}

func (k SelfSwitchKey) String() string {
	return fmt.Sprintf("%d:%d:%s", k.MapID, k.EventID, k.SwitchType)
}

// Snapshot is the full world state handed to newly joined clients.
type Snapshot struct {
	Switches     map[int]any    `json:"switches"`
	Variables    map[int]any    `json:"variables"`
	SelfSwitches map[string]any `json:"selfSwitches"`
}

// persistedState is the durable record layout. Self-switches are never
// persisted.
type persistedState struct {
	Switches  map[int]any `json:"switches"`
	Variables map[int]any `json:"variables"`
	LastReset string      `json:"lastReset"`
}

type Options struct {
	// Path enables durability when non-empty: the state is rewritten
	// after every mutation and reloaded at startup.
	Path string
	// ResetInterval enables the scheduled reset when positive.
	ResetInterval time.Duration
}

// Store is the shared world state. It is owned by the router goroutine;
// all access is serialized there.
type Store struct {
	switches     map[int]any
	variables    map[int]any
	selfSwitches map[SelfSwitchKey]any
	lastReset    time.Time

	opts   Options
	logger *slog.Logger
}

func NewStore(logger *slog.Logger, opts Options) *Store {
	s := &Store{
		switches:     make(map[int]any),
		variables:    make(map[int]any),
		selfSwitches: make(map[SelfSwitchKey]any),
		lastReset:    time.Now(),
		opts:         opts,
		logger:       logger.With(slog.String("component", "world_store")),
	}
	s.load()
	return s
}

// load reads the durable record. A missing or corrupt record is not fatal:
// the store starts empty with the current time as the reset baseline.
func (s *Store) load() {
	if s.opts.Path == "" {
		return
	}
	data, err := os.ReadFile(s.opts.Path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("failed to read state file, starting empty", slog.String("path", s.opts.Path), slog.Any("error", err))
		}
		return
	}
	var rec persistedState
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("state file is corrupt, starting empty", slog.String("path", s.opts.Path), slog.Any("error", err))
		return
	}
	if rec.Switches != nil {
		s.switches = rec.Switches
	}
	if rec.Variables != nil {
		s.variables = rec.Variables
	}
	if rec.LastReset != "" {
		if t, err := time.Parse(time.RFC3339, rec.LastReset); err == nil {
			s.lastReset = t
		}
	}
	s.logger.Info("world state loaded",
		slog.String("path", s.opts.Path),
		slog.Int("switches", len(s.switches)),
		slog.Int("variables", len(s.variables)),
		slog.Time("lastReset", s.lastReset),
	)
}

// Persist writes the durable record. Failures are warnings; the in-memory
// state keeps serving.
func (s *Store) Persist() {
	if s.opts.Path == "" {
		return
	}
	rec := persistedState{
		Switches:  s.switches,
		Variables: s.variables,
		LastReset: s.lastReset.Format(time.RFC3339),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		s.logger.Warn("failed to marshal world state", slog.Any("error", err))
		return
	}
	if err := os.WriteFile(s.opts.Path, data, 0o644); err != nil {
		s.logger.Warn("failed to write state file", slog.String("path", s.opts.Path), slog.Any("error", err))
	}
}

func (s *Store) SetSwitch(id int, value any) {
	s.switches[id] = value
	s.Persist()
}

func (s *Store) SetVariable(id int, value any) {
	s.variables[id] = value
	s.Persist()
}

func (s *Store) SetSelfSwitch(mapID, eventID int, switchType string, value any) {
	s.selfSwitches[SelfSwitchKey{MapID: mapID, EventID: eventID, SwitchType: switchType}] = value
}

func (s *Store) Switch(id int) (any, bool) {
	v, ok := s.switches[id]
	return v, ok
}

func (s *Store) Variable(id int) (any, bool) {
	v, ok := s.variables[id]
	return v, ok
}

func (s *Store) SelfSwitch(mapID, eventID int, switchType string) (any, bool) {
	v, ok := s.selfSwitches[SelfSwitchKey{MapID: mapID, EventID: eventID, SwitchType: switchType}]
	return v, ok
}

// FullSnapshot returns a copy of the whole state so a new client can
// reconstruct the world without replaying history.
func (s *Store) FullSnapshot() Snapshot {
	snap := Snapshot{
		Switches:     make(map[int]any, len(s.switches)),
		Variables:    make(map[int]any, len(s.variables)),
		SelfSwitches: make(map[string]any, len(s.selfSwitches)),
	}
	for id, v := range s.switches {
		snap.Switches[id] = v
	}
	for id, v := range s.variables {
		snap.Variables[id] = v
	}
	for k, v := range s.selfSwitches {
		snap.SelfSwitches[k.String()] = v
	}
	return snap
}

// Switches returns a copy of the switch table.
func (s *Store) Switches() map[int]any {
	out := make(map[int]any, len(s.switches))
	for id, v := range s.switches {
		out[id] = v
	}
	return out
}

// Variables returns a copy of the variable table.
func (s *Store) Variables() map[int]any {
	out := make(map[int]any, len(s.variables))
	for id, v := range s.variables {
		out[id] = v
	}
	return out
}

// LastReset reports when the state was last reset (or loaded as such).
func (s *Store) LastReset() time.Time {
	return s.lastReset
}

// MaybeReset clears switches and variables if the reset interval has
// elapsed since the last reset. Self-switches are not subject to reset.
// Returns true when a reset happened.
func (s *Store) MaybeReset(now time.Time) bool {
	if s.opts.ResetInterval <= 0 {
		return false
	}
	if now.Sub(s.lastReset) < s.opts.ResetInterval {
		return false
	}
	s.switches = make(map[int]any)
	s.variables = make(map[int]any)
	s.lastReset = now
	s.Persist()
	s.logger.Info("world state reset", slog.Time("at", now))
	return true
}
