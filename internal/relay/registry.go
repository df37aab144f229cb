package relay

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/park285/chess-relay/internal/obslog"
	"github.com/park285/chess-relay/internal/rules"
)

// Registry is the process-wide map from room id to session. It is an
// injectable value, not package state, so independent instances can coexist
// in one process (and in one test binary).
type Registry struct {
	rules    Rules
	recorder Recorder

	mu    sync.Mutex
	rooms map[string]*Room
}

func NewRegistry(r Rules, rec Recorder) *Registry {
	if rec == nil {
		rec = NopRecorder{}
	}
	return &Registry{
		rules:    r,
		recorder: rec,
		rooms:    make(map[string]*Room),
	}
}

// GetOrCreate returns the session for id, constructing one on first sight.
// A new room is seeded from seedFEN when it parses; otherwise it starts at
// the standard initial position. Never fails.
func (g *Registry) GetOrCreate(id, seedFEN string) *Room {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.getOrCreateLocked(id, seedFEN)
}

// Join seats conn in room id, creating the room on first join. Lookup and
// seat assignment happen under the registry lock so a concurrent teardown
// can never race a join into a removed session.
func (g *Registry) Join(id, seedFEN string, conn Sender) (*Room, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	rm := g.getOrCreateLocked(id, seedFEN)
	if err := rm.Join(conn); err != nil {
		return nil, err
	}
	return rm, nil
}

// Leave removes conn from rm and tears the session down the moment its seat
// count reaches zero.
func (g *Registry) Leave(rm *Room, conn Sender) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if rm.Leave(conn) {
		delete(g.rooms, rm.ID())
		obslog.L().Info("relay_room_removed", zap.String("room", rm.ID()))
	}
}

// Lookup returns the session for id, if resident.
func (g *Registry) Lookup(id string) (*Room, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rm, ok := g.rooms[id]
	return rm, ok
}

// Len returns the number of resident rooms.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.rooms)
}

func (g *Registry) getOrCreateLocked(id, seedFEN string) *Room {
	if rm, ok := g.rooms[id]; ok {
		return rm
	}

	fen := rules.StartingFEN
	if strings.TrimSpace(seedFEN) != "" {
		if normalized, err := g.rules.NormalizeFEN(seedFEN); err == nil {
			fen = normalized
		}
	}

	rm := newRoom(id, fen, g.rules, g.recorder)
	g.rooms[id] = rm
	obslog.L().Info("relay_room_created", zap.String("room", id))
	return rm
}
